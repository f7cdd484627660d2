package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
	"github.com/gamesense/gamesense/pkg/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

func TestDocumentStoreContract(t *testing.T) {
	suite.Run(t, &storetest.DocumentSuite{
		New: func(t *testing.T) store.DocumentStore { return NewDocumentStore() },
	})
}

func TestGraphStoreContract(t *testing.T) {
	suite.Run(t, &storetest.GraphSuite{
		New: func(t *testing.T) store.GraphStore { return NewGraphStore() },
	})
}

func TestDeadLetterStoreContract(t *testing.T) {
	suite.Run(t, &storetest.DeadLetterSuite{
		New: func(t *testing.T) store.DeadLetterStore { return NewDeadLetterStore() },
	})
}

func TestFaultsFailN(t *testing.T) {
	sink := NewActivitySink()
	boom := errors.New("boom")
	sink.FailN("RecordActivity", 2, boom)

	ctx := context.Background()
	entry := &models.ActivityLog{ID: "1", Action: models.ActivityAddGame}
	assert.ErrorIs(t, sink.RecordActivity(ctx, entry), boom)
	assert.ErrorIs(t, sink.RecordActivity(ctx, entry), boom)
	require.NoError(t, sink.RecordActivity(ctx, entry))

	assert.Equal(t, 3, sink.Calls("RecordActivity"))
	assert.Len(t, sink.Entries(), 1)
}

func TestFaultsFailForeverUntilCleared(t *testing.T) {
	graph := NewGraphStore()
	graph.Fail("CountUserNodes", errors.New("down"))

	_, err := graph.CountUserNodes(context.Background())
	require.Error(t, err)
	_, err = graph.CountUserNodes(context.Background())
	require.Error(t, err)

	graph.Clear("CountUserNodes")
	n, err := graph.CountUserNodes(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 3, graph.TotalCalls())
}
