package activity

import (
	"context"
	"errors"
	"testing"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBuildsEntry(t *testing.T) {
	sink := memstore.NewActivitySink()
	r := NewRecorder(sink, "")
	user := models.NewUserID()

	entry, err := r.Record(context.Background(), Event{
		UserID:    user,
		SubjectID: "zelda",
		Action:    models.ActivityAddGame,
		Status:    "PLAYING",
	})
	require.NoError(t, err)

	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, *entry, entries[0])
	assert.Equal(t, user, entries[0].UserID)
	assert.Equal(t, models.ActivityAddGame, entries[0].Action)
	assert.Equal(t, "PLAYING", entries[0].Status)
	assert.Equal(t, models.JSONMap{"source": DefaultSource}, entries[0].Metadata)
	assert.NotEmpty(t, entries[0].ID)
	assert.False(t, entries[0].Timestamp.IsZero())
}

func TestRecordDistinctIDs(t *testing.T) {
	sink := memstore.NewActivitySink()
	r := NewRecorder(sink, "mobile")
	e := Event{UserID: models.NewUserID(), SubjectID: "g", Action: models.ActivityAddGame}

	first, err := r.Record(context.Background(), e)
	require.NoError(t, err)
	second, err := r.Record(context.Background(), e)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "mobile", second.Metadata["source"])
}

func TestRecordPropagatesSinkError(t *testing.T) {
	sink := memstore.NewActivitySink()
	boom := errors.New("write timeout")
	sink.Fail("RecordActivity", boom)

	_, err := NewRecorder(sink, "").Record(context.Background(), Event{Action: models.ActivityFollowTeam})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "FOLLOW_TEAM")
}
