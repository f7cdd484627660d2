package neo4j

import (
	"errors"
	"testing"
	"time"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
)

func TestRecordHelpers(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	record := &neo4j.Record{
		Keys:   []string{"name", "n", "at", "genres", "missing"},
		Values: []any{"Hades", int64(7), at, []any{"rogue", "action"}, nil},
	}

	assert.Equal(t, "Hades", getString(record, "name"))
	assert.Equal(t, int64(7), getInt(record, "n"))
	assert.True(t, at.Equal(getTime(record, "at")))
	assert.Equal(t, models.StringList{"rogue", "action"}, getStrings(record, "genres"))

	assert.Empty(t, getString(record, "missing"))
	assert.Zero(t, getInt(record, "absent"))
	assert.True(t, getTime(record, "missing").IsZero())
	assert.Nil(t, getStrings(record, "absent"))
}

func TestEdgeResult(t *testing.T) {
	assert.NoError(t, edgeResult("OWNS", 1, nil))
	assert.ErrorIs(t, edgeResult("OWNS", 0, nil), ErrMissingEndpoint)

	boom := errors.New("bolt: connection reset")
	err := edgeResult("FOLLOWS_TEAM", 0, boom)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "FOLLOWS_TEAM")
}
