package models

import (
	"encoding/json"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIDRecordID(t *testing.T) {
	id := NewUserID()

	rid := id.RecordID()
	assert.Equal(t, TableUsers, rid.Table)
	assert.Equal(t, id.String(), rid.ID)
}

func TestTypedIDCBORRejectsForeignTable(t *testing.T) {
	game := NewGameID()
	data, err := game.MarshalCBOR()
	require.NoError(t, err)

	var tag cbor.Tag
	require.NoError(t, cbor.Unmarshal(data, &tag))
	assert.Equal(t, uint64(8), tag.Number)

	var decoded GameID
	require.NoError(t, decoded.UnmarshalCBOR(data))
	assert.Equal(t, game, decoded)

	var wrong UserID
	err = wrong.UnmarshalCBOR(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected table users, got games")
}

func TestTypedIDJSONIsPlainString(t *testing.T) {
	id := NewTeamID()
	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"`+id.String()+`"`, string(data))

	var parsed TeamID
	require.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &parsed))
}

func TestZeroIDValueIsNull(t *testing.T) {
	var id UserID
	v, err := id.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, id.Scan("6f1f7c47-4c1a-4a3c-9cf2-51a4b3f7a9d1"))
	assert.Equal(t, "6f1f7c47-4c1a-4a3c-9cf2-51a4b3f7a9d1", id.String())
}

func TestParseGameStatus(t *testing.T) {
	for _, in := range []string{"playing", "Playing", " PLAYING "} {
		status, err := ParseGameStatus(in)
		require.NoError(t, err)
		assert.Equal(t, GameStatusPlaying, status)
	}

	_, err := ParseGameStatus("abandoned")
	assert.Error(t, err)
}

func TestStringListValue(t *testing.T) {
	v, err := StringList{"rpg", "action"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["rpg","action"]`, v)

	var l StringList
	require.NoError(t, l.Scan([]byte(`["strategy"]`)))
	assert.Equal(t, StringList{"strategy"}, l)
}
