package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/gamesense/gamesense/pkg/activity"
	"github.com/gamesense/gamesense/pkg/dlq"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *stores) replayer(sink *memstore.ActivitySink) *Replayer {
	return NewReplayer(s.docs, s.graph, activity.NewRecorder(sink, ""), s.queue, nil)
}

func (s *stores) enqueue(op models.Operation, subject, resource, payload string) {
	target := models.StoreDocument
	if op.IsGraphSync() {
		target = models.StoreGraph
	}
	s.queue.Enqueue(context.Background(), dlq.Entry{
		Operation:     op,
		SubjectID:     subject,
		ResourceID:    resource,
		TargetStore:   target,
		StatusPayload: payload,
		Err:           errors.New("store unreachable"),
	})
}

func TestReplayGraphSync(t *testing.T) {
	s := newStores()
	ctx := context.Background()
	users := s.seedUsers(t, 1, 0)
	game := models.Game{ID: models.NewGameID(), Title: "Celeste", Genres: models.StringList{"platformer"}}
	require.NoError(t, s.docs.CreateGame(ctx, &game))
	s.enqueue(models.OpCreateUserGraphNode, users[0].ID.String(), "UserNode", "PENDING")
	s.enqueue(models.OpUpdateGameGraphNode, game.ID.String(), "GameNode", "PENDING")

	stats, err := s.replayer(memstore.NewActivitySink()).Replay(ctx, 0)

	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Scanned: 2, Resolved: 2}, stats)
	node, err := s.graph.GetUserNode(ctx, users[0].ID)
	require.NoError(t, err)
	require.NotNil(t, node)
	assert.Equal(t, "user0", node.Username)
	gameNode, err := s.graph.GetGameNode(ctx, game.ID)
	require.NoError(t, err)
	require.NotNil(t, gameNode)
	assert.Equal(t, "Celeste", gameNode.Title)

	n, err := s.queue.CountUnresolved(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplayActivity(t *testing.T) {
	s := newStores()
	ctx := context.Background()
	userID := models.NewUserID()
	gameID := models.NewGameID()
	teamID := models.NewTeamID()
	s.enqueue(models.OpAddGameToLibrary, userID.String(), gameID.String(), "COMPLETED")
	s.enqueue(models.OpFollowTeam, userID.String(), teamID.String(), "FOLLOW_TEAM")
	sink := memstore.NewActivitySink()

	stats, err := s.replayer(sink).Replay(ctx, 10)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Resolved)
	entries := sink.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActivityAddGame, entries[0].Action)
	assert.Equal(t, gameID.String(), entries[0].SubjectID)
	assert.Equal(t, "COMPLETED", entries[0].Status)
	assert.Equal(t, userID, entries[0].UserID)
	assert.Equal(t, models.ActivityFollowTeam, entries[1].Action)
	assert.Empty(t, entries[1].Status)
}

func TestReplayFailureKeepsRecordPending(t *testing.T) {
	s := newStores()
	ctx := context.Background()
	users := s.seedUsers(t, 1, 0)
	s.enqueue(models.OpCreateUserGraphNode, users[0].ID.String(), "UserNode", "PENDING")
	s.graph.Fail("SaveUserNode", errors.New("graph still down"))

	stats, err := s.replayer(memstore.NewActivitySink()).Replay(ctx, 0)

	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Scanned: 1, Failed: 1}, stats)
	records := s.dead.All()
	require.Len(t, records, 1)
	assert.False(t, records[0].Resolved)
	assert.Equal(t, 1, records[0].RetryCount)
	assert.Contains(t, records[0].LastError, "graph still down")

	s.graph.Clear("SaveUserNode")
	stats, err = s.replayer(memstore.NewActivitySink()).Replay(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)
}

func TestReplayMissingDocumentFails(t *testing.T) {
	s := newStores()
	s.enqueue(models.OpCreateGameGraphNode, models.NewGameID().String(), "GameNode", "PENDING")

	stats, err := s.replayer(memstore.NewActivitySink()).Replay(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Contains(t, s.dead.All()[0].LastError, "not found")
}

func TestReplaySkipsUnknownOperation(t *testing.T) {
	s := newStores()
	s.enqueue(models.Operation("DELETE_EVERYTHING"), "u1", "", "")

	stats, err := s.replayer(memstore.NewActivitySink()).Replay(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Scanned: 1, Skipped: 1}, stats)
	assert.False(t, s.dead.All()[0].Resolved)
	assert.Zero(t, s.dead.All()[0].RetryCount)
}

func TestReplayRespectsLimit(t *testing.T) {
	s := newStores()
	users := s.seedUsers(t, 3, 0)
	for _, u := range users {
		s.enqueue(models.OpCreateUserGraphNode, u.ID.String(), "UserNode", "PENDING")
	}

	stats, err := s.replayer(memstore.NewActivitySink()).Replay(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	n, err := s.queue.CountUnresolved(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestReplayListFailure(t *testing.T) {
	s := newStores()
	s.dead.Fail("ListUnresolvedDeadLetters", errors.New("io error"))

	_, err := s.replayer(memstore.NewActivitySink()).Replay(context.Background(), 0)
	assert.ErrorContains(t, err, "io error")
}
