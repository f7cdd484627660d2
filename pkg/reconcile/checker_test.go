package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gamesense/gamesense/pkg/dlq"
	"github.com/gamesense/gamesense/pkg/logger/testlog"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
	"github.com/gamesense/gamesense/pkg/store/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type stores struct {
	docs  *memstore.DocumentStore
	graph *memstore.GraphStore
	dead  *memstore.DeadLetterStore
	queue *dlq.Queue
}

func newStores() *stores {
	s := &stores{
		docs:  memstore.NewDocumentStore(),
		graph: memstore.NewGraphStore(),
		dead:  memstore.NewDeadLetterStore(),
	}
	s.queue = dlq.New(s.dead, dlq.WithClock(func() time.Time { return fixedNow }))
	return s
}

// seedUsers stores n user documents and mirrors the first mirrored ones as nodes.
func (s *stores) seedUsers(t *testing.T, n, mirrored int) []models.User {
	t.Helper()
	users := make([]models.User, n)
	for i := range users {
		users[i] = models.User{
			ID:        models.NewUserID(),
			Username:  fmt.Sprintf("user%d", i),
			Email:     fmt.Sprintf("user%d@example.com", i),
			CreatedAt: fixedNow,
		}
		s.docs.PutUser(users[i])
		if i < mirrored {
			require.NoError(t, s.graph.SaveUserNode(context.Background(), models.NewUserNode(&users[i])))
		}
	}
	return users
}

func (s *stores) checker(opts ...Option) *Checker {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewChecker(s.docs, s.graph, s.queue, opts...)
}

func TestCheckConsistencyInSync(t *testing.T) {
	s := newStores()
	s.seedUsers(t, 10, 10)

	r := s.checker().CheckConsistency(context.Background())

	assert.True(t, r.Consistent)
	assert.Equal(t, int64(10), r.DocumentCount)
	assert.Equal(t, int64(10), r.GraphCount)
	assert.Equal(t, "document users: 10, graph users: 10", r.Detail)
	assert.Empty(t, r.Error)
	assert.Equal(t, fixedNow, r.GeneratedAt)
}

func TestCheckConsistencyDrift(t *testing.T) {
	s := newStores()
	s.seedUsers(t, 10, 9)
	log, logs := testlog.NewLogger()

	r := s.checker(WithLogger(log)).CheckConsistency(context.Background())

	assert.False(t, r.Consistent)
	assert.Equal(t, int64(10), r.DocumentCount)
	assert.Equal(t, int64(9), r.GraphCount)
	assert.Equal(t, int64(1), r.Drift())
	assert.Contains(t, r.Detail, "10")
	assert.Contains(t, r.Detail, "9")
	require.Len(t, logs.Lines(), 1)
	assert.Contains(t, logs.Lines()[0], "WARN: stores out of sync")
}

func TestCheckConsistencyEmptyStores(t *testing.T) {
	r := newStores().checker().CheckConsistency(context.Background())

	assert.True(t, r.Consistent)
	assert.Zero(t, r.DocumentCount)
	assert.Zero(t, r.GraphCount)
}

func TestCheckConsistencyAdapterError(t *testing.T) {
	s := newStores()
	s.seedUsers(t, 3, 3)
	s.graph.Fail("CountUserNodes", errors.New("connection refused"))

	r := s.checker().CheckConsistency(context.Background())

	assert.False(t, r.Consistent)
	assert.Contains(t, r.Error, "graph store")
	assert.Contains(t, r.Error, "connection refused")
	assert.Contains(t, r.Detail, "connection refused")
}

func TestCheckCarriesPendingDeadLetters(t *testing.T) {
	s := newStores()
	s.seedUsers(t, 2, 1)
	s.queue.Enqueue(context.Background(), dlq.Entry{
		Operation:   models.OpCreateUserGraphNode,
		SubjectID:   "u1",
		ResourceID:  "UserNode",
		TargetStore: models.StoreGraph,
	})

	r := s.checker().Check(context.Background(), EntityUsers)
	assert.Equal(t, int64(1), r.PendingDeadLetters)

	s.dead.Fail("CountUnresolvedDeadLetters", errors.New("locked"))
	r = s.checker().Check(context.Background(), EntityUsers)
	assert.Zero(t, r.PendingDeadLetters)
	assert.Empty(t, r.Error)
	assert.Contains(t, r.Detail, "pending dead letters unknown")
}

func TestCheckUnknownEntity(t *testing.T) {
	r := newStores().checker().Check(context.Background(), EntityClass("teams"))

	assert.False(t, r.Consistent)
	assert.Contains(t, r.Error, "unknown entity class")
}

func TestParseEntityClass(t *testing.T) {
	class, err := ParseEntityClass("games")
	require.NoError(t, err)
	assert.Equal(t, EntityGames, class)

	_, err = ParseEntityClass("teams")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestCheckAll(t *testing.T) {
	s := newStores()
	s.seedUsers(t, 4, 4)
	game := models.Game{ID: models.NewGameID(), Title: "Hades"}
	require.NoError(t, s.docs.CreateGame(context.Background(), &game))

	reports := s.checker().CheckAll(context.Background())

	require.Len(t, reports, 2)
	assert.Equal(t, EntityUsers, reports[0].EntityClass)
	assert.True(t, reports[0].Consistent)
	assert.Equal(t, EntityGames, reports[1].EntityClass)
	assert.False(t, reports[1].Consistent)
	assert.Equal(t, int64(1), reports[1].DocumentCount)
	assert.Zero(t, reports[1].GraphCount)
}

func TestSynchronizeUserInSync(t *testing.T) {
	s := newStores()
	users := s.seedUsers(t, 1, 1)

	diff, err := s.checker().SynchronizeUser(context.Background(), users[0].ID)

	require.NoError(t, err)
	assert.True(t, diff.Consistent())
	assert.False(t, diff.Repaired)
	assert.Equal(t, 1, s.graph.Calls("SaveUserNode"), "only the seed write")
}

func TestSynchronizeUserRepairsMismatch(t *testing.T) {
	s := newStores()
	ctx := context.Background()
	users := s.seedUsers(t, 1, 1)
	stale := models.NewUserNode(&users[0])
	stale.Username = "old-name"
	require.NoError(t, s.graph.SaveUserNode(ctx, stale))

	diff, err := s.checker().SynchronizeUser(ctx, users[0].ID)

	require.NoError(t, err)
	assert.False(t, diff.UsernameMatch)
	assert.Equal(t, "user0", diff.DocumentUsername)
	assert.Equal(t, "old-name", diff.GraphUsername)
	assert.True(t, diff.Repaired)

	node, err := s.graph.GetUserNode(ctx, users[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "user0", node.Username)
}

func TestSynchronizeUserMissing(t *testing.T) {
	s := newStores()
	users := s.seedUsers(t, 1, 0)

	_, err := s.checker().SynchronizeUser(context.Background(), users[0].ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "graph store")

	_, err = s.checker().SynchronizeUser(context.Background(), models.NewUserID())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "document store")
}

func TestSynchronizeUserStoreError(t *testing.T) {
	s := newStores()
	users := s.seedUsers(t, 1, 1)
	boom := errors.New("timeout")
	s.graph.Fail("GetUserNode", boom)

	_, err := s.checker().SynchronizeUser(context.Background(), users[0].ID)
	assert.ErrorIs(t, err, boom)
}
