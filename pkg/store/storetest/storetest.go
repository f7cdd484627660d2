// Package storetest holds contract test suites shared by every store implementation.
//
// A backend package runs a suite by embedding it and supplying a constructor:
//
//	func TestDeadLetters(t *testing.T) {
//		suite.Run(t, &storetest.DeadLetterSuite{
//			New: func(t *testing.T) store.DeadLetterStore { return newTestStore(t) },
//		})
//	}
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
	"github.com/stretchr/testify/suite"
)

// DeadLetterSuite checks the store.DeadLetterStore contract.
type DeadLetterSuite struct {
	suite.Suite
	New func(t *testing.T) store.DeadLetterStore

	store store.DeadLetterStore
}

func (s *DeadLetterSuite) SetupTest() {
	s.store = s.New(s.T())
}

func deadLetter(op models.Operation, subject string) *models.DeadLetter {
	return &models.DeadLetter{
		Operation:     op,
		SubjectID:     subject,
		ResourceID:    "resource-" + subject,
		TargetStore:   models.StoreDocument,
		StatusPayload: "PLAYING",
		ErrorMessage:  "connection refused",
		FailedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
}

func (s *DeadLetterSuite) TestAppendAssignsIncreasingIDs() {
	ctx := context.Background()
	first := deadLetter(models.OpAddGameToLibrary, "u1")
	second := deadLetter(models.OpFollowTeam, "u2")

	s.Require().NoError(s.store.AppendDeadLetter(ctx, first))
	s.Require().NoError(s.store.AppendDeadLetter(ctx, second))

	s.NotZero(first.ID)
	s.Greater(second.ID, first.ID)
}

func (s *DeadLetterSuite) TestListUnresolvedFIFO() {
	ctx := context.Background()
	for _, subject := range []string{"a", "b", "c"} {
		s.Require().NoError(s.store.AppendDeadLetter(ctx, deadLetter(models.OpAddGameToLibrary, subject)))
	}

	records, err := s.store.ListUnresolvedDeadLetters(ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal([]string{"a", "b", "c"}, subjects(records))

	for _, r := range records {
		s.False(r.Resolved)
		s.Zero(r.RetryCount)
		s.Equal(models.StoreDocument, r.TargetStore)
		s.Equal("connection refused", r.ErrorMessage)
	}

	limited, err := s.store.ListUnresolvedDeadLetters(ctx, 2)
	s.Require().NoError(err)
	s.Equal([]string{"a", "b"}, subjects(limited))
}

func (s *DeadLetterSuite) TestMarkResolvedHidesRecord() {
	ctx := context.Background()
	first := deadLetter(models.OpCreateUserGraphNode, "a")
	second := deadLetter(models.OpCreateUserGraphNode, "b")
	s.Require().NoError(s.store.AppendDeadLetter(ctx, first))
	s.Require().NoError(s.store.AppendDeadLetter(ctx, second))

	s.Require().NoError(s.store.MarkDeadLetterResolved(ctx, first.ID))

	records, err := s.store.ListUnresolvedDeadLetters(ctx, 0)
	s.Require().NoError(err)
	s.Equal([]string{"b"}, subjects(records))

	count, err := s.store.CountUnresolvedDeadLetters(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	got, err := s.store.GetDeadLetter(ctx, first.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.True(got.Resolved)
	s.NotNil(got.ResolvedAt)
}

func (s *DeadLetterSuite) TestIncrementRetry() {
	ctx := context.Background()
	record := deadLetter(models.OpFollowUser, "a")
	s.Require().NoError(s.store.AppendDeadLetter(ctx, record))

	s.Require().NoError(s.store.IncrementDeadLetterRetry(ctx, record.ID, "still down"))
	s.Require().NoError(s.store.IncrementDeadLetterRetry(ctx, record.ID, "still down again"))

	got, err := s.store.GetDeadLetter(ctx, record.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(2, got.RetryCount)
	s.Equal("still down again", got.LastError)
	s.Equal("connection refused", got.ErrorMessage)
	s.False(got.Resolved)
}

func (s *DeadLetterSuite) TestUnknownID() {
	ctx := context.Background()

	got, err := s.store.GetDeadLetter(ctx, 4242)
	s.Require().NoError(err)
	s.Nil(got)

	err = s.store.MarkDeadLetterResolved(ctx, 4242)
	s.True(errors.Is(err, store.ErrDeadLetterNotFound), "got %v", err)
}

func subjects(records []*models.DeadLetter) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.SubjectID)
	}
	return out
}

// DocumentSuite checks the store.DocumentStore contract.
type DocumentSuite struct {
	suite.Suite
	New func(t *testing.T) store.DocumentStore

	store store.DocumentStore
}

func (s *DocumentSuite) SetupTest() {
	s.store = s.New(s.T())
}

func (s *DocumentSuite) TestCreateAndGetUser() {
	ctx := context.Background()
	user := &models.User{Username: "alice", Email: "alice@example.com", Bio: "speedrunner"}

	s.Require().NoError(s.store.CreateUser(ctx, user))
	s.False(user.ID.IsZero())
	s.False(user.CreatedAt.IsZero())

	got, err := s.store.GetUser(ctx, user.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("alice", got.Username)
	s.Equal("alice@example.com", got.Email)
	s.Equal("speedrunner", got.Bio)
}

func (s *DocumentSuite) TestMissingUserIsNil() {
	got, err := s.store.GetUser(context.Background(), models.NewUserID())
	s.Require().NoError(err)
	s.Nil(got)
}

func (s *DocumentSuite) TestUserExists() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateUser(ctx, &models.User{Username: "bob", Email: "bob@example.com"}))

	exists, err := s.store.UserExists(ctx, store.UserFieldUsername, "bob")
	s.Require().NoError(err)
	s.True(exists)

	exists, err = s.store.UserExists(ctx, store.UserFieldEmail, "nobody@example.com")
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.store.UserExists(ctx, store.UserField("password_hash"), "x")
	s.Error(err)
}

func (s *DocumentSuite) TestDuplicateUsernameRejected() {
	ctx := context.Background()
	s.Require().NoError(s.store.CreateUser(ctx, &models.User{Username: "carol", Email: "carol@example.com"}))
	s.Error(s.store.CreateUser(ctx, &models.User{Username: "carol", Email: "other@example.com"}))

	count, err := s.store.CountUsers(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *DocumentSuite) TestGames() {
	ctx := context.Background()
	game := &models.Game{Title: "Hollow Knight", Genres: models.StringList{"metroidvania"}, Developer: "Team Cherry"}
	s.Require().NoError(s.store.CreateGame(ctx, game))

	game.Title = "Hollow Knight: Silksong"
	s.Require().NoError(s.store.UpdateGame(ctx, game))

	got, err := s.store.GetGame(ctx, game.ID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("Hollow Knight: Silksong", got.Title)
	s.Equal(models.StringList{"metroidvania"}, got.Genres)

	count, err := s.store.CountGames(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)

	missing, err := s.store.GetGame(ctx, models.NewGameID())
	s.Require().NoError(err)
	s.Nil(missing)
}
