package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
	"github.com/stretchr/testify/suite"
)

// GraphSuite checks the store.GraphStore contract.
type GraphSuite struct {
	suite.Suite
	New func(t *testing.T) store.GraphStore

	store store.GraphStore
}

func (s *GraphSuite) SetupTest() {
	s.store = s.New(s.T())
}

func (s *GraphSuite) saveUser(name string) *models.UserNode {
	node := &models.UserNode{UserID: models.NewUserID(), Username: name, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	s.Require().NoError(s.store.SaveUserNode(context.Background(), node))
	return node
}

func (s *GraphSuite) saveGame(title string) *models.GameNode {
	node := &models.GameNode{GameID: models.NewGameID(), Title: title, Genres: models.StringList{"indie"}, CreatedAt: time.Now().UTC().Truncate(time.Second)}
	s.Require().NoError(s.store.SaveGameNode(context.Background(), node))
	return node
}

func (s *GraphSuite) TestNodeUpsert() {
	ctx := context.Background()
	user := s.saveUser("alice")

	user.Username = "alice2"
	s.Require().NoError(s.store.SaveUserNode(ctx, user))

	got, err := s.store.GetUserNode(ctx, user.UserID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("alice2", got.Username)
	s.Equal(user.UserID, got.UserID)

	count, err := s.store.CountUserNodes(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), count)
}

func (s *GraphSuite) TestMissingNodesAreNil() {
	ctx := context.Background()

	u, err := s.store.GetUserNode(ctx, models.NewUserID())
	s.Require().NoError(err)
	s.Nil(u)

	g, err := s.store.GetGameNode(ctx, models.NewGameID())
	s.Require().NoError(err)
	s.Nil(g)

	t, err := s.store.GetTeamNode(ctx, models.NewTeamID())
	s.Require().NoError(err)
	s.Nil(t)
}

func (s *GraphSuite) TestOwnershipUpdatedInPlace() {
	ctx := context.Background()
	user := s.saveUser("bob")
	game := s.saveGame("Celeste")

	edge := &models.GameOwnership{UserID: user.UserID, GameID: game.GameID, Status: models.GameStatusPlaying, AddedAt: time.Now().UTC()}
	s.Require().NoError(s.store.SaveOwnership(ctx, edge))

	edge.Status = models.GameStatusCompleted
	edge.HoursPlayed = 12
	s.Require().NoError(s.store.SaveOwnership(ctx, edge))

	edges, err := s.store.ListOwnerships(ctx, user.UserID)
	s.Require().NoError(err)
	s.Require().Len(edges, 1)
	s.Equal(game.GameID, edges[0].GameID)
	s.Equal(models.GameStatusCompleted, edges[0].Status)
	s.Equal(12, edges[0].HoursPlayed)
}

func (s *GraphSuite) TestFollows() {
	ctx := context.Background()
	alice := s.saveUser("alice")
	bob := s.saveUser("bob")
	team := &models.TeamNode{TeamID: models.NewTeamID(), Name: "Fnatic", Region: "EU", GameTitle: "Valorant", CreatedAt: time.Now().UTC()}
	s.Require().NoError(s.store.SaveTeamNode(ctx, team))

	s.Require().NoError(s.store.SaveTeamFollow(ctx, &models.TeamFollow{UserID: alice.UserID, TeamID: team.TeamID, FollowedAt: time.Now().UTC()}))
	s.Require().NoError(s.store.SaveUserFollow(ctx, &models.UserFollow{UserID: alice.UserID, TargetUserID: bob.UserID, FollowedAt: time.Now().UTC()}))

	got, err := s.store.GetTeamNode(ctx, team.TeamID)
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal("Fnatic", got.Name)
}

func (s *GraphSuite) TestCountGameNodes() {
	ctx := context.Background()
	s.saveGame("Hades")
	s.saveGame("Outer Wilds")

	count, err := s.store.CountGameNodes(ctx)
	s.Require().NoError(err)
	s.Equal(int64(2), count)
}
