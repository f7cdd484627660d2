package memstore

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
)

type ownershipKey struct {
	user models.UserID
	game models.GameID
}

type teamFollowKey struct {
	user models.UserID
	team models.TeamID
}

type userFollowKey struct {
	user   models.UserID
	target models.UserID
}

// GraphStore is an in-memory store.GraphStore. Edges are keyed by their
// endpoints, so saving the same edge twice updates it in place.
type GraphStore struct {
	Faults

	mu          sync.RWMutex
	users       map[models.UserID]models.UserNode
	games       map[models.GameID]models.GameNode
	teams       map[models.TeamID]models.TeamNode
	ownerships  map[ownershipKey]models.GameOwnership
	ownOrder    []ownershipKey
	teamFollows map[teamFollowKey]models.TeamFollow
	userFollows map[userFollowKey]models.UserFollow
}

var _ store.GraphStore = (*GraphStore)(nil)

func NewGraphStore() *GraphStore {
	return &GraphStore{
		users:       make(map[models.UserID]models.UserNode),
		games:       make(map[models.GameID]models.GameNode),
		teams:       make(map[models.TeamID]models.TeamNode),
		ownerships:  make(map[ownershipKey]models.GameOwnership),
		teamFollows: make(map[teamFollowKey]models.TeamFollow),
		userFollows: make(map[userFollowKey]models.UserFollow),
	}
}

func (s *GraphStore) GetUserNode(ctx context.Context, id models.UserID) (*models.UserNode, error) {
	if err := s.hit("GetUserNode"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *GraphStore) GetGameNode(ctx context.Context, id models.GameID) (*models.GameNode, error) {
	if err := s.hit("GetGameNode"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.games[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *GraphStore) GetTeamNode(ctx context.Context, id models.TeamID) (*models.TeamNode, error) {
	if err := s.hit("GetTeamNode"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.teams[id]
	if !ok {
		return nil, nil
	}
	return &n, nil
}

func (s *GraphStore) SaveUserNode(ctx context.Context, node *models.UserNode) error {
	if err := s.hit("SaveUserNode"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[node.UserID] = *node
	return nil
}

func (s *GraphStore) SaveGameNode(ctx context.Context, node *models.GameNode) error {
	if err := s.hit("SaveGameNode"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[node.GameID] = *node
	return nil
}

func (s *GraphStore) SaveTeamNode(ctx context.Context, node *models.TeamNode) error {
	if err := s.hit("SaveTeamNode"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[node.TeamID] = *node
	return nil
}

func (s *GraphStore) SaveOwnership(ctx context.Context, edge *models.GameOwnership) error {
	if err := s.hit("SaveOwnership"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ownershipKey{user: edge.UserID, game: edge.GameID}
	if _, ok := s.ownerships[key]; !ok {
		s.ownOrder = append(s.ownOrder, key)
	}
	s.ownerships[key] = *edge
	return nil
}

func (s *GraphStore) SaveTeamFollow(ctx context.Context, edge *models.TeamFollow) error {
	if err := s.hit("SaveTeamFollow"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teamFollows[teamFollowKey{user: edge.UserID, team: edge.TeamID}] = *edge
	return nil
}

func (s *GraphStore) SaveUserFollow(ctx context.Context, edge *models.UserFollow) error {
	if err := s.hit("SaveUserFollow"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userFollows[userFollowKey{user: edge.UserID, target: edge.TargetUserID}] = *edge
	return nil
}

func (s *GraphStore) ListOwnerships(ctx context.Context, userID models.UserID) ([]*models.GameOwnership, error) {
	if err := s.hit("ListOwnerships"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.GameOwnership
	for _, key := range s.ownOrder {
		if key.user != userID {
			continue
		}
		edge := s.ownerships[key]
		out = append(out, &edge)
	}
	return out, nil
}

// TeamFollows returns every FOLLOWS_TEAM edge of the user.
func (s *GraphStore) TeamFollows(userID models.UserID) []models.TeamFollow {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.TeamFollow
	for key, edge := range s.teamFollows {
		if key.user == userID {
			out = append(out, edge)
		}
	}
	return out
}

// UserFollows returns the ids the user follows.
func (s *GraphStore) UserFollows(userID models.UserID) []models.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.UserID
	for key := range s.userFollows {
		if key.user == userID {
			out = append(out, key.target)
		}
	}
	slices.SortFunc(out, func(a, b models.UserID) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

func (s *GraphStore) CountUserNodes(ctx context.Context) (int64, error) {
	if err := s.hit("CountUserNodes"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *GraphStore) CountGameNodes(ctx context.Context) (int64, error) {
	if err := s.hit("CountGameNodes"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.games)), nil
}

func (s *GraphStore) Migrate(ctx context.Context) error { return s.hit("Migrate") }

func (s *GraphStore) Close() error { return nil }
