// Package memstore implements every gamesense store interface in memory.
//
// The stores are safe for concurrent use. Each embeds [Faults] so tests can make
// any method fail, a fixed number of times or forever, and can count how often
// a method was reached.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
)

// DocumentStore is an in-memory store.DocumentStore.
type DocumentStore struct {
	Faults

	mu    sync.RWMutex
	users map[models.UserID]models.User
	games map[models.GameID]models.Game
}

var _ store.DocumentStore = (*DocumentStore)(nil)

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		users: make(map[models.UserID]models.User),
		games: make(map[models.GameID]models.Game),
	}
}

func (s *DocumentStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.hit("CreateUser"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == user.Username {
			return fmt.Errorf("%w: username %q", store.ErrDuplicate, user.Username)
		}
		if u.Email == user.Email {
			return fmt.Errorf("%w: email %q", store.ErrDuplicate, user.Email)
		}
	}
	if user.ID.IsZero() {
		user.ID = models.NewUserID()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	s.users[user.ID] = *user
	return nil
}

func (s *DocumentStore) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	if err := s.hit("GetUser"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *DocumentStore) UserExists(ctx context.Context, field store.UserField, value string) (bool, error) {
	if err := s.hit("UserExists"); err != nil {
		return false, err
	}
	if err := field.Validate(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		switch field {
		case store.UserFieldUsername:
			if u.Username == value {
				return true, nil
			}
		case store.UserFieldEmail:
			if u.Email == value {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *DocumentStore) CountUsers(ctx context.Context) (int64, error) {
	if err := s.hit("CountUsers"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

// PutUser stores a user directly, bypassing uniqueness checks and faults.
func (s *DocumentStore) PutUser(user models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
}

func (s *DocumentStore) CreateGame(ctx context.Context, game *models.Game) error {
	if err := s.hit("CreateGame"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if game.ID.IsZero() {
		game.ID = models.NewGameID()
	}
	now := time.Now()
	if game.CreatedAt.IsZero() {
		game.CreatedAt = now
	}
	if game.UpdatedAt.IsZero() {
		game.UpdatedAt = now
	}
	s.games[game.ID] = *game
	return nil
}

func (s *DocumentStore) GetGame(ctx context.Context, id models.GameID) (*models.Game, error) {
	if err := s.hit("GetGame"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (s *DocumentStore) UpdateGame(ctx context.Context, game *models.Game) error {
	if err := s.hit("UpdateGame"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[game.ID]; !ok {
		return fmt.Errorf("game %s not found", game.ID)
	}
	game.UpdatedAt = time.Now()
	s.games[game.ID] = *game
	return nil
}

func (s *DocumentStore) CountGames(ctx context.Context) (int64, error) {
	if err := s.hit("CountGames"); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.games)), nil
}

func (s *DocumentStore) Migrate(ctx context.Context) error { return s.hit("Migrate") }

func (s *DocumentStore) Close() error { return nil }
