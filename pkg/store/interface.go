// Package store defines the storage abstractions gamesense coordinates.
//
// There are two independently operated stores. The [DocumentStore] holds the
// canonical entities ([models.User], [models.Game]). The [GraphStore] holds
// relationship data derived from them: nodes mirroring documents, and the
// OWNS, FOLLOWS_TEAM and FOLLOWS_USER edges between them. Neither store knows
// about the other; keeping them consistent is the job of
// [github.com/gamesense/gamesense/pkg/consistency.Coordinator].
//
// Two side channels live next to the stores: the [ActivitySink] receiving user
// activity entries, and the [DeadLetterStore] keeping secondary writes that
// were given up on.
//
// # Implementations
//
//   - [github.com/gamesense/gamesense/pkg/store/postgres]: GORM over PostgreSQL or sqlite.
//     Implements DocumentStore, ActivitySink and DeadLetterStore.
//   - [github.com/gamesense/gamesense/pkg/store/surrealdb]: SurrealQL with RELATE edges.
//     Implements GraphStore.
//   - [github.com/gamesense/gamesense/pkg/store/neo4j]: Cypher over Bolt. Implements GraphStore.
//   - [github.com/gamesense/gamesense/pkg/store/badger]: embedded key/value DeadLetterStore
//     that does not share fate with the document database.
//   - [github.com/gamesense/gamesense/pkg/store/memstore]: in-memory implementations of every
//     interface with fault injection, for tests and local runs.
//
// # Missing Entities
//
// Get methods return (nil, nil) when the entity does not exist. An error always
// means the store could not answer.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/gamesense/gamesense/pkg/models"
)

// UserField names a user attribute that can be checked for existence.
// Only these columns may be queried; the set is closed.
type UserField string

const (
	UserFieldUsername UserField = "username"
	UserFieldEmail    UserField = "email"
)

// Validate rejects fields outside the closed set.
func (f UserField) Validate() error {
	switch f {
	case UserFieldUsername, UserFieldEmail:
		return nil
	}
	return fmt.Errorf("unsupported user field %q", string(f))
}

// DocumentStore is the store of canonical entities.
type DocumentStore interface {
	// CreateUser persists a new user. A zero ID is replaced by a new one and
	// timestamps are set when empty.
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	// UserExists reports whether a user with the given field value exists.
	UserExists(ctx context.Context, field UserField, value string) (bool, error)
	CountUsers(ctx context.Context) (int64, error)

	CreateGame(ctx context.Context, game *models.Game) error
	GetGame(ctx context.Context, id models.GameID) (*models.Game, error)
	UpdateGame(ctx context.Context, game *models.Game) error
	CountGames(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// GraphStore is the store of relationship data.
//
// Save methods on nodes are upserts keyed by the document id. Save methods on
// edges create the edge or update its properties in place, atomically in a
// single graph transaction, so concurrent saves of the same edge leave exactly
// one edge behind.
type GraphStore interface {
	GetUserNode(ctx context.Context, id models.UserID) (*models.UserNode, error)
	GetGameNode(ctx context.Context, id models.GameID) (*models.GameNode, error)
	GetTeamNode(ctx context.Context, id models.TeamID) (*models.TeamNode, error)

	SaveUserNode(ctx context.Context, node *models.UserNode) error
	SaveGameNode(ctx context.Context, node *models.GameNode) error
	SaveTeamNode(ctx context.Context, node *models.TeamNode) error

	SaveOwnership(ctx context.Context, edge *models.GameOwnership) error
	SaveTeamFollow(ctx context.Context, edge *models.TeamFollow) error
	SaveUserFollow(ctx context.Context, edge *models.UserFollow) error

	// ListOwnerships returns the OWNS edges leaving the user node.
	ListOwnerships(ctx context.Context, userID models.UserID) ([]*models.GameOwnership, error)

	CountUserNodes(ctx context.Context) (int64, error)
	CountGameNodes(ctx context.Context) (int64, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ActivitySink receives activity log entries.
type ActivitySink interface {
	RecordActivity(ctx context.Context, entry *models.ActivityLog) error
}

// DeadLetterStore persists dead letters.
//
// Records are listed in insertion order. Implementations assign the ID on
// append and never delete records.
type DeadLetterStore interface {
	AppendDeadLetter(ctx context.Context, record *models.DeadLetter) error
	// ListUnresolvedDeadLetters returns unresolved records oldest first.
	// A limit of 0 or less returns all of them.
	ListUnresolvedDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetter, error)
	GetDeadLetter(ctx context.Context, id uint64) (*models.DeadLetter, error)
	MarkDeadLetterResolved(ctx context.Context, id uint64) error
	IncrementDeadLetterRetry(ctx context.Context, id uint64, errorMsg string) error
	CountUnresolvedDeadLetters(ctx context.Context) (int64, error)
}

var (
	// ErrDeadLetterNotFound is returned by DeadLetterStore mutations on an unknown id.
	ErrDeadLetterNotFound = errors.New("dead letter not found")

	// ErrDuplicate is wrapped by DocumentStore writes that hit a unique column.
	ErrDuplicate = errors.New("duplicate key")

	// ErrNotFound is wrapped by callers that need an entity a store does not hold.
	ErrNotFound = errors.New("not found")
)
