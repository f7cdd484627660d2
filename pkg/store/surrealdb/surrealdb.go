// Package surrealdb implements [github.com/gamesense/gamesense/pkg/store.GraphStore]
// on SurrealDB using native SurrealQL.
//
// Nodes live in the tables users, games and teams, keyed by the document id so a
// node is addressed by the same UUID as the document it mirrors. Relationships are
// graph edges created with RELATE:
//
//	users:⟨alice⟩ ->owns->         games:⟨zelda⟩
//	users:⟨alice⟩ ->follows_team-> teams:⟨fnatic⟩
//	users:⟨alice⟩ ->follows_user-> users:⟨bob⟩
//
// # CBOR
//
// The connection uses the surrealcbor codec. Typed ids marshal to RecordIDs and
// time.Time to native datetimes, so the graph models are read and written
// directly without intermediate types.
//
// # Edge Writes
//
// An edge save replaces any edge between the same two nodes inside one
// transaction. Migrate defines a unique index on (in, out) for every edge table,
// so a racing pair of saves fails one of them instead of leaving two edges.
//
// # Usage Example
//
//	g, err := surrealdb.New(ctx, surrealdb.Config{
//		URL:       "ws://localhost:8000/rpc",
//		Namespace: "gamesense",
//		Database:  "graph",
//		Username:  "root",
//		Password:  "root",
//	})
//	if err != nil {
//		return err
//	}
//	defer g.Close()
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

// Config holds the connection settings.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// GraphStore is the SurrealDB store.GraphStore.
type GraphStore struct {
	db *surrealdb.DB
}

var _ store.GraphStore = (*GraphStore)(nil)

// New connects, signs in when credentials are set and selects the namespace and database.
func New(ctx context.Context, cfg Config) (*GraphStore, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			_ = db.Close(context.Background())
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &GraphStore{db: db}, nil
}

// Migrate defines the edge tables with a unique (in, out) index. Node tables
// are created implicitly on first write.
func (s *GraphStore) Migrate(ctx context.Context) error {
	var b strings.Builder
	for _, edge := range []string{models.EdgeOwns, models.EdgeFollowsTeam, models.EdgeFollowsUser} {
		fmt.Fprintf(&b, "DEFINE TABLE IF NOT EXISTS %s TYPE RELATION;\n", edge)
		fmt.Fprintf(&b, "DEFINE INDEX IF NOT EXISTS %s_unique ON TABLE %s COLUMNS in, out UNIQUE;\n", edge, edge)
	}
	if _, err := surrealdb.Query[any](ctx, s.db, b.String(), map[string]any{}); err != nil {
		return fmt.Errorf("failed to define edge tables: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *GraphStore) Close() error {
	return s.db.Close(context.Background())
}

// handleNotFound maps the SDK's "no such record" errors to nil.
func handleNotFound(err error) error {
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "Expected a single or multiple results but got 0") ||
			strings.Contains(errStr, "cannot unmarshal array into Go value") {
			return nil
		}
	}
	return err
}

// Node operations
func (s *GraphStore) GetUserNode(ctx context.Context, id models.UserID) (*models.UserNode, error) {
	node, err := surrealdb.Select[models.UserNode](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user node: %w", err)
	}
	return emptyAsNil(node, func(n *models.UserNode) bool { return n.UserID.IsZero() }), nil
}

func (s *GraphStore) GetGameNode(ctx context.Context, id models.GameID) (*models.GameNode, error) {
	node, err := surrealdb.Select[models.GameNode](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get game node: %w", err)
	}
	return emptyAsNil(node, func(n *models.GameNode) bool { return n.GameID.IsZero() }), nil
}

func (s *GraphStore) GetTeamNode(ctx context.Context, id models.TeamID) (*models.TeamNode, error) {
	node, err := surrealdb.Select[models.TeamNode](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get team node: %w", err)
	}
	return emptyAsNil(node, func(n *models.TeamNode) bool { return n.TeamID.IsZero() }), nil
}

// Selecting a missing record decodes NONE into a zero value on some server versions.
func emptyAsNil[T any](node *T, empty func(*T) bool) *T {
	if node == nil || empty(node) {
		return nil
	}
	return node
}

func (s *GraphStore) SaveUserNode(ctx context.Context, node *models.UserNode) error {
	query := "UPSERT $id SET username = $username, created_at = $created_at RETURN NONE"
	vars := map[string]any{
		"id":         node.UserID.RecordID(),
		"username":   node.Username,
		"created_at": node.CreatedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, vars); err != nil {
		return fmt.Errorf("failed to save user node: %w", err)
	}
	return nil
}

func (s *GraphStore) SaveGameNode(ctx context.Context, node *models.GameNode) error {
	query := "UPSERT $id SET title = $title, genres = $genres, created_at = $created_at RETURN NONE"
	genres := []string(node.Genres)
	if genres == nil {
		genres = []string{}
	}
	vars := map[string]any{
		"id":         node.GameID.RecordID(),
		"title":      node.Title,
		"genres":     genres,
		"created_at": node.CreatedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, vars); err != nil {
		return fmt.Errorf("failed to save game node: %w", err)
	}
	return nil
}

func (s *GraphStore) SaveTeamNode(ctx context.Context, node *models.TeamNode) error {
	query := "UPSERT $id SET name = $name, region = $region, game_title = $game_title, created_at = $created_at RETURN NONE"
	vars := map[string]any{
		"id":         node.TeamID.RecordID(),
		"name":       node.Name,
		"region":     node.Region,
		"game_title": node.GameTitle,
		"created_at": node.CreatedAt,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, vars); err != nil {
		return fmt.Errorf("failed to save team node: %w", err)
	}
	return nil
}

// relate replaces the edge between $in and $out with one carrying the SET clause.
// The edge label is one of the Edge* constants, never user input.
func (s *GraphStore) relate(ctx context.Context, edge, set string, vars map[string]any) error {
	query := fmt.Sprintf(`
		BEGIN TRANSACTION;
		DELETE %[1]s WHERE in = $in AND out = $out;
		RELATE $in->%[1]s->$out SET %[2]s RETURN NONE;
		COMMIT TRANSACTION;`, edge, set)
	if _, err := surrealdb.Query[any](ctx, s.db, query, vars); err != nil {
		return fmt.Errorf("failed to relate %s: %w", edge, err)
	}
	return nil
}

// Edge operations
func (s *GraphStore) SaveOwnership(ctx context.Context, edge *models.GameOwnership) error {
	set := "status = $status, hours_played = $hours_played, added_at = $added_at"
	vars := map[string]any{
		"in":           edge.UserID.RecordID(),
		"out":          edge.GameID.RecordID(),
		"status":       string(edge.Status),
		"hours_played": edge.HoursPlayed,
		"added_at":     edge.AddedAt,
	}
	if edge.LastPlayedAt != nil {
		set += ", last_played_at = $last_played_at"
		vars["last_played_at"] = *edge.LastPlayedAt
	}
	return s.relate(ctx, models.EdgeOwns, set, vars)
}

func (s *GraphStore) SaveTeamFollow(ctx context.Context, edge *models.TeamFollow) error {
	return s.relate(ctx, models.EdgeFollowsTeam, "followed_at = $followed_at", map[string]any{
		"in":          edge.UserID.RecordID(),
		"out":         edge.TeamID.RecordID(),
		"followed_at": edge.FollowedAt,
	})
}

func (s *GraphStore) SaveUserFollow(ctx context.Context, edge *models.UserFollow) error {
	return s.relate(ctx, models.EdgeFollowsUser, "followed_at = $followed_at", map[string]any{
		"in":          edge.UserID.RecordID(),
		"out":         edge.TargetUserID.RecordID(),
		"followed_at": edge.FollowedAt,
	})
}

func (s *GraphStore) ListOwnerships(ctx context.Context, userID models.UserID) ([]*models.GameOwnership, error) {
	query := "SELECT * FROM owns WHERE in = $user ORDER BY added_at"
	vars := map[string]any{
		"user": userID.RecordID(),
	}
	result, err := surrealdb.Query[[]models.GameOwnership](ctx, s.db, query, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list ownerships: %w", err)
	}

	var edges []*models.GameOwnership
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			edges = append(edges, &(*result)[0].Result[i])
		}
	}
	return edges, nil
}

// Counts
func (s *GraphStore) CountUserNodes(ctx context.Context) (int64, error) {
	return s.count(ctx, models.TableUsers)
}

func (s *GraphStore) CountGameNodes(ctx context.Context) (int64, error) {
	return s.count(ctx, models.TableGames)
}

func (s *GraphStore) count(ctx context.Context, table string) (int64, error) {
	type countResult struct {
		Count int64 `json:"count"`
	}
	// GROUP ALL yields no row at all for an empty table
	query := fmt.Sprintf("SELECT count() AS count FROM %s GROUP ALL", table)
	result, err := surrealdb.Query[[]countResult](ctx, s.db, query, map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	if result == nil || len(*result) == 0 || len((*result)[0].Result) == 0 {
		return 0, nil
	}
	return (*result)[0].Result[0].Count, nil
}
