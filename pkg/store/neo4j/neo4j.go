// Package neo4j implements [github.com/gamesense/gamesense/pkg/store.GraphStore]
// on Neo4j over Bolt.
//
// Nodes carry the labels User, Game and Team with the document UUID in the id
// property. Edges are the relationship types OWNS, FOLLOWS_TEAM and FOLLOWS_USER.
// All writes run in managed write transactions and use MERGE, so a save is an
// upsert and repeated saves of one edge keep a single relationship.
package neo4j

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Config holds the connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// GraphStore is the Neo4j store.GraphStore.
type GraphStore struct {
	driver   neo4j.DriverWithContext
	database string
}

var _ store.GraphStore = (*GraphStore)(nil)

// ErrMissingEndpoint is returned when an edge save finds no node at one of its ends.
var ErrMissingEndpoint = errors.New("edge endpoint node not found")

// New creates the driver and verifies the server is reachable.
func New(ctx context.Context, cfg Config) (*GraphStore, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	return &GraphStore{driver: driver, database: cfg.Database}, nil
}

func (s *GraphStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// Migrate creates the uniqueness constraints on node ids.
func (s *GraphStore) Migrate(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, q := range []string{
		"CREATE CONSTRAINT user_id IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
		"CREATE CONSTRAINT game_id IF NOT EXISTS FOR (g:Game) REQUIRE g.id IS UNIQUE",
		"CREATE CONSTRAINT team_id IF NOT EXISTS FOR (t:Team) REQUIRE t.id IS UNIQUE",
	} {
		result, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
		if _, err := result.Consume(ctx); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	return nil
}

func (s *GraphStore) Close() error {
	return s.driver.Close(context.Background())
}

// write runs query in a managed write transaction and returns the single
// "n" column of the first row, or 0 when there is no row.
func (s *GraphStore) write(ctx context.Context, query string, params map[string]any) (int64, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	n, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return int64(0), err
		}
		if !result.Next(ctx) {
			return int64(0), result.Err()
		}
		return getInt(result.Record(), "n"), nil
	})
	if err != nil {
		return 0, err
	}
	return n.(int64), nil
}

// readOne returns the first record of a read query, or nil.
func (s *GraphStore) readOne(ctx context.Context, query string, params map[string]any) (*neo4j.Record, error) {
	records, err := s.read(ctx, query, params)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

func (s *GraphStore) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return records.([]*neo4j.Record), nil
}

// Node operations
func (s *GraphStore) GetUserNode(ctx context.Context, id models.UserID) (*models.UserNode, error) {
	record, err := s.readOne(ctx, `
		MATCH (u:User {id: $id})
		RETURN u.username AS username, u.created_at AS created_at`,
		map[string]any{"id": id.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to get user node: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return &models.UserNode{
		UserID:    id,
		Username:  getString(record, "username"),
		CreatedAt: getTime(record, "created_at"),
	}, nil
}

func (s *GraphStore) GetGameNode(ctx context.Context, id models.GameID) (*models.GameNode, error) {
	record, err := s.readOne(ctx, `
		MATCH (g:Game {id: $id})
		RETURN g.title AS title, g.genres AS genres, g.created_at AS created_at`,
		map[string]any{"id": id.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to get game node: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return &models.GameNode{
		GameID:    id,
		Title:     getString(record, "title"),
		Genres:    getStrings(record, "genres"),
		CreatedAt: getTime(record, "created_at"),
	}, nil
}

func (s *GraphStore) GetTeamNode(ctx context.Context, id models.TeamID) (*models.TeamNode, error) {
	record, err := s.readOne(ctx, `
		MATCH (t:Team {id: $id})
		RETURN t.name AS name, t.region AS region, t.game_title AS game_title, t.created_at AS created_at`,
		map[string]any{"id": id.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to get team node: %w", err)
	}
	if record == nil {
		return nil, nil
	}
	return &models.TeamNode{
		TeamID:    id,
		Name:      getString(record, "name"),
		Region:    getString(record, "region"),
		GameTitle: getString(record, "game_title"),
		CreatedAt: getTime(record, "created_at"),
	}, nil
}

func (s *GraphStore) SaveUserNode(ctx context.Context, node *models.UserNode) error {
	_, err := s.write(ctx, `
		MERGE (u:User {id: $id})
		SET u.username = $username, u.created_at = $created_at
		RETURN 1 AS n`,
		map[string]any{
			"id":         node.UserID.String(),
			"username":   node.Username,
			"created_at": node.CreatedAt,
		})
	if err != nil {
		return fmt.Errorf("failed to save user node: %w", err)
	}
	return nil
}

func (s *GraphStore) SaveGameNode(ctx context.Context, node *models.GameNode) error {
	genres := []string(node.Genres)
	if genres == nil {
		genres = []string{}
	}
	_, err := s.write(ctx, `
		MERGE (g:Game {id: $id})
		SET g.title = $title, g.genres = $genres, g.created_at = $created_at
		RETURN 1 AS n`,
		map[string]any{
			"id":         node.GameID.String(),
			"title":      node.Title,
			"genres":     genres,
			"created_at": node.CreatedAt,
		})
	if err != nil {
		return fmt.Errorf("failed to save game node: %w", err)
	}
	return nil
}

func (s *GraphStore) SaveTeamNode(ctx context.Context, node *models.TeamNode) error {
	_, err := s.write(ctx, `
		MERGE (t:Team {id: $id})
		SET t.name = $name, t.region = $region, t.game_title = $game_title, t.created_at = $created_at
		RETURN 1 AS n`,
		map[string]any{
			"id":         node.TeamID.String(),
			"name":       node.Name,
			"region":     node.Region,
			"game_title": node.GameTitle,
			"created_at": node.CreatedAt,
		})
	if err != nil {
		return fmt.Errorf("failed to save team node: %w", err)
	}
	return nil
}

// Edge operations
func (s *GraphStore) SaveOwnership(ctx context.Context, edge *models.GameOwnership) error {
	var lastPlayed any
	if edge.LastPlayedAt != nil {
		lastPlayed = *edge.LastPlayedAt
	}
	n, err := s.write(ctx, `
		MATCH (u:User {id: $user}), (g:Game {id: $game})
		MERGE (u)-[r:OWNS]->(g)
		SET r.status = $status, r.hours_played = $hours_played,
		    r.added_at = $added_at, r.last_played_at = $last_played_at
		RETURN count(r) AS n`,
		map[string]any{
			"user":           edge.UserID.String(),
			"game":           edge.GameID.String(),
			"status":         string(edge.Status),
			"hours_played":   edge.HoursPlayed,
			"added_at":       edge.AddedAt,
			"last_played_at": lastPlayed,
		})
	return edgeResult("OWNS", n, err)
}

func (s *GraphStore) SaveTeamFollow(ctx context.Context, edge *models.TeamFollow) error {
	n, err := s.write(ctx, `
		MATCH (u:User {id: $user}), (t:Team {id: $team})
		MERGE (u)-[r:FOLLOWS_TEAM]->(t)
		SET r.followed_at = $followed_at
		RETURN count(r) AS n`,
		map[string]any{
			"user":        edge.UserID.String(),
			"team":        edge.TeamID.String(),
			"followed_at": edge.FollowedAt,
		})
	return edgeResult("FOLLOWS_TEAM", n, err)
}

func (s *GraphStore) SaveUserFollow(ctx context.Context, edge *models.UserFollow) error {
	n, err := s.write(ctx, `
		MATCH (u:User {id: $user}), (v:User {id: $target})
		MERGE (u)-[r:FOLLOWS_USER]->(v)
		SET r.followed_at = $followed_at
		RETURN count(r) AS n`,
		map[string]any{
			"user":        edge.UserID.String(),
			"target":      edge.TargetUserID.String(),
			"followed_at": edge.FollowedAt,
		})
	return edgeResult("FOLLOWS_USER", n, err)
}

func edgeResult(label string, n int64, err error) error {
	if err != nil {
		return fmt.Errorf("failed to save %s edge: %w", label, err)
	}
	if n == 0 {
		return fmt.Errorf("failed to save %s edge: %w", label, ErrMissingEndpoint)
	}
	return nil
}

func (s *GraphStore) ListOwnerships(ctx context.Context, userID models.UserID) ([]*models.GameOwnership, error) {
	records, err := s.read(ctx, `
		MATCH (:User {id: $user})-[r:OWNS]->(g:Game)
		RETURN g.id AS game, r.status AS status, r.hours_played AS hours_played,
		       r.added_at AS added_at, r.last_played_at AS last_played_at
		ORDER BY r.added_at`,
		map[string]any{"user": userID.String()})
	if err != nil {
		return nil, fmt.Errorf("failed to list ownerships: %w", err)
	}

	edges := make([]*models.GameOwnership, 0, len(records))
	for _, record := range records {
		gameID, err := models.ParseGameID(getString(record, "game"))
		if err != nil {
			return nil, fmt.Errorf("failed to list ownerships: %w", err)
		}
		edge := &models.GameOwnership{
			UserID:      userID,
			GameID:      gameID,
			Status:      models.GameStatus(getString(record, "status")),
			HoursPlayed: int(getInt(record, "hours_played")),
			AddedAt:     getTime(record, "added_at"),
		}
		if t := getTime(record, "last_played_at"); !t.IsZero() {
			edge.LastPlayedAt = &t
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// Counts
func (s *GraphStore) CountUserNodes(ctx context.Context) (int64, error) {
	return s.count(ctx, "User")
}

func (s *GraphStore) CountGameNodes(ctx context.Context) (int64, error) {
	return s.count(ctx, "Game")
}

// count takes a label constant, never user input.
func (s *GraphStore) count(ctx context.Context, label string) (int64, error) {
	record, err := s.readOne(ctx, fmt.Sprintf("MATCH (n:%s) RETURN count(n) AS n", label), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s nodes: %w", label, err)
	}
	if record == nil {
		return 0, nil
	}
	return getInt(record, "n"), nil
}

// Record helpers
func getString(record *neo4j.Record, key string) string {
	if v, ok := record.Get(key); ok && v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(record *neo4j.Record, key string) int64 {
	if v, ok := record.Get(key); ok && v != nil {
		if n, ok := v.(int64); ok {
			return n
		}
	}
	return 0
}

func getTime(record *neo4j.Record, key string) time.Time {
	if v, ok := record.Get(key); ok && v != nil {
		switch t := v.(type) {
		case time.Time:
			return t.UTC()
		case neo4j.LocalDateTime:
			return t.Time().UTC()
		}
	}
	return time.Time{}
}

func getStrings(record *neo4j.Record, key string) models.StringList {
	v, ok := record.Get(key)
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make(models.StringList, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
