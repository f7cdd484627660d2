package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Graph tables that typed ids map onto when they are encoded as SurrealDB record ids.
const (
	TableUsers = "users"
	TableGames = "games"
	TableTeams = "teams"
)

// UserID is a typed ID for users. The same value identifies the user document
// and the user node in the graph.
type UserID struct {
	uuid uuid.UUID
}

func NewUserID() UserID {
	return UserID{uuid: uuid.New()}
}

func NewUserIDFromUUID(id uuid.UUID) UserID {
	return UserID{uuid: id}
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user ID: %w", err)
	}
	return UserID{uuid: id}, nil
}

func (u UserID) UUID() uuid.UUID { return u.uuid }
func (u UserID) String() string  { return u.uuid.String() }
func (u UserID) IsZero() bool    { return u.uuid == uuid.Nil }

func (u UserID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: TableUsers,
		ID:    u.uuid.String(),
	}
}

func (u UserID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.uuid.String())
}

func (u *UserID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &u.uuid)
}

func (u UserID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TableUsers, u.uuid)
}

func (u *UserID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TableUsers, &u.uuid)
}

func (u UserID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.uuid.String(), nil
}

func (u *UserID) Scan(value any) error {
	return scanUUID(value, &u.uuid)
}

func (UserID) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return uuidColumnType(db) }

// GameID is a typed ID for games.
type GameID struct {
	uuid uuid.UUID
}

func NewGameID() GameID {
	return GameID{uuid: uuid.New()}
}

func NewGameIDFromUUID(id uuid.UUID) GameID {
	return GameID{uuid: id}
}

func ParseGameID(s string) (GameID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return GameID{}, fmt.Errorf("invalid game ID: %w", err)
	}
	return GameID{uuid: id}, nil
}

func (g GameID) UUID() uuid.UUID { return g.uuid }
func (g GameID) String() string  { return g.uuid.String() }
func (g GameID) IsZero() bool    { return g.uuid == uuid.Nil }

func (g GameID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: TableGames,
		ID:    g.uuid.String(),
	}
}

func (g GameID) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.uuid.String())
}

func (g *GameID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &g.uuid)
}

func (g GameID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TableGames, g.uuid)
}

func (g *GameID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TableGames, &g.uuid)
}

func (g GameID) Value() (driver.Value, error) {
	if g.IsZero() {
		return nil, nil
	}
	return g.uuid.String(), nil
}

func (g *GameID) Scan(value any) error {
	return scanUUID(value, &g.uuid)
}

func (GameID) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return uuidColumnType(db) }

// TeamID is a typed ID for esports teams. Teams only live in the graph.
type TeamID struct {
	uuid uuid.UUID
}

func NewTeamID() TeamID {
	return TeamID{uuid: uuid.New()}
}

func ParseTeamID(s string) (TeamID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return TeamID{}, fmt.Errorf("invalid team ID: %w", err)
	}
	return TeamID{uuid: id}, nil
}

func (t TeamID) UUID() uuid.UUID { return t.uuid }
func (t TeamID) String() string  { return t.uuid.String() }
func (t TeamID) IsZero() bool    { return t.uuid == uuid.Nil }

func (t TeamID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: TableTeams,
		ID:    t.uuid.String(),
	}
}

func (t TeamID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.uuid.String())
}

func (t *TeamID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &t.uuid)
}

func (t TeamID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(TableTeams, t.uuid)
}

func (t *TeamID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, TableTeams, &t.uuid)
}

// Helper functions

func uuidColumnType(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "uuid"
	}
	return "text"
}

func unmarshalJSONID(data []byte, target *uuid.UUID) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*target = id
	return nil
}

// scanUUID implements sql.Scanner for the typed ids.
func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// marshalCBORID encodes a SurrealDB RecordID: CBOR tag 8 wrapping [table, id].
func marshalCBORID(table string, id uuid.UUID) ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{table, id.String()},
	})
}

func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	// major type 6 is a tag
	if majorType := data[0] >> 5; majorType != 6 {
		return fmt.Errorf("expected CBOR tag for RecordID, got major type %d", majorType)
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}
	if tag.Number != 8 {
		return fmt.Errorf("expected RecordID tag (8), got %d", tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}
	table, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}
	if table != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, table)
	}
	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: ID must be string")
	}

	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid UUID in RecordID: %w", err)
	}
	*target = parsed
	return nil
}
