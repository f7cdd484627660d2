package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// GameStatus is the state of a game inside a user's library. It is stored on
// the OWNS edge of the graph.
type GameStatus string

const (
	GameStatusWishlist  GameStatus = "WISHLIST"
	GameStatusPlaying   GameStatus = "PLAYING"
	GameStatusCompleted GameStatus = "COMPLETED"
	GameStatusDropped   GameStatus = "DROPPED"
)

// ParseGameStatus accepts any letter case ("playing", "Playing", "PLAYING").
func ParseGameStatus(s string) (GameStatus, error) {
	switch status := GameStatus(strings.ToUpper(strings.TrimSpace(s))); status {
	case GameStatusWishlist, GameStatusPlaying, GameStatusCompleted, GameStatusDropped:
		return status, nil
	default:
		return "", fmt.Errorf("unknown game status %q", s)
	}
}

// JSONMap is a free-form object stored as JSONB in PostgreSQL, JSON text in
// sqlite, and as a native object in the graph.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = make(map[string]any)
		return nil
	}
	return json.Unmarshal(scanBytes(value), j)
}

// GormDataType lets GORM parse the field; the column type comes from GormDBDataType.
func (JSONMap) GormDataType() string { return "json" }

func (JSONMap) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return jsonColumnType(db) }

// StringList is a list of strings kept in a single JSON column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	return json.Unmarshal(scanBytes(value), (*[]string)(l))
}

func (StringList) GormDataType() string { return "json" }

func (StringList) GormDBDataType(db *gorm.DB, _ *schema.Field) string { return jsonColumnType(db) }

func scanBytes(value any) []byte {
	switch v := value.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprint(v))
	}
}

func jsonColumnType(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}

// User is the canonical user document. Username and email are unique across the
// document store.
type User struct {
	ID           UserID     `gorm:"primaryKey" json:"id"`
	Username     string     `gorm:"uniqueIndex;not null" json:"username"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `json:"-"`
	Roles        StringList `json:"roles,omitempty"`
	Bio          string     `json:"bio,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID.IsZero() {
		u.ID = NewUserID()
	}
	return nil
}

// Game is the canonical game document.
type Game struct {
	ID          GameID     `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"index;not null" json:"title"`
	Genres      StringList `json:"genres,omitempty"`
	Developer   string     `json:"developer,omitempty"`
	Publisher   string     `json:"publisher,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Platforms   StringList `json:"platforms,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BeforeCreate hook to generate ID if not set
func (g *Game) BeforeCreate(tx *gorm.DB) error {
	if g.ID.IsZero() {
		g.ID = NewGameID()
	}
	return nil
}
