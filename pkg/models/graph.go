package models

import "time"

// StoreTag names the store an entity lives in.
type StoreTag string

const (
	StoreDocument StoreTag = "DOCUMENT"
	StoreGraph    StoreTag = "GRAPH"
)

// EntityRef points at an entity inside one of the two stores.
type EntityRef struct {
	ID    string   `json:"id"`
	Store StoreTag `json:"store"`
}

func (r EntityRef) String() string {
	return string(r.Store) + ":" + r.ID
}

// UserNode mirrors a User document in the graph. The node id is the document id,
// so the node always refers to exactly one document entity.
type UserNode struct {
	UserID    UserID    `cbor:"id" json:"user_id"`
	Username  string    `cbor:"username" json:"username"`
	CreatedAt time.Time `cbor:"created_at" json:"created_at"`
}

// Source returns the document entity the node was derived from.
func (n *UserNode) Source() EntityRef {
	return EntityRef{ID: n.UserID.String(), Store: StoreDocument}
}

// NewUserNode builds the graph projection of a user document.
func NewUserNode(u *User) *UserNode {
	return &UserNode{UserID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

// GameNode mirrors a Game document in the graph.
type GameNode struct {
	GameID    GameID     `cbor:"id" json:"game_id"`
	Title     string     `cbor:"title" json:"title"`
	Genres    StringList `cbor:"genres" json:"genres,omitempty"`
	CreatedAt time.Time  `cbor:"created_at" json:"created_at"`
}

func (n *GameNode) Source() EntityRef {
	return EntityRef{ID: n.GameID.String(), Store: StoreDocument}
}

// NewGameNode builds the graph projection of a game document.
func NewGameNode(g *Game) *GameNode {
	return &GameNode{GameID: g.ID, Title: g.Title, Genres: g.Genres, CreatedAt: g.CreatedAt}
}

// TeamNode is graph-only reference data about an esports team.
type TeamNode struct {
	TeamID    TeamID    `cbor:"id" json:"team_id"`
	Name      string    `cbor:"name" json:"name"`
	Region    string    `cbor:"region" json:"region,omitempty"`
	GameTitle string    `cbor:"game_title" json:"game_title,omitempty"`
	CreatedAt time.Time `cbor:"created_at" json:"created_at"`
}

// Edge labels.
const (
	EdgeOwns        = "owns"
	EdgeFollowsTeam = "follows_team"
	EdgeFollowsUser = "follows_user"
)

// GameOwnership is the OWNS edge from a user node to a game node.
type GameOwnership struct {
	UserID       UserID     `cbor:"in" json:"user_id"`
	GameID       GameID     `cbor:"out" json:"game_id"`
	Status       GameStatus `cbor:"status" json:"status"`
	HoursPlayed  int        `cbor:"hours_played" json:"hours_played"`
	AddedAt      time.Time  `cbor:"added_at" json:"added_at"`
	LastPlayedAt *time.Time `cbor:"last_played_at,omitempty" json:"last_played_at,omitempty"`
}

// TeamFollow is the FOLLOWS_TEAM edge from a user node to a team node.
type TeamFollow struct {
	UserID     UserID    `cbor:"in" json:"user_id"`
	TeamID     TeamID    `cbor:"out" json:"team_id"`
	FollowedAt time.Time `cbor:"followed_at" json:"followed_at"`
}

// UserFollow is the FOLLOWS_USER edge between two user nodes.
type UserFollow struct {
	UserID       UserID    `cbor:"in" json:"user_id"`
	TargetUserID UserID    `cbor:"out" json:"target_user_id"`
	FollowedAt   time.Time `cbor:"followed_at" json:"followed_at"`
}
