package models

import "time"

// ActivityAction identifies what a user did.
type ActivityAction string

const (
	ActivityAddGame    ActivityAction = "ADD_GAME"
	ActivityFollowTeam ActivityAction = "FOLLOW_TEAM"
	ActivityFollowUser ActivityAction = "FOLLOW_USER"
)

// ActivityLog is one entry of a user's activity feed, kept in the document store.
//
// Entries are appended at least once: a write that timed out on the client side
// but landed on the server is retried and produces a second entry. Every entry
// carries its own ID so duplicates remain distinguishable.
type ActivityLog struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	UserID    UserID         `gorm:"index;not null" json:"user_id"`
	SubjectID string         `gorm:"not null" json:"subject_id"`
	Action    ActivityAction `gorm:"not null" json:"action"`
	Status    string         `json:"status,omitempty"`
	Metadata  JSONMap        `json:"metadata,omitempty"`
	Timestamp time.Time      `gorm:"index;not null" json:"timestamp"`
}

// TableName returns the table name for activity logs
func (ActivityLog) TableName() string {
	return "activity_logs"
}
