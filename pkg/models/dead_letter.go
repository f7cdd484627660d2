package models

import (
	"time"
)

// Operation tags recorded on dead letters. Each tag names the secondary write
// that could not be completed.
type Operation string

const (
	OpAddGameToLibrary    Operation = "ADD_GAME_TO_LIBRARY"
	OpFollowTeam          Operation = "FOLLOW_TEAM"
	OpFollowUser          Operation = "FOLLOW_USER"
	OpCreateUserGraphNode Operation = "CREATE_USER_GRAPH_NODE"
	OpCreateGameGraphNode Operation = "CREATE_GAME_GRAPH_NODE"
	OpUpdateGameGraphNode Operation = "UPDATE_GAME_GRAPH_NODE"
)

// IsGraphSync reports whether the operation mirrors a document into the graph.
func (o Operation) IsGraphSync() bool {
	switch o {
	case OpCreateUserGraphNode, OpCreateGameGraphNode, OpUpdateGameGraphNode:
		return true
	}
	return false
}

// DeadLetter records a secondary write that was given up on after the primary
// write had already succeeded.
//
// Records are append-only. Only Resolved, ResolvedAt, RetryCount and
// LastError are changed after the record is written, and only by
// reconciliation or an operator. Records are never deleted.
type DeadLetter struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Operation     Operation  `gorm:"not null;index" json:"operation"`
	SubjectID     string     `gorm:"not null" json:"subject_id"`
	ResourceID    string     `json:"resource_id"`
	TargetStore   StoreTag   `gorm:"not null" json:"target_store"`
	StatusPayload string     `json:"status_payload,omitempty"`
	ErrorMessage  string     `gorm:"type:text" json:"error_message"`
	FailedAt      time.Time  `gorm:"not null;index" json:"failed_at"`
	RetryCount    int        `gorm:"default:0" json:"retry_count"`
	LastError     string     `gorm:"type:text" json:"last_error,omitempty"`
	Resolved      bool       `gorm:"not null;default:false;index" json:"resolved"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// TableName returns the table name for the dead letter queue
func (DeadLetter) TableName() string {
	return "dead_letter_queue"
}

// MarkResolved marks the record as handled.
func (d *DeadLetter) MarkResolved(at time.Time) {
	d.Resolved = true
	d.ResolvedAt = &at
}

// MarkRetry records a failed replay attempt.
func (d *DeadLetter) MarkRetry(errorMsg string) {
	d.LastError = errorMsg
	d.RetryCount++
}
