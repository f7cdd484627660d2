// Package activity builds activity log entries and writes them to a sink.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
	"github.com/google/uuid"
)

// DefaultSource is the metadata source reported when none is configured.
const DefaultSource = "web-client"

// Event is a user action to record.
type Event struct {
	UserID    models.UserID
	SubjectID string
	Action    models.ActivityAction
	Status    string
}

// Recorder writes Events to an ActivitySink. Sink errors are returned unchanged
// in the chain so the caller can decide whether to retry.
type Recorder struct {
	sink   store.ActivitySink
	source string
	now    func() time.Time
}

func NewRecorder(sink store.ActivitySink, source string) *Recorder {
	if source == "" {
		source = DefaultSource
	}
	return &Recorder{sink: sink, source: source, now: time.Now}
}

// Record appends one entry. Each call produces a new entry id.
func (r *Recorder) Record(ctx context.Context, e Event) (*models.ActivityLog, error) {
	entry := &models.ActivityLog{
		ID:        uuid.NewString(),
		UserID:    e.UserID,
		SubjectID: e.SubjectID,
		Action:    e.Action,
		Status:    e.Status,
		Metadata:  models.JSONMap{"source": r.source},
		Timestamp: r.now().UTC(),
	}
	if err := r.sink.RecordActivity(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record %s activity: %w", e.Action, err)
	}
	return entry, nil
}
