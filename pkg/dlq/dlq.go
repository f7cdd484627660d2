// Package dlq records secondary writes that could not be completed.
//
// A dead letter is written after the primary write of an operation already
// succeeded, so writing it must never turn the operation into a failure.
// [Queue.Enqueue] therefore has no error result. When the backend rejects the
// record the full record is logged on the last-resort logger and dropped.
package dlq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamesense/gamesense/pkg/logger"
	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
)

// Entry is what callers hand to Enqueue.
type Entry struct {
	Operation     models.Operation
	SubjectID     string
	ResourceID    string
	TargetStore   models.StoreTag
	StatusPayload string
	Err           error
}

// Queue wraps a store.DeadLetterStore.
type Queue struct {
	store      store.DeadLetterStore
	log        logger.Logger
	lastResort logger.Logger
	now        func() time.Time
}

// Option configures a Queue.
type Option func(*Queue)

func WithLogger(l logger.Logger) Option {
	return func(q *Queue) { q.log = l }
}

// WithLastResortLogger sets where records go when the backend write fails.
// It defaults to the regular logger.
func WithLastResortLogger(l logger.Logger) Option {
	return func(q *Queue) { q.lastResort = l }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

func New(s store.DeadLetterStore, opts ...Option) *Queue {
	q := &Queue{store: s, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	if q.lastResort == nil {
		q.lastResort = q.log
	}
	return q
}

// Enqueue appends a dead letter. RetryCount starts at 0 and Resolved at false.
// It never fails and never panics.
func (q *Queue) Enqueue(ctx context.Context, e Entry) {
	record := &models.DeadLetter{
		Operation:     e.Operation,
		SubjectID:     e.SubjectID,
		ResourceID:    e.ResourceID,
		TargetStore:   e.TargetStore,
		StatusPayload: e.StatusPayload,
		ErrorMessage:  errorMessage(e.Err),
		FailedAt:      q.now().UTC(),
	}

	q.log.Error("secondary write failed, writing to DLQ",
		"operation", record.Operation,
		"subject_id", record.SubjectID,
		"resource_id", record.ResourceID,
		"target_store", record.TargetStore,
		"error", record.ErrorMessage)

	if err := q.append(ctx, record); err != nil {
		q.lastResort.Error("CRITICAL: failed to write to DLQ",
			"operation", record.Operation,
			"subject_id", record.SubjectID,
			"resource_id", record.ResourceID,
			"target_store", record.TargetStore,
			"status_payload", record.StatusPayload,
			"original_error", record.ErrorMessage,
			"failed_at", record.FailedAt.Format(time.RFC3339Nano),
			"error", err)
	}
}

func (q *Queue) append(ctx context.Context, record *models.DeadLetter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dead letter store panicked: %v", r)
		}
	}()
	return q.store.AppendDeadLetter(context.WithoutCancel(ctx), record)
}

func errorMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// ListUnresolved returns unresolved dead letters, oldest first.
func (q *Queue) ListUnresolved(ctx context.Context) ([]*models.DeadLetter, error) {
	return q.ListUnresolvedN(ctx, 0)
}

// ListUnresolvedN returns at most limit unresolved dead letters, oldest first.
func (q *Queue) ListUnresolvedN(ctx context.Context, limit int) ([]*models.DeadLetter, error) {
	records, err := q.store.ListUnresolvedDeadLetters(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return records, nil
}

// ErrNotFound is returned for an unknown dead letter id.
var ErrNotFound = errors.New("dead letter not found")

func (q *Queue) Get(ctx context.Context, id uint64) (*models.DeadLetter, error) {
	record, err := q.store.GetDeadLetter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get dead letter %d: %w", id, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return record, nil
}

// MarkResolved flags the record as handled. It is idempotent.
func (q *Queue) MarkResolved(ctx context.Context, id uint64) error {
	if err := q.store.MarkDeadLetterResolved(ctx, id); err != nil {
		if errors.Is(err, store.ErrDeadLetterNotFound) {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to resolve dead letter %d: %w", id, err)
	}
	q.log.Info("dead letter resolved", "id", id)
	return nil
}

// RecordRetry notes a failed replay of the record.
func (q *Queue) RecordRetry(ctx context.Context, id uint64, cause error) error {
	if err := q.store.IncrementDeadLetterRetry(ctx, id, errorMessage(cause)); err != nil {
		if errors.Is(err, store.ErrDeadLetterNotFound) {
			return fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return fmt.Errorf("failed to record retry of dead letter %d: %w", id, err)
	}
	return nil
}

func (q *Queue) CountUnresolved(ctx context.Context) (int64, error) {
	n, err := q.store.CountUnresolvedDeadLetters(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}
