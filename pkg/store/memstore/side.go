package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
)

// ActivitySink is an in-memory store.ActivitySink.
type ActivitySink struct {
	Faults

	mu      sync.Mutex
	entries []models.ActivityLog
}

var _ store.ActivitySink = (*ActivitySink)(nil)

func NewActivitySink() *ActivitySink {
	return &ActivitySink{}
}

func (s *ActivitySink) RecordActivity(ctx context.Context, entry *models.ActivityLog) error {
	if err := s.hit("RecordActivity"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, *entry)
	return nil
}

// Entries returns a copy of the recorded entries in write order.
func (s *ActivitySink) Entries() []models.ActivityLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActivityLog(nil), s.entries...)
}

// DeadLetterStore is an in-memory store.DeadLetterStore.
type DeadLetterStore struct {
	Faults

	mu      sync.Mutex
	nextID  uint64
	records []*models.DeadLetter
}

var _ store.DeadLetterStore = (*DeadLetterStore)(nil)

func NewDeadLetterStore() *DeadLetterStore {
	return &DeadLetterStore{}
}

func (s *DeadLetterStore) AppendDeadLetter(ctx context.Context, record *models.DeadLetter) error {
	if err := s.hit("AppendDeadLetter"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	record.ID = s.nextID
	cp := *record
	s.records = append(s.records, &cp)
	return nil
}

func (s *DeadLetterStore) ListUnresolvedDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetter, error) {
	if err := s.hit("ListUnresolvedDeadLetters"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DeadLetter
	for _, r := range s.records {
		if r.Resolved {
			continue
		}
		cp := *r
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *DeadLetterStore) GetDeadLetter(ctx context.Context, id uint64) (*models.DeadLetter, error) {
	if err := s.hit("GetDeadLetter"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	if r == nil {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (s *DeadLetterStore) MarkDeadLetterResolved(ctx context.Context, id uint64) error {
	if err := s.hit("MarkDeadLetterResolved"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	if r == nil {
		return store.ErrDeadLetterNotFound
	}
	r.MarkResolved(time.Now())
	return nil
}

func (s *DeadLetterStore) IncrementDeadLetterRetry(ctx context.Context, id uint64, errorMsg string) error {
	if err := s.hit("IncrementDeadLetterRetry"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.find(id)
	if r == nil {
		return store.ErrDeadLetterNotFound
	}
	r.MarkRetry(errorMsg)
	return nil
}

func (s *DeadLetterStore) CountUnresolvedDeadLetters(ctx context.Context) (int64, error) {
	if err := s.hit("CountUnresolvedDeadLetters"); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, r := range s.records {
		if !r.Resolved {
			n++
		}
	}
	return n, nil
}

// All returns every record, resolved ones included, in insertion order.
func (s *DeadLetterStore) All() []models.DeadLetter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.DeadLetter, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out
}

func (s *DeadLetterStore) find(id uint64) *models.DeadLetter {
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}
