package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamesense/gamesense/pkg/models"
	"github.com/gamesense/gamesense/pkg/store"
	"gorm.io/gorm"
)

// RecordActivity appends an entry to activity_logs.
func (s *PostgresStore) RecordActivity(ctx context.Context, entry *models.ActivityLog) error {
	return s.getDB(ctx).Create(entry).Error
}

// ListActivity returns the user's activity, newest first.
func (s *PostgresStore) ListActivity(ctx context.Context, userID models.UserID, limit int) ([]*models.ActivityLog, error) {
	var entries []*models.ActivityLog
	query := s.getDB(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&entries).Error
	return entries, err
}

// AppendDeadLetter inserts a record into dead_letter_queue. The database assigns the ID.
func (s *PostgresStore) AppendDeadLetter(ctx context.Context, record *models.DeadLetter) error {
	record.ID = 0
	return s.getDB(ctx).Create(record).Error
}

// ListUnresolvedDeadLetters returns unresolved records in insertion order.
func (s *PostgresStore) ListUnresolvedDeadLetters(ctx context.Context, limit int) ([]*models.DeadLetter, error) {
	var records []*models.DeadLetter
	query := s.getDB(ctx).
		Where("resolved = ?", false).
		Order("id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&records).Error
	return records, err
}

func (s *PostgresStore) GetDeadLetter(ctx context.Context, id uint64) (*models.DeadLetter, error) {
	var record models.DeadLetter
	err := s.getDB(ctx).First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// MarkDeadLetterResolved flags a record as handled. Resolving twice is a no-op.
func (s *PostgresStore) MarkDeadLetterResolved(ctx context.Context, id uint64) error {
	now := time.Now().UTC()
	res := s.getDB(ctx).Model(&models.DeadLetter{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"resolved":    true,
			"resolved_at": now,
		})
	return checkAffected(res, id)
}

// IncrementDeadLetterRetry bumps retry_count and stores the latest error.
func (s *PostgresStore) IncrementDeadLetterRetry(ctx context.Context, id uint64, errorMsg string) error {
	res := s.getDB(ctx).Model(&models.DeadLetter{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"retry_count": gorm.Expr("retry_count + 1"),
			"last_error":  errorMsg,
		})
	return checkAffected(res, id)
}

func (s *PostgresStore) CountUnresolvedDeadLetters(ctx context.Context) (int64, error) {
	var count int64
	err := s.getDB(ctx).Model(&models.DeadLetter{}).
		Where("resolved = ?", false).
		Count(&count).Error
	return count, err
}

func checkAffected(res *gorm.DB, id uint64) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %d", store.ErrDeadLetterNotFound, id)
	}
	return nil
}
