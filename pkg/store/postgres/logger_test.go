package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gamesense/gamesense/pkg/logger/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func countQuery() (string, int64) { return "SELECT count(*) FROM users", 0 }

func TestGormLoggerTrace(t *testing.T) {
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		want    string
	}{
		{name: "failed query", level: gormlogger.Warn, err: errors.New("boom"), want: "ERROR: gorm query failed"},
		{name: "record not found", level: gormlogger.Warn, err: gorm.ErrRecordNotFound},
		{name: "slow query", level: gormlogger.Warn, elapsed: time.Second, want: "WARN: slow gorm query"},
		{name: "fast query", level: gormlogger.Warn},
		{name: "query log", level: gormlogger.Info, want: "DEBUG: gorm query"},
		{name: "silent", level: gormlogger.Silent, err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, handler := testlog.NewLogger()
			l := newGormLogger(log, tt.level)

			l.Trace(context.Background(), time.Now().Add(-tt.elapsed), countQuery, tt.err)

			if tt.want == "" {
				assert.Empty(t, handler.Lines())
				return
			}
			lines := handler.Lines()
			require.Len(t, lines, 1)
			assert.Contains(t, lines[0], tt.want)
			assert.Contains(t, lines[0], "sql=SELECT count(*) FROM users")
		})
	}
}

func TestGormLoggerLogMode(t *testing.T) {
	log, handler := testlog.NewLogger()
	l := newGormLogger(log, gormlogger.Silent).LogMode(gormlogger.Info)

	l.Info(context.Background(), "opened %s", "db")
	l.Warn(context.Background(), "pool at %d", 9)
	assert.Equal(t, []string{"[0] INFO: opened db", "[1] WARN: pool at 9"}, handler.Lines())
}

func TestStoreErrorsReachLogger(t *testing.T) {
	log, handler := testlog.NewLogger()
	s, err := NewSQLiteStore(":memory:", WithLogger(log))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	// not migrated
	_, err = s.CountUsers(context.Background())
	require.Error(t, err)

	lines := handler.Lines()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[len(lines)-1], "ERROR: gorm query failed")
	assert.Contains(t, lines[len(lines)-1], "no such table")
}
