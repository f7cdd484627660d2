package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gamesense/gamesense/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SlowQueryThreshold is the duration above which a query is logged as a warning.
const SlowQueryThreshold = 200 * time.Millisecond

// gormLogger sends GORM's log output to a logger.Logger.
//
// Failed queries are logged at error level, slow ones at warn level and, in
// Info mode, every query at debug level. Record-not-found is not an error:
// the stores report a missing entity as nil.
type gormLogger struct {
	log   logger.Logger
	level gormlogger.LogLevel
}

var _ gormlogger.Interface = (*gormLogger)(nil)

func newGormLogger(log logger.Logger, level gormlogger.LogLevel) *gormLogger {
	if log == nil {
		log = logger.Nop()
	}
	return &gormLogger{log: log, level: level}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLogger{log: l.log, level: level}
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= gormlogger.Error:
		sql, rows := fc()
		l.log.Error("gorm query failed", "sql", sql, "rows", rows, "elapsed", elapsed.String(), "error", err)
	case elapsed > SlowQueryThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.log.Warn("slow gorm query", "sql", sql, "rows", rows, "elapsed", elapsed.String())
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.log.Debug("gorm query", "sql", sql, "rows", rows, "elapsed", elapsed.String())
	}
}
