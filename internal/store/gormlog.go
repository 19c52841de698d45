package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/jitterskin/logger/internal/logging"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormLogger routes gorm diagnostics through logrus.
type gormLogger struct {
	entry *logrus.Entry
	level gormlogger.LogLevel
}

func newGormLogger(entry *logrus.Entry) gormlogger.Interface {
	if entry == nil {
		entry = logging.Logger()
	}
	return &gormLogger{entry: entry, level: gormlogger.Warn}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormLogger) Info(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Info {
		l.entry.WithField("event", "sqlite_info").Info(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.entry.WithField("event", "sqlite_warn").Warn(fmt.Sprintf(msg, args...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, args ...interface{}) {
	if l.level >= gormlogger.Error {
		l.entry.WithField("event", "sqlite_error").Error(fmt.Sprintf(msg, args...))
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
		l.entry.WithFields(logging.Fields{
			"event":      "sqlite_query_error",
			"sql":        sql,
			"rows":       rows,
			"elapsed_ms": elapsed.Milliseconds(),
		}).WithError(err).Error("sqlite query failed")
	case elapsed > slowQueryThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.entry.WithFields(logging.Fields{
			"event":      "sqlite_slow_query",
			"sql":        sql,
			"rows":       rows,
			"elapsed_ms": elapsed.Milliseconds(),
		}).Warn("slow sqlite query")
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.entry.WithFields(logging.Fields{
			"event":      "sqlite_query",
			"sql":        sql,
			"rows":       rows,
			"elapsed_ms": elapsed.Milliseconds(),
		}).Debug("sqlite query")
	}
}
