package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger writes GORM statements to zap. Statements that take row locks
// are marked with locking=true so lock waits on the ledger tables are easy to
// find. Record-not-found is never logged; callers turn it into a 404.
type GormLogger struct {
	log   *zap.Logger
	level gormlogger.LogLevel
	slow  time.Duration
}

// NewGormLogger returns a GORM logger at level. Statements slower than slow
// are logged as warnings; zero disables slow statement logging.
func NewGormLogger(log *zap.Logger, level gormlogger.LogLevel, slow time.Duration) *GormLogger {
	return &GormLogger{log: log.Named("gorm"), level: level, slow: slow}
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, at gormlogger.LogLevel, msg string, data []any) {
	if l.level < at {
		return
	}
	text := fmt.Sprintf(msg, data...)
	fields := contextFields(ctx)
	switch at {
	case gormlogger.Error:
		l.log.Error(text, fields...)
	case gormlogger.Warn:
		l.log.Warn(text, fields...)
	default:
		l.log.Info(text, fields...)
	}
}

// Trace logs one executed statement
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	if err != nil && errors.Is(err, gormlogger.ErrRecordNotFound) {
		err = nil
	}

	elapsed := time.Since(begin)
	slow := l.slow > 0 && elapsed >= l.slow
	switch {
	case err != nil && l.level >= gormlogger.Error:
	case slow && l.level >= gormlogger.Warn:
	case l.level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	fields := append([]zap.Field{
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
		zap.Bool("locking", isLocking(sql)),
	}, contextFields(ctx)...)

	switch {
	case err != nil:
		l.log.Error("sql failed", append(fields, zap.Error(err))...)
	case slow:
		l.log.Warn("slow sql", append(fields, zap.Duration("threshold", l.slow))...)
	default:
		l.log.Debug("sql", fields...)
	}
}

func isLocking(sql string) bool {
	upper := strings.ToUpper(sql)
	return strings.Contains(upper, " FOR UPDATE") || strings.Contains(upper, " FOR SHARE")
}

// GormLevel maps a configured level name to a GORM level. Unknown names
// give warn.
func GormLevel(name string) gormlogger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
