package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// gormZapLogger routes GORM's logging through zap.
type gormZapLogger struct {
	zl            *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger maps LOG_LEVEL onto GORM's coarser levels. SQL statements are only logged at debug.
func NewGormLogger(zl *zap.Logger, logLevel string) gormlogger.Interface {
	var level gormlogger.LogLevel
	switch strings.ToLower(logLevel) {
	case "silent", "fatal", "panic":
		level = gormlogger.Silent
	case "error":
		level = gormlogger.Error
	case "debug":
		level = gormlogger.Info
	default:
		level = gormlogger.Warn
	}
	return &gormZapLogger{zl: zl, level: level, slowThreshold: slowQueryThreshold}
}

func (l *gormZapLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *gormZapLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.zl.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormZapLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.zl.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormZapLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.zl.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormZapLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && l.level >= gormlogger.Error && !errors.Is(err, gorm.ErrRecordNotFound):
		sql, rows := fc()
		l.zl.Error("SQL error", zap.Error(err), zap.Duration("elapsed", elapsed), zap.String("sql", sql), zap.Int64("rows", rows))
	case elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		sql, rows := fc()
		l.zl.Warn("Slow SQL", zap.Duration("elapsed", elapsed), zap.Duration("threshold", l.slowThreshold), zap.String("sql", sql), zap.Int64("rows", rows))
	case l.level >= gormlogger.Info:
		sql, rows := fc()
		l.zl.Debug("SQL", zap.Duration("elapsed", elapsed), zap.String("sql", sql), zap.Int64("rows", rows))
	}
}
