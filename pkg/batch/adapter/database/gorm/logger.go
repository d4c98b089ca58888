package gorm

import (
	"fmt"
	"strings"
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/postchunk/pkg/batch/support/util/logger"
)

// NewGormLogger creates a gorm logger that writes through log.
// SQL statements are only traced when log is at DEBUG level.
func NewGormLogger(log logger.Logger) gormlogger.Interface {
	var level gormlogger.LogLevel
	switch log.Level() {
	case logger.LevelDebug:
		level = gormlogger.Info
	case logger.LevelInfo, logger.LevelWarn:
		level = gormlogger.Warn
	case logger.LevelError:
		level = gormlogger.Error
	default:
		level = gormlogger.Silent
	}

	return gormlogger.New(
		NewGormWriter(log),
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// GormWriter implements gormlogger.Writer and redirects GORM output to a Logger.
type GormWriter struct {
	log logger.Logger
}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter(log logger.Logger) *GormWriter {
	return &GormWriter{log: log}
}

// Printf implements gormlogger.Writer.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	switch {
	case strings.Contains(msg, "SLOW SQL"):
		w.log.Warnf("[GORM] %s", msg)
	case isStatementTrace(msg):
		w.log.Debugf("[GORM] %s", msg)
	default:
		w.log.Infof("[GORM] %s", msg)
	}
}

func isStatementTrace(msg string) bool {
	if !strings.Contains(msg, "[") || !strings.Contains(msg, "]") {
		return false
	}
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE", "SAVEPOINT", "ROLLBACK"} {
		if strings.Contains(msg, verb) {
			return true
		}
	}
	return false
}
