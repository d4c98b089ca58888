// Package logger provides the leveled logger used throughout postchunk.
// It wraps the standard `log` package and filters messages based on log levels.
// Components receive a Logger value instead of writing through package-level state.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// LogLevel is a type representing the logging level.
type LogLevel int

const (
	// LevelDebug is the log level used for detailed debugging information.
	// Smaller numbers indicate more detailed log levels.
	LevelDebug LogLevel = iota
	// LevelInfo is the log level used for general informational messages.
	LevelInfo
	// LevelWarn is the log level used for potential issues or warning messages.
	LevelWarn
	// LevelError is the log level used for error messages.
	LevelError
	// LevelSilent disables all output.
	LevelSilent
)

// String returns the canonical upper-case name of the level.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSilent:
		return "SILENT"
	}
	return fmt.Sprintf("LogLevel(%d)", int(l))
}

// ParseLevel converts a level name to a LogLevel.
// Valid values are "DEBUG", "INFO", "WARN", "ERROR", "SILENT" (case-insensitive).
// The second return value is false when the name is not recognised, in which case LevelInfo is returned.
func ParseLevel(level string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO", "":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "SILENT", "OFF":
		return LevelSilent, true
	default:
		return LevelInfo, false
	}
}

// Logger is the logging capability injected into every component.
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
	// Named returns a logger that prefixes every message with the given component name.
	Named(name string) Logger
	// Level reports the minimum level this logger emits.
	Level() LogLevel
}

// LevelLogger is the default Logger implementation.
// Messages are written as "[LEVEL] message" through a standard library *log.Logger.
type LevelLogger struct {
	out    *log.Logger
	level  LogLevel
	prefix string
}

// New creates a LevelLogger writing to w at the given minimum level.
// A nil writer falls back to os.Stderr.
func New(level LogLevel, w io.Writer) *LevelLogger {
	if w == nil {
		w = os.Stderr
	}
	return &LevelLogger{
		out:   log.New(w, "", log.LstdFlags),
		level: level,
	}
}

// NewFromString creates a LevelLogger from a level name, as found in configuration.
// Unknown names produce an INFO logger and a warning on the returned logger.
func NewFromString(level string, w io.Writer) *LevelLogger {
	lvl, ok := ParseLevel(level)
	l := New(lvl, w)
	if !ok {
		l.Warnf("Unknown log level '%s' specified. Defaulting to INFO level.", level)
	}
	return l
}

// Named implements Logger.
func (l *LevelLogger) Named(name string) Logger {
	prefix := name
	if l.prefix != "" {
		prefix = l.prefix + "." + name
	}
	return &LevelLogger{out: l.out, level: l.level, prefix: prefix}
}

// Level implements Logger.
func (l *LevelLogger) Level() LogLevel {
	return l.level
}

func (l *LevelLogger) logf(level LogLevel, format string, v ...interface{}) {
	if l.level > level || l.level == LevelSilent {
		return
	}
	head := "[" + level.String() + "] "
	if l.prefix != "" {
		head += "(" + l.prefix + ") "
	}
	l.out.Printf(head+format, v...)
}

// Debugf formats and outputs a DEBUG level log message.
func (l *LevelLogger) Debugf(format string, v ...interface{}) { l.logf(LevelDebug, format, v...) }

// Infof formats and outputs an INFO level log message.
func (l *LevelLogger) Infof(format string, v ...interface{}) { l.logf(LevelInfo, format, v...) }

// Warnf formats and outputs a WARN level log message.
func (l *LevelLogger) Warnf(format string, v ...interface{}) { l.logf(LevelWarn, format, v...) }

// Errorf formats and outputs an ERROR level log message.
func (l *LevelLogger) Errorf(format string, v ...interface{}) { l.logf(LevelError, format, v...) }

// Nop returns a Logger that discards everything. Useful in tests.
func Nop() Logger {
	return New(LevelSilent, io.Discard)
}

var _ Logger = (*LevelLogger)(nil)
