// Package logger provides structured logging utilities.
package logger

import (
	"io"
	"log"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Level represents logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// hclogLevel maps the level onto hclog's severity scale.
func (l Level) hclogLevel() hclog.Level {
	switch l {
	case LevelDebug:
		return hclog.Debug
	case LevelWarn:
		return hclog.Warn
	case LevelError:
		return hclog.Error
	default:
		return hclog.Info
	}
}

// ParseLevel parses a string into a Level.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a structured JSON logger backed by hclog.
type Logger struct {
	hl hclog.Logger
}

// New creates a new Logger with the specified output and level.
func New(output io.Writer, level string) *Logger {
	if output == nil {
		output = os.Stdout
	}
	hl := hclog.New(&hclog.LoggerOptions{
		Level:      ParseLevel(level).hclogLevel(),
		Output:     output,
		JSONFormat: true,
	})
	return &Logger{hl: hl}
}

// Discard returns a Logger that drops every entry.
func Discard() *Logger {
	return &Logger{hl: hclog.NewNullLogger()}
}

// With returns a new Logger with additional fields.
func (l *Logger) With(keyvals ...interface{}) *Logger {
	return &Logger{hl: l.hl.With(sanitize(keyvals)...)}
}

// Named returns a Logger whose entries carry the given module name.
func (l *Logger) Named(name string) *Logger {
	return &Logger{hl: l.hl.Named(name)}
}

// Debug logs a message at debug level.
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.hl.Debug(msg, sanitize(keyvals)...)
}

// Info logs a message at info level.
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.hl.Info(msg, sanitize(keyvals)...)
}

// Warn logs a message at warn level.
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.hl.Warn(msg, sanitize(keyvals)...)
}

// Error logs a message at error level.
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.hl.Error(msg, sanitize(keyvals)...)
}

// StandardLogger adapts the logger for APIs that need a *log.Logger,
// such as http.Server.ErrorLog.
func (l *Logger) StandardLogger() *log.Logger {
	return l.hl.StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})
}

// sanitize drops pairs whose key is not a string and a trailing odd value.
func sanitize(keyvals []interface{}) []interface{} {
	out := make([]interface{}, 0, len(keyvals))
	for i := 0; i < len(keyvals)-1; i += 2 {
		if key, ok := keyvals[i].(string); ok {
			out = append(out, key, keyvals[i+1])
		}
	}
	return out
}
