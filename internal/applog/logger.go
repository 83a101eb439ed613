// Package applog provides the structured logging used across the
// Validation Engine and Chain Monitor. It adapts the slog-based wrapper
// from the Accumulate lite client's logging package down to what this
// module needs: leveled, structured fields and per-component loggers,
// without the HTTP middleware concerns that package also carried.
package applog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog.Logger with the field helpers the rest of this module
// uses to attach structured context to log lines.
type Logger struct {
	*slog.Logger
}

// Field is a single structured log field.
type Field struct {
	Key   string
	Value any
}

// Config controls how New constructs a Logger.
type Config struct {
	Level  slog.Level
	Format string // "json" or "text"
	Output io.Writer
}

// DefaultConfig returns the module's default logging configuration: text
// output to stdout at info level.
func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Format: "text", Output: os.Stdout}
}

// New constructs a Logger from cfg.
func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// ParseLevel parses a LOG_LEVEL environment value.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("applog: unknown log level %q", level)
	}
}

// WithComponent returns a logger annotated with a component name, matching
// the call sites throughout internal/monitor and internal/validation.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With("component", component)}
}

// WithError returns a logger annotated with an error field.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{Logger: l.Logger.With("error", err.Error())}
}

func toArgs(fields []Field) []any {
	args := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		args = append(args, f.Key, f.Value)
	}
	return args
}

// Debug logs at debug level with structured fields.
func (l *Logger) Debug(msg string, fields ...Field) {
	l.Logger.Debug(msg, toArgs(fields)...)
}

// Info logs at info level with structured fields.
func (l *Logger) Info(msg string, fields ...Field) {
	l.Logger.Info(msg, toArgs(fields)...)
}

// Warn logs at warn level with structured fields.
func (l *Logger) Warn(msg string, fields ...Field) {
	l.Logger.Warn(msg, toArgs(fields)...)
}

// Error logs at error level with structured fields.
func (l *Logger) Error(msg string, fields ...Field) {
	l.Logger.Error(msg, toArgs(fields)...)
}

// Noop returns a logger that discards everything, used as the zero-config
// default for components that receive a nil *Logger.
func Noop() *Logger {
	return New(Config{Level: slog.LevelError + 1, Output: io.Discard})
}
