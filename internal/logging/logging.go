// Package logging builds the slog loggers used across the planner. Output
// goes to stderr; stdout is reserved for plan output so that `pipeweave
// plan workflow.yml > plan.json` works.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a logger from the configured level and format strings.
// Unrecognized values fall back to info/text.
func New(level, format string) *slog.Logger {
	return NewWithWriter(ParseLevel(level), format, os.Stderr)
}

// NewWithWriter creates a logger writing to the given writer. format is
// "json" or "text".
func NewWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything; used in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel converts a string log level to slog.Level, defaulting to
// info for unrecognized values.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
