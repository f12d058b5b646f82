package slogutil

import (
	"io"
	"log/slog"
	"strings"
)

// levelSilent is above every standard level.
const levelSilent = slog.Level(100)

// NewLogger creates a logger writing to w. Format "json" selects slog's JSON
// handler; anything else selects the line handler.
func NewLogger(w io.Writer, format string, level slog.Level) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(NewLineHandler(w, opts))
}

// NewDiscardLogger creates a logger that discards all output.
func NewDiscardLogger() *slog.Logger {
	return slog.New(NewLineHandler(io.Discard, &slog.HandlerOptions{Level: levelSilent}))
}

// LevelFromString converts debug, info, warn or error (case-insensitive) to a
// slog.Level, defaulting to info.
func LevelFromString(s string) slog.Level {
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

// LevelFromVerbosity converts CLI verbosity flags to a slog.Level.
//   - quiet: nothing is logged
//   - 0: the configured level
//   - 1: info
//   - 2 or more: debug
func LevelFromVerbosity(verbosity int, quiet bool, configured slog.Level) slog.Level {
	if quiet {
		return levelSilent
	}
	switch verbosity {
	case 0:
		return configured
	case 1:
		return min(configured, slog.LevelInfo)
	default:
		return slog.LevelDebug
	}
}
