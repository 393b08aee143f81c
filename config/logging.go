package config

import (
	"io"
	"log/slog"
)

// LogLevels maps log-level values to slog levels.
var LogLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, ok := LogLevels[level]
	if !ok {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}
