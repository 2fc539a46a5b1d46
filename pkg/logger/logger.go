package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns JSON logger with level taken from LOG_LEVEL (default info).
func New() *slog.Logger {
	return NewWithLevel(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// NewWithLevel builds a JSON logger writing to w. An empty or unknown level
// falls back to info.
func NewWithLevel(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelInfo
	if level != "" {
		var parsed slog.Level
		if err := parsed.UnmarshalText([]byte(level)); err == nil {
			lvl = parsed
		}
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}
