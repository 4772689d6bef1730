package logging

import (
	"log/slog"
	"os"
)

// Logg is the process-wide logger, set once in main before anything else
// runs.
var Logg *slog.Logger

// NewLogger builds a slog logger writing colored JSON records to stdout.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := NewColorHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
