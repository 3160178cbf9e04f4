package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds the process logger. JSON to stdout so a long simulation run can
// be replayed through any log pipeline; the component attribute lets one run
// be filtered per subsystem.
func New(level, component string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	l := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	if component != "" {
		l = l.With("component", component)
	}
	return l
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
