package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs the process-wide logger. LOG_LEVEL selects the level;
// without it only errors are shown.
func Init() {
	level := slog.LevelError
	if l, ok := os.LookupEnv("LOG_LEVEL"); ok {
		level = ParseLevel(l, level)
	}

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		}),
	)
	slog.SetDefault(logger)
}

// ParseLevel maps a LOG_LEVEL value to a level, returning fallback for
// anything it does not recognise.
func ParseLevel(value string, fallback slog.Level) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "development", "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "production", "prod":
		return slog.LevelError
	}
	return fallback
}
