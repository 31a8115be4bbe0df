package observability

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogging installs a JSON slog handler on stdout as the default logger.
// Unrecognized level names fall back to INFO.
func InitLogging(level string) {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

// ComponentLogger returns the default logger tagged with a component name.
func ComponentLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
