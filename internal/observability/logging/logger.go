package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process-wide JSON logger and installs it as the slog
// default, so packages logging through the slog top-level functions pick
// up the service attribute and configured level.
func Setup(service, level string) *slog.Logger {
	logger := NewJSONLogger(os.Stdout, service, level)
	slog.SetDefault(logger)
	return logger
}

func NewJSONLogger(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
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
