package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/banking-transfer-saga/internal/config"
)

// NewLogger creates the JSON logger every service writes to stdout.
func NewLogger(cfg *config.Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter builds the logger on an arbitrary writer. Every record carries the
// service name so the three binaries can share one log stream.
func NewWithWriter(cfg *config.Config, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Logging.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	logger := slog.New(slog.NewJSONHandler(w, opts))
	if cfg.Application.Name != "" {
		logger = logger.With("service", cfg.Application.Name)
	}

	logger.Info("logger initialized", "level", level)

	return logger
}

// ParseLevel maps a configured level name to a slog level, defaulting to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// WithCorrelation scopes a logger to a correlation id when one is present.
func WithCorrelation(log *slog.Logger, correlationID string) *slog.Logger {
	if correlationID == "" {
		return log
	}
	return log.With("correlation_id", correlationID)
}
