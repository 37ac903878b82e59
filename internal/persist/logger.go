package persist

import (
	"log/slog"

	"github.com/examforge/examforge/internal/logging"
)

// Package-level logger for the persistence engine.
var logger *slog.Logger

func init() {
	logger = logging.ForService("persist")
}

// getLogger returns the package logger.
func getLogger() *slog.Logger {
	return logger
}
