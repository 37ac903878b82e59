// Package logging configures the application's structured loggers.
package logging

import (
	"io"
	"log/slog"
	"os"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Add trace and fatal level names.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func replaceLevelNames(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		level := a.Value.Any().(slog.Level)
		levelLabel, exists := levelNames[level]
		if !exists {
			levelLabel = level.String()
		}
		a.Value = slog.StringValue(levelLabel)
	}
	return a
}

// Init initializes the logging system with structured and human-readable
// loggers: JSON output to stdout for machines, text output to stderr for
// humans. The structured logger becomes the process default.
func Init(level slog.Level) {
	SetOutput(os.Stdout, os.Stderr, level)
}

// SetOutput redirects both loggers. Tests use this to capture log output.
func SetOutput(structuredOutput, humanReadableOutput io.Writer, level slog.Level) {
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	}))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevelNames,
	}))
	slog.SetDefault(structuredLogger)
}

// Structured returns the JSON logger.
func Structured() *slog.Logger {
	if structuredLogger == nil {
		Init(slog.LevelInfo)
	}
	return structuredLogger
}

// HumanReadable returns the text logger.
func HumanReadable() *slog.Logger {
	if humanReadableLogger == nil {
		Init(slog.LevelInfo)
	}
	return humanReadableLogger
}

// ForService returns a structured logger scoped to a service name. Packages
// keep one of these at package level.
func ForService(serviceName string) *slog.Logger {
	return Structured().With("service", serviceName)
}

// Debug logs at debug level using the structured logger.
func Debug(msg string, args ...any) {
	Structured().Debug(msg, args...)
}

// Info logs at info level using the structured logger.
func Info(msg string, args ...any) {
	Structured().Info(msg, args...)
}

// Warn logs at warn level using the structured logger.
func Warn(msg string, args ...any) {
	Structured().Warn(msg, args...)
}

// Error logs at error level using the structured logger.
func Error(msg string, args ...any) {
	Structured().Error(msg, args...)
}
