package main

import (
	"log"
	"log/slog"
	"strings"

	"github.com/examforge/examforge/cmd"
	"github.com/examforge/examforge/internal/conf"
	"github.com/examforge/examforge/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		log.Fatalf("error loading configuration: %v", err)
	}

	logging.Init(logLevel(settings.Log.Level))

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func logLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
