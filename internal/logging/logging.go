// Package logging builds the zerolog logger every other package threads
// through its constructors, matching the level/format switch in the
// teacher's config.go.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger at the given level ("debug", "info", "warn",
// "error") and format ("json" or "console").
func New(level, format string) zerolog.Logger {
	var w zerolog.ConsoleWriter
	var logger zerolog.Logger
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		logger = zerolog.New(w)
	} else {
		logger = zerolog.New(os.Stderr)
	}
	logger = logger.With().Timestamp().Logger().Level(parseLevel(level))
	return logger
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
