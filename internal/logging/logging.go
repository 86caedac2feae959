// Package logging builds the zerolog.Logger cmd/deltasync injects into
// the orchestrator and store backends.
package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// New builds a logger at level, writing a human-friendly console format
// in dev mode or structured JSON otherwise. An unrecognized level falls
// back to info rather than failing.
func New(level string, dev bool) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if dev {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(parsed).With().Timestamp().Logger()
}
