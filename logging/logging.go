package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewConsoleLogger creates the process logger. An unknown level falls back to info.
func NewConsoleLogger(out io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).Level(lvl).With().Timestamp().Caller().Logger()
}
