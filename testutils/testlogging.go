package testutils

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// NewTestLogger creates a zerolog.Logger that writes to the test's log, so output only shows for failing or verbose tests.
func NewTestLogger(t testing.TB) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: testWriter{t}, TimeFormat: time.RFC3339, NoColor: true}).
		Level(zerolog.DebugLevel).
		With().Timestamp().Caller().Logger()
}

type testWriter struct {
	tb testing.TB
}

func (tw testWriter) Write(p []byte) (n int, err error) {
	tw.tb.Helper()
	tw.tb.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}
