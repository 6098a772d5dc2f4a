package logging

import (
	"encoding/json"
	"time"

	"yarascan/scan"

	"github.com/rs/zerolog"
)

// NewZerologResultsLogger creates a results logger that creates the same entries as the file results logger, but just outputs them to Zerolog.
func NewZerologResultsLogger(logger zerolog.Logger) scan.ResultsLogger {
	return &zerologResultsLogger{logger: logger}
}

type zerologResultsLogger struct {
	logger zerolog.Logger
}

func (l *zerologResultsLogger) RuleMatched(session scan.Session, category scan.Category, rule string, tags []string) {
	l.log(newMatchLogEntry(time.Now(), session.ID(), category.String(), rule, tags))
}

func (l *zerologResultsLogger) ScanError(session scan.Session, category scan.Category, err error) {
	l.log(newScanErrorLogEntry(time.Now(), session.ID(), category.String(), err))
}

func (l *zerologResultsLogger) log(entry *matchLogEntry) {
	bb, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error().Err(err).Msg("Error while marshaling JSON results log")
		return
	}

	l.logger.Info().RawJSON("entry", bb).Msg("Match log")
}
