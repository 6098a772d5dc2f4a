package logging

import (
	"encoding/json"
	"path/filepath"
	"time"

	"yarascan/scan"

	"github.com/rs/zerolog"
)

// FileName is the match log file name
const FileName = "yara_json.log"

// FileResultsLogger is a scan.ResultsLogger that appends one JSON line per event to a log file.
type FileResultsLogger struct {
	fileSystem   LogFileSystem
	file         LogFile
	logger       zerolog.Logger
	writelogline chan []byte
	writeDone    chan bool
	stopped      chan struct{}
	now          func() time.Time
}

// NewFileResultsLogger creates a results logger that writes log lines to FileName in dir.
func NewFileResultsLogger(fileSystem LogFileSystem, dir string, logger zerolog.Logger) (*FileResultsLogger, error) {
	r := &FileResultsLogger{fileSystem: fileSystem, logger: logger, now: time.Now}

	err := fileSystem.MkDir(dir)
	if err != nil {
		logger.Error().Err(err).Str("path", dir).Msg("Failed to create the directory while initializing")
		return nil, err
	}

	path := filepath.Join(dir, FileName)
	r.file, err = fileSystem.Open(path)
	if err != nil {
		logger.Error().Err(err).Str("file", path).Msg("Failed to open the file at initiation")
		return nil, err
	}

	r.writelogline = make(chan []byte)
	r.writeDone = make(chan bool)
	r.stopped = make(chan struct{})
	go func() {
		defer close(r.stopped)
		for v := range r.writelogline {
			if err := r.file.Append(append(v, '\n')); err != nil {
				r.logger.Error().Err(err).Msg("Failed to append to match log")
			}
			r.writeDone <- true
		}
	}()

	return r, nil
}

// RuleMatched logs a rule match on a session.
func (l *FileResultsLogger) RuleMatched(session scan.Session, category scan.Category, rule string, tags []string) {
	l.write(newMatchLogEntry(l.now(), session.ID(), category.String(), rule, tags))
}

// ScanError logs a failed scan.
func (l *FileResultsLogger) ScanError(session scan.Session, category scan.Category, err error) {
	l.write(newScanErrorLogEntry(l.now(), session.ID(), category.String(), err))
}

func (l *FileResultsLogger) write(entry *matchLogEntry) {
	bb, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error().Err(err).Msg("Error while marshaling JSON results log")
		return
	}

	l.writelogline <- bb
	<-l.writeDone
}

// Close stops the writer and closes the log file. The logger must not be used afterwards.
func (l *FileResultsLogger) Close() error {
	close(l.writelogline)
	<-l.stopped
	return l.file.Close()
}
