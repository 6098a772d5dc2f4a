package scan

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Scanner is what the capture pipeline calls for every chunk of session payload.
type Scanner interface {
	// Execute scans data against the general rule set and tags session with every match.
	Execute(session Session, data []byte, isFirstFragment bool)

	// ExecuteEmail scans data against the email rule set and tags session with every match.
	ExecuteEmail(session Session, data []byte, isFirstFragment bool)

	// Close releases the rule sets and the engine. No scan may be running or started afterwards.
	Close()
}

type scannerImpl struct {
	logger        zerolog.Logger
	engine        Engine
	aligner       FragmentAligner
	resultsLogger ResultsLogger
	ruleSets      [2]RuleSet
}

// NewScanner compiles the configured rule files with the given engine and takes ownership of it.
// Any error means no rule set is usable and the process must not start scanning; the caller owns
// that decision. On error the engine and everything compiled so far have already been released, and
// the returned Scanner is the closed partial one, so calling Close on it again is safe.
func NewScanner(logger zerolog.Logger, engine Engine, config Config, rl ResultsLogger) (scanner Scanner, err error) {
	s := &scannerImpl{
		logger:        logger,
		engine:        engine,
		aligner:       NewPassthroughFragmentAligner(),
		resultsLogger: rl,
	}

	if config.LegacyFragmentAlignment() {
		s.aligner = NewLegacyFragmentAligner()
	}

	files := [2]string{
		General: config.RuleFile(),
		Email:   config.EmailRuleFile(),
	}

	for c, filename := range files {
		category := Category(c)
		if filename == "" {
			logger.Info().Str("category", category.String()).Msg("No rule file configured, scanning disabled")
			continue
		}

		logger.Info().Str("category", category.String()).Str("file", filename).Msg("Compiling rules")

		var rs RuleSet
		rs, err = engine.Compile(filename)
		if err != nil {
			s.Close()
			scanner = s
			err = fmt.Errorf("failed to load %v rules from %v: %w", category, filename, err)
			return
		}

		s.ruleSets[category] = rs
	}

	scanner = s
	return
}

func (s *scannerImpl) Execute(session Session, data []byte, isFirstFragment bool) {
	s.execute(General, session, data, isFirstFragment)
}

func (s *scannerImpl) ExecuteEmail(session Session, data []byte, isFirstFragment bool) {
	s.execute(Email, session, data, isFirstFragment)
}

func (s *scannerImpl) execute(category Category, session Session, data []byte, isFirstFragment bool) {
	rs := s.ruleSets[category]
	if rs == nil {
		return
	}

	logger := s.logger.With().Str("session", session.ID()).Str("category", category.String()).Logger()

	region, base := s.aligner.Align(data, isFirstFragment)
	logger.Debug().Int("length", len(data)).Int("base", base).Bool("first", isFirstFragment).Msg("Scanning fragment")

	tagger := &matchTagger{
		logger:        logger,
		session:       session,
		category:      category,
		resultsLogger: s.resultsLogger,
	}

	err := safeScan(rs, region, tagger.onMatch)
	if err != nil {
		logger.Warn().Err(err).Msg("Scan failed, treating as no matches")
		if s.resultsLogger != nil {
			s.resultsLogger.ScanError(session, category, err)
		}
	}
}

func safeScan(rs RuleSet, data []byte, onMatch MatchHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule engine panicked: %v", r)
		}
	}()

	err = rs.Scan(data, onMatch)
	return
}

func (s *scannerImpl) Close() {
	if s == nil {
		return
	}

	s.releaseRuleSets()
	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
	}
}

func (s *scannerImpl) releaseRuleSets() {
	for i, rs := range s.ruleSets {
		if rs != nil {
			rs.Close()
			s.ruleSets[i] = nil
		}
	}
}
