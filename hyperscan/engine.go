// Package hyperscan implements scan.Engine for YAML signature files compiled into a Hyperscan block database.
package hyperscan

import (
	"fmt"
	"os"
	"strconv"

	"yarascan/cache"
	"yarascan/scan"

	hs "github.com/flier/gohs/hyperscan"
	"github.com/rs/zerolog"
)

const cacheFormat = "hyperscan-signatures-1"

type engineImpl struct {
	logger zerolog.Logger
	cache  cache.Store
}

// NewEngine creates a scan.Engine backed by Hyperscan. The cache may be nil.
func NewEngine(logger zerolog.Logger, c cache.Store) scan.Engine {
	return &engineImpl{logger: logger, cache: c}
}

func (e *engineImpl) Compile(filename string) (rs scan.RuleSet, err error) {
	if filename == "" {
		return
	}

	src, err := os.ReadFile(filename)
	if err != nil {
		e.logger.Error().Err(err).Str("file", filename).Msg("Hyperscan engine could not open signature file")
		err = fmt.Errorf("%w: %v", scan.ErrRuleFileNotFound, err)
		return
	}

	sigs, diags := parseSignatures(src)
	if len(diags) > 0 {
		e.reportDiagnostics(filename, diags)
		err = fmt.Errorf("%w: %v: %d error(s), first: line %d: %v", scan.ErrRuleCompile, filename, len(diags), diags[0].line, diags[0].msg)
		return
	}

	r := &ruleSet{sigs: sigs}
	patterns := []*hs.Pattern{}
	for i, s := range sigs {
		for _, expr := range s.Patterns {
			p := hs.NewPattern(expr, s.flags())
			p.Id = len(patterns)
			patterns = append(patterns, p)
			r.patternSig = append(r.patternSig, i)
		}
	}

	if len(patterns) == 0 {
		e.logger.Warn().Str("file", filename).Msg("Signature file contains no rules")
		rs = r
		return
	}

	cacheID := e.cacheID(patterns)
	db := e.loadFromCache(cacheID)
	if db == nil {
		db, err = hs.NewBlockDatabase(patterns...)
		if err != nil {
			diags = e.locateCompileErrors(sigs, patterns, r.patternSig, err)
			e.reportDiagnostics(filename, diags)
			err = fmt.Errorf("%w: %v: %v", scan.ErrRuleCompile, filename, err)
			return
		}
		e.saveToCache(cacheID, db)
	} else {
		e.logger.Info().Str("file", filename).Str("cacheID", cacheID).Msg("Loaded Hyperscan database from cache")
	}

	err = r.init(db)
	if err != nil {
		db.Close()
		err = fmt.Errorf("failed to allocate Hyperscan scratch space for %v: %v", filename, err)
		return
	}

	rs = r
	return
}

// Close is a no-op: every Hyperscan resource belongs to a rule set.
func (e *engineImpl) Close() {}

// locateCompileErrors compiles patterns one at a time to find which ones made the database compilation fail.
func (e *engineImpl) locateCompileErrors(sigs []*signature, patterns []*hs.Pattern, patternSig []int, dbErr error) (diags []diagnostic) {
	for i, p := range patterns {
		db, err := hs.NewBlockDatabase(p)
		if err != nil {
			s := sigs[patternSig[i]]
			diags = append(diags, diagnostic{line: s.line, msg: fmt.Sprintf("rule %v: pattern %q: %v", s.Name, p.Expression, err)})
			continue
		}
		db.Close()
	}

	if len(diags) == 0 {
		diags = append(diags, diagnostic{msg: dbErr.Error()})
	}
	return
}

func (e *engineImpl) reportDiagnostics(filename string, diags []diagnostic) {
	for _, d := range diags {
		e.logger.Error().Str("severity", "error").Str("file", filename).Int("line", d.line).Msg(d.msg)
	}
}

func (e *engineImpl) cacheID(patterns []*hs.Pattern) string {
	parts := [][]byte{[]byte(cacheFormat)}
	for _, p := range patterns {
		parts = append(parts, []byte(strconv.Itoa(p.Id)), []byte(p.Expression), []byte(strconv.Itoa(int(p.Flags))))
	}
	return cache.ID(parts...)
}

func (e *engineImpl) loadFromCache(cacheID string) hs.BlockDatabase {
	if e.cache == nil {
		return nil
	}

	bb := e.cache.Load(cacheID)
	if bb == nil {
		return nil
	}

	db, err := hs.UnmarshalBlockDatabase(bb)
	if err != nil {
		e.logger.Warn().Err(err).Str("cacheID", cacheID).Msg("Ignoring unreadable Hyperscan database cache entry")
		return nil
	}

	return db
}

func (e *engineImpl) saveToCache(cacheID string, db hs.BlockDatabase) {
	if e.cache == nil {
		return
	}

	bb, err := db.Marshal()
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to serialize Hyperscan database")
		return
	}

	if err := e.cache.Save(cacheID, bb); err != nil {
		e.logger.Warn().Err(err).Str("cacheID", cacheID).Msg("Failed to write Hyperscan database cache entry")
	}
}
