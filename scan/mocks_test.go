package scan

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

type mockRule struct {
	id      string
	tags    []string
	pattern string
}

func (r *mockRule) Identifier() string { return r.id }
func (r *mockRule) Tags() []string     { return r.tags }

type mockRuleSet struct {
	rules   []*mockRule
	scanErr error
	panics  bool
	scanned [][]byte
	closed  int
}

func (rs *mockRuleSet) Scan(data []byte, onMatch MatchHandler) error {
	if rs.panics {
		panic("engine exploded")
	}

	rs.scanned = append(rs.scanned, append([]byte(nil), data...))
	for _, r := range rs.rules {
		if bytes.Contains(data, []byte(r.pattern)) {
			onMatch(r)
		}
	}
	return rs.scanErr
}

func (rs *mockRuleSet) Close() { rs.closed++ }

type mockEngine struct {
	ruleSets map[string]*mockRuleSet
	compiled []string
	closed   int
}

func newMockEngine() *mockEngine {
	return &mockEngine{ruleSets: make(map[string]*mockRuleSet)}
}

func (e *mockEngine) Compile(filename string) (RuleSet, error) {
	if filename == "" {
		return nil, nil
	}

	e.compiled = append(e.compiled, filename)
	switch filename {
	case "bad.yar":
		return nil, fmt.Errorf("bad.yar(3): syntax error: %w", ErrRuleCompile)
	case "broken.yar":
		return nil, errors.New("out of memory")
	}

	rs, ok := e.ruleSets[filename]
	if !ok {
		return nil, fmt.Errorf("open %v: %w", filename, ErrRuleFileNotFound)
	}
	return rs, nil
}

func (e *mockEngine) Close() { e.closed++ }

type mockConfig struct {
	ruleFile      string
	emailRuleFile string
	legacy        bool
}

func (c *mockConfig) RuleFile() string              { return c.ruleFile }
func (c *mockConfig) EmailRuleFile() string         { return c.emailRuleFile }
func (c *mockConfig) LegacyFragmentAlignment() bool { return c.legacy }

type mockSession struct {
	id   string
	tags map[string]bool
	adds int
}

func newMockSession() *mockSession {
	return &mockSession{id: "session1", tags: make(map[string]bool)}
}

func (s *mockSession) ID() string { return s.id }
func (s *mockSession) AddTag(tag string) {
	s.adds++
	s.tags[tag] = true
}

func (s *mockSession) tagList() []string {
	tt := []string{}
	for t := range s.tags {
		tt = append(tt, t)
	}
	sort.Strings(tt)
	return tt
}

type mockMatch struct {
	sessionID string
	category  Category
	rule      string
	tags      []string
}

type mockResultsLogger struct {
	matches []mockMatch
	errors  []error
}

func (l *mockResultsLogger) RuleMatched(session Session, category Category, rule string, tags []string) {
	l.matches = append(l.matches, mockMatch{sessionID: session.ID(), category: category, rule: rule, tags: tags})
}

func (l *mockResultsLogger) ScanError(session Session, category Category, err error) {
	l.errors = append(l.errors, err)
}
