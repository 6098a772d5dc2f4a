package capture

import (
	"sort"
	"sync"
)

// Session is a bidirectional TCP session together with the tags content inspection attached to it.
type Session struct {
	id string

	mu   sync.Mutex
	tags map[string]struct{}
}

// NewSession creates an untagged session.
func NewSession(id string) *Session {
	return &Session{id: id, tags: make(map[string]struct{})}
}

// ID returns the session's flow identifier, client side first.
func (s *Session) ID() string { return s.id }

// AddTag adds tag unless the session already has it.
func (s *Session) AddTag(tag string) {
	s.mu.Lock()
	s.tags[tag] = struct{}{}
	s.mu.Unlock()
}

// Tags returns the session's tags sorted.
func (s *Session) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tt := make([]string, 0, len(s.tags))
	for t := range s.tags {
		tt = append(tt, t)
	}
	sort.Strings(tt)
	return tt
}
