package yara

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

const testRules = `
rule evil_pattern : malware trojan
{
	strings:
		$a = "evil"
	condition:
		$a
}

rule http_anomaly
{
	strings:
		$v = "HTTP/9."
	condition:
		$v at 0
}

rule never_matches : unused
{
	strings:
		$x = { DE AD BE EF }
	condition:
		$x
}
`

func writeRuleFile(t *testing.T, name string, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write rule file: %v", err)
	}
	return filename
}

type mockSession struct {
	tags map[string]bool
}

func newMockSession() *mockSession { return &mockSession{tags: make(map[string]bool)} }

func (s *mockSession) ID() string        { return "10.0.0.1:1234-10.0.0.2:80" }
func (s *mockSession) AddTag(tag string) { s.tags[tag] = true }

func (s *mockSession) tagList() []string {
	tt := []string{}
	for t := range s.tags {
		tt = append(tt, t)
	}
	sort.Strings(tt)
	return tt
}

type mockConfig struct {
	ruleFile      string
	emailRuleFile string
}

func (c *mockConfig) RuleFile() string              { return c.ruleFile }
func (c *mockConfig) EmailRuleFile() string         { return c.emailRuleFile }
func (c *mockConfig) LegacyFragmentAlignment() bool { return false }

type mockStore struct {
	entries map[string][]byte
	loads   int
	saves   int
}

func newMockStore() *mockStore { return &mockStore{entries: make(map[string][]byte)} }

func (m *mockStore) Load(id string) []byte {
	m.loads++
	return m.entries[id]
}

func (m *mockStore) Save(id string, data []byte) error {
	m.saves++
	m.entries[id] = data
	return nil
}
