package scan

// Category selects which rule set a scan runs against.
type Category int

const (
	// General is the rule set applied to all session payload.
	General Category = iota

	// Email is the rule set applied to email content.
	Email
)

func (c Category) String() string {
	switch c {
	case General:
		return "general"
	case Email:
		return "email"
	}
	return "unknown"
}

// Session is the network session that owns the scanned payload. It is owned by the capture pipeline.
type Session interface {
	ID() string

	// AddTag appends tag to the session's tag set. Adding a tag that is already present has no effect.
	AddTag(tag string)
}

// MatchedRule is a read-only view of a rule that matched. It is only valid during the match callback.
type MatchedRule interface {
	Identifier() string
	Tags() []string
}

// MatchHandler is called once for every rule that matched during a scan.
type MatchHandler func(rule MatchedRule)

// RuleSet is an immutable compiled collection of rules. Scan must be safe for concurrent use.
type RuleSet interface {
	// Scan evaluates every rule in the set against data, calling onMatch for each matching rule.
	Scan(data []byte, onMatch MatchHandler) error
	Close()
}

// Engine compiles rule files into rule sets for a specific pattern matching library.
type Engine interface {
	// Compile compiles the given rule file. An empty filename gives a nil RuleSet and no error.
	Compile(filename string) (RuleSet, error)
	Close()
}

// Config is the part of the process configuration the Scanner needs.
type Config interface {
	RuleFile() string
	EmailRuleFile() string
	LegacyFragmentAlignment() bool
}

// ResultsLogger is where the Scanner writes matches and runtime scan failures.
type ResultsLogger interface {
	RuleMatched(session Session, category Category, rule string, tags []string)
	ScanError(session Session, category Category, err error)
}
