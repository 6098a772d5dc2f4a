package scan

import (
	"fmt"

	"github.com/rs/zerolog"
)

// TagPrefix is the namespace of every tag the Scanner adds to a session.
const TagPrefix = "yara:"

// Tags are truncated to fit the capture engine's fixed size tag buffer, including its terminator.
const maxTagLen = 255

// matchTagger turns the rules matched during one scan call into session tags.
type matchTagger struct {
	logger        zerolog.Logger
	session       Session
	category      Category
	resultsLogger ResultsLogger
}

func (m *matchTagger) onMatch(rule MatchedRule) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Warn().Str("panic", fmt.Sprint(r)).Msg("Skipping tags of matched rule after failure")
		}
	}()

	id := rule.Identifier()
	m.session.AddTag(makeTag(id))

	labels := rule.Tags()
	for _, label := range labels {
		if label == "" {
			continue
		}
		m.session.AddTag(makeTag(label))
	}

	if m.resultsLogger != nil {
		m.resultsLogger.RuleMatched(m.session, m.category, id, labels)
	}
}

func makeTag(name string) string {
	tag := TagPrefix + name
	if len(tag) > maxTagLen {
		tag = tag[:maxTagLen]
	}
	return tag
}
