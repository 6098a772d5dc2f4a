package yara

import (
	"yarascan/scan"

	goyara "github.com/hillu/go-yara/v4"
)

type ruleSet struct {
	rules *goyara.Rules
}

// Scan runs every rule against data. go-yara creates a new scanner per call, so concurrent scans are safe.
func (rs *ruleSet) Scan(data []byte, onMatch scan.MatchHandler) error {
	return rs.rules.ScanMem(data, 0, 0, &matchCallback{onMatch: onMatch})
}

func (rs *ruleSet) Close() {
	if rs.rules != nil {
		rs.rules.Destroy()
		rs.rules = nil
	}
}

// matchCallback implements goyara.ScanCallbackMatch.
type matchCallback struct {
	onMatch scan.MatchHandler
}

// RuleMatching never aborts: a payload can match several rules and all of them must be reported.
func (c *matchCallback) RuleMatching(_ *goyara.ScanContext, r *goyara.Rule) (abort bool, err error) {
	c.onMatch(r)
	return false, nil
}
