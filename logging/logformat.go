package logging

import "time"

const (
	operationName     = "ContentInspection"
	matchCategory     = "YaraMatch"
	scanErrorCategory = "YaraScanError"
)

type matchLogEntry struct {
	Time          time.Time          `json:"time"`
	OperationName string             `json:"operationName"`
	Category      string             `json:"category"`
	Properties    matchLogProperties `json:"properties"`
}

type matchLogProperties struct {
	SessionID    string   `json:"sessionId"`
	RuleCategory string   `json:"ruleCategory"`
	RuleID       string   `json:"ruleId,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Message      string   `json:"message"`
}

func newMatchLogEntry(now time.Time, sessionID string, ruleCategory string, rule string, tags []string) *matchLogEntry {
	return &matchLogEntry{
		Time:          now,
		OperationName: operationName,
		Category:      matchCategory,
		Properties: matchLogProperties{
			SessionID:    sessionID,
			RuleCategory: ruleCategory,
			RuleID:       rule,
			Tags:         tags,
			Message:      "Content matched rule " + rule,
		},
	}
}

func newScanErrorLogEntry(now time.Time, sessionID string, ruleCategory string, err error) *matchLogEntry {
	return &matchLogEntry{
		Time:          now,
		OperationName: operationName,
		Category:      scanErrorCategory,
		Properties: matchLogProperties{
			SessionID:    sessionID,
			RuleCategory: ruleCategory,
			Message:      err.Error(),
		},
	}
}
