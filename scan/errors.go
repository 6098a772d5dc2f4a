package scan

import "errors"

// ErrRuleFileNotFound is returned when a configured rule file cannot be opened.
var ErrRuleFileNotFound = errors.New("rule file could not be opened")

// ErrRuleCompile is returned when a rule file fails to compile.
var ErrRuleCompile = errors.New("rule file failed to compile")

// Process exit codes for failed initialization.
const (
	ExitOK               = 0
	ExitRuleFileNotFound = 1
	ExitRuleCompile      = 2
	ExitInitFailure      = 3
)

// ExitCode maps an error returned by NewScanner to the process exit code the entry point should use.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrRuleFileNotFound):
		return ExitRuleFileNotFound
	case errors.Is(err, ErrRuleCompile):
		return ExitRuleCompile
	}
	return ExitInitFailure
}
