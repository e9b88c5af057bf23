// Package verdict normalizes captured program output and decides pass/fail.
package verdict

import "strings"

// TimeoutMessage is reported instead of partial output when a job exceeds its deadline.
const TimeoutMessage = "Execution timed out"

// OutputLimitMessage is reported when a program writes more than the capture limit.
const OutputLimitMessage = "Output limit exceeded"

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Normalize converts CRLF and lone CR line endings to LF and trims surrounding whitespace.
func Normalize(s string) string {
	return strings.TrimSpace(lineEndings.Replace(s))
}

// Outcome is the part of an execution result the validator looks at.
type Outcome struct {
	Output   string
	Error    bool
	TimedOut bool
}

// Validate reports whether the outcome passes. A failed or timed out run never
// passes; without an expected output a clean run passes.
func Validate(o Outcome, expected *string) bool {
	if o.Error || o.TimedOut {
		return false
	}
	if expected == nil {
		return true
	}
	return Normalize(o.Output) == Normalize(*expected)
}
