package harness

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// AssertionError is a test failure: an expectation the run's observed
// output or artifacts did not meet. It is distinct from a CommandError
// (a command exiting non-zero) and a ProvisionError (the daemon failing
// the harness); only an AssertionError means the tool under test
// misbehaved while every command ran.
type AssertionError struct {
	Name     string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: expected %q, got %q", e.Name, e.Expected, e.Actual)
}

// flatten normalizes tool output for substring matching: NFC first so
// composed and decomposed spellings compare equal, then every newline
// becomes a single space so wrapped lines match single-line expectations.
func flatten(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", " ")
}

// outputContains reports whether want occurs in got once both sides are
// flattened.
func outputContains(got, want string) bool {
	return strings.Contains(flatten(got), flatten(want))
}

// literalEquals compares command output against an expected literal,
// ignoring only leading and trailing whitespace.
func literalEquals(got, want string) bool {
	return strings.TrimSpace(got) == want
}
