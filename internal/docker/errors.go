package docker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// outputTail keeps error strings readable when a command produced pages of
// output. The full output stays on the error value.
const maxTail = 300

// ProvisionError reports a failure to bring up or tear down part of an
// environment: an image pull, a container start, or a remove. Provisioning
// failures are fatal to the run that needed the environment and are never
// retried.
type ProvisionError struct {
	Op     string // "pull", "start", or "remove"
	Target string // image reference or container name
	Err    error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Target, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// CommandError reports a command that ran to completion inside a container
// and exited non-zero. The combined output is preserved so the caller can
// decide whether the failure was expected, such as a repair that must
// reject a target policy older than its build environment.
type CommandError struct {
	Command  Command
	ExitCode int
	Output   []byte
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if tail := outputTail(e.Output); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func outputTail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) <= maxTail {
		return s
	}
	cut := s[len(s)-maxTail:]
	for len(cut) > 0 && !utf8.RuneStart(cut[0]) {
		cut = cut[1:]
	}
	return "... " + cut
}
