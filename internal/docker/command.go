package docker

import (
	"fmt"
	"sort"
	"strings"
)

// Command describes one process to run inside a container. Exactly one of
// Argv and Shell must be set: Argv runs the process directly with no shell
// involved, Shell runs the string under "bash -c". Env entries are overlaid
// onto the container's environment for this command only, and Dir sets the
// working directory. Commands are plain data; composing one never touches
// a container.
type Command struct {
	Argv  []string
	Shell string
	Env   map[string]string
	Dir   string
}

// Validate rejects commands that are not exactly one of argv-form or
// shell-form.
func (c Command) Validate() error {
	if len(c.Argv) == 0 && c.Shell == "" {
		return fmt.Errorf("command has neither argv nor shell")
	}
	if len(c.Argv) > 0 && c.Shell != "" {
		return fmt.Errorf("command has both argv and shell")
	}
	for i, arg := range c.Argv {
		if arg == "" {
			return fmt.Errorf("command argv[%d] is empty", i)
		}
	}
	return nil
}

// String renders the command for logs and error messages. The rendering is
// informational only; it is never handed back to a shell.
func (c Command) String() string {
	var b strings.Builder
	for _, k := range sortedKeys(c.Env) {
		fmt.Fprintf(&b, "%s=%s ", k, c.Env[k])
	}
	if c.Shell != "" {
		b.WriteString(c.Shell)
	} else {
		b.WriteString(strings.Join(c.Argv, " "))
	}
	if c.Dir != "" {
		fmt.Fprintf(&b, " (in %s)", c.Dir)
	}
	return b.String()
}

// execArgs renders the client-CLI argument vector that runs this command
// inside the named container. Env keys are emitted in sorted order so the
// rendering is deterministic.
func (c Command) execArgs(container string) []string {
	args := []string{"exec"}
	if c.Dir != "" {
		args = append(args, "-w", c.Dir)
	}
	for _, k := range sortedKeys(c.Env) {
		args = append(args, "-e", k+"="+c.Env[k])
	}
	args = append(args, container)
	if c.Shell != "" {
		args = append(args, "bash", "-c", c.Shell)
	} else {
		args = append(args, c.Argv...)
	}
	return args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
