package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ExecRule scripts one in-container command. The first rule whose Match
// substring occurs in the joined exec argv supplies the output and exit
// code, after dropping its Files into the io directory the way a real
// build or repair would.
type ExecRule struct {
	Match string
	Out   string
	Code  int
	Files map[string][]byte
}

// ScriptedDaemon stands in for a container client binary. It parses the
// invocations a client makes: run captures the io bind mount, exec
// consults the rule table, pull and rm acknowledge. Unmatched execs exit
// 0 silently, like the package installs and bootstrap pips a test does
// not care about.
type ScriptedDaemon struct {
	T     *testing.T
	Rules []ExecRule

	// FailPull names an image whose pull fails, for provisioning-error
	// paths.
	FailPull string

	ioDir string
	calls []string
}

func (d *ScriptedDaemon) Run(ctx context.Context, args ...string) ([]byte, int, error) {
	joined := strings.Join(args, " ")
	d.calls = append(d.calls, joined)

	switch args[0] {
	case "pull":
		if d.FailPull != "" && args[1] == d.FailPull {
			return []byte("manifest unknown"), 1, nil
		}
		return nil, 0, nil
	case "rm":
		return nil, 0, nil
	case "run":
		for i, arg := range args {
			if arg == "-v" && strings.HasSuffix(args[i+1], ":/io") {
				d.ioDir = strings.TrimSuffix(args[i+1], ":/io")
			}
		}
		return []byte("0123456789ab\n"), 0, nil
	case "exec":
		for _, rule := range d.Rules {
			if !strings.Contains(joined, rule.Match) {
				continue
			}
			for name, data := range rule.Files {
				if err := os.WriteFile(filepath.Join(d.ioDir, name), data, 0o644); err != nil {
					d.T.Fatalf("drop %s into io dir: %v", name, err)
				}
			}
			return []byte(rule.Out), rule.Code, nil
		}
		return nil, 0, nil
	}
	d.T.Fatalf("unexpected client invocation: %s", joined)
	return nil, 0, nil
}

// Calls lists every invocation, joined argv per line, in order.
func (d *ScriptedDaemon) Calls() []string { return d.calls }

// Execs counts exec invocations whose joined argv contains substr.
func (d *ScriptedDaemon) Execs(substr string) int {
	n := 0
	for _, call := range d.calls {
		if strings.HasPrefix(call, "exec ") && strings.Contains(call, substr) {
			n++
		}
	}
	return n
}

// Started lists container names in start order.
func (d *ScriptedDaemon) Started() []string {
	var names []string
	for _, call := range d.calls {
		if strings.HasPrefix(call, "run -d --name ") {
			names = append(names, strings.Fields(call)[3])
		}
	}
	return names
}

// IODir returns the host directory the last started container mounted at
// /io.
func (d *ScriptedDaemon) IODir() string { return d.ioDir }
