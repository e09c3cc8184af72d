// Package docker drives a container CLI such as docker or podman. All
// operations shell out to the client binary; nothing in this package talks
// to a daemon API directly. The package is deliberately ignorant of wheels
// and policies: it starts idle containers, runs commands in them, and
// removes them.
package docker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// Runner executes one container-client invocation and reports its combined
// output and exit code. The error return is reserved for failing to run
// the client at all; a non-zero exit from the client is not a Runner error.
type Runner interface {
	Run(ctx context.Context, args ...string) (output []byte, exitCode int, err error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, args ...string) ([]byte, int, error)

func (f RunnerFunc) Run(ctx context.Context, args ...string) ([]byte, int, error) {
	return f(ctx, args...)
}

type execRunner struct {
	binary string
}

func (r execRunner) Run(ctx context.Context, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), nil
		}
		return out, 0, fmt.Errorf("run %s: %w", r.binary, err)
	}
	return out, 0, nil
}

// Client wraps a container client binary.
type Client struct {
	runner Runner
	logger *slog.Logger
}

// NewClient builds a client that shells out to the named binary.
func NewClient(binary string, logger *slog.Logger) *Client {
	return &Client{runner: execRunner{binary: binary}, logger: logger}
}

// NewClientWithRunner builds a client on a caller-supplied runner. Tests
// use this to script container behavior without a daemon.
func NewClientWithRunner(r Runner, logger *slog.Logger) *Client {
	return &Client{runner: r, logger: logger}
}

// Pull fetches the latest published build of image.
func (c *Client) Pull(ctx context.Context, image string) error {
	c.logger.Info("pulling image", "image", image)
	out, code, err := c.runner.Run(ctx, "pull", image)
	if err != nil {
		return &ProvisionError{Op: "pull", Target: image, Err: err}
	}
	if code != 0 {
		return &ProvisionError{Op: "pull", Target: image, Err: exitFailure(code, out)}
	}
	return nil
}

// StartSpec names a container and the image, mounts, and environment it
// starts with.
type StartSpec struct {
	Name   string
	Image  string
	Mounts []Mount
	Env    map[string]string
}

// Mount binds a host directory into the container read-write.
type Mount struct {
	Host      string
	Container string
}

// Start runs a detached container that idles until removed, giving
// follow-up Exec calls a stable target.
func (c *Client) Start(ctx context.Context, spec StartSpec) error {
	args := []string{"run", "-d", "--name", spec.Name}
	for _, m := range spec.Mounts {
		args = append(args, "-v", m.Host+":"+m.Container)
	}
	for _, k := range sortedKeys(spec.Env) {
		args = append(args, "-e", k+"="+spec.Env[k])
	}
	args = append(args, spec.Image, "sleep", "10000")

	c.logger.Info("starting container", "name", spec.Name, "image", spec.Image)
	out, code, err := c.runner.Run(ctx, args...)
	if err != nil {
		return &ProvisionError{Op: "start", Target: spec.Name, Err: err}
	}
	if code != 0 {
		return &ProvisionError{Op: "start", Target: spec.Name, Err: exitFailure(code, out)}
	}
	return nil
}

// Exec runs cmd inside container and returns its combined output, decoded
// as strict UTF-8. A non-zero exit is reported as a *CommandError carrying
// the same output; the caller decides whether that failure was expected.
// Exec applies no timeout and never retries.
func (c *Client) Exec(ctx context.Context, container string, cmd Command) ([]byte, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	c.logger.Info("exec", "container", container, "command", cmd.String())
	raw, code, err := c.runner.Run(ctx, cmd.execArgs(container)...)
	if err != nil {
		return nil, fmt.Errorf("exec in %s: %w", container, err)
	}
	out, _, err := transform.Bytes(encoding.UTF8Validator, raw)
	if err != nil {
		return nil, fmt.Errorf("exec in %s: decode output: %w", container, err)
	}
	if code != 0 {
		return out, &CommandError{Command: cmd, ExitCode: code, Output: out}
	}
	return out, nil
}

// Remove force-removes container. Removing a container that does not
// exist, or whose removal another caller already started, is not an
// error, so teardown can run unconditionally on every exit path.
func (c *Client) Remove(ctx context.Context, container string) error {
	out, code, err := c.runner.Run(ctx, "rm", "-f", container)
	if err != nil {
		return &ProvisionError{Op: "remove", Target: container, Err: err}
	}
	if code != 0 {
		s := string(out)
		if strings.Contains(s, "No such container") ||
			strings.Contains(s, "is already in progress") {
			return nil
		}
		return &ProvisionError{Op: "remove", Target: container, Err: exitFailure(code, out)}
	}
	return nil
}

func exitFailure(code int, out []byte) error {
	if tail := outputTail(out); tail != "" {
		return fmt.Errorf("exit status %d: %s", code, tail)
	}
	return fmt.Errorf("exit status %d", code)
}
