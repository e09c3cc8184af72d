package docker

import (
	"context"
	"log/slog"
)

// Environment is a running container acquired from a Manager. It stays
// valid until released.
type Environment struct {
	name     string
	client   *Client
	released bool
}

// Name returns the container name.
func (e *Environment) Name() string { return e.name }

// Exec runs cmd inside the environment. See Client.Exec for the error
// contract.
func (e *Environment) Exec(ctx context.Context, cmd Command) ([]byte, error) {
	return e.client.Exec(ctx, e.name, cmd)
}

// Manager acquires and releases environments. Acquire pulls the image
// fresh every time so runs always see the latest published build.
type Manager struct {
	client *Client
	logger *slog.Logger
	keep   bool
}

// NewManager wraps client. When keep is set, Release leaves containers
// running for post-mortem inspection instead of removing them.
func NewManager(client *Client, keep bool, logger *slog.Logger) *Manager {
	return &Manager{client: client, keep: keep, logger: logger}
}

// Acquire pulls spec.Image and starts a detached container from it. A
// failed start removes the half-created container before returning.
func (m *Manager) Acquire(ctx context.Context, spec StartSpec) (*Environment, error) {
	if err := m.client.Pull(ctx, spec.Image); err != nil {
		return nil, err
	}
	if err := m.client.Start(ctx, spec); err != nil {
		// The container can exist in a created-but-broken state.
		_ = m.client.Remove(ctx, spec.Name)
		return nil, err
	}
	return &Environment{name: spec.Name, client: m.client}, nil
}

// Release force-removes the environment's container. It is idempotent,
// accepts nil, and never returns an error: teardown failures are logged
// and swallowed so Release is safe to defer on every exit path.
func (m *Manager) Release(ctx context.Context, env *Environment) {
	if env == nil || env.released {
		return
	}
	env.released = true
	if m.keep {
		m.logger.Info("keeping environment", "container", env.name)
		return
	}
	if err := m.client.Remove(ctx, env.name); err != nil {
		m.logger.Warn("release environment", "container", env.name, "error", err)
	}
}
