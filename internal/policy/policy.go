// Package policy defines the compliance policies a repaired wheel can be
// certified against and the total order between them.
//
// Policies are immutable once the registry is built. Priority establishes
// the order: a lower priority means an older, stricter symbol baseline.
// Repairing a wheel built under policy Q while targeting any policy with a
// strictly lower priority than Q must be rejected by the tool under test,
// which is what the harness's cross-policy matrix verifies.
package policy

import (
	"fmt"
	"sort"
	"strings"
)

// platformSuffix is appended to a policy name to form its platform tag.
const platformSuffix = "_x86_64"

// pathDirs is the PATH layout inside a producer environment: the
// interpreter prefix first, then the policy's compiler toolset, then the
// standard system directories.
var pathDirs = []string{
	"/opt/python/%s/bin",
	"/opt/rh/%s/root/usr/bin",
	"/usr/local/sbin",
	"/usr/local/bin",
	"/usr/sbin",
	"/usr/bin",
	"/sbin",
	"/bin",
}

// Policy is one compliance profile: the image that provides its build
// toolchain, its place in the strictness order, and the devtoolset the
// image ships for it.
type Policy struct {
	Name       string
	Image      string
	Priority   int
	DevToolset string
}

// PlatformTag returns the platform tag wheels repaired against this
// policy carry, e.g. "manylinux1_x86_64".
func (p Policy) PlatformTag() string {
	return p.Name + platformSuffix
}

// Registry is a pure lookup table over an enumerated policy set.
type Registry struct {
	ordered   []Policy
	byName    map[string]Policy
	pythonABI string
}

// NewRegistry builds a registry from an enumerated policy list.
// The list must be non-empty, names must be unique, and priorities must be
// unique: a priority tie would make "older than" ambiguous, so ties are
// rejected outright instead of being broken by a secondary key.
func NewRegistry(policies []Policy, pythonABI string) (*Registry, error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("policy registry requires at least one policy")
	}

	byName := make(map[string]Policy, len(policies))
	byPriority := make(map[int]string, len(policies))
	for _, p := range policies {
		if p.Name == "" {
			return nil, fmt.Errorf("policy with empty name")
		}
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate policy name %q", p.Name)
		}
		if other, dup := byPriority[p.Priority]; dup {
			return nil, fmt.Errorf("policies %q and %q share priority %d", other, p.Name, p.Priority)
		}
		byName[p.Name] = p
		byPriority[p.Priority] = p.Name
	}

	ordered := make([]Policy, len(policies))
	copy(ordered, policies)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	return &Registry{ordered: ordered, byName: byName, pythonABI: pythonABI}, nil
}

// Lookup returns the named policy.
func (r *Registry) Lookup(name string) (Policy, error) {
	p, ok := r.byName[name]
	if !ok {
		return Policy{}, fmt.Errorf("unknown policy %q", name)
	}
	return p, nil
}

// ImageFor returns the environment image for the named policy.
func (r *Registry) ImageFor(name string) (string, error) {
	p, err := r.Lookup(name)
	if err != nil {
		return "", err
	}
	return p.Image, nil
}

// PriorityOf returns the named policy's priority.
func (r *Registry) PriorityOf(name string) (int, error) {
	p, err := r.Lookup(name)
	if err != nil {
		return 0, err
	}
	return p.Priority, nil
}

// EnvOverlayFor returns the environment variables a producer environment
// for the named policy runs with. The overlay is a PATH that puts the
// policy's devtoolset compilers ahead of the system ones.
func (r *Registry) EnvOverlayFor(name string) (map[string]string, error) {
	p, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}

	dirs := make([]string, len(pathDirs))
	dirs[0] = fmt.Sprintf(pathDirs[0], r.pythonABI)
	dirs[1] = fmt.Sprintf(pathDirs[1], p.DevToolset)
	copy(dirs[2:], pathDirs[2:])

	return map[string]string{"PATH": strings.Join(dirs, ":")}, nil
}

// OlderThan returns the policies with a strictly lower priority than the
// named one, in ascending priority order. These are the targets the
// cross-policy matrix expects the repair tool to reject.
func (r *Registry) OlderThan(name string) ([]Policy, error) {
	prio, err := r.PriorityOf(name)
	if err != nil {
		return nil, err
	}

	var older []Policy
	for _, candidate := range r.ordered {
		if candidate.Priority < prio {
			older = append(older, candidate)
		}
	}
	return older, nil
}

// All returns every policy in ascending priority order.
func (r *Registry) All() []Policy {
	out := make([]Policy, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns every policy name in ascending priority order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.ordered))
	for i, p := range r.ordered {
		names[i] = p.Name
	}
	return names
}

// Oldest returns the lowest-priority policy. Pure wheels are reported
// consistent with this policy's tag no matter which producer built them.
func (r *Registry) Oldest() Policy {
	return r.ordered[0]
}
