// Package wheel models wheel filenames as structured values.
//
// A wheel filename has five dash-separated fields:
//
//	<distribution>-<version>-<python tag>-<abi tag>-<platform tag>.whl
//
// The harness never unpacks distribution metadata; the filename itself is
// the contract it asserts on. Repair rewrites exactly one field, the
// platform tag, so expected post-repair names are derived with
// WithPlatform rather than rebuilt from scratch.
package wheel

import (
	"fmt"
	"strings"
)

// Name is the parsed form of a wheel filename.
type Name struct {
	Distribution string
	Version      string
	PythonTag    string
	ABITag       string
	PlatformTag  string
}

// ParseName parses a wheel filename into its five fields.
// The distribution field is allowed to contain dashes; the four trailing
// fields are anchored from the right, matching how wheel names are split
// in practice (tags never contain dashes, distributions occasionally do).
func ParseName(filename string) (Name, error) {
	base, ok := strings.CutSuffix(filename, ".whl")
	if !ok {
		return Name{}, fmt.Errorf("wheel name %q: missing .whl suffix", filename)
	}

	parts := strings.Split(base, "-")
	if len(parts) < 5 {
		return Name{}, fmt.Errorf("wheel name %q: want 5 dash-separated fields, got %d", filename, len(parts))
	}

	n := Name{
		Distribution: strings.Join(parts[:len(parts)-4], "-"),
		Version:      parts[len(parts)-4],
		PythonTag:    parts[len(parts)-3],
		ABITag:       parts[len(parts)-2],
		PlatformTag:  parts[len(parts)-1],
	}
	for _, field := range []string{n.Distribution, n.Version, n.PythonTag, n.ABITag, n.PlatformTag} {
		if field == "" {
			return Name{}, fmt.Errorf("wheel name %q: empty field", filename)
		}
	}
	return n, nil
}

// Filename renders the name back to its filename form.
func (n Name) Filename() string {
	return fmt.Sprintf("%s-%s-%s-%s-%s.whl",
		n.Distribution, n.Version, n.PythonTag, n.ABITag, n.PlatformTag)
}

// String returns the filename form.
func (n Name) String() string {
	return n.Filename()
}

// WithPlatform returns a copy of the name with only the platform tag
// replaced. All other fields are preserved verbatim.
func (n Name) WithPlatform(tag string) Name {
	n.PlatformTag = tag
	return n
}

// Tagged reports whether the platform tag mentions the given policy name.
// Repaired wheels carry tags like "manylinux1_x86_64"; freshly built ones
// carry "linux_x86_64" or "any".
func (n Name) Tagged(policyName string) bool {
	return strings.Contains(n.PlatformTag, policyName)
}
