// Package config loads and validates the harness configuration.
//
// Configuration is a single YAML file. Loading happens in three passes:
// the raw bytes are checked against an embedded CUE schema (shape and type
// errors come back with file positions), then strictly decoded (unknown
// fields are rejected), then checked by coded validation rules that the
// schema cannot express, such as priority uniqueness across the policy
// list. The result is immutable and handed to constructors; nothing in
// this package is consulted again after startup.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/wheelwright/internal/policy"
)

// Config is the harness configuration.
type Config struct {
	// CacheRoot is the host directory holding cached build artifacts,
	// laid out as <cache_root>/<policy>/<filename>.
	CacheRoot string `yaml:"cache_root,omitempty"`

	// Journal is the path of the SQLite run journal.
	Journal string `yaml:"journal,omitempty"`

	// Docker is the container client binary to drive.
	Docker string `yaml:"docker,omitempty"`

	// PythonABI selects the interpreter prefix inside producer
	// environments (/opt/python/<python_abi>/bin).
	PythonABI string `yaml:"python_abi,omitempty"`

	// KeepEnvironments leaves containers and io directories in place
	// after a run, for post-mortem inspection.
	KeepEnvironments bool `yaml:"keep_environments,omitempty"`

	// Tool describes the repair tool under test.
	Tool Tool `yaml:"tool,omitempty"`

	// Consumer describes the generic runtime image used for
	// install-and-execute checks.
	Consumer Consumer `yaml:"consumer,omitempty"`

	// Policies enumerates the compliance policies. When omitted, the
	// stock manylinux table applies.
	Policies []Policy `yaml:"policies,omitempty"`
}

// Tool identifies the repair tool under test.
type Tool struct {
	// Command is the tool's CLI name inside the producer environment.
	Command string `yaml:"command,omitempty"`

	// Source is the host path of the tool's checkout. When set, the
	// checkout is mounted into every environment and installed into the
	// producer before scenarios run. The checkout also provides the
	// integration fixtures scenarios build from.
	Source string `yaml:"source,omitempty"`
}

// Consumer configures the install-check environment.
type Consumer struct {
	Image string `yaml:"image,omitempty"`
}

// Policy is one row of the compliance-policy table.
type Policy struct {
	Name       string `yaml:"name"`
	Image      string `yaml:"image"`
	Priority   int    `yaml:"priority"`
	DevToolset string `yaml:"devtoolset"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		CacheRoot: "~/.cache/wheelwright",
		Journal:   "~/.cache/wheelwright/journal.db",
		Docker:    "docker",
		PythonABI: "cp35-cp35m",
		Tool:      Tool{Command: "auditwheel"},
		Consumer:  Consumer{Image: "python:3.5"},
		Policies: []Policy{
			{Name: "manylinux1", Image: "quay.io/pypa/manylinux1_x86_64", Priority: 10, DevToolset: "devtoolset-2"},
			{Name: "manylinux2010", Image: "quay.io/pypa/manylinux2010_x86_64", Priority: 20, DevToolset: "devtoolset-8"},
		},
	}
}

// Load reads, validates, and decodes the configuration file at path.
// An empty path yields the defaults. Fields the file omits fall back to
// their default values; a non-empty policies list replaces the stock
// table wholesale.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Code: ErrRead, Message: fmt.Sprintf("read config: %v", err)}
		}
		// An empty file carries no overrides.
		if len(bytes.TrimSpace(data)) > 0 {
			if err := validateSchema(path, data); err != nil {
				return nil, err
			}

			var loaded Config
			decoder := yaml.NewDecoder(bytes.NewReader(data))
			decoder.KnownFields(true)
			if err := decoder.Decode(&loaded); err != nil {
				return nil, &Error{Code: ErrParse, Message: fmt.Sprintf("parse config: %v", err)}
			}
			merge(cfg, &loaded)
		}
	}

	if errs := Validate(cfg); len(errs) > 0 {
		return nil, errs[0]
	}

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// merge overlays the fields the file actually set onto the defaults.
func merge(dst, src *Config) {
	if src.CacheRoot != "" {
		dst.CacheRoot = src.CacheRoot
	}
	if src.Journal != "" {
		dst.Journal = src.Journal
	}
	if src.Docker != "" {
		dst.Docker = src.Docker
	}
	if src.PythonABI != "" {
		dst.PythonABI = src.PythonABI
	}
	if src.KeepEnvironments {
		dst.KeepEnvironments = true
	}
	if src.Tool.Command != "" {
		dst.Tool.Command = src.Tool.Command
	}
	if src.Tool.Source != "" {
		dst.Tool.Source = src.Tool.Source
	}
	if src.Consumer.Image != "" {
		dst.Consumer.Image = src.Consumer.Image
	}
	if len(src.Policies) > 0 {
		dst.Policies = src.Policies
	}
}

// normalize expands home-relative paths and absolutizes the tool source.
func normalize(cfg *Config) error {
	var err error
	if cfg.CacheRoot, err = expandHome(cfg.CacheRoot); err != nil {
		return &Error{Code: ErrRead, Message: fmt.Sprintf("resolve cache_root: %v", err)}
	}
	if cfg.Journal, err = expandHome(cfg.Journal); err != nil {
		return &Error{Code: ErrRead, Message: fmt.Sprintf("resolve journal: %v", err)}
	}
	if cfg.Tool.Source != "" {
		if cfg.Tool.Source, err = expandHome(cfg.Tool.Source); err != nil {
			return &Error{Code: ErrRead, Message: fmt.Sprintf("resolve tool.source: %v", err)}
		}
		if cfg.Tool.Source, err = filepath.Abs(cfg.Tool.Source); err != nil {
			return &Error{Code: ErrRead, Message: fmt.Sprintf("resolve tool.source: %v", err)}
		}
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path == "~" {
		return os.UserHomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

// Registry builds the policy registry from the configured table.
func (c *Config) Registry() (*policy.Registry, error) {
	policies := make([]policy.Policy, len(c.Policies))
	for i, p := range c.Policies {
		policies[i] = policy.Policy{
			Name:       p.Name,
			Image:      p.Image,
			Priority:   p.Priority,
			DevToolset: p.DevToolset,
		}
	}
	return policy.NewRegistry(policies, c.PythonABI)
}
