package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// PolicyInfo is one row in the policies listing.
type PolicyInfo struct {
	Name        string `json:"name"`
	Priority    int    `json:"priority"`
	PlatformTag string `json:"platform_tag"`
	Image       string `json:"image"`
	DevToolset  string `json:"devtoolset"`
}

// NewPoliciesCommand creates the policies command.
func NewPoliciesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policies",
		Short: "List the configured compliance policies",
		Long: `List the compliance policies in ascending priority order.

A lower priority means an older, stricter policy. Repairing a wheel
toward a policy older than its build environment must be refused by the
tool under test.

Examples:
  wheelwright policies
  wheelwright policies --config ./wheelwright.yaml
  wheelwright policies --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listPolicies(rootOpts, cmd)
		},
	}
	return cmd
}

func listPolicies(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid policy table", err)
	}

	var infos []PolicyInfo
	for _, p := range registry.All() {
		infos = append(infos, PolicyInfo{
			Name:        p.Name,
			Priority:    p.Priority,
			PlatformTag: p.PlatformTag(),
			Image:       p.Image,
			DevToolset:  p.DevToolset,
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: infos})
	}

	w := cmd.OutOrStdout()
	for _, info := range infos {
		fmt.Fprintf(w, "%-14s priority %-3d %s\n", info.Name, info.Priority, info.Image)
		if opts.Verbose {
			fmt.Fprintf(w, "               tag: %s, toolset: %s\n", info.PlatformTag, info.DevToolset)
		}
	}
	return nil
}
