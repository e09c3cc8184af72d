package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/wheelwright/internal/config"
)

// ValidationResult holds the outcome of a config validation.
type ValidationResult struct {
	Valid    bool         `json:"valid"`
	Code     string       `json:"code,omitempty"`    // config error code on failure
	Message  string       `json:"message,omitempty"` // human-readable failure
	Policies []PolicyInfo `json:"policies,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [config-file]",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file without running anything.

The file is checked against the configuration schema (shape and type
errors come back with file positions) and the coded rules the schema
cannot express, such as priority uniqueness. On success the effective
policy table is printed. Without an argument the built-in defaults are
validated, which is useful as a smoke check.

Exit codes:
  0 - Configuration is valid
  1 - Configuration is invalid
  2 - Command error

Examples:
  wheelwright validate ./wheelwright.yaml
  wheelwright validate ./wheelwright.yaml --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Config
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(rootOpts, path, cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	cfg, err := config.Load(path)
	if err != nil {
		return outputValidateFailure(opts, cmd, err)
	}
	registry, err := cfg.Registry()
	if err != nil {
		return outputValidateFailure(opts, cmd, err)
	}

	result := ValidationResult{Valid: true}
	for _, p := range registry.All() {
		result.Policies = append(result.Policies, PolicyInfo{
			Name:        p.Name,
			Priority:    p.Priority,
			PlatformTag: p.PlatformTag(),
			Image:       p.Image,
			DevToolset:  p.DevToolset,
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: result})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "✓ Configuration is valid")
	for _, info := range result.Policies {
		fmt.Fprintf(w, "  %-14s priority %-3d %s\n", info.Name, info.Priority, info.Image)
	}
	return nil
}

func outputValidateFailure(opts *RootOptions, cmd *cobra.Command, err error) error {
	result := ValidationResult{Message: err.Error()}
	var cfgErr *config.Error
	if errors.As(err, &cfgErr) {
		result.Code = cfgErr.Code
	}

	if opts.Format == "json" {
		if writeErr := writeJSON(cmd, CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: "E_CONFIG_INVALID", Message: result.Message},
		}); writeErr != nil {
			return writeErr
		}
		return NewExitError(ExitFailure, "configuration is invalid")
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "✗ Configuration is invalid")
	fmt.Fprintf(w, "  %s\n", result.Message)
	return NewExitError(ExitFailure, "configuration is invalid")
}
