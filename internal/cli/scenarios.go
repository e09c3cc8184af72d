package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/wheelwright/internal/harness"
)

// ScenarioInfo is one catalog entry in the scenarios listing.
type ScenarioInfo struct {
	Name      string `json:"name"`
	Summary   string `json:"summary"`
	Wheel     string `json:"wheel"`
	Cacheable bool   `json:"cacheable"`
	Consumer  bool   `json:"consumer"`
	Matrix    bool   `json:"rejection_matrix"`
}

// NewScenariosCommand creates the scenarios command.
func NewScenariosCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List the compiled-in verification scenarios",
		Long: `List the verification scenarios the run command can execute.

Wheel filenames follow the configured python ABI.

Examples:
  wheelwright scenarios
  wheelwright scenarios --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listScenarios(rootOpts, cmd)
		},
	}
	return cmd
}

func listScenarios(opts *RootOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	catalog, err := harness.Catalog(cfg.PythonABI)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid python abi", err)
	}

	infos := make([]ScenarioInfo, len(catalog))
	for i, sc := range catalog {
		infos[i] = ScenarioInfo{
			Name:      sc.Name,
			Summary:   sc.Summary,
			Wheel:     sc.OriginalWheel,
			Cacheable: sc.Cacheable,
			Consumer:  len(sc.Verify) > 0,
			Matrix:    sc.RejectionMatrix,
		}
	}

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: infos})
	}

	w := cmd.OutOrStdout()
	for _, info := range infos {
		fmt.Fprintf(w, "%-13s %s\n", info.Name, info.Summary)
		if opts.Verbose {
			fmt.Fprintf(w, "              wheel: %s\n", info.Wheel)
		}
	}
	return nil
}
