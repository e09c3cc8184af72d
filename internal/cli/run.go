package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/wheelwright/internal/cache"
	"github.com/roach88/wheelwright/internal/docker"
	"github.com/roach88/wheelwright/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Scenarios        []string
	Policies         []string
	KeepEnvironments bool
	CacheRoot        string
	JournalPath      string

	// Runner overrides the container client invocation (for testing).
	// If nil, the configured client binary is executed.
	Runner docker.Runner

	// Clock and Tokens override run timing and identity (for testing).
	Clock  harness.Clock
	Tokens harness.TokenSource
}

// RunSummary is one run in the matrix result.
type RunSummary struct {
	RunID    string    `json:"run_id"`
	Scenario string    `json:"scenario"`
	Policy   string    `json:"policy"`
	State    string    `json:"state"`
	Pass     bool      `json:"pass"`
	Failure  string    `json:"failure,omitempty"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// MatrixResult holds the overall outcome of a scenario-policy matrix.
type MatrixResult struct {
	Runs   []RunSummary `json:"runs"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

// newRunCommand builds the command on a caller-supplied options struct,
// so tests can pre-wire the runner, clock, and token seams.
func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the scenario-policy verification matrix",
		Long: `Run verification scenarios against compliance policies.

Each run builds a wheel inside the policy's container image, repairs it
with the tool under test, inspects the result, and (for scenarios with a
consumer stage) installs it into a clean runtime image and executes it.
Every container command and every check lands in the run journal.

Without flags the full matrix runs: every scenario against every policy.

Exit codes:
  0 - All runs passed
  1 - One or more runs failed
  2 - Command error (bad config, unknown scenario or policy)

Examples:
  wheelwright run
  wheelwright run --scenario numpy --policy manylinux1
  wheelwright run --scenario pure --scenario rpath
  wheelwright run --keep-environments --scenario deps-linked
  wheelwright run --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatrix(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Scenarios, "scenario", nil, "scenario to run (repeatable; default all)")
	cmd.Flags().StringSliceVar(&opts.Policies, "policy", nil, "policy to run against (repeatable; default all)")
	cmd.Flags().BoolVar(&opts.KeepEnvironments, "keep-environments", false, "keep containers and io directories for post-mortem inspection")
	cmd.Flags().StringVar(&opts.CacheRoot, "cache-root", "", "override the artifact cache directory")
	cmd.Flags().StringVar(&opts.JournalPath, "journal", "", "override the journal database path")

	return cmd
}

func runMatrix(opts *RunOptions, cmd *cobra.Command) error {
	logger := newLogger(cmd, opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return err
	}
	if opts.CacheRoot != "" {
		cfg.CacheRoot = opts.CacheRoot
	}
	if opts.JournalPath != "" {
		cfg.Journal = opts.JournalPath
	}
	if opts.KeepEnvironments {
		cfg.KeepEnvironments = true
	}

	registry, err := cfg.Registry()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid policy table", err)
	}

	scenarios := opts.Scenarios
	if len(scenarios) == 0 {
		scenarios = harness.Names()
	}
	for _, name := range scenarios {
		if _, err := harness.Lookup(cfg.PythonABI, name); err != nil {
			return WrapExitError(ExitCommandError, "invalid --scenario", err)
		}
	}
	policies := opts.Policies
	if len(policies) == 0 {
		policies = registry.Names()
	}
	for _, name := range policies {
		if _, err := registry.Lookup(name); err != nil {
			return WrapExitError(ExitCommandError, "invalid --policy", err)
		}
	}

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	client := docker.NewClient(cfg.Docker, logger)
	if opts.Runner != nil {
		client = docker.NewClientWithRunner(opts.Runner, logger)
	}
	driver := harness.New(harness.Options{
		Config:   cfg,
		Registry: registry,
		Manager:  docker.NewManager(client, cfg.KeepEnvironments, logger),
		Cache:    cache.New(cfg.CacheRoot, logger),
		Journal:  j,
		Clock:    opts.Clock,
		Tokens:   opts.Tokens,
		Logger:   logger,
	})

	// Cancel in-flight runs on Ctrl-C or SIGTERM. Use the command's
	// context if available (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	result := MatrixResult{Total: len(scenarios) * len(policies)}
	var results []*harness.Result
	for _, scenarioName := range scenarios {
		for _, policyName := range policies {
			res, err := driver.Run(ctx, scenarioName, policyName)
			if err != nil {
				return WrapExitError(ExitCommandError,
					fmt.Sprintf("failed to run %s on %s", scenarioName, policyName), err)
			}
			results = append(results, res)
			result.Runs = append(result.Runs, RunSummary{
				RunID:    res.RunID,
				Scenario: res.Scenario,
				Policy:   res.Policy,
				State:    res.State,
				Pass:     res.Pass,
				Failure:  res.Failure,
				Started:  res.Started,
				Finished: res.Finished,
			})
			if res.Pass {
				result.Passed++
			} else {
				result.Failed++
			}
		}
	}

	if opts.Format == "json" {
		return outputMatrixJSON(cmd, result)
	}

	harness.WriteReport(cmd.OutOrStdout(), results)
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) failed", result.Failed))
	}
	return nil
}

// outputMatrixJSON outputs the matrix result as JSON.
func outputMatrixJSON(cmd *cobra.Command, result MatrixResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_RUN_FAILED",
			Message: fmt.Sprintf("%d run(s) failed", result.Failed),
		}
	}
	if err := writeJSON(cmd, response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d run(s) failed", result.Failed))
	}
	return nil
}
