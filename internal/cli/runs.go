package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/wheelwright/internal/journal"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	JournalPath string
	Scenario    string
	Policy      string
	Failed      bool
	Limit       int
}

// RunInfo is one journal row in the runs listing.
type RunInfo struct {
	ID       string            `json:"id"`
	Scenario string            `json:"scenario"`
	Policy   string            `json:"policy"`
	State    string            `json:"state"`
	Pass     bool              `json:"pass"`
	Error    string            `json:"error,omitempty"`
	Started  time.Time         `json:"started"`
	Finished *time.Time        `json:"finished,omitempty"`
	Detail   map[string]string `json:"detail,omitempty"`
}

// CommandInfo is one journaled container command.
type CommandInfo struct {
	Seq       int64  `json:"seq"`
	Stage     string `json:"stage"`
	Container string `json:"container"`
	Command   string `json:"command"`
	ExitCode  int    `json:"exit_code"`
	Expected  bool   `json:"expected,omitempty"`
	Output    string `json:"output,omitempty"`
}

// CheckInfo is one journaled check.
type CheckInfo struct {
	Seq    int64  `json:"seq"`
	Stage  string `json:"stage"`
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// RunDetail is the full journal view of one run.
type RunDetail struct {
	Run      RunInfo       `json:"run"`
	Commands []CommandInfo `json:"commands"`
	Checks   []CheckInfo   `json:"checks"`
}

// NewRunsCommand creates the runs command and its show subcommand.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List journaled runs",
		Long: `List runs from the journal, newest first.

Unfinished runs count as failed: they hold the state they stopped in.

Exit codes:
  0 - Listing produced
  2 - Command error (journal unreadable)

Examples:
  wheelwright runs
  wheelwright runs --scenario numpy --failed
  wheelwright runs --limit 10 --format json
  wheelwright runs show 0191c2aa-7000-7000-8000-000000000001`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listRuns(opts, cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.JournalPath, "journal", "", "override the journal database path")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "filter by scenario name")
	cmd.Flags().StringVar(&opts.Policy, "policy", "", "filter by policy name")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "only runs that did not pass")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows (0 means no limit)")

	cmd.AddCommand(newRunsShowCommand(opts))

	return cmd
}

func newRunsShowCommand(opts *RunsOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run with its commands and checks",
		Long: `Show a single journaled run: every container command with its
exit status and verbatim output, and every check with its outcome.

Example:
  wheelwright runs show 0191c2aa-7000-7000-8000-000000000001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRun(opts, args[0], cmd)
		},
	}
}

// runsJournalPath resolves the journal location: the --journal flag wins
// over the configuration.
func runsJournalPath(opts *RunsOptions) (string, error) {
	if opts.JournalPath != "" {
		return opts.JournalPath, nil
	}
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return "", err
	}
	return cfg.Journal, nil
}

func listRuns(opts *RunsOptions, cmd *cobra.Command) error {
	path, err := runsJournalPath(opts)
	if err != nil {
		return err
	}
	j, err := openJournal(path)
	if err != nil {
		return err
	}
	defer j.Close()

	rows, err := j.Runs(context.Background(), journal.Filter{
		Scenario:   opts.Scenario,
		Policy:     opts.Policy,
		FailedOnly: opts.Failed,
		Limit:      opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	infos := make([]RunInfo, len(rows))
	for i, row := range rows {
		infos[i] = runInfo(row)
	}

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: infos})
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	for _, info := range infos {
		mark := "✓"
		if !info.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s  %s on %s (%s) started %s\n",
			mark, info.ID, info.Scenario, info.Policy, info.State,
			info.Started.Format(time.RFC3339))
		if info.Error != "" {
			fmt.Fprintf(w, "  %s\n", info.Error)
		}
	}
	return nil
}

func showRun(opts *RunsOptions, runID string, cmd *cobra.Command) error {
	path, err := runsJournalPath(opts)
	if err != nil {
		return err
	}
	j, err := openJournal(path)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := context.Background()
	row, err := j.Run(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("run %s", runID), err)
	}
	commands, err := j.Commands(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read commands", err)
	}
	checks, err := j.Checks(ctx, runID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read checks", err)
	}

	detail := RunDetail{Run: runInfo(row)}
	for _, c := range commands {
		detail.Commands = append(detail.Commands, CommandInfo{
			Seq:       c.Seq,
			Stage:     c.Stage,
			Container: c.Container,
			Command:   c.Command,
			ExitCode:  c.ExitCode,
			Expected:  c.Expected,
			Output:    c.Output,
		})
	}
	for _, c := range checks {
		detail.Checks = append(detail.Checks, CheckInfo{
			Seq:    c.Seq,
			Stage:  c.Stage,
			Name:   c.Name,
			OK:     c.OK,
			Detail: c.Detail,
		})
	}

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: detail})
	}

	outputRunText(cmd.OutOrStdout(), detail)
	return nil
}

// outputRunText renders one run the way an operator reads it after a
// failure: header, then the command timeline with verbatim output, then
// the checks.
func outputRunText(w io.Writer, detail RunDetail) {
	run := detail.Run
	fmt.Fprintf(w, "Run: %s\n", run.ID)
	fmt.Fprintf(w, "Scenario: %s on %s\n", run.Scenario, run.Policy)
	fmt.Fprintf(w, "State: %s (%s)\n", run.State, passLabel(run.Pass))
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintf(w, "Started: %s\n", run.Started.Format(time.RFC3339))
	if run.Finished != nil {
		fmt.Fprintf(w, "Finished: %s\n", run.Finished.Format(time.RFC3339))
	}
	for _, k := range sortedKeys(run.Detail) {
		fmt.Fprintf(w, "%s: %s\n", k, run.Detail[k])
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Commands ===")
	if len(detail.Commands) == 0 {
		fmt.Fprintln(w, "  (no commands)")
	}
	for _, c := range detail.Commands {
		suffix := ""
		if c.Expected {
			suffix = " (expected)"
		}
		fmt.Fprintf(w, "  [%d] %s %s exit %d%s\n", c.Seq, c.Stage, c.Container, c.ExitCode, suffix)
		fmt.Fprintf(w, "      %s\n", c.Command)
		for _, line := range outputLines(c.Output) {
			fmt.Fprintf(w, "      | %s\n", line)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Checks ===")
	if len(detail.Checks) == 0 {
		fmt.Fprintln(w, "  (no checks)")
	}
	for _, c := range detail.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		fmt.Fprintf(w, "  [%d] %s %s %s\n", c.Seq, c.Stage, mark, c.Name)
		if !c.OK && c.Detail != "" {
			fmt.Fprintf(w, "      %s\n", c.Detail)
		}
	}
}

func runInfo(row journal.Run) RunInfo {
	info := RunInfo{
		ID:       row.ID,
		Scenario: row.Scenario,
		Policy:   row.Policy,
		State:    row.State,
		Pass:     row.Pass,
		Error:    row.Error,
		Started:  row.StartedAt,
		Detail:   row.Detail,
	}
	if !row.FinishedAt.IsZero() {
		finished := row.FinishedAt
		info.Finished = &finished
	}
	return info
}

func passLabel(pass bool) string {
	if pass {
		return "passed"
	}
	return "failed"
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// outputLines splits captured output for indented display, dropping the
// trailing empty line a newline-terminated capture produces.
func outputLines(output string) []string {
	if output == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
