package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/wheelwright/internal/config"
	"github.com/roach88/wheelwright/internal/journal"
)

// loadConfig reads the configuration named by the global --config flag,
// falling back to the built-in defaults when the flag is unset. Load
// failures are command errors: nothing ran yet.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	return cfg, nil
}

// openJournal opens the run journal at the configured path.
func openJournal(path string) (*journal.Journal, error) {
	j, err := journal.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

// newLogger builds the slog logger commands hand to the components they
// construct. Diagnostics go to the command's error stream so stdout stays
// parseable; --verbose lowers the level to Debug.
func newLogger(cmd *cobra.Command, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
