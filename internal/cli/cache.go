package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/wheelwright/internal/cache"
)

// CacheOptions holds flags for the cache subcommands.
type CacheOptions struct {
	*RootOptions
	CacheRoot string
	Policy    string
}

// CacheEntryInfo is one cached artifact in the status listing.
type CacheEntryInfo struct {
	Policy   string `json:"policy"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// NewCacheCommand creates the cache command group.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the artifact cache",
		Long: `Manage the host-side artifact cache.

Cacheable scenario builds (the ones that do not exercise the tool under
test) are stored per policy and restored on later runs. The cache is
operator-managed: nothing expires it.

Examples:
  wheelwright cache status
  wheelwright cache clear
  wheelwright cache clear --policy manylinux1`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.CacheRoot, "cache-root", "", "override the artifact cache directory")

	status := &cobra.Command{
		Use:           "status",
		Short:         "List cached artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cacheStatus(opts, cmd)
		},
	}

	clear := &cobra.Command{
		Use:           "clear",
		Short:         "Remove cached artifacts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cacheClear(opts, cmd)
		},
	}
	clear.Flags().StringVar(&opts.Policy, "policy", "", "clear only the named policy's artifacts")

	cmd.AddCommand(status)
	cmd.AddCommand(clear)

	return cmd
}

// openCache resolves the cache location: the --cache-root flag wins over
// the configuration.
func openCache(opts *CacheOptions, cmd *cobra.Command) (*cache.Cache, error) {
	root := opts.CacheRoot
	if root == "" {
		cfg, err := loadConfig(opts.RootOptions)
		if err != nil {
			return nil, err
		}
		root = cfg.CacheRoot
	}
	return cache.New(root, newLogger(cmd, opts.Verbose)), nil
}

func cacheStatus(opts *CacheOptions, cmd *cobra.Command) error {
	c, err := openCache(opts, cmd)
	if err != nil {
		return err
	}
	entries, err := c.Entries()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read cache", err)
	}

	infos := make([]CacheEntryInfo, len(entries))
	for i, e := range entries {
		infos[i] = CacheEntryInfo{Policy: e.Policy, Filename: e.Filename, Size: e.Size}
	}

	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{Status: "ok", Data: infos})
	}

	w := cmd.OutOrStdout()
	if len(infos) == 0 {
		fmt.Fprintln(w, "Cache is empty.")
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%-14s %s (%d bytes)\n", info.Policy, info.Filename, info.Size)
	}
	return nil
}

func cacheClear(opts *CacheOptions, cmd *cobra.Command) error {
	c, err := openCache(opts, cmd)
	if err != nil {
		return err
	}
	if err := c.Clear(opts.Policy); err != nil {
		return WrapExitError(ExitCommandError, "failed to clear cache", err)
	}

	scope := "all policies"
	if opts.Policy != "" {
		scope = "policy " + opts.Policy
	}
	if opts.Format == "json" {
		return writeJSON(cmd, CLIResponse{
			Status: "ok",
			Data:   map[string]string{"cleared": scope},
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cache cleared: %s\n", scope)
	return nil
}
