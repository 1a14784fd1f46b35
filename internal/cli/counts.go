package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/honors/internal/config"
	"github.com/roach88/honors/internal/session"
)

// CountEntry is one stored honor count.
type CountEntry struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CountsOutput is the result of the counts command.
type CountsOutput struct {
	Found   bool         `json:"found"`
	RunID   string       `json:"run_id,omitempty"`
	Backend string       `json:"backend"`
	Path    string       `json:"path"`
	Counts  []CountEntry `json:"counts"`
}

// NewCountsCommand creates the counts command.
func NewCountsCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &config.Flags{}

	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Show the stored honor counts",
		Long: `Show the honor counts stored by the last run with --store-counts.

These counts are the baseline that --fail-on-regression compares against.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCounts(cmd, rootOpts, *flags)
		},
	}

	bindCacheFlags(cmd, flags)

	return cmd
}

func runCounts(cmd *cobra.Command, opts *RootOptions, flags config.Flags) error {
	formatter := newFormatter(opts, cmd)

	cfg, err := resolveConfig(cmd, opts, flags)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	c, err := openCache(cfg, opts)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCache, "cannot open cache", err)
	}
	defer c.Close()

	stored, ok, err := session.LoadCounts(cmd.Context(), c)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCache, "cannot read counts", err)
	}

	out := CountsOutput{
		Found:   ok,
		RunID:   stored.RunID,
		Backend: cfg.CacheBackend,
		Path:    cfg.CacheDir,
		Counts:  make([]CountEntry, 0, len(stored.Counts)),
	}
	for key, n := range stored.Counts {
		out.Counts = append(out.Counts, CountEntry{Key: key, Count: n})
	}
	slices.SortFunc(out.Counts, func(a, b CountEntry) int { return strings.Compare(a.Key, b.Key) })

	if formatter.Format == "json" {
		return formatter.SuccessRun(out.RunID, out)
	}

	w, th := formatter.Writer, formatter.Theme
	if !ok {
		fmt.Fprintf(w, "No stored counts in %s (%s).\n", cfg.CacheDir, cfg.CacheBackend)
		return nil
	}
	fmt.Fprintln(w, th.Heading.Render("Stored honor counts")+" "+th.Muted.Render("run "+stored.RunID))
	width := 0
	for _, e := range out.Counts {
		width = max(width, len(e.Key))
	}
	for _, e := range out.Counts {
		fmt.Fprintf(w, "  %-*s %4d\n", width, e.Key, e.Count)
	}
	return nil
}
