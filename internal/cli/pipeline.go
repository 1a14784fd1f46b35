package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/honors/constraint"
	"github.com/roach88/honors/internal/cache"
	"github.com/roach88/honors/internal/catalog"
	"github.com/roach88/honors/internal/config"
	"github.com/roach88/honors/internal/gotest"
	"github.com/roach88/honors/internal/guard"
	"github.com/roach88/honors/internal/index"
	"github.com/roach88/honors/internal/session"
)

// RunOutput is the result of processing one event stream.
type RunOutput struct {
	*session.Result
	Stats gotest.Stats `json:"stats"`
}

// consumeFunc feeds a stream of events into the adapter.
type consumeFunc func(ctx context.Context, a *gotest.Adapter) (session.ExitStatus, error)

// bindFinishFlags registers the flags that configure run-finish actions.
func bindFinishFlags(cmd *cobra.Command, f *config.Flags) {
	cmd.Flags().StringVar(&f.Report, "report", "", "write the honored constraints report to this file")
	cmd.Flags().BoolVar(&f.FailOnRegression, "fail-on-regression", false, "fail if fewer tests honor a constraint than in the stored counts")
	cmd.Flags().BoolVar(&f.StoreCounts, "store-counts", false, "store this run's honor counts as the new baseline")
	cmd.Flags().StringVar(&f.Catalog, "catalog", "", "directory of CUE files declaring constraint groups")
	bindCacheFlags(cmd, f)
}

func bindCacheFlags(cmd *cobra.Command, f *config.Flags) {
	cmd.Flags().StringVar(&f.CacheBackend, "cache", config.DefaultCacheBackend, fmt.Sprintf("cache backend (%s)", strings.Join(cache.Backends, "|")))
	cmd.Flags().StringVar(&f.CacheDir, "cache-path", config.DefaultCacheDir, "cache directory")
}

// resolveConfig records which flags were set explicitly and resolves the
// final configuration.
func resolveConfig(cmd *cobra.Command, opts *RootOptions, f config.Flags) (*config.Resolved, error) {
	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	f.ConfigPath = opts.ConfigPath
	f.ReportSet = changed("report")
	f.FailOnRegressionSet = changed("fail-on-regression")
	f.StoreCountsSet = changed("store-counts")
	f.CatalogSet = changed("catalog")
	f.CacheBackendSet = changed("cache")
	f.CacheDirSet = changed("cache-path")
	return config.Resolve(f)
}

// logConfig reports, in verbose mode, the config file and every setting
// that did not come from its default.
func logConfig(f *OutputFormatter, cfg *config.Resolved) {
	if cfg.ConfigFile != "" {
		f.VerboseLog("Using config file %s", cfg.ConfigFile)
	}
	keys := slices.Sorted(maps.Keys(cfg.Sources))
	for _, key := range keys {
		if src := cfg.Sources[key]; src != config.SourceDefault {
			f.VerboseLog("Setting %s from %s", key, src)
		}
	}
}

func openCache(cfg *config.Resolved, opts *RootOptions) (cache.Cache, error) {
	return cache.Open(cache.Config{Backend: cfg.CacheBackend, Dir: cfg.CacheDir, Logger: opts.logger()})
}

// process runs one event stream through a fresh session and performs the
// run-finish actions.
func process(cmd *cobra.Command, opts *RootOptions, flags config.Flags, consume consumeFunc) error {
	ctx := cmd.Context()
	formatter := newFormatter(opts, cmd)

	cfg, err := resolveConfig(cmd, opts, flags)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}
	logConfig(formatter, cfg)

	cat, err := catalog.New(cfg.Catalog)
	if err != nil {
		var loadErr *catalog.LoadError
		if errors.As(err, &loadErr) {
			return formatter.fail(ExitCommandError, loadErr.Code, "cannot load constraint catalog", err)
		}
		return formatter.fail(ExitCommandError, ErrCodeConfig, "cannot load constraint catalog", err)
	}

	var c cache.Cache
	if cfg.FailOnRegression || cfg.StoreCounts {
		if c, err = openCache(cfg, opts); err != nil {
			return formatter.fail(ExitCommandError, ErrCodeCache, "cannot open cache", err)
		}
		defer c.Close()
	}

	s := session.New(c, session.WithLogger(opts.logger()))
	s.Start()
	adapter := gotest.New(s, cat, gotest.WithLogger(opts.logger()))

	status, err := consume(ctx, adapter)
	if err != nil {
		return formatter.fail(ExitCommandError, consumeErrorCode(err), "cannot process test events", err)
	}
	formatter.VerboseLog("Run %s finished with status %s", s.RunID(), status)

	res, err := s.Finish(ctx, session.Options{
		ReportPath:       cfg.Report,
		FailOnRegression: cfg.FailOnRegression,
		StoreCounts:      cfg.StoreCounts,
	}, status)
	out := RunOutput{Result: res, Stats: adapter.Stats()}

	var regression *guard.RegressionError
	if errors.As(err, &regression) {
		if formatter.Format != "json" {
			printRun(formatter, out)
		}
		_ = formatter.Error(ErrCodeRegression, "honored constraint counts dropped", regression.Messages)
		return WrapExitError(ExitFailure, "honored constraint regression", err)
	}
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeFinish, "cannot finish run", err)
	}

	if formatter.Format == "json" {
		if err := formatter.SuccessRun(res.RunID, out); err != nil {
			return err
		}
	} else {
		printRun(formatter, out)
	}
	return exitForStatus(status)
}

func consumeErrorCode(err error) string {
	var violation *index.TypeViolationError
	var markerErr *gotest.MarkerError
	var conflict *constraint.ConflictError
	switch {
	case errors.As(err, &violation), errors.As(err, &markerErr), errors.As(err, &conflict):
		return ErrCodeMisuse
	case errors.Is(err, errGoTestStart):
		return ErrCodeGoTest
	default:
		return ErrCodeInput
	}
}

// exitForStatus maps the run status to the process exit code. A run with
// no tests is not an error for honors.
func exitForStatus(status session.ExitStatus) error {
	switch status {
	case session.OK, session.NoTestsCollected:
		return nil
	case session.TestsFailed:
		return NewExitError(ExitFailure, "tests failed")
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("test run did not complete (%s)", status))
	}
}

// printRun writes the human-readable run summary.
func printRun(f *OutputFormatter, out RunOutput) {
	w, th := f.Writer, f.Theme
	st := out.Stats

	icon, style := th.Icons.Pass, th.Success
	switch out.Status {
	case session.OK, session.NoTestsCollected:
	case session.TestsFailed:
		icon, style = th.Icons.Fail, th.Error
	default:
		icon, style = th.Icons.Warn, th.Warning
	}
	fmt.Fprintf(w, "%s %s\n", style.Render(icon+" "+out.Status.String()), th.Muted.Render("run "+out.RunID))
	fmt.Fprintf(w, "  %d tests: %d passed, %d failed, %d skipped; %d honoring constraints\n",
		st.Tests, st.Passed, st.Failed, st.Skipped, st.Honoring)

	if !out.Reported {
		fmt.Fprintf(w, "  %s\n", th.Warning.Render("report skipped: run did not complete"))
		return
	}
	if out.ReportPath != "" {
		fmt.Fprintf(w, "  report written to %s\n", out.ReportPath)
	}

	if len(out.Changes) > 0 {
		fmt.Fprintln(w)
		heading := "Honored constraints"
		if out.Baseline != nil {
			heading += " (vs run " + out.Baseline.RunID + ")"
		}
		fmt.Fprintln(w, th.Heading.Render(heading))
		width := 0
		for _, c := range out.Changes {
			width = max(width, len(c.Key))
		}
		for _, c := range out.Changes {
			delta := ""
			if out.Baseline != nil {
				delta = formatDelta(th, c)
			}
			fmt.Fprintf(w, "  %-*s %4d%s\n", width, c.Key, c.Current, delta)
		}
	}

	for _, warning := range out.Warnings {
		fmt.Fprintf(f.ErrWriter, "%s %s: %s\n", th.Warning.Render(th.Icons.Warn), warning.Test, warning.Message)
	}
	if out.Stored {
		fmt.Fprintf(w, "  %s\n", th.Muted.Render("counts stored"))
	}
}

func formatDelta(th Theme, c guard.Change) string {
	switch d := c.Delta(); {
	case d > 0:
		return th.Success.Render(fmt.Sprintf(" (+%d)", d))
	case d < 0:
		return th.Error.Render(fmt.Sprintf(" (%d)", d))
	default:
		return ""
	}
}
