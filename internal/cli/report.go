package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/honors/internal/config"
	"github.com/roach88/honors/internal/gotest"
	"github.com/roach88/honors/internal/session"
)

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &config.Flags{}

	cmd := &cobra.Command{
		Use:   "report [events.json]",
		Short: "Report honored constraints from a go test -json stream",
		Long: `Read a go test -json event stream and perform the run-finish actions:
write the Markdown report, check for regressions, store the counts.

The stream is read from the named file, or from stdin if no file is given
or the file is "-".

Exit codes:
  0 - Tests passed (or no tests ran)
  1 - Tests failed, or honored constraint counts dropped
  2 - Command error (bad config, misused markers, build failure)

Examples:
  go test -json ./... | honors report --report honors.md
  go test -json ./... > events.json; honors report events.json --fail-on-regression
  honors report events.json --store-counts --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return newFormatter(rootOpts, cmd).fail(ExitCommandError, ErrCodeInput, "cannot open event stream", err)
				}
				defer f.Close()
				in = f
			}
			return process(cmd, rootOpts, *flags, func(ctx context.Context, a *gotest.Adapter) (session.ExitStatus, error) {
				return a.Consume(ctx, in)
			})
		},
	}

	bindFinishFlags(cmd, flags)

	return cmd
}
