package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/honors/internal/config"
	"github.com/roach88/honors/internal/gotest"
	"github.com/roach88/honors/internal/session"
)

var errGoTestStart = errors.New("cannot start go test")

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	GoBinary string // go command to execute
	Tee      string // copy of the raw event stream
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	flags := &config.Flags{}

	cmd := &cobra.Command{
		Use:   "run [flags] [-- go test arguments]",
		Short: "Run go test and report honored constraints",
		Long: `Run go test -json with the given arguments (default ./...) and perform
the run-finish actions on its event stream.

go test's stderr is passed through. Use --tee to keep the raw event stream
for a later "honors report".

Exit codes:
  0 - Tests passed (or no tests ran)
  1 - Tests failed, or honored constraint counts dropped
  2 - Command error (bad config, misused markers, build failure, interrupted)

Examples:
  honors run --report honors.md
  honors run --fail-on-regression --store-counts -- -race ./internal/...
  honors run --tee events.json -- -run TestAccess ./...`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"./..."}
			}
			return runGoTest(cmd, opts, *flags, args)
		},
	}

	cmd.Flags().StringVar(&opts.GoBinary, "go", "go", "go command to run")
	cmd.Flags().StringVar(&opts.Tee, "tee", "", "also write the raw go test -json stream to this file")
	bindFinishFlags(cmd, flags)

	return cmd
}

func runGoTest(cmd *cobra.Command, opts *RunOptions, flags config.Flags, args []string) error {
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
			opts.logger().Info("received signal, stopping go test", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	cmd.SetContext(ctx)

	return process(cmd, opts.RootOptions, flags, func(ctx context.Context, a *gotest.Adapter) (session.ExitStatus, error) {
		return execGoTest(ctx, cmd, opts, a, args)
	})
}

// execGoTest runs go test -json and feeds its stdout to the adapter. The
// status from the event stream is refined with go test's exit code: 1 is
// an ordinary test failure, anything else means go test itself was misused.
func execGoTest(ctx context.Context, cmd *cobra.Command, opts *RunOptions, a *gotest.Adapter, args []string) (session.ExitStatus, error) {
	goArgs := append([]string{"test", "-json"}, args...)
	child := exec.CommandContext(ctx, opts.GoBinary, goArgs...)
	child.Stderr = cmd.ErrOrStderr()
	stdout, err := child.StdoutPipe()
	if err != nil {
		return session.InternalError, fmt.Errorf("%w: %v", errGoTestStart, err)
	}

	var in io.Reader = stdout
	if opts.Tee != "" {
		f, err := os.Create(opts.Tee)
		if err != nil {
			return session.InternalError, fmt.Errorf("create tee file: %w", err)
		}
		defer f.Close()
		in = io.TeeReader(stdout, f)
	}

	opts.logger().Debug("starting go test", "go", opts.GoBinary, "args", goArgs)
	if err := child.Start(); err != nil {
		return session.InternalError, fmt.Errorf("%w: %v", errGoTestStart, err)
	}

	status, err := a.Consume(ctx, in)
	if err != nil {
		_ = child.Process.Kill()
		_ = child.Wait()
		return status, err
	}

	waitErr := child.Wait()
	if ctx.Err() != nil {
		return session.Interrupted, nil
	}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		return status, nil
	case errors.As(waitErr, &exitErr):
		code := exitErr.ExitCode()
		opts.logger().Debug("go test exited", "code", code, "status", status.String())
		if code == 1 {
			if status == session.OK {
				return session.TestsFailed, nil
			}
			return status, nil
		}
		if status == session.Interrupted {
			return status, nil
		}
		return session.UsageError, nil
	default:
		return session.InternalError, fmt.Errorf("wait for go test: %w", waitErr)
	}
}
