// honors reports which documented constraints a Go test suite honors.
//
// Usage:
//
//	go test -json ./... | honors report --report honors.md
//	honors run --fail-on-regression --store-counts -- ./...
//	honors counts
//	honors catalog --catalog ./constraints
//
// Exit codes: 0 when tests pass (or none ran), 1 when tests fail or honored
// constraint counts drop, 2 for command errors.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/honors/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	// Commands print their own errors; anything else comes from cobra.
	var exitErr *cli.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		fmt.Fprintf(os.Stderr, "honors: %v\n", err)
	}
	os.Exit(cli.GetExitCode(err))
}
