package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/KetchupJL/solana-qrf-interval-forecasting/internal/cli"
	"github.com/KetchupJL/solana-qrf-interval-forecasting/pkg/logger"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command tree and maps the outcome to an exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	defer func() { _ = logger.Sync() }()

	if err := cli.Execute(ctx, args, stdout, stderr); err != nil {
		return 1
	}
	return 0
}
