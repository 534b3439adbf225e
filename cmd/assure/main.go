// File: cmd/assure/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/assure-cli/cmd"
	"github.com/xkilldash9x/assure-cli/internal/observability"
)

// osExit allows tests to observe the exit code.
var osExit = os.Exit

func main() {
	osExit(run())
}

func run() int {
	// Set up a context that listens for interrupt signals (SIGINT, SIGTERM) for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer observability.Sync()

	if err := cmd.Execute(ctx); err != nil {
		return 1
	}
	return 0
}
