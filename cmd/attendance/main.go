// Package main is the entry point for the attendance command.
// Its sole responsibility is wiring the CLI together and mapping the outcome
// to an exit code. No business logic belongs here.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkordes/goat-attendance/internal/cli"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Cancelled on SIGINT/SIGTERM: a one-shot run rolls back, serve shuts down gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := cli.RootCmd(cli.NewApp(), version)
	if err := cli.Execute(ctx, root); err != nil {
		stop()
		os.Exit(1)
	}
}
