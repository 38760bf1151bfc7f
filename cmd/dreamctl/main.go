// Package main is the entry point for dreamctl.
//
// Usage:
//
//	dreamctl run                 Run one retest pass now
//	dreamctl costs [--days N]    Summarize evaluation spend
//	dreamctl decay <dream-id>    Show impossibility decay for a dream
//	dreamctl trends <user-id>    Rank a user's dreams by improvement
//
// Configuration comes from the same environment variables as the server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aristath/dreamengine/internal/cli"
)

// Version information (set via ldflags during build)
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(version, cli.DefaultOpener).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
