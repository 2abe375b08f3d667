package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// exitInterrupted is the conventional status for a SIGINT-terminated process.
const exitInterrupted = 130

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	interrupted := ctx.Err() != nil
	stop()

	if interrupted {
		os.Exit(exitInterrupted)
	}
	if err != nil {
		os.Exit(1)
	}
}
