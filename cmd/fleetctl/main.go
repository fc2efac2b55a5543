package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/fatih/color"

	"github.com/randalmurphal/fleetdeck/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		if !errors.Is(err, cli.ErrSaveFailed) {
			color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
