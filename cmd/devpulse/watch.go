package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qs3c/devpulse_tracker/internal/pkg/pubsub"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream changes published by a running 'devpulse serve'",
	RunE:  withApp(runWatch),
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, a *app, args []string) error {
	if a.rdb == nil {
		return errRedisRequired
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := make(chan struct{})
	go func() {
		select {
		case <-ready:
			fmt.Fprintln(os.Stderr, "Watching for changes, press Ctrl+C to stop")
		case <-ctx.Done():
		}
	}()

	err := pubsub.NewSubscriber(a.rdb).Subscribe(ctx, ready, printChange)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
