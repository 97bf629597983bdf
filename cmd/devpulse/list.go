package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qs3c/devpulse_tracker/internal/model"
)

var (
	listStatus string
	listFollow bool
	listLocal  bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List analyses",
	RunE:  withApp(runList),
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listStatus, "status", "", "Only show analyses with this status")
	listCmd.Flags().BoolVarP(&listFollow, "follow", "f", false, "Keep tracking unfinished analyses and fix jobs")
	listCmd.Flags().BoolVar(&listLocal, "local", false, "Show the locally archived snapshots without contacting the service")
}

func runList(cmd *cobra.Command, a *app, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if listLocal {
		items, err := a.archive.List(ctx, 0)
		if err != nil {
			return err
		}
		return printAnalyses(filterStatus(items, listStatus))
	}

	reqCtx, cancel := a.requestContext(ctx)
	err := a.tracker.LoadAnalyses(reqCtx)
	cancel()
	if err != nil {
		return err
	}

	if !listFollow {
		a.tracker.Leave()
		return printAnalyses(filterStatus(a.tracker.ListAnalyses(), listStatus))
	}

	if err := follow(ctx, a.store, func() bool { return a.tracker.Registry().Len() == 0 }); err != nil {
		return err
	}
	return printAnalyses(filterStatus(a.tracker.ListAnalyses(), listStatus))
}

func filterStatus(items []model.Analysis, status string) []model.Analysis {
	if status == "" {
		return items
	}
	out := make([]model.Analysis, 0, len(items))
	for _, item := range items {
		if string(item.Status) == status {
			out = append(out, item)
		}
	}
	return out
}
