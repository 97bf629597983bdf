package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showRefresh bool

var showCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Show one analysis with its fix jobs",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runShow),
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showRefresh, "refresh", true, "Fetch the latest state from the service")
}

func runShow(cmd *cobra.Command, a *app, args []string) error {
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	var err error
	rec, ok := a.store.Get(args[0])
	if showRefresh || !ok {
		rec, err = a.tracker.RefreshAnalysis(ctx, args[0])
		if err != nil {
			// 拿不到时退回本地归档
			archived, archiveErr := a.archive.Get(ctx, args[0])
			if archiveErr != nil || archived == nil {
				return err
			}
			rec = *archived
		}
	}
	a.tracker.Leave()

	if jsonOutput {
		return printJSON(rec)
	}
	fmt.Printf("%s  %s/%s\n", rec.ID, rec.RepoOwner, rec.RepoName)
	fmt.Printf("  status    %s (%d%%)\n", rec.Status, rec.Progress)
	if rec.Message != "" {
		fmt.Printf("  message   %s\n", rec.Message)
	}
	if rec.Error != "" {
		fmt.Printf("  error     %s\n", rec.Error)
	}
	if score, ok := rec.QualityScore(); ok {
		fmt.Printf("  quality   %d (%s)\n", score, rec.CodeQuality.Grade)
	}
	printFixJobs(rec)
	return nil
}
