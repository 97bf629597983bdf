package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	pruneOlderThan int
	pruneDryRun    bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete archived analysis snapshots older than N days",
	RunE:  withApp(runPrune),
}

func init() {
	rootCmd.AddCommand(pruneCmd)
	pruneCmd.Flags().IntVar(&pruneOlderThan, "older-than", 30, "Age in days")
	pruneCmd.Flags().BoolVar(&pruneDryRun, "dry-run", true, "Only report what would be deleted")
}

func runPrune(cmd *cobra.Command, a *app, args []string) error {
	if pruneOlderThan < 0 {
		return fmt.Errorf("--older-than must not be negative")
	}
	ctx := cmd.Context()
	cutoff := time.Now().AddDate(0, 0, -pruneOlderThan)

	if pruneDryRun {
		n, err := a.archive.CountBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		fmt.Printf("[DRY RUN] %d snapshots archived before %s would be deleted\n", n, cutoff.Format("2006-01-02 15:04"))
		return nil
	}

	n, err := a.archive.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d snapshots archived before %s\n", n, cutoff.Format("2006-01-02 15:04"))
	return nil
}
