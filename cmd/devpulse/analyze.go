package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qs3c/devpulse_tracker/internal/model/dto"
	"github.com/qs3c/devpulse_tracker/internal/pkg/queue"
	"github.com/qs3c/devpulse_tracker/internal/worker"
)

var (
	analyzeName    string
	analyzeOwner   string
	analyzeDetach  bool
	analyzeHandoff bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <repo-url>",
	Short: "Submit a repository for analysis and follow its progress",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runAnalyze),
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeName, "name", "", "Repository name (derived from the URL if unset)")
	analyzeCmd.Flags().StringVar(&analyzeOwner, "owner", "", "Repository owner (derived from the URL if unset)")
	analyzeCmd.Flags().BoolVar(&analyzeDetach, "detach", false, "Return right after submitting")
	analyzeCmd.Flags().BoolVar(&analyzeHandoff, "handoff", false, "Hand tracking over to a running 'devpulse serve' via redis")
}

func runAnalyze(cmd *cobra.Command, a *app, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reqCtx, cancel := a.requestContext(ctx)
	result, err := a.tracker.SubmitAnalysis(reqCtx, dto.SubmitAnalysisRequest{
		RepoURL:  args[0],
		RepoName: analyzeName,
		Owner:    analyzeOwner,
	})
	cancel()
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Analysis %s started\n", result.AnalysisID)

	if analyzeHandoff {
		a.tracker.Leave()
		rec, _ := a.store.Get(result.AnalysisID)
		return handoff(ctx, a, &queue.TrackRequest{
			Kind:       queue.TrackAnalysis,
			AnalysisID: result.AnalysisID,
			RepoName:   rec.RepoName,
			RepoOwner:  rec.RepoOwner,
			RepoURL:    rec.RepoURL,
		})
	}
	if analyzeDetach {
		a.tracker.Leave()
		if jsonOutput {
			return printJSON(result)
		}
		return nil
	}

	key := worker.AnalysisKey(result.AnalysisID)
	if err := follow(ctx, a.store, func() bool { return !a.tracker.Registry().Active(key) }); err != nil {
		return err
	}

	final, ok := a.store.Get(result.AnalysisID)
	if !ok {
		return fmt.Errorf("analysis %s missing from store", result.AnalysisID)
	}
	if !final.Status.IsTerminal() {
		return fmt.Errorf("stopped tracking analysis %s at %s (%d%%)", final.ID, final.Status, final.Progress)
	}
	if jsonOutput {
		return printJSON(final)
	}
	if score, ok := final.QualityScore(); ok {
		fmt.Printf("Analysis %s %s, quality score %d (%s)\n", final.ID, final.Status, score, final.CodeQuality.Grade)
	} else {
		fmt.Printf("Analysis %s %s\n", final.ID, final.Status)
	}
	return nil
}

// handoff 把跟踪请求交给 serve 进程
func handoff(ctx context.Context, a *app, req *queue.TrackRequest) error {
	if a.rdb == nil {
		return errRedisRequired
	}
	if err := queue.NewQueue(a.rdb, queue.DefaultName).Push(ctx, req); err != nil {
		return fmt.Errorf("failed to hand off tracking: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Tracking handed off to the gateway\n")
	return nil
}
