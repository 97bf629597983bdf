package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/qs3c/devpulse_tracker/internal/pkg/queue"
	"github.com/qs3c/devpulse_tracker/internal/service"
	"github.com/qs3c/devpulse_tracker/internal/worker"
)

var (
	fixDetach  bool
	fixHandoff bool
)

var fixCmd = &cobra.Command{
	Use:   "fix <analysis-id>",
	Short: "Start an autonomous fix that opens a pull request",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runFix),
}

func init() {
	rootCmd.AddCommand(fixCmd)
	fixCmd.Flags().BoolVar(&fixDetach, "detach", false, "Return right after the job is accepted")
	fixCmd.Flags().BoolVar(&fixHandoff, "handoff", false, "Hand tracking over to a running 'devpulse serve' via redis")
}

func runFix(cmd *cobra.Command, a *app, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	analysisID := args[0]
	reqCtx, cancel := a.requestContext(ctx)
	// 先拿到记录，修复任务的占位才有地方挂
	if _, err := a.tracker.RefreshAnalysis(reqCtx, analysisID); err != nil {
		cancel()
		return err
	}
	result, err := a.tracker.TriggerFix(reqCtx, analysisID)
	cancel()
	if errors.Is(err, service.ErrCredentialRequired) {
		return fmt.Errorf("%w; run 'devpulse pat set <token>' first", err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Fix job %s started for analysis %s\n", result.JobID, analysisID)
	a.tracker.Registry().Stop(worker.AnalysisKey(analysisID))

	if fixHandoff {
		a.tracker.Leave()
		return handoff(ctx, a, &queue.TrackRequest{
			Kind:       queue.TrackFixJob,
			AnalysisID: analysisID,
			JobID:      result.JobID,
		})
	}
	if fixDetach {
		a.tracker.Leave()
		if jsonOutput {
			return printJSON(result)
		}
		return nil
	}

	key := worker.FixJobKey(analysisID, result.JobID)
	if err := follow(ctx, a.store, func() bool { return !a.tracker.Registry().Active(key) }); err != nil {
		return err
	}

	job, ok := a.store.FixJob(analysisID, result.JobID)
	if !ok {
		return fmt.Errorf("fix job %s missing from store", result.JobID)
	}
	if jsonOutput {
		return printJSON(job)
	}
	switch {
	case job.PRURL != "":
		fmt.Printf("Fix job %s %s: %s\n", job.JobID, job.Status, job.PRURL)
	case job.Error != "":
		fmt.Printf("Fix job %s %s: %s\n", job.JobID, job.Status, job.Error)
	default:
		fmt.Printf("Fix job %s %s\n", job.JobID, job.Status)
	}
	if !job.Status.IsTerminal() {
		return fmt.Errorf("stopped tracking fix job %s at %s", job.JobID, job.Status)
	}
	return nil
}
