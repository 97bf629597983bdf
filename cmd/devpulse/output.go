package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/qs3c/devpulse_tracker/internal/model"
	"github.com/qs3c/devpulse_tracker/internal/pkg/pubsub"
	"github.com/qs3c/devpulse_tracker/internal/store"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnalyses(items []model.Analysis) error {
	if jsonOutput {
		return printJSON(items)
	}
	if len(items) == 0 {
		fmt.Println("No analyses.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPOSITORY\tSTATUS\tPROGRESS\tSCORE\tFIXES")
	for _, a := range items {
		score := "-"
		if s, ok := a.QualityScore(); ok {
			score = fmt.Sprintf("%d (%s)", s, a.CodeQuality.Grade)
		}
		fixes := "-"
		switch {
		case a.HasActiveFixes:
			fixes = "running"
		case a.HasCompletedFixes:
			fixes = "done"
		}
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%d%%\t%s\t%s\n", a.ID, a.RepoOwner, a.RepoName, a.Status, a.Progress, score, fixes)
	}
	return w.Flush()
}

func printFixJobs(a model.Analysis) {
	for _, f := range a.Fixes {
		line := fmt.Sprintf("  fix %s  %s  %d%%", f.JobID, f.Status, f.Progress)
		if f.PRURL != "" {
			line += "  " + f.PRURL
		}
		if f.Error != "" {
			line += "  error: " + f.Error
		}
		fmt.Println(line)
	}
}

// printChange 一行一个变更
func printChange(msg *pubsub.ChangeMessage) {
	if jsonOutput {
		data, err := json.Marshal(msg)
		if err == nil {
			fmt.Println(string(data))
		}
		return
	}

	subject := msg.AnalysisID
	if msg.JobID != "" {
		subject += "/" + msg.JobID
	}
	if msg.Change == string(store.ChangeReplaceAll) {
		fmt.Printf("%s  list refreshed (%d analyses)\n", msg.At.Format("15:04:05"), msg.Count)
		return
	}
	fmt.Printf("%s  %-24s %-14s %3d%%  %s\n", msg.At.Format("15:04:05"), subject, msg.Status, msg.Progress, msg.Message)
}
