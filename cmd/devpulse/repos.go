package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List GitHub repositories available for analysis",
	RunE:  withApp(runRepos),
}

func init() {
	rootCmd.AddCommand(reposCmd)
}

func runRepos(cmd *cobra.Command, a *app, args []string) error {
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	repos, err := a.tracker.ListRepos(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(repos)
	}
	if len(repos) == 0 {
		fmt.Println("No repositories.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tLANGUAGE\tURL")
	for _, r := range repos {
		lang := r.Language
		if lang == "" {
			lang = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.FullName, lang, r.URL)
	}
	return w.Flush()
}
