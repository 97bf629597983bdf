package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qs3c/devpulse_tracker/internal/model/dto"
	"github.com/qs3c/devpulse_tracker/internal/pkg/oauth"
	"github.com/qs3c/devpulse_tracker/internal/service"
)

var (
	patSkipVerify bool
	patSync       bool
	patServer     bool
)

var patCmd = &cobra.Command{
	Use:   "pat",
	Short: "Manage the GitHub personal access token used for fix pull requests",
}

var patSetCmd = &cobra.Command{
	Use:   "set <token>",
	Short: "Verify and store a personal access token",
	Args:  cobra.ExactArgs(1),
	RunE:  withApp(runPatSet),
}

var patRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the stored personal access token",
	RunE:  withApp(runPatRemove),
}

var patStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a personal access token is stored locally",
	RunE:  withApp(runPatStatus),
}

var patServerStatusCmd = &cobra.Command{
	Use:   "server-status",
	Short: "Show whether the DevPulse service holds a token for you",
	RunE:  withApp(runPatServerStatus),
}

func init() {
	rootCmd.AddCommand(patCmd)
	patCmd.AddCommand(patSetCmd, patRemoveCmd, patStatusCmd, patServerStatusCmd)

	patSetCmd.Flags().BoolVar(&patSkipVerify, "skip-verify", false, "Store without checking the token against GitHub")
	patSetCmd.Flags().BoolVar(&patSync, "sync", false, "Also save the token on the DevPulse service")
	patRemoveCmd.Flags().BoolVar(&patServer, "server", false, "Also delete the token saved on the DevPulse service")
}

func newCredentialService(a *app) *service.CredentialService {
	return service.NewCredentialService(a.creds, oauth.NewTokenVerifier(a.cfg.Github.APIURL, nil), a.api)
}

func runPatSet(cmd *cobra.Command, a *app, args []string) error {
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	status, err := newCredentialService(a).Save(ctx, dto.SaveCredentialRequest{
		Token:        args[0],
		SkipVerify:   patSkipVerify,
		SyncToServer: patSync,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(status)
	}
	if status.GithubLogin != "" {
		fmt.Printf("Token saved for GitHub user %s\n", status.GithubLogin)
	} else {
		fmt.Println("Token saved")
	}
	return nil
}

func runPatRemove(cmd *cobra.Command, a *app, args []string) error {
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	if err := newCredentialService(a).Remove(ctx, patServer); err != nil {
		return err
	}
	fmt.Println("Token removed")
	return nil
}

func runPatStatus(cmd *cobra.Command, a *app, args []string) error {
	status := newCredentialService(a).Status(cmd.Context())
	if jsonOutput {
		return printJSON(status)
	}
	if status.HasCredential {
		fmt.Println("A personal access token is stored")
	} else {
		fmt.Println("No personal access token stored")
	}
	return nil
}

func runPatServerStatus(cmd *cobra.Command, a *app, args []string) error {
	ctx, cancel := a.requestContext(cmd.Context())
	defer cancel()

	status, err := newCredentialService(a).ServerStatus(ctx)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]interface{}{
			"has_token":       status.ServerHoldsToken(),
			"github_username": status.GithubUsername,
		})
	}
	switch {
	case !status.ServerHoldsToken():
		fmt.Println("The service holds no token")
	case status.GithubUsername != "":
		fmt.Printf("The service holds a token for %s\n", status.GithubUsername)
	default:
		fmt.Println("The service holds a token")
	}
	return nil
}
