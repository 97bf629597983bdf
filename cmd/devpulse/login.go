package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qs3c/devpulse_tracker/internal/service"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the DevPulse service",
	Long: `Without --token, prints the GitHub sign-in URL. The browser is sent back
to a running "devpulse serve", which stores the session.`,
	RunE: withApp(runLogin),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	RunE:  withApp(runLogout),
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sign-in, token and tracking state",
	RunE:  withApp(runStatus),
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd)
	loginCmd.Flags().StringVar(&loginToken, "token", "", "Session token issued by the DevPulse service")
}

func newAuthService(a *app) *service.AuthService {
	callbackURL := fmt.Sprintf("http://%s:%d/api/v1/auth/callback", a.cfg.Server.Host, a.cfg.Server.Port)
	return service.NewAuthService(a.session, nil, a.cfg.API.BaseURL, callbackURL)
}

func runLogin(cmd *cobra.Command, a *app, args []string) error {
	auth := newAuthService(a)
	if loginToken == "" {
		// 网关负责签发 state，这里直接走网关入口
		fmt.Printf("Start 'devpulse serve' and open http://%s:%d/api/v1/auth/login\n", a.cfg.Server.Host, a.cfg.Server.Port)
		return nil
	}
	if _, err := auth.CompleteLogin(cmd.Context(), loginToken, ""); err != nil {
		return err
	}
	fmt.Println("Logged in")
	return nil
}

func runLogout(cmd *cobra.Command, a *app, args []string) error {
	if err := newAuthService(a).Logout(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("Logged out")
	return nil
}

func runStatus(cmd *cobra.Command, a *app, args []string) error {
	ctx := cmd.Context()
	archived, err := a.archive.Count(ctx)
	if err != nil {
		return err
	}

	status := map[string]interface{}{
		"authenticated":  a.session.IsAuthenticated(ctx),
		"has_credential": a.creds.HasCredential(ctx),
		"archived":       archived,
		"redis":          a.rdb != nil,
		"api":            a.cfg.API.BaseURL,
	}
	if jsonOutput {
		return printJSON(status)
	}
	fmt.Printf("API:            %s\n", a.cfg.API.BaseURL)
	fmt.Printf("Logged in:      %v\n", status["authenticated"])
	fmt.Printf("GitHub token:   %v\n", status["has_credential"])
	fmt.Printf("Archived:       %d\n", archived)
	fmt.Printf("Redis:          %v\n", status["redis"])
	return nil
}
