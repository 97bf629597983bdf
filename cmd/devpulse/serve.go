package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/qs3c/devpulse_tracker/internal/api"
	"github.com/qs3c/devpulse_tracker/internal/api/handler"
	"github.com/qs3c/devpulse_tracker/internal/pkg/oauth"
	"github.com/qs3c/devpulse_tracker/internal/pkg/pubsub"
	"github.com/qs3c/devpulse_tracker/internal/pkg/queue"
	"github.com/qs3c/devpulse_tracker/internal/pkg/ws"
	"github.com/qs3c/devpulse_tracker/internal/service"
)

const (
	publishTimeout   = time.Second
	trackPollTimeout = 5 * time.Second
	shutdownTimeout  = 10 * time.Second
)

var serveNoLoad bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local gateway and keep tracking jobs",
	RunE:  withApp(runServe),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoLoad, "no-load", false, "Do not fetch the analysis list on startup")
}

func runServe(cmd *cobra.Command, a *app, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			log.Println("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	// WebSocket Hub
	wsHub := ws.NewHub()
	go wsHub.Run(ctx)
	log.Println("WebSocket hub started")

	websocketHandler := handler.NewWebSocketHandler(wsHub, a.store, a.cfg.CORS)
	a.store.Subscribe(websocketHandler.Listener())

	// Redis 可用时：变更发布给 watch，消费 CLI 交过来的跟踪请求，登录校验 state
	var states service.LoginStates
	if a.rdb != nil {
		publisher := pubsub.NewPublisher(a.rdb)
		a.store.Subscribe(publisher.Forward(publishTimeout))

		trackQueue := queue.NewQueue(a.rdb, queue.DefaultName)
		go a.tracker.ConsumeTrackRequests(ctx, trackQueue, trackPollTimeout)

		states = oauth.NewStateStore(a.rdb)
		log.Println("Redis change feed and track queue enabled")
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	callbackURL := fmt.Sprintf("http://%s/api/v1/auth/callback", addr)

	authService := service.NewAuthService(a.session, states, a.cfg.API.BaseURL, callbackURL)
	credentialService := newCredentialService(a)

	router := api.NewRouter(
		handler.NewAuthHandler(authService),
		handler.NewAnalysisHandler(a.tracker),
		handler.NewCredentialHandler(credentialService),
		websocketHandler,
		a.session,
		a.cfg,
	)

	if !serveNoLoad {
		loadCtx, loadCancel := a.requestContext(ctx)
		err := a.tracker.LoadAnalyses(loadCtx)
		loadCancel()
		switch {
		case errors.Is(err, service.ErrNotAuthenticated):
			log.Printf("Not logged in, open http://%s/api/v1/auth/login to sign in", addr)
		case err != nil:
			log.Printf("Initial load failed: %v", err)
		default:
			log.Printf("Loaded %d analyses, tracking %d", a.store.Len(), len(a.tracker.ActiveTrackers()))
		}
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: router.Setup(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Gateway listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("gateway failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Gateway shutdown error: %v", err)
	}
	log.Println("Gateway shutdown complete")
	return nil
}
