package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/qs3c/devpulse_tracker/config"
	"github.com/qs3c/devpulse_tracker/internal/database"
	"github.com/qs3c/devpulse_tracker/internal/pkg/apiclient"
	"github.com/qs3c/devpulse_tracker/internal/pkg/credential"
	"github.com/qs3c/devpulse_tracker/internal/pkg/session"
	"github.com/qs3c/devpulse_tracker/internal/pkg/telemetry"
	"github.com/qs3c/devpulse_tracker/internal/repository"
	"github.com/qs3c/devpulse_tracker/internal/service"
	"github.com/qs3c/devpulse_tracker/internal/store"
)

var errRedisRequired = errors.New("redis is not enabled (set redis.enabled in config)")

// app 每个命令共用的依赖
type app struct {
	cfg     *config.Config
	db      *gorm.DB
	rdb     *redis.Client
	store   *store.Store
	api     *apiclient.Client
	creds   *credential.Store
	session *session.Store
	archive *repository.SnapshotRepository
	tracker *service.TrackerService
	tracing telemetry.Shutdown
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	tracing, err := telemetry.Setup(cfg.Tracing, os.Stderr)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	a := &app{cfg: cfg, db: db, tracing: tracing, store: store.New()}

	if cfg.Redis.Enabled {
		a.rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to connect redis: %w", err)
		}
	}

	var backend credential.Backend
	switch cfg.Credential.Backend {
	case "redis":
		if a.rdb == nil {
			a.close()
			return nil, errRedisRequired
		}
		backend = credential.NewRedisBackend(a.rdb)
	default:
		backend = repository.NewSecretRepository(db)
	}

	a.creds = credential.NewStore(backend, credential.NewCipher(cfg.Credential.EncryptionKey))
	a.session = session.NewStore(backend)
	a.api = apiclient.New(cfg.API, a.session.TokenSource(), apiclient.WithUnauthorizedHook(a.session.ClearOnUnauthorized))
	a.archive = repository.NewSnapshotRepository(db)
	a.tracker = service.NewTrackerService(a.api, a.store, a.creds, a.session, a.archive, cfg.Polling)
	return a, nil
}

func (a *app) close() {
	if a.tracker != nil {
		a.tracker.Close()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracing(ctx); err != nil {
			log.Printf("Failed to flush traces: %v", err)
		}
	}
}

// requestContext 单次命令的超时
func (a *app) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := a.cfg.API.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return context.WithTimeout(parent, 2*timeout)
}

// withApp 包装 RunE，负责创建和关闭依赖
func withApp(run func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()
		return run(cmd, a, args)
	}
}
