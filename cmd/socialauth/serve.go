package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/socialauth/internal/backend"
	"github.com/dropDatabas3/socialauth/internal/backend/google"
	"github.com/dropDatabas3/socialauth/internal/config"
	healthctrl "github.com/dropDatabas3/socialauth/internal/http/controllers/health"
	socialctrl "github.com/dropDatabas3/socialauth/internal/http/controllers/social"
	"github.com/dropDatabas3/socialauth/internal/http/router"
	healthsvc "github.com/dropDatabas3/socialauth/internal/http/services/health"
	socialsvc "github.com/dropDatabas3/socialauth/internal/http/services/social"
	"github.com/dropDatabas3/socialauth/internal/metrics"
	"github.com/dropDatabas3/socialauth/internal/observability/logger"
	"github.com/dropDatabas3/socialauth/internal/pipeline"
	"github.com/dropDatabas3/socialauth/internal/session"
	"github.com/dropDatabas3/socialauth/internal/store"
	storememory "github.com/dropDatabas3/socialauth/internal/store/memory"
	storepg "github.com/dropDatabas3/socialauth/internal/store/pg"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       cfg.App.LogLevel,
		ServiceName: "socialauth",
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("serve")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Backends registrados. El registry es inmutable post-arranque.
	client := &http.Client{Timeout: cfg.ProviderTimeout()}
	src := backend.NewCredentialSource(cfg.SettingsView())
	registry := backend.NewRegistry(
		google.NewOpenID(src, nil),
		google.NewOAuth1(src, client),
		google.NewOAuth2(src, client),
	)

	// Session store.
	var sessions session.Store
	switch cfg.Session.Kind {
	case "redis":
		sessions, err = session.NewRedis(session.RedisConfig{
			Addr:       cfg.Session.Redis.Addr,
			Password:   cfg.Session.Redis.Password,
			DB:         cfg.Session.Redis.DB,
			Prefix:     cfg.Session.Redis.Prefix,
			DefaultTTL: cfg.SessionTTL(),
		})
		if err != nil {
			return fmt.Errorf("session redis: %w", err)
		}
	default:
		sessions = session.NewMemory(cfg.SessionTTL())
	}

	// Repositorio de cuentas.
	var repo store.Repository
	var closeStore func()
	switch cfg.Storage.Driver {
	case "postgres":
		pg, err := storepg.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return fmt.Errorf("store postgres: %w", err)
		}
		repo = pg
		closeStore = pg.Close
	default:
		repo = storememory.New()
	}
	if closeStore != nil {
		defer closeStore()
	}

	steps, err := pipeline.StepsByName(repo, cfg.Auth.Pipeline)
	if err != nil {
		return err
	}
	engine := pipeline.New(registry, steps)

	if err := metrics.RegisterAuth(nil); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	social := socialsvc.NewService(socialsvc.Deps{
		Registry:        registry,
		Credentials:     src,
		Engine:          engine,
		Sessions:        sessions,
		Repo:            repo,
		PartialKey:      cfg.Auth.PartialPipelineKey,
		DefaultRedirect: cfg.Auth.DefaultRedirect,
		NewUserRedirect: cfg.Auth.NewUserRedirect,
		TTL:             cfg.SessionTTL(),
	})

	healthDeps := healthsvc.Deps{Backends: registry.Names()}
	if cfg.Storage.Driver == "postgres" {
		healthDeps.StoreCheck = repo.Ping
	}
	if cfg.Session.Kind == "redis" {
		healthDeps.SessionCheck = func(ctx context.Context) error {
			return sessions.Set(ctx, "healthz:probe", "ok", time.Minute)
		}
	}

	handler := router.New(router.Deps{
		Social: socialctrl.NewControllers(socialctrl.ControllerDeps{
			Service:       social,
			Sessions:      sessions,
			ErrorRedirect: cfg.Auth.ErrorRedirect,
			SessionTTL:    cfg.SessionTTL(),
		}),
		Health: healthctrl.NewHealthController(healthsvc.NewHealthService(healthDeps)),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening",
			logger.String("addr", cfg.Server.Addr),
			logger.Any("backends", registry.Names()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
