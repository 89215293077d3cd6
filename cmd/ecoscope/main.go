package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/ecoscope/ecoscope/internal/analysis"
	"github.com/ecoscope/ecoscope/internal/app"
	"github.com/ecoscope/ecoscope/internal/dashboard"
	"github.com/ecoscope/ecoscope/internal/identity"
	"github.com/ecoscope/ecoscope/internal/identity/kratos"
	"github.com/ecoscope/ecoscope/internal/observability"
	"github.com/ecoscope/ecoscope/internal/platform/cache"
	"github.com/ecoscope/ecoscope/internal/platform/db"
	"github.com/ecoscope/ecoscope/internal/profiles"
	"github.com/ecoscope/ecoscope/internal/session"
	"github.com/ecoscope/ecoscope/internal/shared"
	"github.com/ecoscope/ecoscope/internal/weather"
	"github.com/ecoscope/ecoscope/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	credentials := shared.NewCredentialStore(redisClient, cfg.InstallationID)

	var idp session.IdentityProvider
	switch cfg.IdentityDriver {
	case app.IdentityDriverKratos:
		idp = kratos.NewProvider(kratos.NewAPIClient(cfg.KratosPublicURL, cfg.KratosTimeout), credentials, logger)
	default:
		tokens := identity.NewTokenIssuer(cfg.SessionSecret, cfg.SessionTTL)
		idp = identity.NewLocalProvider(identity.NewRepository(pool), tokens, credentials, logger)
	}
	logger.Info("identity provider ready", slog.String("driver", cfg.IdentityDriver))

	metrics := observability.NewMetrics()

	manager := session.NewManager(idp, profiles.NewPGStore(pool),
		session.WithLogger(logger),
		session.WithObserver(metrics),
	)
	controller := session.NewController(manager)
	initial := controller.Start(ctx)
	logger.Info("session restored", slog.String("state", initial.Kind.String()))

	analyzer := analysis.NewClient(cfg.AnalysisBaseURL, cfg.AnalysisTimeout, cfg.AnalysisRPS)
	conditions := weather.NewClient(cfg.WeatherBaseURL, cfg.WeatherAPIKey, redisClient, cfg.WeatherCacheTTL, logger)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:     logger,
		Config:     cfg,
		Dashboard:  dashboard.NewHandler(logger, controller, analyzer, conditions, jobClient),
		JobHandler: jobs.NewHandler(inspector, logger),
		Metrics:    metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}
