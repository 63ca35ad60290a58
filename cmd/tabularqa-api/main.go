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

	"github.com/tabularqa/tabularqa/internal/api"
	"github.com/tabularqa/tabularqa/internal/auth"
	"github.com/tabularqa/tabularqa/internal/config"
	"github.com/tabularqa/tabularqa/internal/freeform"
	historypostgres "github.com/tabularqa/tabularqa/internal/history/postgres"
	"github.com/tabularqa/tabularqa/internal/llm"
	"github.com/tabularqa/tabularqa/internal/observability"
	"github.com/tabularqa/tabularqa/internal/pipeline"
	"github.com/tabularqa/tabularqa/internal/router"
	"github.com/tabularqa/tabularqa/internal/sqlrun"
	"github.com/tabularqa/tabularqa/internal/sqlsafety"
	"github.com/tabularqa/tabularqa/internal/store"
	"github.com/tabularqa/tabularqa/internal/synth"
)

func main() {
	cfg, err := config.LoadFromEnv("tabularqa-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	db, err := store.Open(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("failed to open billing database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	if err := store.ApplySchema(context.Background(), db); err != nil {
		logger.Error("failed to apply schema", slog.Any("error", err))
		os.Exit(1)
	}

	modelClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize model client", slog.Any("error", err))
		os.Exit(1)
	}

	safetyCfg := sqlsafety.DefaultConfig()
	safetyCfg.RequireLimit = cfg.Safety.RequireLimit
	safetyCfg.DefaultLimit = cfg.Safety.DefaultLimit

	chat := pipeline.New(
		router.New(modelClient, router.NewPlanCache(), logger),
		freeform.NewGenerator(modelClient, safetyCfg, logger),
		sqlrun.NewAgent(db, safetyCfg, logger),
		synth.NewSynthesizer(modelClient, logger),
		logger,
	)

	deps := api.Dependencies{
		Logger: logger,
		Chat:   chat,
		Readiness: api.CombineReadinessChecks(
			api.CheckModelConfig(cfg),
			api.CheckDatabase(db.PingContext),
		),
		DependencyTimeout: time.Second,
	}

	if cfg.History.DSN != "" {
		historyDB, err := historypostgres.Open(context.Background(), cfg.History)
		if err != nil {
			logger.Error("failed to open history db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = historyDB.Close() }()
		historyRepo := historypostgres.NewRepository(historyDB)
		if err := historyRepo.EnsureSchema(context.Background()); err != nil {
			logger.Error("failed to prepare history schema", slog.Any("error", err))
			os.Exit(1)
		}
		deps.History = historyRepo
		deps.Readiness = api.CombineReadinessChecks(deps.Readiness, historyRepo.HealthCheck)
	}

	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
