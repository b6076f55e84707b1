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

	"github.com/brendanhills/applied-ai-engineering-samples/internal/api"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/app"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/auth"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/config"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/examples"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("dataqna-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	embedder, err := app.NewEmbedder(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize embedder", slog.Any("error", err))
		os.Exit(1)
	}
	generator, err := app.NewResponder(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize responder", slog.Any("error", err))
		os.Exit(1)
	}
	store, err := app.OpenVectorStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open vector store", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	exampleService, err := examples.NewService(embedder, store, logger)
	if err != nil {
		logger.Error("failed to initialize example service", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:     logger,
		Examples:   exampleService,
		Summarizer: generator,
		Embedder:   embedder,
		Readiness: api.CombineReadinessChecks(
			api.CheckGCPConfig(cfg),
			api.CheckVectorStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("vector_store", cfg.VectorStore.Backend),
			slog.String("embedding_mode", cfg.Embedding.Mode),
		)
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
