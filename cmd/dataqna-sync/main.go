package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/app"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/cli/dataqnasync"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/config"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/schemasync"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/storage"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

func main() {
	cfg, err := config.LoadFromEnv("dataqna-sync")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	options := dataqnasync.Options{
		Backend:    cfg.VectorStore.Backend,
		SourceType: cfg.VectorStore.SourceType,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		OpenWriter: func(ctx context.Context, backend string) (vectorstore.Writer, error) {
			selected := cfg
			selected.VectorStore.Backend = backend
			return app.OpenVectorStore(ctx, selected, logger)
		},
		NewEmbedder: func(ctx context.Context) (schemasync.Embedder, error) {
			return app.NewEmbedder(ctx, cfg, logger)
		},
	}
	if app.ObjectStoreConfigured(cfg) {
		options.OpenObjectStore = func(ctx context.Context) (storage.ObjectStore, error) {
			return app.OpenObjectStore(ctx, cfg)
		}
	}

	code := dataqnasync.Run(ctx, os.Args[1:], options)
	stop()
	os.Exit(code)
}
