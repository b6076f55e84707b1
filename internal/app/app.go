// Package app builds the embedding, response and vector store components from
// configuration. Each builder validates its selector (embedding mode, vector
// store backend) before creating any client.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/config"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/embedding"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/responder"
	s3store "github.com/brendanhills/applied-ai-engineering-samples/internal/storage/s3"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
	bqstore "github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore/bigquery"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore/pgvector"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vertex"
)

func NewEmbedder(ctx context.Context, cfg config.Config, logger *slog.Logger) (*embedding.Embedder, error) {
	mode, err := embedding.ParseMode(cfg.Embedding.Mode)
	if err != nil {
		return nil, err
	}

	var clients embedding.Clients
	switch mode {
	case embedding.ModeVertex:
		clients.Predictor, err = vertex.NewPredictClient(ctx, vertex.PredictConfig{
			ProjectID: cfg.GCP.ProjectID,
			Region:    cfg.GCP.Region,
		})
	case embedding.ModeLangVertex:
		client, clientErr := vertex.NewGenAIClient(ctx, cfg.GCP.ProjectID, cfg.GCP.Region)
		if clientErr == nil {
			clients.Service = client.Models
		}
		err = clientErr
	}
	if err != nil {
		return nil, fmt.Errorf("create %s embedding client: %w", mode, err)
	}

	return embedding.New(mode, cfg.Embedding.Model, clients,
		embedding.WithDimensions(cfg.Embedding.Dimensions),
		embedding.WithLogger(logger),
	)
}

func NewResponder(ctx context.Context, cfg config.Config, logger *slog.Logger) (*responder.Generator, error) {
	model := strings.TrimSpace(cfg.Responder.Model)
	var clients responder.Clients
	switch responder.FamilyOf(model) {
	case responder.FamilyGemini:
		client, err := vertex.NewGenAIClient(ctx, cfg.GCP.ProjectID, cfg.GCP.Region)
		if err != nil {
			return nil, err
		}
		clients.Generator = client.Models
	default:
		predictor, err := vertex.NewPredictClient(ctx, vertex.PredictConfig{
			ProjectID: cfg.GCP.ProjectID,
			Region:    cfg.GCP.Region,
		})
		if err != nil {
			return nil, err
		}
		clients.Predictor = predictor
	}
	return responder.New(model, clients, logger)
}

// OpenVectorStore returns the writer for the configured backend. An
// unsupported backend fails with errs.ErrInvalidConfiguration.
func OpenVectorStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (vectorstore.Writer, error) {
	backend, err := vectorstore.ParseBackend(cfg.VectorStore.Backend)
	if err != nil {
		return nil, err
	}
	logger = observability.LoggerOrDiscard(logger).With(slog.String("vector_store", string(backend)))

	switch backend {
	case vectorstore.BackendPGVector:
		connector, err := pgvector.NewConnector(ctx, pgvector.ConnConfig{
			DSN:                    cfg.Postgres.DSN,
			InstanceConnectionName: cfg.InstanceConnectionName(),
			Database:               cfg.Postgres.Database,
			User:                   cfg.Postgres.User,
			Password:               cfg.Postgres.Password,
			ConnectTimeout:         cfg.Postgres.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		store, err := pgvector.NewStore(connector, cfg.VectorStore.SourceType, logger)
		if err != nil {
			_ = connector.Close()
			return nil, err
		}
		return store, nil
	default:
		return bqstore.New(ctx, bqstore.Config{
			ProjectID:  cfg.BigQuery.ProjectID,
			Dataset:    cfg.BigQuery.Dataset,
			Location:   cfg.BigQuery.Location,
			SourceType: cfg.VectorStore.SourceType,
		}, logger)
	}
}

// ObjectStoreConfigured reports whether batch files can be read from or
// archived to object storage.
func ObjectStoreConfigured(cfg config.Config) bool {
	return strings.TrimSpace(cfg.ObjectStore.Endpoint) != "" && strings.TrimSpace(cfg.ObjectStore.Bucket) != ""
}

func OpenObjectStore(ctx context.Context, cfg config.Config) (*s3store.Bucket, error) {
	return s3store.New(ctx, s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
}
