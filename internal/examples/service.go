// Package examples records question/SQL pairs a user accepted so later
// generations can retrieve them by similarity.
package examples

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

// Status is the marker returned for an accepted example.
type Status int

const StatusStored Status = 1

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	embedder Embedder
	store    vectorstore.Writer
	logger   *slog.Logger
}

func NewService(embedder Embedder, store vectorstore.Writer, logger *slog.Logger) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	return &Service{embedder: embedder, store: store, logger: observability.LoggerOrDiscard(logger)}, nil
}

// AddSQLEmbedding embeds question (never the SQL) and replaces the example
// stored for (schema, question).
func (s *Service) AddSQLEmbedding(ctx context.Context, question, generatedSQL, schema string) (status Status, err error) {
	backend := string(s.store.Backend())
	defer func() {
		observability.ObserveExampleUpsert(backend, err)
	}()

	embedding, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return 0, fmt.Errorf("embed example question: %w", err)
	}
	example := vectorstore.Example{
		TableSchema:  schema,
		UserQuestion: question,
		GeneratedSQL: strings.ReplaceAll(generatedSQL, "\n", " "),
		Embedding:    embedding,
	}
	if err := s.store.UpsertExample(ctx, example); err != nil {
		return 0, fmt.Errorf("upsert example: %w", err)
	}
	s.logger.Info("stored example embedding", "table_schema", schema, "backend", backend)
	return StatusStored, nil
}
