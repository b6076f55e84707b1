// Package schemasync runs a schema-sync pass: it fills in any missing
// embeddings for a batch of table and column descriptions, optionally archives
// the embedded batch, and hands it to the vector store writer.
package schemasync

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/storage"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

type Batch struct {
	Tables  []vectorstore.TableDetail
	Columns []vectorstore.ColumnDetail
}

type Embedder interface {
	EmbedAll(ctx context.Context, texts []string) ([][]float32, error)
}

type Service struct {
	embedder   Embedder
	writer     vectorstore.Writer
	archive    storage.ObjectPutter
	sourceType string
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Service)

// WithArchive stores each embedded batch as parquet under the source type.
func WithArchive(putter storage.ObjectPutter, sourceType string) Option {
	return func(s *Service) {
		s.archive = putter
		s.sourceType = sourceType
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = observability.LoggerOrDiscard(logger)
	}
}

func NewService(embedder Embedder, writer vectorstore.Writer, opts ...Option) (*Service, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if writer == nil {
		return nil, fmt.Errorf("vector store writer is required")
	}
	service := &Service{
		embedder: embedder,
		writer:   writer,
		logger:   observability.LoggerOrDiscard(nil),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

func (s *Service) Run(ctx context.Context, batch Batch) (string, error) {
	if err := s.embedTables(ctx, batch.Tables); err != nil {
		return "", err
	}
	if err := s.embedColumns(ctx, batch.Columns); err != nil {
		return "", err
	}
	if s.archive != nil {
		if err := s.archiveBatch(ctx, batch); err != nil {
			return "", err
		}
	}

	confirmation, err := s.writer.StoreSchemaEmbeddings(ctx, batch.Tables, batch.Columns)
	if err != nil {
		return "", fmt.Errorf("store schema embeddings: %w", err)
	}
	s.logger.Info("schema sync complete",
		"backend", s.writer.Backend(),
		"tables", len(batch.Tables),
		"columns", len(batch.Columns),
	)
	return confirmation, nil
}

func (s *Service) embedTables(ctx context.Context, rows []vectorstore.TableDetail) error {
	var pending []int
	var texts []string
	for i, row := range rows {
		if len(row.Embedding) == 0 {
			pending = append(pending, i)
			texts = append(texts, row.Content)
		}
	}
	vectors, err := s.embedPending(ctx, "table", texts)
	if err != nil {
		return err
	}
	for j, i := range pending {
		rows[i].Embedding = vectors[j]
	}
	return nil
}

func (s *Service) embedColumns(ctx context.Context, rows []vectorstore.ColumnDetail) error {
	var pending []int
	var texts []string
	for i, row := range rows {
		if len(row.Embedding) == 0 {
			pending = append(pending, i)
			texts = append(texts, row.Content)
		}
	}
	vectors, err := s.embedPending(ctx, "column", texts)
	if err != nil {
		return err
	}
	for j, i := range pending {
		rows[i].Embedding = vectors[j]
	}
	return nil
}

func (s *Service) embedPending(ctx context.Context, kind string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %s descriptions: %w", kind, err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed %s descriptions: got %d vectors for %d inputs", kind, len(vectors), len(texts))
	}
	s.logger.Debug("embedded descriptions", "kind", kind, "count", len(texts))
	return vectors, nil
}

func (s *Service) archiveBatch(ctx context.Context, batch Batch) error {
	runAt := s.now()
	tables, err := EncodeTableDetails(batch.Tables)
	if err != nil {
		return err
	}
	columns, err := EncodeColumnDetails(batch.Columns)
	if err != nil {
		return err
	}
	files := []struct {
		object  string
		payload []byte
	}{
		{object: storage.TableDetailsObject, payload: tables},
		{object: storage.ColumnDetailsObject, payload: columns},
	}
	for _, file := range files {
		object, payload := file.object, file.payload
		key, err := storage.BuildArchiveKey(s.sourceType, runAt, object)
		if err != nil {
			return fmt.Errorf("build archive key: %w", err)
		}
		if _, err := s.archive.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), storage.ParquetContentType); err != nil {
			return fmt.Errorf("archive %s: %w", object, err)
		}
		s.logger.Info("archived batch file", "key", key, "bytes", len(payload))
	}
	return nil
}

// LoadBatch reads the table and column parquet files of a batch. An empty
// columnsKey loads tables only.
func LoadBatch(ctx context.Context, getter storage.ObjectGetter, tablesKey, columnsKey string) (Batch, error) {
	var batch Batch
	data, err := readObject(ctx, getter, tablesKey)
	if err != nil {
		return Batch{}, err
	}
	if batch.Tables, err = DecodeTableDetails(data); err != nil {
		return Batch{}, err
	}
	if columnsKey == "" {
		return batch, nil
	}
	data, err = readObject(ctx, getter, columnsKey)
	if err != nil {
		return Batch{}, err
	}
	if batch.Columns, err = DecodeColumnDetails(data); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

func readObject(ctx context.Context, getter storage.ObjectGetter, key string) ([]byte, error) {
	body, err := getter.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load batch file: %w", err)
	}
	defer func() { _ = body.Close() }()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read batch file %q: %w", key, err)
	}
	return data, nil
}
