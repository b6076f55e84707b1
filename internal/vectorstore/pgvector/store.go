// Package pgvector writes embedding rows into Postgres tables backed by the
// pgvector extension, one connection per call.
package pgvector

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
	pgv "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

// Opener hands out a database handle scoped to a single call. The store closes
// it when the call returns.
type Opener interface {
	Open(ctx context.Context) (*sql.DB, error)
}

type Store struct {
	opener        Opener
	sourceType    string
	logger        *slog.Logger
	registerCodec func(ctx context.Context, conn *sql.Conn) error
}

var _ vectorstore.Writer = (*Store)(nil)

// NewStore returns a writer that tags every schema row with sourceType.
func NewStore(opener Opener, sourceType string, logger *slog.Logger) (*Store, error) {
	if opener == nil {
		return nil, fmt.Errorf("vector store opener is required")
	}
	return &Store{
		opener:        opener,
		sourceType:    sourceType,
		logger:        observability.LoggerOrDiscard(logger),
		registerCodec: registerVectorCodec,
	}, nil
}

func (s *Store) Backend() vectorstore.Backend {
	return vectorstore.BackendPGVector
}

func (s *Store) Close() error {
	if closer, ok := s.opener.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (s *Store) StoreSchemaEmbeddings(ctx context.Context, tables []vectorstore.TableDetail, columns []vectorstore.ColumnDetail) (string, error) {
	conn, release, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	if err := s.prepare(ctx, conn); err != nil {
		return "", err
	}
	for _, statement := range ensureTableStatements {
		if _, err := conn.ExecContext(ctx, statement); err != nil {
			return "", fmt.Errorf("ensure embedding table: %w", err)
		}
	}

	for _, row := range tables {
		if _, err := conn.ExecContext(ctx, deleteTableDetailSQL, row.TableSchema, row.TableName); err != nil {
			return "", fmt.Errorf("delete table embedding %s.%s: %w", row.TableSchema, row.TableName, err)
		}
		if _, err := conn.ExecContext(ctx, insertTableDetailSQL,
			s.sourceType, row.TableSchema, row.TableName, row.Content, pgv.NewVector(row.Embedding),
		); err != nil {
			return "", fmt.Errorf("insert table embedding %s.%s: %w", row.TableSchema, row.TableName, err)
		}
	}
	observability.AddVectorRowsWritten(string(vectorstore.BackendPGVector), vectorstore.TableDetailsTable, len(tables))

	for _, row := range columns {
		if _, err := conn.ExecContext(ctx, deleteColumnDetailSQL, row.TableSchema, row.TableName, row.ColumnName); err != nil {
			return "", fmt.Errorf("delete column embedding %s.%s.%s: %w", row.TableSchema, row.TableName, row.ColumnName, err)
		}
		if _, err := conn.ExecContext(ctx, insertColumnDetailSQL,
			s.sourceType, row.TableSchema, row.TableName, row.ColumnName, row.Content, pgv.NewVector(row.Embedding),
		); err != nil {
			return "", fmt.Errorf("insert column embedding %s.%s.%s: %w", row.TableSchema, row.TableName, row.ColumnName, err)
		}
	}
	observability.AddVectorRowsWritten(string(vectorstore.BackendPGVector), vectorstore.ColumnDetailsTable, len(columns))

	s.logger.Info("stored schema embeddings", "tables", len(tables), "columns", len(columns), "source_type", s.sourceType)
	return vectorstore.StoredConfirmation, nil
}

func (s *Store) UpsertExample(ctx context.Context, example vectorstore.Example) error {
	conn, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := s.prepare(ctx, conn); err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, deleteExampleSQL, example.TableSchema, example.UserQuestion); err != nil {
		return fmt.Errorf("delete example embedding: %w", err)
	}
	if _, err := conn.ExecContext(ctx, insertExampleSQL,
		example.TableSchema, example.UserQuestion, example.GeneratedSQL, pgv.NewVector(example.Embedding),
	); err != nil {
		return fmt.Errorf("insert example embedding: %w", err)
	}
	observability.AddVectorRowsWritten(string(vectorstore.BackendPGVector), vectorstore.ExamplesTable, 1)
	return nil
}

// acquire opens a handle and pins one connection for the whole call.
func (s *Store) acquire(ctx context.Context) (*sql.Conn, func(), error) {
	db, err := s.opener.Open(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("open vector store: %w", err)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("acquire vector store connection: %w", err)
	}
	release := func() {
		if err := conn.Close(); err != nil {
			s.logger.Warn("close vector store connection", "error", err)
		}
		if err := db.Close(); err != nil {
			s.logger.Warn("close vector store db", "error", err)
		}
	}
	return conn, release, nil
}

func (s *Store) prepare(ctx context.Context, conn *sql.Conn) error {
	if _, err := conn.ExecContext(ctx, createExtensionSQL); err != nil {
		return fmt.Errorf("enable vector extension: %w", err)
	}
	if err := s.registerCodec(ctx, conn); err != nil {
		return fmt.Errorf("register vector codec: %w", err)
	}
	return nil
}

func registerVectorCodec(ctx context.Context, conn *sql.Conn) error {
	return conn.Raw(func(driverConn any) error {
		pgxConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return fmt.Errorf("unexpected driver connection %T", driverConn)
		}
		return pgxvec.RegisterTypes(ctx, pgxConn.Conn())
	})
}
