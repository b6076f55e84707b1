// Package vectorstore defines the embedding records persisted for the
// natural-language-to-SQL assistant and the writer contract implemented by the
// Postgres (pgvector) and BigQuery backends.
//
// Rows are replaced, never patched: each write deletes whatever is stored
// under a record's natural key and inserts the new row. Nothing enforces
// uniqueness beyond that ordering, so two writers racing on the same key can
// leave a duplicate or lose an update.
package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/errs"
)

type Backend string

const (
	BackendPGVector Backend = "cloudsql-pgvector"
	BackendBigQuery Backend = "bigquery-vector"
)

const (
	TableDetailsTable  = "table_details_embeddings"
	ColumnDetailsTable = "tablecolumn_details_embeddings"
	ExamplesTable      = "example_prompt_sql_embeddings"
)

// EmbeddingDimensions is the vector width of every embedding column.
const EmbeddingDimensions = 768

// StoredConfirmation is returned by a successful schema embedding write.
const StoredConfirmation = "Embeddings are stored successfully"

func ParseBackend(raw string) (Backend, error) {
	switch Backend(strings.TrimSpace(raw)) {
	case BackendPGVector:
		return BackendPGVector, nil
	case BackendBigQuery:
		return BackendBigQuery, nil
	default:
		return "", fmt.Errorf("%w: vector store must be either %s or %s, got %q",
			errs.ErrInvalidConfiguration, BackendPGVector, BackendBigQuery, raw)
	}
}

// TableDetail is keyed by (TableSchema, TableName).
type TableDetail struct {
	SourceType  string
	TableSchema string
	TableName   string
	Content     string
	Embedding   []float32
}

// ColumnDetail is keyed by (TableSchema, TableName, ColumnName).
type ColumnDetail struct {
	SourceType  string
	TableSchema string
	TableName   string
	ColumnName  string
	Content     string
	Embedding   []float32
}

// Example is a question/SQL pair accepted by a user, keyed by
// (TableSchema, UserQuestion).
type Example struct {
	TableSchema  string
	UserQuestion string
	GeneratedSQL string
	Embedding    []float32
}

type Writer interface {
	// StoreSchemaEmbeddings ensures the embedding tables exist and replaces the
	// stored rows for every key present in the batch. Table rows are written
	// before column rows. A failure leaves earlier rows applied.
	StoreSchemaEmbeddings(ctx context.Context, tables []TableDetail, columns []ColumnDetail) (string, error)
	// UpsertExample replaces the example stored under the same key.
	UpsertExample(ctx context.Context, example Example) error
	Backend() Backend
	Close() error
}
