// Package bigquery writes embedding rows into BigQuery tables holding the
// vectors as ARRAY<FLOAT64>. Schema rows are replaced a batch at a time: one
// delete per schema over the table names in the batch, then one append load.
package bigquery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/option"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/observability"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

type Config struct {
	ProjectID  string
	Dataset    string
	Location   string
	SourceType string
}

type Store struct {
	warehouse  warehouse
	project    string
	dataset    string
	sourceType string
	logger     *slog.Logger
}

var _ vectorstore.Writer = (*Store)(nil)

func New(ctx context.Context, cfg Config, logger *slog.Logger, opts ...option.ClientOption) (*Store, error) {
	cfg.ProjectID = strings.TrimSpace(cfg.ProjectID)
	cfg.Dataset = strings.TrimSpace(cfg.Dataset)
	if err := validateLocation(cfg.ProjectID, cfg.Dataset); err != nil {
		return nil, err
	}
	client, err := dialBigQuery(ctx, cfg.ProjectID, strings.TrimSpace(cfg.Location), opts...)
	if err != nil {
		return nil, err
	}
	return newWithWarehouse(cfg, client, logger)
}

func newWithWarehouse(cfg Config, w warehouse, logger *slog.Logger) (*Store, error) {
	if w == nil {
		return nil, fmt.Errorf("bigquery client is required")
	}
	project := strings.TrimSpace(cfg.ProjectID)
	dataset := strings.TrimSpace(cfg.Dataset)
	if err := validateLocation(project, dataset); err != nil {
		return nil, err
	}
	return &Store{
		warehouse:  w,
		project:    project,
		dataset:    dataset,
		sourceType: cfg.SourceType,
		logger:     observability.LoggerOrDiscard(logger),
	}, nil
}

func (s *Store) Backend() vectorstore.Backend {
	return vectorstore.BackendBigQuery
}

func (s *Store) Close() error {
	return s.warehouse.Close()
}

func (s *Store) table(name string) tableRef {
	return tableRef{Project: s.project, Dataset: s.dataset, Table: name}
}

func (s *Store) StoreSchemaEmbeddings(ctx context.Context, tables []vectorstore.TableDetail, columns []vectorstore.ColumnDetail) (string, error) {
	for _, name := range []string{vectorstore.TableDetailsTable, vectorstore.ColumnDetailsTable, vectorstore.ExamplesTable} {
		if err := s.ensureTable(ctx, s.table(name)); err != nil {
			return "", err
		}
	}

	tables = lastByKey(tables, func(row vectorstore.TableDetail) tableKey {
		return tableKey{schema: row.TableSchema, table: row.TableName}
	})
	columns = lastByKey(columns, func(row vectorstore.ColumnDetail) columnKey {
		return columnKey{tableKey: tableKey{schema: row.TableSchema, table: row.TableName}, column: row.ColumnName}
	})

	tableKeys := make([]tableKey, 0, len(tables))
	if len(tables) > 0 {
		rows := make([]any, 0, len(tables))
		for _, row := range tables {
			tableKeys = append(tableKeys, tableKey{schema: row.TableSchema, table: row.TableName})
			rows = append(rows, tableRow{
				SourceType:  s.sourceType,
				TableSchema: row.TableSchema,
				TableName:   row.TableName,
				Content:     row.Content,
				Embedding:   float64s(row.Embedding),
			})
		}
		if err := s.replace(ctx, s.table(vectorstore.TableDetailsTable), tableKeys, rows); err != nil {
			return "", err
		}
	}

	// Column rows of every table in the batch are replaced, so a table synced
	// without columns loses its stale column embeddings.
	if len(tables) > 0 || len(columns) > 0 {
		keys := append([]tableKey(nil), tableKeys...)
		rows := make([]any, 0, len(columns))
		for _, row := range columns {
			keys = append(keys, tableKey{schema: row.TableSchema, table: row.TableName})
			rows = append(rows, columnRow{
				SourceType:  s.sourceType,
				TableSchema: row.TableSchema,
				TableName:   row.TableName,
				ColumnName:  row.ColumnName,
				Content:     row.Content,
				Embedding:   float64s(row.Embedding),
			})
		}
		if err := s.replace(ctx, s.table(vectorstore.ColumnDetailsTable), keys, rows); err != nil {
			return "", err
		}
	}

	s.logger.Info("stored schema embeddings", "tables", len(tables), "columns", len(columns), "source_type", s.sourceType, "dataset", s.dataset)
	return vectorstore.StoredConfirmation, nil
}

func (s *Store) UpsertExample(ctx context.Context, example vectorstore.Example) error {
	target := s.table(vectorstore.ExamplesTable)
	if err := s.ensureTable(ctx, target); err != nil {
		return err
	}
	if err := s.warehouse.Exec(ctx, deleteExampleStatement(target), []bq.QueryParameter{
		{Name: "table_schema", Value: example.TableSchema},
		{Name: "example_user_question", Value: example.UserQuestion},
	}); err != nil {
		return fmt.Errorf("delete example embedding: %w", err)
	}
	if err := s.warehouse.Exec(ctx, insertExampleStatement(target), []bq.QueryParameter{
		{Name: "table_schema", Value: example.TableSchema},
		{Name: "example_user_question", Value: example.UserQuestion},
		{Name: "example_generated_sql", Value: example.GeneratedSQL},
		{Name: "embedding", Value: float64s(example.Embedding)},
	}); err != nil {
		return fmt.Errorf("insert example embedding: %w", err)
	}
	observability.AddVectorRowsWritten(string(vectorstore.BackendBigQuery), vectorstore.ExamplesTable, 1)
	return nil
}

func (s *Store) ensureTable(ctx context.Context, table tableRef) error {
	if err := s.warehouse.Exec(ctx, createTableStatement(table), nil); err != nil {
		return fmt.Errorf("ensure table %s: %w", table.Table, err)
	}
	return nil
}

// replace clears every (schema, table name) present in keys, then appends rows
// in a single load. No load runs when rows is empty.
func (s *Store) replace(ctx context.Context, target tableRef, keys []tableKey, rows []any) error {
	statement := deleteByTableNamesStatement(target)
	for _, group := range groupBySchema(keys) {
		s.logger.Debug("clearing embeddings", "table", target.Table, "table_schema", group.schema, "table_names", group.tables)
		if err := s.warehouse.Exec(ctx, statement, []bq.QueryParameter{
			{Name: "table_schema", Value: group.schema},
			{Name: "table_names", Value: group.tables},
		}); err != nil {
			return fmt.Errorf("clear %s for schema %s: %w", target.Table, group.schema, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	if err := s.warehouse.Append(ctx, target, rows); err != nil {
		return fmt.Errorf("append %s: %w", target.Table, err)
	}
	observability.AddVectorRowsWritten(string(vectorstore.BackendBigQuery), target.Table, len(rows))
	return nil
}

type tableKey struct {
	schema string
	table  string
}

type columnKey struct {
	tableKey
	column string
}

// lastByKey keeps one row per natural key: the last value seen, at the
// position where the key first appeared.
func lastByKey[T any, K comparable](rows []T, key func(T) K) []T {
	index := make(map[K]int, len(rows))
	kept := make([]T, 0, len(rows))
	for _, row := range rows {
		k := key(row)
		if i, ok := index[k]; ok {
			kept[i] = row
			continue
		}
		index[k] = len(kept)
		kept = append(kept, row)
	}
	return kept
}

type schemaGroup struct {
	schema string
	tables []string
}

// groupBySchema collects distinct table names per schema, in first-seen order.
func groupBySchema(keys []tableKey) []schemaGroup {
	index := make(map[string]int)
	seen := make(map[tableKey]struct{})
	groups := make([]schemaGroup, 0, 1)
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		i, ok := index[key.schema]
		if !ok {
			i = len(groups)
			index[key.schema] = i
			groups = append(groups, schemaGroup{schema: key.schema})
		}
		groups[i].tables = append(groups[i].tables, key.table)
	}
	return groups
}
