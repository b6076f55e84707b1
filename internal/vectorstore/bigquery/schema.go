package bigquery

import (
	"fmt"
	"regexp"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

var (
	projectPattern = regexp.MustCompile(`^[a-z][a-z0-9.:-]{2,62}[a-z0-9]$`)
	datasetPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

const maxDatasetLength = 1024

type tableRef struct {
	Project string
	Dataset string
	Table   string
}

func (t tableRef) String() string {
	return fmt.Sprintf("`%s.%s.%s`", t.Project, t.Dataset, t.Table)
}

func validateLocation(project, dataset string) error {
	if !projectPattern.MatchString(project) {
		return fmt.Errorf("invalid bigquery project id %q", project)
	}
	if len(dataset) > maxDatasetLength || !datasetPattern.MatchString(dataset) {
		return fmt.Errorf("invalid bigquery dataset %q", dataset)
	}
	return nil
}

func createTableStatement(table tableRef) string {
	switch table.Table {
	case vectorstore.TableDetailsTable:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  source_type STRING NOT NULL,
  table_schema STRING NOT NULL,
  table_name STRING NOT NULL,
  content STRING,
  embedding ARRAY<FLOAT64>
)`, table)
	case vectorstore.ColumnDetailsTable:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  source_type STRING NOT NULL,
  table_schema STRING NOT NULL,
  table_name STRING NOT NULL,
  column_name STRING NOT NULL,
  content STRING,
  embedding ARRAY<FLOAT64>
)`, table)
	default:
		return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  table_schema STRING NOT NULL,
  example_user_question STRING NOT NULL,
  example_generated_sql STRING NOT NULL,
  embedding ARRAY<FLOAT64>
)`, table)
	}
}

func deleteByTableNamesStatement(table tableRef) string {
	return fmt.Sprintf(`DELETE FROM %s
WHERE table_schema = @table_schema AND table_name IN UNNEST(@table_names)`, table)
}

func deleteExampleStatement(table tableRef) string {
	return fmt.Sprintf(`DELETE FROM %s
WHERE table_schema = @table_schema AND example_user_question = @example_user_question`, table)
}

func insertExampleStatement(table tableRef) string {
	return fmt.Sprintf(`INSERT INTO %s (table_schema, example_user_question, example_generated_sql, embedding)
VALUES (@table_schema, @example_user_question, @example_generated_sql, @embedding)`, table)
}

type tableRow struct {
	SourceType  string    `json:"source_type"`
	TableSchema string    `json:"table_schema"`
	TableName   string    `json:"table_name"`
	Content     string    `json:"content"`
	Embedding   []float64 `json:"embedding"`
}

type columnRow struct {
	SourceType  string    `json:"source_type"`
	TableSchema string    `json:"table_schema"`
	TableName   string    `json:"table_name"`
	ColumnName  string    `json:"column_name"`
	Content     string    `json:"content"`
	Embedding   []float64 `json:"embedding"`
}

func float64s(values []float32) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	return out
}
