package pgvector

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS vector`

const createTableDetailsSQL = `
CREATE TABLE IF NOT EXISTS table_details_embeddings (
  source_type VARCHAR(100) NOT NULL,
  table_schema VARCHAR(1024) NOT NULL,
  table_name VARCHAR(1024) NOT NULL,
  content TEXT,
  embedding vector(768)
)`

const createColumnDetailsSQL = `
CREATE TABLE IF NOT EXISTS tablecolumn_details_embeddings (
  source_type VARCHAR(100) NOT NULL,
  table_schema VARCHAR(1024) NOT NULL,
  table_name VARCHAR(1024) NOT NULL,
  column_name VARCHAR(1024) NOT NULL,
  content TEXT,
  embedding vector(768)
)`

const createExamplesSQL = `
CREATE TABLE IF NOT EXISTS example_prompt_sql_embeddings (
  table_schema VARCHAR(1024) NOT NULL,
  example_user_question TEXT NOT NULL,
  example_generated_sql TEXT NOT NULL,
  embedding vector(768)
)`

var ensureTableStatements = []string{
	createTableDetailsSQL,
	createColumnDetailsSQL,
	createExamplesSQL,
}

const deleteTableDetailSQL = `
DELETE FROM table_details_embeddings
WHERE table_schema = $1 AND table_name = $2`

const insertTableDetailSQL = `
INSERT INTO table_details_embeddings (source_type, table_schema, table_name, content, embedding)
VALUES ($1, $2, $3, $4, $5)`

const deleteColumnDetailSQL = `
DELETE FROM tablecolumn_details_embeddings
WHERE table_schema = $1 AND table_name = $2 AND column_name = $3`

const insertColumnDetailSQL = `
INSERT INTO tablecolumn_details_embeddings (source_type, table_schema, table_name, column_name, content, embedding)
VALUES ($1, $2, $3, $4, $5, $6)`

const deleteExampleSQL = `
DELETE FROM example_prompt_sql_embeddings
WHERE table_schema = $1 AND example_user_question = $2`

const insertExampleSQL = `
INSERT INTO example_prompt_sql_embeddings (table_schema, example_user_question, example_generated_sql, embedding)
VALUES ($1, $2, $3, $4)`
