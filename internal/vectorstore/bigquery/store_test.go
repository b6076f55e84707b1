package bigquery

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	bq "cloud.google.com/go/bigquery"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

func TestStoreSchemaEmbeddingsEnsuresTablesThenDeletesThenAppends(t *testing.T) {
	wh := newFakeWarehouse()
	store := newTestStore(t, wh)

	got, err := store.StoreSchemaEmbeddings(context.Background(),
		[]vectorstore.TableDetail{
			{SourceType: "ignored", TableSchema: "sales", TableName: "orders", Content: "orders", Embedding: []float32{0.5}},
			{TableSchema: "sales", TableName: "customers", Content: "customers", Embedding: []float32{0.25}},
		},
		[]vectorstore.ColumnDetail{
			{TableSchema: "sales", TableName: "orders", ColumnName: "id", Content: "id", Embedding: []float32{1}},
		},
	)
	if err != nil {
		t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
	}
	if got != vectorstore.StoredConfirmation {
		t.Fatalf("StoreSchemaEmbeddings() = %q", got)
	}

	wantOps := []string{
		"create table_details_embeddings",
		"create tablecolumn_details_embeddings",
		"create example_prompt_sql_embeddings",
		"delete table_details_embeddings",
		"append table_details_embeddings",
		"delete tablecolumn_details_embeddings",
		"append tablecolumn_details_embeddings",
	}
	if !reflect.DeepEqual(wh.ops, wantOps) {
		t.Fatalf("ops = %#v, want %#v", wh.ops, wantOps)
	}

	deleteParams := wh.params[3]
	if deleteParams[0].Value != "sales" {
		t.Fatalf("table_schema param = %v", deleteParams[0].Value)
	}
	if names := deleteParams[1].Value.([]string); !reflect.DeepEqual(names, []string{"orders", "customers"}) {
		t.Fatalf("table_names param = %#v", names)
	}

	for _, row := range wh.rows[vectorstore.TableDetailsTable] {
		if row["source_type"] != "bigquery" {
			t.Fatalf("source_type = %v, want bigquery", row["source_type"])
		}
	}
	if n := len(wh.rows[vectorstore.ColumnDetailsTable]); n != 1 {
		t.Fatalf("column rows = %d, want 1", n)
	}
}

func TestStoreSchemaEmbeddingsResyncLeavesOmittedTablesUntouched(t *testing.T) {
	wh := newFakeWarehouse()
	store := newTestStore(t, wh)
	ctx := context.Background()

	first := []vectorstore.TableDetail{
		{TableSchema: "sales", TableName: "t1", Content: "v1", Embedding: []float32{1}},
		{TableSchema: "sales", TableName: "t2", Content: "v1", Embedding: []float32{1}},
	}
	if _, err := store.StoreSchemaEmbeddings(ctx, first, nil); err != nil {
		t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
	}
	second := []vectorstore.TableDetail{
		{TableSchema: "sales", TableName: "t2", Content: "v2", Embedding: []float32{2}},
	}
	if _, err := store.StoreSchemaEmbeddings(ctx, second, nil); err != nil {
		t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
	}

	contents := map[string]string{}
	for _, row := range wh.rows[vectorstore.TableDetailsTable] {
		name := row["table_name"].(string)
		if _, dup := contents[name]; dup {
			t.Fatalf("duplicate row for %s", name)
		}
		contents[name] = row["content"].(string)
	}
	want := map[string]string{"t1": "v1", "t2": "v2"}
	if !reflect.DeepEqual(contents, want) {
		t.Fatalf("contents = %#v, want %#v", contents, want)
	}
}

func TestStoreSchemaEmbeddingsIsIdempotent(t *testing.T) {
	wh := newFakeWarehouse()
	store := newTestStore(t, wh)
	ctx := context.Background()
	tables := []vectorstore.TableDetail{{TableSchema: "sales", TableName: "orders", Content: "c", Embedding: []float32{1}}}
	columns := []vectorstore.ColumnDetail{
		{TableSchema: "sales", TableName: "orders", ColumnName: "id", Content: "c", Embedding: []float32{1}},
		{TableSchema: "sales", TableName: "orders", ColumnName: "total", Content: "c", Embedding: []float32{1}},
	}

	for i := 0; i < 2; i++ {
		if _, err := store.StoreSchemaEmbeddings(ctx, tables, columns); err != nil {
			t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
		}
	}
	if n := len(wh.rows[vectorstore.TableDetailsTable]); n != 1 {
		t.Fatalf("table rows = %d, want 1", n)
	}
	if n := len(wh.rows[vectorstore.ColumnDetailsTable]); n != 2 {
		t.Fatalf("column rows = %d, want 2", n)
	}
}

func TestStoreSchemaEmbeddingsDeletesPerSchema(t *testing.T) {
	wh := newFakeWarehouse()
	store := newTestStore(t, wh)

	_, err := store.StoreSchemaEmbeddings(context.Background(), []vectorstore.TableDetail{
		{TableSchema: "sales", TableName: "orders", Embedding: []float32{1}},
		{TableSchema: "hr", TableName: "staff", Embedding: []float32{1}},
		{TableSchema: "sales", TableName: "orders", Embedding: []float32{1}},
	}, nil)
	if err != nil {
		t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
	}

	var deletes [][]bq.QueryParameter
	for i, op := range wh.ops {
		if op == "delete table_details_embeddings" {
			deletes = append(deletes, wh.params[i])
		}
	}
	if len(deletes) != 2 {
		t.Fatalf("delete statements = %d, want 2", len(deletes))
	}
	if deletes[0][0].Value != "sales" || !reflect.DeepEqual(deletes[0][1].Value, []string{"orders"}) {
		t.Fatalf("first delete params = %#v", deletes[0])
	}
	if deletes[1][0].Value != "hr" || !reflect.DeepEqual(deletes[1][1].Value, []string{"staff"}) {
		t.Fatalf("second delete params = %#v", deletes[1])
	}
}

func TestStoreSchemaEmbeddingsKeepsLastRowPerKey(t *testing.T) {
	wh := newFakeWarehouse()
	store := newTestStore(t, wh)

	_, err := store.StoreSchemaEmbeddings(context.Background(),
		[]vectorstore.TableDetail{
			{TableSchema: "sales", TableName: "orders", Content: "old", Embedding: []float32{1}},
			{TableSchema: "sales", TableName: "customers", Content: "customers", Embedding: []float32{1}},
			{TableSchema: "sales", TableName: "orders", Content: "new", Embedding: []float32{2}},
		},
		[]vectorstore.ColumnDetail{
			{TableSchema: "sales", TableName: "orders", ColumnName: "id", Content: "old", Embedding: []float32{1}},
			{TableSchema: "sales", TableName: "orders", ColumnName: "id", Content: "new", Embedding: []float32{2}},
			{TableSchema: "sales", TableName: "customers", ColumnName: "id", Content: "customer id", Embedding: []float32{1}},
		},
	)
	if err != nil {
		t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
	}

	tables := wh.rows[vectorstore.TableDetailsTable]
	if len(tables) != 2 {
		t.Fatalf("table rows = %d, want 2", len(tables))
	}
	for _, row := range tables {
		if row["table_name"] == "orders" && row["content"] != "new" {
			t.Fatalf("orders content = %v, want new", row["content"])
		}
	}
	columns := wh.rows[vectorstore.ColumnDetailsTable]
	if len(columns) != 2 {
		t.Fatalf("column rows = %d, want 2", len(columns))
	}
	for _, row := range columns {
		if row["table_name"] == "orders" && row["content"] != "new" {
			t.Fatalf("orders.id content = %v, want new", row["content"])
		}
	}
}

func TestStoreSchemaEmbeddingsTableOnlyResyncClearsColumns(t *testing.T) {
	wh := newFakeWarehouse()
	store := newTestStore(t, wh)
	ctx := context.Background()

	tables := []vectorstore.TableDetail{{TableSchema: "sales", TableName: "orders", Content: "c", Embedding: []float32{1}}}
	columns := []vectorstore.ColumnDetail{{TableSchema: "sales", TableName: "orders", ColumnName: "id", Content: "c", Embedding: []float32{1}}}
	if _, err := store.StoreSchemaEmbeddings(ctx, tables, columns); err != nil {
		t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
	}
	wh.ops = nil
	if _, err := store.StoreSchemaEmbeddings(ctx, tables, nil); err != nil {
		t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
	}

	if n := len(wh.rows[vectorstore.ColumnDetailsTable]); n != 0 {
		t.Fatalf("column rows = %d, want 0", n)
	}
	for _, op := range wh.ops {
		if op == "append tablecolumn_details_embeddings" {
			t.Fatal("empty column batch should not run a load")
		}
	}
}

func TestStoreSchemaEmbeddingsPropagatesLoadFailure(t *testing.T) {
	wh := newFakeWarehouse()
	boom := errors.New("load job failed")
	wh.appendErr = boom
	store := newTestStore(t, wh)

	_, err := store.StoreSchemaEmbeddings(context.Background(),
		[]vectorstore.TableDetail{{TableSchema: "sales", TableName: "orders", Embedding: []float32{1}}},
		[]vectorstore.ColumnDetail{{TableSchema: "sales", TableName: "orders", ColumnName: "id", Embedding: []float32{1}}},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("StoreSchemaEmbeddings() error = %v, want %v", err, boom)
	}
	for _, op := range wh.ops {
		if op == "delete tablecolumn_details_embeddings" {
			t.Fatal("column rows should not be touched after a table load failure")
		}
	}
}

func TestUpsertExampleReplacesRowForKey(t *testing.T) {
	wh := newFakeWarehouse()
	store := newTestStore(t, wh)
	ctx := context.Background()

	for _, sql := range []string{"SELECT 1", "SELECT COUNT(*) FROM users"} {
		err := store.UpsertExample(ctx, vectorstore.Example{
			TableSchema:  "public",
			UserQuestion: "How many users?",
			GeneratedSQL: sql,
			Embedding:    make([]float32, vectorstore.EmbeddingDimensions),
		})
		if err != nil {
			t.Fatalf("UpsertExample() error = %v", err)
		}
	}

	rows := wh.rows[vectorstore.ExamplesTable]
	if len(rows) != 1 {
		t.Fatalf("example rows = %d, want 1", len(rows))
	}
	if rows[0]["example_generated_sql"] != "SELECT COUNT(*) FROM users" {
		t.Fatalf("example_generated_sql = %v", rows[0]["example_generated_sql"])
	}
	if n := len(rows[0]["embedding"].([]float64)); n != vectorstore.EmbeddingDimensions {
		t.Fatalf("embedding length = %d", n)
	}
	if wh.ops[0] != "create example_prompt_sql_embeddings" {
		t.Fatalf("first op = %q, want example table creation", wh.ops[0])
	}
}

func TestNewWithWarehouseValidatesIdentifiers(t *testing.T) {
	tests := []Config{
		{ProjectID: "proj-1", Dataset: "bad-dataset"},
		{ProjectID: "proj`1", Dataset: "opendataqna"},
		{ProjectID: "", Dataset: "opendataqna"},
	}
	for _, cfg := range tests {
		if _, err := newWithWarehouse(cfg, newFakeWarehouse(), nil); err == nil {
			t.Fatalf("newWithWarehouse(%+v) expected error", cfg)
		}
	}
}

func TestValidateLocationBoundsDatasetLength(t *testing.T) {
	if err := validateLocation("proj-1", "_"+strings.Repeat("a", maxDatasetLength-1)); err != nil {
		t.Fatalf("validateLocation() error = %v", err)
	}
	if err := validateLocation("proj-1", strings.Repeat("a", maxDatasetLength+1)); err == nil {
		t.Fatal("validateLocation() expected error for oversized dataset")
	}
	if err := validateLocation("proj-1", "9lives"); err == nil {
		t.Fatal("validateLocation() expected error for leading digit")
	}
}

func TestLastByKeyKeepsLastOccurrence(t *testing.T) {
	got := lastByKey([]string{"a1", "b1", "a2", "c1", "b2"}, func(v string) byte { return v[0] })
	want := []string{"a2", "b2", "c1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("lastByKey() = %#v, want %#v", got, want)
	}
}

func TestGroupBySchemaKeepsFirstSeenOrder(t *testing.T) {
	groups := groupBySchema([]tableKey{
		{schema: "b", table: "x"},
		{schema: "a", table: "y"},
		{schema: "b", table: "z"},
		{schema: "b", table: "x"},
	})
	want := []schemaGroup{{schema: "b", tables: []string{"x", "z"}}, {schema: "a", tables: []string{"y"}}}
	if !reflect.DeepEqual(groups, want) {
		t.Fatalf("groupBySchema() = %#v, want %#v", groups, want)
	}
}

func TestEncodeNDJSON(t *testing.T) {
	payload, err := encodeNDJSON([]any{
		tableRow{SourceType: "bigquery", TableSchema: "s", TableName: "t", Content: "c", Embedding: []float64{0.5}},
	})
	if err != nil {
		t.Fatalf("encodeNDJSON() error = %v", err)
	}
	want := `{"source_type":"bigquery","table_schema":"s","table_name":"t","content":"c","embedding":[0.5]}` + "\n"
	if string(payload) != want {
		t.Fatalf("encodeNDJSON() = %q, want %q", payload, want)
	}
}

func newTestStore(t *testing.T, wh warehouse) *Store {
	t.Helper()
	store, err := newWithWarehouse(Config{ProjectID: "proj-1", Dataset: "opendataqna", SourceType: "bigquery"}, wh, nil)
	if err != nil {
		t.Fatalf("newWithWarehouse() error = %v", err)
	}
	return store
}

// fakeWarehouse applies delete and insert statements to in-memory rows keyed
// by table name so tests can observe the resulting table contents.
type fakeWarehouse struct {
	ops       []string
	params    [][]bq.QueryParameter
	rows      map[string][]map[string]any
	appendErr error
}

func newFakeWarehouse() *fakeWarehouse {
	return &fakeWarehouse{rows: map[string][]map[string]any{}}
}

func (f *fakeWarehouse) Exec(_ context.Context, statement string, params []bq.QueryParameter) error {
	table := statementTable(statement)
	verb := strings.ToLower(strings.Fields(statement)[0])
	f.ops = append(f.ops, verb+" "+table)
	f.params = append(f.params, params)

	values := map[string]any{}
	for _, p := range params {
		values[p.Name] = p.Value
	}
	switch verb {
	case "delete":
		kept := f.rows[table][:0]
		for _, row := range f.rows[table] {
			if !rowMatches(row, values) {
				kept = append(kept, row)
			}
		}
		f.rows[table] = kept
	case "insert":
		f.rows[table] = append(f.rows[table], values)
	}
	return nil
}

func (f *fakeWarehouse) Append(_ context.Context, table tableRef, rows []any) error {
	f.ops = append(f.ops, "append "+table.Table)
	f.params = append(f.params, nil)
	if f.appendErr != nil {
		return f.appendErr
	}
	payload, err := encodeNDJSON(rows)
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(strings.NewReader(string(payload)))
	for decoder.More() {
		row := map[string]any{}
		if err := decoder.Decode(&row); err != nil {
			return err
		}
		f.rows[table.Table] = append(f.rows[table.Table], row)
	}
	return nil
}

func (f *fakeWarehouse) Close() error { return nil }

func statementTable(statement string) string {
	start := strings.Index(statement, "`")
	end := strings.LastIndex(statement, "`")
	ref := statement[start+1 : end]
	return ref[strings.LastIndex(ref, ".")+1:]
}

func rowMatches(row map[string]any, values map[string]any) bool {
	if row["table_schema"] != values["table_schema"] {
		return false
	}
	if names, ok := values["table_names"].([]string); ok {
		for _, name := range names {
			if row["table_name"] == name {
				return true
			}
		}
		return false
	}
	return row["example_user_question"] == values["example_user_question"]
}
