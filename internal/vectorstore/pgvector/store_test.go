package pgvector

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"strings"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

func TestStoreSchemaEmbeddingsDeletesThenInsertsTablesBeforeColumns(t *testing.T) {
	db, mock := newSQLMock(t)
	store := newTestStore(t, db, "bigquery")

	expectPrepare(mock)
	expectEnsureTables(mock)
	mock.ExpectExec(regexp.QuoteMeta(deleteTableDetailSQL)).
		WithArgs("sales", "orders").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(insertTableDetailSQL)).
		WithArgs("bigquery", "sales", "orders", "orders table", vectorArg{dims: 3}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(deleteColumnDetailSQL)).
		WithArgs("sales", "orders", "order_id").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(insertColumnDetailSQL)).
		WithArgs("bigquery", "sales", "orders", "order_id", "order id column", vectorArg{dims: 3}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	got, err := store.StoreSchemaEmbeddings(context.Background(),
		[]vectorstore.TableDetail{{
			SourceType:  "cloudsql-pg",
			TableSchema: "sales",
			TableName:   "orders",
			Content:     "orders table",
			Embedding:   []float32{0.1, 0.2, 0.3},
		}},
		[]vectorstore.ColumnDetail{{
			TableSchema: "sales",
			TableName:   "orders",
			ColumnName:  "order_id",
			Content:     "order id column",
			Embedding:   []float32{0.4, 0.5, 0.6},
		}},
	)
	if err != nil {
		t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
	}
	if got != vectorstore.StoredConfirmation {
		t.Fatalf("StoreSchemaEmbeddings() = %q", got)
	}
	assertSQLMock(t, mock)
}

func TestStoreSchemaEmbeddingsEmptyBatchStillEnsuresTables(t *testing.T) {
	db, mock := newSQLMock(t)
	store := newTestStore(t, db, "bigquery")

	expectPrepare(mock)
	expectEnsureTables(mock)
	mock.ExpectClose()

	if _, err := store.StoreSchemaEmbeddings(context.Background(), nil, nil); err != nil {
		t.Fatalf("StoreSchemaEmbeddings() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestStoreSchemaEmbeddingsClosesConnectionOnFailure(t *testing.T) {
	db, mock := newSQLMock(t)
	store := newTestStore(t, db, "bigquery")
	boom := errors.New("relation locked")

	expectPrepare(mock)
	expectEnsureTables(mock)
	mock.ExpectExec(regexp.QuoteMeta(deleteTableDetailSQL)).
		WithArgs("sales", "orders").
		WillReturnError(boom)
	mock.ExpectClose()

	_, err := store.StoreSchemaEmbeddings(context.Background(),
		[]vectorstore.TableDetail{{TableSchema: "sales", TableName: "orders", Embedding: []float32{1}}},
		[]vectorstore.ColumnDetail{{TableSchema: "sales", TableName: "orders", ColumnName: "id", Embedding: []float32{1}}},
	)
	if !errors.Is(err, boom) {
		t.Fatalf("StoreSchemaEmbeddings() error = %v, want %v", err, boom)
	}
	assertSQLMock(t, mock)
}

func TestStoreSchemaEmbeddingsPropagatesExtensionFailure(t *testing.T) {
	db, mock := newSQLMock(t)
	store := newTestStore(t, db, "bigquery")
	boom := errors.New("permission denied to create extension")

	mock.ExpectExec(regexp.QuoteMeta(createExtensionSQL)).WillReturnError(boom)
	mock.ExpectClose()

	if _, err := store.StoreSchemaEmbeddings(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("StoreSchemaEmbeddings() error = %v, want %v", err, boom)
	}
	assertSQLMock(t, mock)
}

func TestStoreSchemaEmbeddingsPropagatesCodecFailure(t *testing.T) {
	db, mock := newSQLMock(t)
	store := newTestStore(t, db, "bigquery")
	boom := errors.New("type vector not found")
	store.registerCodec = func(context.Context, *sql.Conn) error { return boom }

	mock.ExpectExec(regexp.QuoteMeta(createExtensionSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	if _, err := store.StoreSchemaEmbeddings(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("StoreSchemaEmbeddings() error = %v, want %v", err, boom)
	}
	assertSQLMock(t, mock)
}

func TestStoreSchemaEmbeddingsOpenFailure(t *testing.T) {
	boom := errors.New("dial tcp: connection refused")
	store, err := NewStore(openerFunc(func(context.Context) (*sql.DB, error) { return nil, boom }), "bigquery", nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if _, err := store.StoreSchemaEmbeddings(context.Background(), nil, nil); !errors.Is(err, boom) {
		t.Fatalf("StoreSchemaEmbeddings() error = %v, want %v", err, boom)
	}
}

func TestUpsertExampleDeletesThenInserts(t *testing.T) {
	db, mock := newSQLMock(t)
	store := newTestStore(t, db, "bigquery")

	expectPrepare(mock)
	mock.ExpectExec(regexp.QuoteMeta(deleteExampleSQL)).
		WithArgs("public", "How many users?").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(insertExampleSQL)).
		WithArgs("public", "How many users?", "SELECT COUNT(*) FROM users", vectorArg{dims: vectorstore.EmbeddingDimensions}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	err := store.UpsertExample(context.Background(), vectorstore.Example{
		TableSchema:  "public",
		UserQuestion: "How many users?",
		GeneratedSQL: "SELECT COUNT(*) FROM users",
		Embedding:    make([]float32, vectorstore.EmbeddingDimensions),
	})
	if err != nil {
		t.Fatalf("UpsertExample() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestNewStoreRequiresOpener(t *testing.T) {
	if _, err := NewStore(nil, "bigquery", nil); err == nil {
		t.Fatal("expected error for nil opener")
	}
}

func TestStoreBackend(t *testing.T) {
	db, _ := newSQLMock(t)
	store := newTestStore(t, db, "bigquery")
	if store.Backend() != vectorstore.BackendPGVector {
		t.Fatalf("Backend() = %q", store.Backend())
	}
}

type openerFunc func(ctx context.Context) (*sql.DB, error)

func (f openerFunc) Open(ctx context.Context) (*sql.DB, error) { return f(ctx) }

// vectorArg matches the text form a pgvector value takes on the wire.
type vectorArg struct {
	dims int
}

func (a vectorArg) Match(value driver.Value) bool {
	text, ok := value.(string)
	if !ok || !strings.HasPrefix(text, "[") || !strings.HasSuffix(text, "]") {
		return false
	}
	return len(strings.Split(strings.Trim(text, "[]"), ",")) == a.dims
}

func newTestStore(t *testing.T, db *sql.DB, sourceType string) *Store {
	t.Helper()
	store, err := NewStore(openerFunc(func(context.Context) (*sql.DB, error) { return db, nil }), sourceType, nil)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	store.registerCodec = func(context.Context, *sql.Conn) error { return nil }
	return store
}

func expectPrepare(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta(createExtensionSQL)).WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectEnsureTables(mock sqlmock.Sqlmock) {
	for _, statement := range ensureTableStatements {
		mock.ExpectExec(regexp.QuoteMeta(statement)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
