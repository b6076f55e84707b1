// Package dataqnasync implements the one-shot schema-sync command: load a batch
// of table and column descriptions from parquet, embed what is missing, and
// store it in the selected vector store.
package dataqnasync

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/schemasync"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/storage"
	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

// Options carries defaults from configuration and the component builders, so
// tests can substitute fakes for the cloud clients.
type Options struct {
	Backend    string
	SourceType string
	Stdout     io.Writer
	Stderr     io.Writer

	OpenWriter      func(ctx context.Context, backend string) (vectorstore.Writer, error)
	NewEmbedder     func(ctx context.Context) (schemasync.Embedder, error)
	OpenObjectStore func(ctx context.Context) (storage.ObjectStore, error)
	ReadFile        func(name string) ([]byte, error)
}

func Run(ctx context.Context, args []string, opts Options) int {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := opts.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	readFile := opts.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	fs := flag.NewFlagSet("dataqna-sync", flag.ContinueOnError)
	fs.SetOutput(stderr)
	backend := fs.String("backend", firstNonEmpty(opts.Backend, string(vectorstore.BackendPGVector)), "vector store: cloudsql-pgvector or bigquery-vector")
	tablesPath := fs.String("tables", "", "parquet file of table descriptions (required)")
	columnsPath := fs.String("columns", "", "parquet file of column descriptions")
	fromObjectStore := fs.Bool("from-object-store", false, "read -tables and -columns as object store keys")
	archive := fs.Bool("archive", false, "archive the embedded batch to the object store")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if strings.TrimSpace(*tablesPath) == "" || fs.NArg() > 0 {
		writeUsage(stderr)
		return 2
	}
	if _, err := vectorstore.ParseBackend(*backend); err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	var objects storage.ObjectStore
	if *fromObjectStore || *archive {
		if opts.OpenObjectStore == nil {
			_, _ = fmt.Fprintln(stderr, "object store is not configured")
			return 1
		}
		var err error
		if objects, err = opts.OpenObjectStore(ctx); err != nil {
			_, _ = fmt.Fprintf(stderr, "open object store: %v\n", err)
			return 1
		}
	}

	var batch schemasync.Batch
	var err error
	if *fromObjectStore {
		batch, err = schemasync.LoadBatch(ctx, objects, *tablesPath, *columnsPath)
	} else {
		batch, err = loadLocalBatch(readFile, *tablesPath, *columnsPath)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load batch: %v\n", err)
		return 1
	}

	writer, err := opts.OpenWriter(ctx, *backend)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open vector store: %v\n", err)
		return 1
	}
	defer func() { _ = writer.Close() }()

	embedder, err := opts.NewEmbedder(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "create embedder: %v\n", err)
		return 1
	}

	var serviceOpts []schemasync.Option
	if *archive {
		serviceOpts = append(serviceOpts, schemasync.WithArchive(objects, opts.SourceType))
	}
	service, err := schemasync.NewService(embedder, writer, serviceOpts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "%v\n", err)
		return 1
	}

	confirmation, err := service.Run(ctx, batch)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "sync failed: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, confirmation)
	return 0
}

func loadLocalBatch(readFile func(string) ([]byte, error), tablesPath, columnsPath string) (schemasync.Batch, error) {
	var batch schemasync.Batch
	data, err := readFile(tablesPath)
	if err != nil {
		return batch, err
	}
	if batch.Tables, err = schemasync.DecodeTableDetails(data); err != nil {
		return batch, err
	}
	if columnsPath == "" {
		return batch, nil
	}
	if data, err = readFile(columnsPath); err != nil {
		return batch, err
	}
	batch.Columns, err = schemasync.DecodeColumnDetails(data)
	return batch, err
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: dataqna-sync [flags] -tables <file> [-columns <file>]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "flags:")
	_, _ = fmt.Fprintln(w, "  -backend             cloudsql-pgvector | bigquery-vector")
	_, _ = fmt.Fprintln(w, "  -from-object-store   treat -tables/-columns as object keys")
	_, _ = fmt.Fprintln(w, "  -archive             archive the embedded batch as parquet")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}
