// Package storage defines the object store used for schema-sync batch files.
package storage

import (
	"context"
	"errors"
	"io"
)

var ErrObjectNotFound = errors.New("object not found")

// ParquetContentType is attached to archived batch files.
const ParquetContentType = "application/vnd.apache.parquet"

type ObjectInfo struct {
	Key  string
	Size int64
	ETag string
}

// ObjectGetter reads batch files.
type ObjectGetter interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// ObjectPutter writes batch files.
type ObjectPutter interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (ObjectInfo, error)
}

type ObjectStore interface {
	ObjectGetter
	ObjectPutter
}
