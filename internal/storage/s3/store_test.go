package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/storage"
)

func TestPutJoinsPrefixAndDefaultsContentType(t *testing.T) {
	fake := &fakeClient{}
	bucket, err := NewWithClient("sync-batches", "/dataqna/prod/", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}

	info, err := bucket.Put(context.Background(), "/bigquery/run=1/table_details.parquet", bytes.NewBufferString("abc"), 3, "")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if fake.putBucket != "sync-batches" {
		t.Fatalf("bucket = %q", fake.putBucket)
	}
	if fake.putKey != "dataqna/prod/bigquery/run=1/table_details.parquet" {
		t.Fatalf("key = %q", fake.putKey)
	}
	if fake.putContentType != "application/octet-stream" {
		t.Fatalf("content type = %q", fake.putContentType)
	}
	if info.Size != 3 {
		t.Fatalf("Size = %d", info.Size)
	}
}

func TestPutRejectsKeysEscapingPrefix(t *testing.T) {
	bucket, err := NewWithClient("sync-batches", "", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	for _, key := range []string{"../secrets.txt", "a/../../b", "  ", ".."} {
		if _, err := bucket.Put(context.Background(), key, strings.NewReader("x"), 1, ""); err == nil {
			t.Fatalf("Put(%q) expected key validation error", key)
		}
	}
}

func TestGetReturnsBody(t *testing.T) {
	fake := &fakeClient{objects: map[string]string{"batches/tables.parquet": "PAR1"}}
	bucket, err := NewWithClient("sync-batches", "batches", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	body, err := bucket.Get(context.Background(), "tables.parquet")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer body.Close()
	got, _ := io.ReadAll(body)
	if string(got) != "PAR1" {
		t.Fatalf("body = %q", got)
	}
}

func TestGetMissingObjectIsNotFound(t *testing.T) {
	bucket, err := NewWithClient("sync-batches", "", &fakeClient{})
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if _, err := bucket.Get(context.Background(), "missing.parquet"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestEnsureExistsCreatesMissingBucket(t *testing.T) {
	fake := &fakeClient{}
	bucket, err := NewWithClient("sync-batches", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := bucket.ensureExists(context.Background(), "us-central1"); err != nil {
		t.Fatalf("ensureExists() error = %v", err)
	}
	if fake.madeBucketRegion != "us-central1" {
		t.Fatalf("MakeBucket region = %q", fake.madeBucketRegion)
	}
}

func TestEnsureExistsSkipsExistingBucket(t *testing.T) {
	fake := &fakeClient{bucketExists: true}
	bucket, err := NewWithClient("sync-batches", "", fake)
	if err != nil {
		t.Fatalf("NewWithClient() error = %v", err)
	}
	if err := bucket.ensureExists(context.Background(), ""); err != nil {
		t.Fatalf("ensureExists() error = %v", err)
	}
	if fake.madeBucketRegion != "" {
		t.Fatal("MakeBucket should not be called for an existing bucket")
	}
}

func TestSplitEndpoint(t *testing.T) {
	tests := []struct {
		raw        string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{raw: "https://storage.googleapis.com", wantHost: "storage.googleapis.com", wantSecure: true},
		{raw: "http://localhost:9000", useSSL: false, wantHost: "localhost:9000"},
		{raw: "localhost:9000", useSSL: true, wantHost: "localhost:9000", wantSecure: true},
		{raw: "ftp://host", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		host, secure, err := splitEndpoint(tt.raw, tt.useSSL)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("splitEndpoint(%q) expected error", tt.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("splitEndpoint(%q) error = %v", tt.raw, err)
		}
		if host != tt.wantHost || secure != tt.wantSecure {
			t.Fatalf("splitEndpoint(%q) = %q/%v", tt.raw, host, secure)
		}
	}
}

type fakeClient struct {
	objects          map[string]string
	putBucket        string
	putKey           string
	putContentType   string
	bucketExists     bool
	madeBucketRegion string
}

func (f *fakeClient) PutObject(_ context.Context, bucket, key string, reader io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	f.putBucket = bucket
	f.putKey = key
	f.putContentType = contentType
	_, _ = io.Copy(io.Discard, reader)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeClient) GetObject(_ context.Context, _, key string) (io.ReadCloser, error) {
	body, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *fakeClient) BucketExists(context.Context, string) (bool, error) {
	return f.bucketExists, nil
}

func (f *fakeClient) MakeBucket(_ context.Context, _, region string) error {
	f.madeBucketRegion = region
	return nil
}
