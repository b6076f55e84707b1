package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/option"
)

// warehouse is the slice of the BigQuery API the store depends on.
type warehouse interface {
	Exec(ctx context.Context, statement string, params []bq.QueryParameter) error
	Append(ctx context.Context, table tableRef, rows []any) error
	Close() error
}

type bigQueryClient struct {
	client *bq.Client
}

// dialBigQuery returns a warehouse backed by a BigQuery client billed to
// projectID. Jobs run in location when it is set.
func dialBigQuery(ctx context.Context, projectID, location string, opts ...option.ClientOption) (*bigQueryClient, error) {
	client, err := bq.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	client.Location = location
	return &bigQueryClient{client: client}, nil
}

func (c *bigQueryClient) Exec(ctx context.Context, statement string, params []bq.QueryParameter) error {
	query := c.client.Query(statement)
	query.Parameters = params
	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for query job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("query job %s: %w", job.ID(), err)
	}
	return nil
}

// Append loads rows into table as newline-delimited JSON with WRITE_APPEND.
func (c *bigQueryClient) Append(ctx context.Context, table tableRef, rows []any) error {
	payload, err := encodeNDJSON(rows)
	if err != nil {
		return err
	}
	source := bq.NewReaderSource(bytes.NewReader(payload))
	source.SourceFormat = bq.JSON

	loader := c.client.DatasetInProject(table.Project, table.Dataset).Table(table.Table).LoaderFrom(source)
	loader.WriteDisposition = bq.WriteAppend
	loader.CreateDisposition = bq.CreateNever

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("start load into %s: %w", table, err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for load job %s: %w", job.ID(), err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load into %s: %w", table, err)
	}
	return nil
}

func (c *bigQueryClient) Close() error {
	return c.client.Close()
}

func encodeNDJSON(rows []any) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for i, row := range rows {
		if err := encoder.Encode(row); err != nil {
			return nil, fmt.Errorf("encode row %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
