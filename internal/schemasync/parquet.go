package schemasync

import (
	"bytes"
	"fmt"

	"github.com/parquet-go/parquet-go"

	"github.com/brendanhills/applied-ai-engineering-samples/internal/vectorstore"
)

type parquetTableDetail struct {
	SourceType  string    `parquet:"source_type"`
	TableSchema string    `parquet:"table_schema"`
	TableName   string    `parquet:"table_name"`
	Content     string    `parquet:"content"`
	Embedding   []float32 `parquet:"embedding"`
}

type parquetColumnDetail struct {
	SourceType  string    `parquet:"source_type"`
	TableSchema string    `parquet:"table_schema"`
	TableName   string    `parquet:"table_name"`
	ColumnName  string    `parquet:"column_name"`
	Content     string    `parquet:"content"`
	Embedding   []float32 `parquet:"embedding"`
}

func EncodeTableDetails(rows []vectorstore.TableDetail) ([]byte, error) {
	out := make([]parquetTableDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, parquetTableDetail(row))
	}
	return encodeParquet(out)
}

func EncodeColumnDetails(rows []vectorstore.ColumnDetail) ([]byte, error) {
	out := make([]parquetColumnDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, parquetColumnDetail(row))
	}
	return encodeParquet(out)
}

func DecodeTableDetails(data []byte) ([]vectorstore.TableDetail, error) {
	rows, err := decodeParquet[parquetTableDetail](data)
	if err != nil {
		return nil, fmt.Errorf("decode table details: %w", err)
	}
	out := make([]vectorstore.TableDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, vectorstore.TableDetail(row))
	}
	return out, nil
}

func DecodeColumnDetails(data []byte) ([]vectorstore.ColumnDetail, error) {
	rows, err := decodeParquet[parquetColumnDetail](data)
	if err != nil {
		return nil, fmt.Errorf("decode column details: %w", err)
	}
	out := make([]vectorstore.ColumnDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, vectorstore.ColumnDetail(row))
	}
	return out, nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeParquet fails, rather than panics, on payloads that are not parquet.
func decodeParquet[T any](data []byte) ([]T, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("parquet payload is empty")
	}
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("read parquet rows: %w", err)
	}
	return rows, nil
}
