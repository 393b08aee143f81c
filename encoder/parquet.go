package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/parquet-go/parquet-go"
)

const (
	ParquetContentType = "application/vnd.apache.parquet"
	ParquetExtension   = ".parquet"
)

// ParquetRow is the single-column row layout written by ParquetEncoder.
type ParquetRow struct {
	Item string `parquet:"item"`
}

// ParquetEncoder stores each record's JSON text in the "item" column of an
// uncompressed Parquet file.
type ParquetEncoder[T any] struct{}

func (e ParquetEncoder[T]) FileExtension() string { return ParquetExtension }

func (e ParquetEncoder[T]) ContentType() string { return ParquetContentType }

func (e ParquetEncoder[T]) Encode(ctx context.Context, items []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(ctx, items, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e ParquetEncoder[T]) EncodeTo(ctx context.Context, items []T, w io.Writer) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	rows, err := toRows(items)
	if err != nil {
		return err
	}

	pw := parquet.NewGenericWriter[ParquetRow](w)
	if _, err := pw.Write(rows); err != nil {
		_ = pw.Close()
		return fmt.Errorf("parquet write: %w", err)
	}
	if err := pw.Close(); err != nil {
		return fmt.Errorf("parquet close: %w", err)
	}

	return checkCtx(ctx)
}

func toRows[T any](items []T) ([]ParquetRow, error) {
	rows := make([]ParquetRow, len(items))

	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)

	for i, it := range items {
		sb.Reset()
		if err := enc.Encode(it); err != nil {
			return nil, fmt.Errorf("parquet encode item %d: %w", i, err)
		}
		rows[i].Item = strings.TrimSuffix(sb.String(), "\n")
	}
	return rows, nil
}
