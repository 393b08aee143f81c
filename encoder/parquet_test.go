package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/baldanca/mongo-ddb-export/attrvalue"
)

func readAllParquet(t *testing.T, b []byte) []ParquetRow {
	t.Helper()

	r := parquet.NewGenericReader[ParquetRow](bytes.NewReader(b))
	defer r.Close()

	buf := make([]ParquetRow, 64)
	var out []ParquetRow
	for {
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read parquet: %v", err)
		}
	}
	return out
}

func TestParquetEncoder_RoundTrip(t *testing.T) {
	items := sampleRecords(3)

	e := ParquetEncoder[attrvalue.Record]{}
	data, err := e.Encode(context.Background(), items)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty parquet bytes")
	}

	rows := readAllParquet(t, data)
	if len(rows) != len(items) {
		t.Fatalf("expected %d rows back, got %d", len(items), len(rows))
	}
	for i, row := range rows {
		var rec attrvalue.Record
		if err := json.Unmarshal([]byte(row.Item), &rec); err != nil {
			t.Fatalf("row %d: %v", i, err)
		}
		if !rec.Equal(items[i]) {
			t.Fatalf("row %d mismatch: %s", i, row.Item)
		}
	}
}

func TestParquetEncoder_Metadata(t *testing.T) {
	e := ParquetEncoder[attrvalue.Record]{}
	if e.FileExtension() != ".parquet" || e.ContentType() != ParquetContentType {
		t.Fatalf("ext=%q ct=%q", e.FileExtension(), e.ContentType())
	}
	if CanConcatenate(e) {
		t.Fatal("parquet files do not concatenate")
	}
}

func TestParquetEncoder_ContextCanceledBefore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParquetEncoder[attrvalue.Record]{}.Encode(ctx, sampleRecords(1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
