package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/baldanca/mongo-ddb-export/attrvalue"
)

var (
	_ Encoder[attrvalue.Record]       = NDJSONEncoder[attrvalue.Record]{}
	_ StreamEncoder[attrvalue.Record] = NDJSONEncoder[attrvalue.Record]{}
)

func sampleRecords(n int) []attrvalue.Record {
	recs := make([]attrvalue.Record, n)
	for i := range recs {
		recs[i] = attrvalue.Record{Item: []attrvalue.Field{
			{Name: "name", Value: attrvalue.String(fmt.Sprintf("item-<%d>", i))},
			{Name: "n", Value: attrvalue.Number(fmt.Sprint(i))},
		}}
	}
	return recs
}

func TestNDJSONEncoder_OneRecordPerLine(t *testing.T) {
	e := NDJSONEncoder[attrvalue.Record]{}

	data, err := e.Encode(context.Background(), sampleRecords(2))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	want := `{"Item":{"name":{"S":"item-<0>"},"n":{"N":"0"}}}` + "\n" +
		`{"Item":{"name":{"S":"item-<1>"},"n":{"N":"1"}}}` + "\n"
	if string(data) != want {
		t.Fatalf("got:\n%s\nwant:\n%s", data, want)
	}
}

func TestNDJSONEncoder_EmptyBatchIsEmpty(t *testing.T) {
	data, err := NDJSONEncoder[attrvalue.Record]{}.Encode(context.Background(), nil)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(data) != 0 {
		t.Fatalf("expected no bytes, got %q", data)
	}
}

func TestNDJSONEncoder_Extension(t *testing.T) {
	if got := (NDJSONEncoder[int]{}).FileExtension(); got != ".json" {
		t.Fatalf("FileExtension() = %q", got)
	}
	if got := (NDJSONEncoder[int]{Extension: ".ndjson"}).FileExtension(); got != ".ndjson" {
		t.Fatalf("FileExtension() = %q", got)
	}
	if got := (NDJSONEncoder[int]{}).ContentType(); got != NDJSONContentType {
		t.Fatalf("ContentType() = %q", got)
	}
	if !CanConcatenate(NDJSONEncoder[int]{}) {
		t.Fatal("ndjson output should concatenate")
	}
}

func TestNDJSONEncoder_InvalidRecordFails(t *testing.T) {
	bad := []attrvalue.Record{{Item: []attrvalue.Field{{Name: "x"}}}}
	var buf bytes.Buffer
	err := NDJSONEncoder[attrvalue.Record]{}.EncodeTo(context.Background(), bad, &buf)
	if !errors.Is(err, attrvalue.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if !strings.Contains(err.Error(), "item 0") {
		t.Fatalf("error should name the item: %v", err)
	}
}

func TestNDJSONEncoder_ContextCanceledBefore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NDJSONEncoder[attrvalue.Record]{}.Encode(ctx, sampleRecords(1))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func BenchmarkNDJSONEncoder(b *testing.B) {
	for _, n := range []int{10, 100, 1_000, 10_000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			items := sampleRecords(n)
			enc := NDJSONEncoder[attrvalue.Record]{}
			ctx := context.Background()
			var buf bytes.Buffer

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				buf.Reset()
				if err := enc.EncodeTo(ctx, items, &buf); err != nil {
					b.Fatalf("EncodeTo: %v", err)
				}
			}
		})
	}
}
