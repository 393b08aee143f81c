package encoder

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

const (
	NDJSONContentType      = "application/x-ndjson"
	DefaultNDJSONExtension = ".json"
)

// NDJSONEncoder writes one JSON value per line, each terminated by '\n'.
// HTML characters are not escaped.
type NDJSONEncoder[T any] struct {
	// Extension overrides the file extension (default ".json").
	Extension string
}

func (e NDJSONEncoder[T]) FileExtension() string {
	if e.Extension != "" {
		return e.Extension
	}
	return DefaultNDJSONExtension
}

func (e NDJSONEncoder[T]) ContentType() string { return NDJSONContentType }

func (e NDJSONEncoder[T]) Concatenates() bool { return true }

func (e NDJSONEncoder[T]) Encode(ctx context.Context, items []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.EncodeTo(ctx, items, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e NDJSONEncoder[T]) EncodeTo(ctx context.Context, items []T, w io.Writer) error {
	if err := checkCtx(ctx); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for i, it := range items {
		if i%1024 == 0 {
			if err := checkCtx(ctx); err != nil {
				return err
			}
		}
		if err := enc.Encode(it); err != nil {
			return fmt.Errorf("ndjson encode item %d: %w", i, err)
		}
	}
	return bw.Flush()
}
