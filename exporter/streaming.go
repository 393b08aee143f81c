package exporter

import (
	"context"
	"io"

	"github.com/baldanca/mongo-ddb-export/encoder"
	"github.com/baldanca/mongo-ddb-export/sink"
)

type encodeToWriter[T any] struct {
	ctx   context.Context
	se    encoder.StreamEncoder[T]
	items []T
}

func (w encodeToWriter[T]) WriteTo(dst io.Writer) error {
	return w.se.EncodeTo(w.ctx, w.items, dst)
}

// tryStreamWrite writes items straight from the encoder into the sink when
// both sides support streaming. streamed is false when either does not.
func tryStreamWrite[T any](
	ctx context.Context,
	enc encoder.Encoder[T],
	s sink.Sinkr,
	retry RetryPolicy,
	key string,
	items []T,
) (streamed bool, err error) {

	se, ok := enc.(encoder.StreamEncoder[T])
	if !ok {
		return false, nil
	}
	ss, ok := s.(sink.StreamSinkr)
	if !ok {
		return false, nil
	}

	if retry == nil {
		retry = nopRetry{}
	}

	req := sink.StreamWriteRequest{
		Key:         key,
		ContentType: contentType(enc),
		Writer:      encodeToWriter[T]{ctx: ctx, se: se, items: items},
	}

	err = retry.Do(ctx, func(ctx context.Context) error {
		return ss.WriteStream(ctx, req)
	})

	return true, err
}

func contentType[T any](enc encoder.Encoder[T]) string {
	if ct := enc.ContentType(); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
