package encoder

import (
	"context"
	"io"
)

// Encoder converts a batch of records into one output object.
//
// Implementations must be safe for concurrent use unless documented otherwise.
type Encoder[T any] interface {
	Encode(ctx context.Context, items []T) (data []byte, err error)
	FileExtension() string
	ContentType() string
}

// StreamEncoder is an optional interface for encoders that can write directly
// to an io.Writer to avoid buffering the full output in memory.
type StreamEncoder[T any] interface {
	EncodeTo(ctx context.Context, items []T, w io.Writer) error
	FileExtension() string
	ContentType() string
}

// Concatenator is implemented by encoders whose outputs can be appended to
// one another and still form a valid object.
type Concatenator interface {
	Concatenates() bool
}

// CanConcatenate reports whether enc outputs can be appended to one another.
func CanConcatenate(enc any) bool {
	c, ok := enc.(Concatenator)
	return ok && c.Concatenates()
}

func checkCtx(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
