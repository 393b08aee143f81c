package sink

import (
	"context"
	"io"
)

// WriteRequest is one object to store under Key.
type WriteRequest struct {
	Key         string
	Data        []byte
	ContentType string
}

// StreamWriter represents something that can write its contents to a destination writer.
// This avoids allocating function closures in hot paths.
type StreamWriter interface {
	WriteTo(w io.Writer) error
}

type StreamWriteRequest struct {
	Key         string
	ContentType string
	// Writer streams directly to the destination.
	// Implementations must return when done writing.
	Writer StreamWriter
}

type Sinkr interface {
	Write(ctx context.Context, req WriteRequest) error
}

// StreamSinkr is an optional interface implemented by sinks that can stream data directly
// to the destination without buffering the full payload in memory.
type StreamSinkr interface {
	WriteStream(ctx context.Context, req StreamWriteRequest) error
}

// Appender is implemented by sinks where repeated writes to the same key
// within a run append to the object instead of replacing it.
type Appender interface {
	Appends() bool
}

// CanAppend reports whether s appends repeated writes to one key.
func CanAppend(s Sinkr) bool {
	a, ok := s.(Appender)
	return ok && a.Appends()
}
