package source

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrClosed is returned when a catalog is used after Close.
var ErrClosed = errors.New("source closed")

// Envelope is one document read from a collection.
//
// SizeBytes is the encoded size of the source document when the cursor
// knows it, or zero. The exporter uses it to size batches.
type Envelope struct {
	Database   string
	Collection string
	Document   bson.D
	SizeBytes  int64
}

// Cursor is a forward-only, read-once sequence of documents.
//
// Next advances to the next document and reports whether there is one.
// Current decodes the document Next stopped at. Err reports the error, if
// any, that ended iteration.
type Cursor interface {
	Next(ctx context.Context) bool
	Current() (Envelope, error)
	Err() error
	Close(ctx context.Context) error
}

// Catalog enumerates databases and collections and opens cursors over
// collection contents.
type Catalog interface {
	ListDatabases(ctx context.Context) ([]string, error)
	ListCollections(ctx context.Context, database string) ([]string, error)
	Open(ctx context.Context, database, collection string) (Cursor, error)
	Close(ctx context.Context) error
}
