package transformer

import (
	"context"
	"log/slog"

	"github.com/baldanca/mongo-ddb-export/attrvalue"
	"github.com/baldanca/mongo-ddb-export/source"
)

// Transformer converts one source document into an output record.
type Transformer[O any] interface {
	Transform(ctx context.Context, in source.Envelope) (O, error)
}

// RepairCounter is implemented by transformers that repair values and
// want the exporter to report how many.
type RepairCounter interface {
	Repaired() int64
}

// DynamoDB encodes documents into DynamoDB-style records and runs the
// top-level numeric repair pass over each one.
type DynamoDB struct {
	// IdentifierField is dropped from every record (default "_id").
	IdentifierField string

	validator attrvalue.Validator
}

func NewDynamoDB(idField string, logger *slog.Logger) *DynamoDB {
	if idField == "" {
		idField = attrvalue.DefaultIdentifierField
	}
	t := &DynamoDB{IdentifierField: idField}
	t.validator.Logger = logger
	return t
}

func (t *DynamoDB) Transform(ctx context.Context, in source.Envelope) (attrvalue.Record, error) {
	if err := ctx.Err(); err != nil {
		return attrvalue.Record{}, err
	}
	rec := attrvalue.EncodeRecordExcluding(in.Document, t.IdentifierField)
	return t.validator.Validate(rec, "database", in.Database, "collection", in.Collection), nil
}

func (t *DynamoDB) Repaired() int64 { return t.validator.Repaired() }
