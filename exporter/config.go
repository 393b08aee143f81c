package exporter

import (
	"errors"
	"slices"
	"strings"

	"github.com/baldanca/mongo-ddb-export/attrvalue"
)

type Config struct {
	// SourceURI is recorded in the manifest with credentials redacted.
	SourceURI string
	// OutputDirectory is recorded in the manifest; the sink decides where
	// objects actually land.
	OutputDirectory       string
	ExcludedDatabaseNames []string

	// IdentifierField is dropped from every record.
	IdentifierField string
	// ProgressEvery logs a progress line every N documents of a collection.
	// Zero disables progress lines.
	ProgressEvery int

	// MaxBatchBytes and MaxBatchItems bound how much is buffered before a
	// flush. Source document sizes are used for the byte estimate.
	MaxBatchBytes int64
	MaxBatchItems int
}

var DefaultConfig = Config{
	SourceURI:             "mongodb://localhost:27017",
	OutputDirectory:       "output",
	ExcludedDatabaseNames: []string{"admin", "local", "config"},
	IdentifierField:       attrvalue.DefaultIdentifierField,
	ProgressEvery:         500,
	MaxBatchBytes:         8 * 1024 * 1024,
	MaxBatchItems:         10000,
}

func (c Config) Validate() error {
	if c.ProgressEvery < 0 {
		return errors.New("ProgressEvery must be >= 0")
	}
	if c.MaxBatchBytes <= 0 {
		return errors.New("MaxBatchBytes must be > 0")
	}
	if c.MaxBatchItems < 0 {
		return errors.New("MaxBatchItems must be >= 0")
	}
	for _, name := range c.ExcludedDatabaseNames {
		if strings.TrimSpace(name) == "" {
			return errors.New("ExcludedDatabaseNames must not contain empty names")
		}
	}
	return nil
}

// Excluded reports whether database is skipped.
func (c Config) Excluded(database string) bool {
	return slices.Contains(c.ExcludedDatabaseNames, database)
}
