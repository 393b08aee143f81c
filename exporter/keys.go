package exporter

import (
	"context"
	"fmt"

	"github.com/baldanca/mongo-ddb-export/encoder"
)

// KeyFunc names the object a batch is written to.
type KeyFunc[T any] func(ctx context.Context, batch Batch[T]) (key string, err error)

func extension[T any](enc encoder.Encoder[T]) string {
	ext := enc.FileExtension()
	if ext == "" || ext[0] != '.' {
		ext = ".bin"
	}
	return ext
}

// CollectionKeyFunc names every batch of a collection "<db>_<coll><ext>".
// Only use it when batches are appended to one object.
func CollectionKeyFunc[T any](enc encoder.Encoder[T]) KeyFunc[T] {
	ext := extension(enc)
	return func(ctx context.Context, batch Batch[T]) (string, error) {
		return fmt.Sprintf("%s_%s%s", batch.Database, batch.Collection, ext), nil
	}
}

// PartKeyFunc names each batch "<db>_<coll>/part-NNNNN<ext>".
func PartKeyFunc[T any](enc encoder.Encoder[T]) KeyFunc[T] {
	ext := extension(enc)
	return func(ctx context.Context, batch Batch[T]) (string, error) {
		return fmt.Sprintf("%s_%s/part-%05d%s", batch.Database, batch.Collection, batch.Part, ext), nil
	}
}
