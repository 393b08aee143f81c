package exporter

// Batch is a group of records from one collection flushed as one write.
type Batch[T any] struct {
	Database   string
	Collection string
	// Part counts flushes within the collection, starting at zero.
	Part  int
	Items []T
	Bytes int64
}

// Batcher buffers the records of one collection until a size limit is hit.
type Batcher[T any] struct {
	maxBytes int64
	maxItems int

	database   string
	collection string
	part       int

	items []T
	bytes int64
}

func NewBatcher[T any](cfg Config, database, collection string) *Batcher[T] {
	return &Batcher[T]{
		maxBytes:   cfg.MaxBatchBytes,
		maxItems:   cfg.MaxBatchItems,
		database:   database,
		collection: collection,
	}
}

// Add buffers item and reports whether the batch should be flushed now.
func (b *Batcher[T]) Add(item T, sizeBytes int64) (flushNow bool) {
	b.items = append(b.items, item)
	b.bytes += sizeBytes

	if b.maxBytes > 0 && b.bytes >= b.maxBytes {
		return true
	}
	return b.maxItems > 0 && len(b.items) >= b.maxItems
}

func (b *Batcher[T]) Len() int { return len(b.items) }

// Flushed reports how many batches have been taken so far.
func (b *Batcher[T]) Flushed() int { return b.part }

// Flush hands out the buffered records and resets the buffer.
func (b *Batcher[T]) Flush() Batch[T] {
	out := Batch[T]{
		Database:   b.database,
		Collection: b.collection,
		Part:       b.part,
		Items:      b.items,
		Bytes:      b.bytes,
	}

	b.items = nil
	b.bytes = 0
	b.part++

	return out
}
