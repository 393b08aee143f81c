package source

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Memory is an in-process Catalog. It is meant for tests and examples.
type Memory struct {
	mu     sync.Mutex
	dbs    map[string]map[string][]bson.D
	closed bool
}

func NewMemory() *Memory {
	return &Memory{dbs: make(map[string]map[string][]bson.D)}
}

// Add appends documents to database.collection, creating both as needed.
// Adding no documents still creates an empty collection.
func (m *Memory) Add(database, collection string, docs ...bson.D) {
	m.mu.Lock()
	defer m.mu.Unlock()

	colls, ok := m.dbs[database]
	if !ok {
		colls = make(map[string][]bson.D)
		m.dbs[database] = colls
	}
	colls[collection] = append(colls[collection], docs...)
}

func (m *Memory) ListDatabases(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	return sortedKeys(m.dbs), nil
}

func (m *Memory) ListCollections(ctx context.Context, database string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	colls, ok := m.dbs[database]
	if !ok {
		return nil, fmt.Errorf("list collections db=%q: database not found", database)
	}
	return sortedKeys(colls), nil
}

func (m *Memory) Open(ctx context.Context, database, collection string) (Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	docs, ok := m.dbs[database][collection]
	if !ok {
		return nil, fmt.Errorf("find %s.%s: collection not found", database, collection)
	}
	return &memoryCursor{
		database:   database,
		collection: collection,
		docs:       append([]bson.D(nil), docs...),
		pos:        -1,
	}, nil
}

func (m *Memory) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

type memoryCursor struct {
	database   string
	collection string
	docs       []bson.D
	pos        int
	err        error
	closed     bool
}

func (c *memoryCursor) Next(ctx context.Context) bool {
	if c.closed || c.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		c.err = err
		return false
	}
	if c.pos+1 >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *memoryCursor) Current() (Envelope, error) {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return Envelope{}, fmt.Errorf("cursor %s.%s: no current document", c.database, c.collection)
	}
	doc := c.docs[c.pos]
	var size int64
	if raw, err := bson.Marshal(doc); err == nil {
		size = int64(len(raw))
	}
	return Envelope{Database: c.database, Collection: c.collection, Document: doc, SizeBytes: size}, nil
}

func (c *memoryCursor) Err() error { return c.err }

func (c *memoryCursor) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
