package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoConfig struct {
	URI            string
	ConnectTimeout time.Duration
	// BatchSize is the cursor batch size; 0 leaves it to the server.
	BatchSize int32
	AppName   string
}

var DefaultMongoConfig = MongoConfig{
	URI:            "mongodb://localhost:27017",
	ConnectTimeout: 10 * time.Second,
	AppName:        "mongo-ddb-export",
}

func (c MongoConfig) Validate() error {
	if strings.TrimSpace(c.URI) == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if !strings.HasPrefix(c.URI, "mongodb://") && !strings.HasPrefix(c.URI, "mongodb+srv://") {
		return fmt.Errorf("mongo uri must start with mongodb:// or mongodb+srv://")
	}
	if c.ConnectTimeout < 0 {
		return fmt.Errorf("connect timeout must be non-negative")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch size must be non-negative")
	}
	return nil
}

// mongoAPI is the slice of the driver the catalog needs. Database and
// Collection handles are concrete driver types, so the seam sits one level
// above them.
type mongoAPI interface {
	databaseNames(ctx context.Context) ([]string, error)
	collectionNames(ctx context.Context, database string) ([]string, error)
	find(ctx context.Context, database, collection string) (documentCursor, error)
	disconnect(ctx context.Context) error
}

type documentCursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
	Raw() bson.Raw
}

// Mongo is a Catalog backed by a MongoDB deployment.
type Mongo struct {
	cfg    MongoConfig
	api    mongoAPI
	logger *slog.Logger
	closed atomic.Bool
}

// Connect dials the deployment and pings it before returning.
func Connect(ctx context.Context, cfg MongoConfig, logger *slog.Logger) (*Mongo, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.AppName != "" {
		opts.SetAppName(cfg.AppName)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}

	logger.Info("connecting to mongo", "uri", RedactURI(cfg.URI))
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	logger.Info("connection established")

	return newMongo(cfg, clientAPI{client: client, batchSize: cfg.BatchSize}, logger), nil
}

func newMongo(cfg MongoConfig, api mongoAPI, logger *slog.Logger) *Mongo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mongo{cfg: cfg, api: api, logger: logger}
}

// ListDatabases returns database names in lexical order.
func (m *Mongo) ListDatabases(ctx context.Context) ([]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	names, err := m.api.databaseNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// ListCollections returns collection names of database in lexical order.
func (m *Mongo) ListCollections(ctx context.Context, database string) ([]string, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	names, err := m.api.collectionNames(ctx, database)
	if err != nil {
		return nil, fmt.Errorf("list collections db=%q: %w", database, err)
	}
	sort.Strings(names)
	return names, nil
}

// Open starts an unfiltered find over the collection.
func (m *Mongo) Open(ctx context.Context, database, collection string) (Cursor, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	cur, err := m.api.find(ctx, database, collection)
	if err != nil {
		return nil, fmt.Errorf("find %s.%s: %w", database, collection, err)
	}
	return &mongoCursor{database: database, collection: collection, cur: cur}, nil
}

// Close disconnects the client. Calling it more than once is a no-op.
func (m *Mongo) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err := m.api.disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect mongo: %w", err)
	}
	m.logger.Info("connection closed")
	return nil
}

type mongoCursor struct {
	database   string
	collection string
	cur        documentCursor
}

func (c *mongoCursor) Next(ctx context.Context) bool { return c.cur.Next(ctx) }

func (c *mongoCursor) Current() (Envelope, error) {
	var doc bson.D
	if err := c.cur.Decode(&doc); err != nil {
		return Envelope{}, fmt.Errorf("decode %s.%s document: %w", c.database, c.collection, err)
	}
	return Envelope{
		Database:   c.database,
		Collection: c.collection,
		Document:   doc,
		SizeBytes:  int64(len(c.cur.Raw())),
	}, nil
}

func (c *mongoCursor) Err() error { return c.cur.Err() }

func (c *mongoCursor) Close(ctx context.Context) error { return c.cur.Close(ctx) }

type clientAPI struct {
	client    *mongo.Client
	batchSize int32
}

func (a clientAPI) databaseNames(ctx context.Context) ([]string, error) {
	return a.client.ListDatabaseNames(ctx, bson.D{})
}

func (a clientAPI) collectionNames(ctx context.Context, database string) ([]string, error) {
	return a.client.Database(database).ListCollectionNames(ctx, bson.D{})
}

func (a clientAPI) find(ctx context.Context, database, collection string) (documentCursor, error) {
	opts := options.Find()
	if a.batchSize > 0 {
		opts.SetBatchSize(a.batchSize)
	}
	cur, err := a.client.Database(database).Collection(collection).Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	return driverCursor{Cursor: cur}, nil
}

func (a clientAPI) disconnect(ctx context.Context) error { return a.client.Disconnect(ctx) }

type driverCursor struct {
	*mongo.Cursor
}

func (c driverCursor) Raw() bson.Raw { return c.Cursor.Current }

// RedactURI hides credentials in a connection string for logging.
func RedactURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		if i := strings.Index(uri, "://"); i >= 0 {
			return uri[:i+3] + "<redacted>"
		}
		return "<redacted>"
	}
	return u.Redacted()
}
