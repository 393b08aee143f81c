package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/baldanca/mongo-ddb-export/encoder"
	"github.com/baldanca/mongo-ddb-export/sink"
	"github.com/baldanca/mongo-ddb-export/source"
	"github.com/baldanca/mongo-ddb-export/transformer"
)

type locator interface {
	Location(key string) string
}

// Exporter copies every collection of a catalog into a sink, one
// collection at a time.
type Exporter[T any] struct {
	cfg         Config
	catalog     source.Catalog
	transformer transformer.Transformer[T]
	encoder     encoder.Encoder[T]
	sink        sink.Sinkr
	keyFunc     KeyFunc[T]

	retry       RetryPolicy
	notifier    Notifier
	logger      *slog.Logger
	manifestKey string
	now         func() time.Time

	// owners maps each key written during a run to its collection.
	owners map[string]string
}

// New wires an exporter. Keys default to one object per collection when the
// sink appends and the encoder output concatenates, and to part-numbered
// objects otherwise.
func New[T any](
	cfg Config,
	catalog source.Catalog,
	tr transformer.Transformer[T],
	enc encoder.Encoder[T],
	s sink.Sinkr,
) (*Exporter[T], error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog is nil")
	}
	if tr == nil {
		return nil, fmt.Errorf("transformer is nil")
	}
	if enc == nil {
		return nil, fmt.Errorf("encoder is nil")
	}
	if s == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	keyFunc := PartKeyFunc(enc)
	if sink.CanAppend(s) && encoder.CanConcatenate(enc) {
		keyFunc = CollectionKeyFunc(enc)
	}

	return &Exporter[T]{
		cfg:         cfg,
		catalog:     catalog,
		transformer: tr,
		encoder:     enc,
		sink:        s,
		keyFunc:     keyFunc,
		retry:       nopRetry{},
		logger:      slog.Default(),
		manifestKey: ManifestKey,
		now:         time.Now,
	}, nil
}

// SetRetryPolicy sets the policy for sink writes. Only use retries with
// sinks that replace objects; a retried append can duplicate data.
func (e *Exporter[T]) SetRetryPolicy(p RetryPolicy) {
	if p == nil {
		e.retry = nopRetry{}
		return
	}
	e.retry = p
}

func (e *Exporter[T]) SetNotifier(n Notifier) { e.notifier = n }

func (e *Exporter[T]) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	e.logger = l
}

func (e *Exporter[T]) SetKeyFunc(fn KeyFunc[T]) {
	if fn != nil {
		e.keyFunc = fn
	}
}

// SetManifestKey changes where the manifest is written. An empty key
// disables the manifest object.
func (e *Exporter[T]) SetManifestKey(key string) { e.manifestKey = key }

// Run exports every collection of every database not excluded by the
// config. It stops at the first failing collection. The catalog is closed
// before Run returns, whatever the outcome, so an Exporter runs once.
//
// The returned manifest is non-nil even on error and covers the
// collections reached so far.
func (e *Exporter[T]) Run(ctx context.Context) (m *Manifest, err error) {
	m = &Manifest{
		RunID:           uuid.NewString(),
		Source:          source.RedactURI(e.cfg.SourceURI),
		Output:          e.cfg.OutputDirectory,
		ContentType:     contentType(e.encoder),
		IdentifierField: e.cfg.IdentifierField,
		StartedAt:       e.now().UTC(),
	}
	log := e.logger.With("run_id", m.RunID)

	e.owners = make(map[string]string)
	if e.manifestKey != "" {
		e.owners[e.manifestKey] = "manifest"
	}

	defer func() {
		if cerr := e.catalog.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn("closing source failed", "err", cerr)
			if err == nil {
				err = fmt.Errorf("%w: %w", ErrSource, cerr)
			}
		}
	}()

	log.Info("export started", "source", m.Source, "output", m.Output)

	dbs, err := e.catalog.ListDatabases(ctx)
	if err != nil {
		return m, fmt.Errorf("%w: %w", ErrSource, err)
	}

	for _, db := range dbs {
		if e.cfg.Excluded(db) {
			log.Debug("skipping database", "database", db)
			continue
		}
		log.Info("processing database", "database", db)

		colls, err := e.catalog.ListCollections(ctx, db)
		if err != nil {
			return m, fmt.Errorf("%w: %w", ErrSource, err)
		}

		for _, coll := range colls {
			rep, err := e.exportCollection(ctx, log, db, coll)
			m.Collections = append(m.Collections, rep)
			if err != nil {
				log.Error("export failed", "database", db, "collection", coll, "err", err)
				return m, err
			}
			e.notify(ctx, log, CollectionEvent{RunID: m.RunID, CollectionReport: rep})
		}
	}

	m.FinishedAt = e.now().UTC()
	if err := e.writeManifest(ctx, m); err != nil {
		return m, err
	}

	log.Info("export completed",
		"collections", len(m.Collections),
		"documents", m.Documents(),
		"repaired", m.Repaired(),
		"elapsed", m.FinishedAt.Sub(m.StartedAt),
	)
	return m, nil
}

func (e *Exporter[T]) exportCollection(ctx context.Context, log *slog.Logger, db, coll string) (rep CollectionReport, err error) {
	rep = CollectionReport{Database: db, Collection: coll, Keys: []string{}}
	log = log.With("database", db, "collection", coll)
	log.Info("processing collection")

	cur, err := e.catalog.Open(ctx, db, coll)
	if err != nil {
		return rep, fmt.Errorf("%w: %w", ErrSource, err)
	}

	repairedBefore := e.repaired()
	defer func() {
		rep.Repaired = e.repaired() - repairedBefore
		if cerr := cur.Close(context.WithoutCancel(ctx)); cerr != nil && err == nil {
			err = fmt.Errorf("%w: close cursor %s.%s: %w", ErrSource, db, coll, cerr)
		}
	}()

	b := NewBatcher[T](e.cfg, db, coll)
	for cur.Next(ctx) {
		env, err := cur.Current()
		if err != nil {
			return rep, fmt.Errorf("%w: %w", ErrSource, err)
		}

		out, err := e.transformer.Transform(ctx, env)
		if err != nil {
			return rep, fmt.Errorf("%w: %s.%s document %d: %w", ErrTransform, db, coll, rep.Documents, err)
		}
		rep.Documents++
		rep.SourceBytes += env.SizeBytes

		if b.Add(out, env.SizeBytes) {
			if err := e.flush(ctx, b, &rep); err != nil {
				return rep, err
			}
		}

		if e.cfg.ProgressEvery > 0 && rep.Documents%int64(e.cfg.ProgressEvery) == 0 {
			log.Info("documents processed", "count", rep.Documents)
		}
	}
	if err := cur.Err(); err != nil {
		return rep, fmt.Errorf("%w: read %s.%s: %w", ErrSource, db, coll, err)
	}

	// An empty collection still gets an (empty) object.
	if b.Len() > 0 || b.Flushed() == 0 {
		if err := e.flush(ctx, b, &rep); err != nil {
			return rep, err
		}
	}

	log.Info("collection exported", "documents", rep.Documents, "objects", len(rep.Keys))
	return rep, nil
}

func (e *Exporter[T]) flush(ctx context.Context, b *Batcher[T], rep *CollectionReport) error {
	batch := b.Flush()

	key, err := e.keyFunc(ctx, batch)
	if err != nil {
		return fmt.Errorf("%w: key for %s.%s part %d: %w", ErrSinkWrite, batch.Database, batch.Collection, batch.Part, err)
	}
	if err := e.claim(key, batch.Database+"."+batch.Collection); err != nil {
		return err
	}
	if err := e.write(ctx, key, batch.Items); err != nil {
		return err
	}

	rep.addKey(key, e.location(key))
	return nil
}

// claim fails when key was already written for another collection. An
// appending sink would otherwise mix both collections in one object.
func (e *Exporter[T]) claim(key, owner string) error {
	if prev, ok := e.owners[key]; ok && prev != owner {
		return fmt.Errorf("%w: %s is used by both %s and %s", ErrKeyConflict, key, prev, owner)
	}
	e.owners[key] = owner
	return nil
}

func (e *Exporter[T]) write(ctx context.Context, key string, items []T) error {
	// Prefer streaming when both encoder and sink support it.
	if streamed, err := tryStreamWrite(ctx, e.encoder, e.sink, e.retry, key, items); streamed {
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrSinkWrite, key, err)
		}
		return nil
	}

	data, err := e.encoder.Encode(ctx, items)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, key, err)
	}

	req := sink.WriteRequest{Key: key, Data: data, ContentType: contentType(e.encoder)}
	if err := e.retry.Do(ctx, func(ctx context.Context) error {
		return e.sink.Write(ctx, req)
	}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSinkWrite, key, err)
	}
	return nil
}

func (e *Exporter[T]) writeManifest(ctx context.Context, m *Manifest) error {
	if e.manifestKey == "" {
		return nil
	}
	data, err := MarshalManifest(m)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	req := sink.WriteRequest{Key: e.manifestKey, Data: data, ContentType: "application/yaml"}
	if err := e.retry.Do(ctx, func(ctx context.Context) error {
		return e.sink.Write(ctx, req)
	}); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSinkWrite, e.manifestKey, err)
	}
	return nil
}

func (e *Exporter[T]) notify(ctx context.Context, log *slog.Logger, ev CollectionEvent) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		log.Warn("notification failed", "database", ev.Database, "collection", ev.Collection, "err", err)
	}
}

func (e *Exporter[T]) location(key string) string {
	if l, ok := e.sink.(locator); ok {
		return l.Location(key)
	}
	return ""
}

func (e *Exporter[T]) repaired() int64 {
	if rc, ok := e.transformer.(transformer.RepairCounter); ok {
		return rc.Repaired()
	}
	return 0
}
