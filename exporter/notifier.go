package exporter

import "context"

// CollectionEvent is announced once a collection has been fully written.
type CollectionEvent struct {
	RunID string `json:"run_id"`
	CollectionReport
}

// Notifier is told about every exported collection. Failures are logged
// and do not stop the run.
type Notifier interface {
	Notify(ctx context.Context, ev CollectionEvent) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, ev CollectionEvent) error

func (f NotifierFunc) Notify(ctx context.Context, ev CollectionEvent) error { return f(ctx, ev) }
