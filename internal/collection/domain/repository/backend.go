package repository

import (
	"context"

	"content-sync/internal/collection/domain/model"
)

// Backend is the remote query/write API a collection is stored behind.
//
// Implementations classify their errors with the shared errors package: a
// select naming a column the collection does not have must fail with a
// schema mismatch (errors.IsSchemaMismatch), everything else is a query or
// write failure.
type Backend interface {
	// Select returns every record of the collection, sorted when q.OrderBy is set.
	Select(ctx context.Context, q model.SelectQuery) ([]model.Record, error)
	// Insert stores the records in one call and returns them as stored.
	// A backend that can apply part of the batch reports a *errors.PartialBatchError.
	Insert(ctx context.Context, collection string, records []model.Record) ([]model.Record, error)
	// Update applies patch to the record with the given id and returns it as stored.
	Update(ctx context.Context, collection, id string, patch model.Record) (model.Record, error)
	// Delete removes the records matching the filter and returns how many were removed.
	Delete(ctx context.Context, collection string, filter model.Filter) (int64, error)
}

// Unsubscribe stops a push subscription.
type Unsubscribe func() error

// PushChannel delivers change notifications per collection.
type PushChannel interface {
	// Subscribe opens one channel for the collection. onChange is invoked for
	// every insert, update and delete until the returned Unsubscribe is called.
	Subscribe(ctx context.Context, collection string, onChange func(model.ChangeEvent)) (Unsubscribe, error)
}

// ChangePublisher announces a change to every subscriber of a collection.
type ChangePublisher interface {
	Publish(ctx context.Context, event model.ChangeEvent) error
}

// Closer is implemented by backends and channels holding connections.
type Closer interface {
	Close(ctx context.Context) error
}
