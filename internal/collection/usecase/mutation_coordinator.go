package usecase

import (
	"context"
	"fmt"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/errors"
	"content-sync/internal/shared/logger"
	"content-sync/internal/shared/utils"
)

// ReconcileMode tells the coordinator how to bring the collection's store up
// to date after a successful write.
type ReconcileMode int

const (
	// ReconcileNone leaves the store alone; a push event may still refresh it.
	ReconcileNone ReconcileMode = iota
	// ReconcileDelayed schedules a best-effort refetch and returns at once.
	ReconcileDelayed
	// ReconcileAwaited refetches before returning, so the store reflects the write.
	ReconcileAwaited
)

// String returns the mode name.
func (m ReconcileMode) String() string {
	switch m {
	case ReconcileDelayed:
		return "delayed"
	case ReconcileAwaited:
		return "awaited"
	default:
		return "none"
	}
}

// StoreRegistry finds the mounted store of a collection.
type StoreRegistry interface {
	Store(collection string) (*CollectionStore, bool)
}

// CoordinatorOptions configures a MutationCoordinator.
type CoordinatorOptions struct {
	Logger       logger.Logger
	RefetchDelay time.Duration
}

// MutationCoordinator performs writes against the backend and reconciles the
// affected store afterwards. Writes are never applied locally first and never
// retried.
type MutationCoordinator struct {
	backend repository.Backend
	stores  StoreRegistry
	delay   time.Duration
	log     logger.Logger
}

// NewMutationCoordinator creates a coordinator. stores may be nil, in which
// case every mode behaves like ReconcileNone.
func NewMutationCoordinator(backend repository.Backend, stores StoreRegistry, opts CoordinatorOptions) *MutationCoordinator {
	delay := opts.RefetchDelay
	if delay <= 0 {
		delay = DefaultRefetchDelay
	}
	return &MutationCoordinator{
		backend: backend,
		stores:  stores,
		delay:   delay,
		log:     logger.OrNop(opts.Logger).WithComponent("mutation_coordinator"),
	}
}

// Insert stores one record and returns it as stored.
func (c *MutationCoordinator) Insert(ctx context.Context, collection string, record model.Record, mode ReconcileMode) (model.Record, error) {
	ctx = withOperation(ctx, collection, "insert")
	stored, err := c.backend.Insert(ctx, collection, []model.Record{record})
	if err != nil {
		return nil, writeFailure(collection, "insert", err)
	}
	c.reconcile(ctx, collection, mode)
	if len(stored) == 0 {
		return record, nil
	}
	return stored[0], nil
}

// Update applies patch to one record and returns it as stored.
func (c *MutationCoordinator) Update(ctx context.Context, collection, id string, patch model.Record, mode ReconcileMode) (model.Record, error) {
	ctx = withOperation(ctx, collection, "update")
	stored, err := c.backend.Update(ctx, collection, id, patch)
	if err != nil {
		return nil, writeFailure(collection, "update", err)
	}
	c.reconcile(ctx, collection, mode)
	return stored, nil
}

// Remove deletes one record. Deleting an id that no longer exists succeeds.
func (c *MutationCoordinator) Remove(ctx context.Context, collection, id string, mode ReconcileMode) error {
	ctx = withOperation(ctx, collection, "delete")
	if _, err := c.backend.Delete(ctx, collection, model.ByID(id)); err != nil {
		return writeFailure(collection, "delete", err)
	}
	c.reconcile(ctx, collection, mode)
	return nil
}

// InsertBatch stores all records in one backend call. A backend that applied
// part of the batch reports a *errors.PartialBatchError; the store is still
// reconciled in that case.
func (c *MutationCoordinator) InsertBatch(ctx context.Context, collection string, records []model.Record, mode ReconcileMode) ([]model.Record, error) {
	ctx = withOperation(ctx, collection, "insert_batch")
	if len(records) == 0 {
		return []model.Record{}, nil
	}
	stored, err := c.backend.Insert(ctx, collection, records)
	if err != nil {
		if _, partial := errors.AsPartialBatch(err); partial {
			c.reconcile(ctx, collection, mode)
			return stored, err
		}
		return nil, writeFailure(collection, "insert", err)
	}
	c.reconcile(ctx, collection, mode)
	return stored, nil
}

// RemoveAll deletes every record currently in the collection, one at a time
// in the order the backend lists them. It stops at the first failure: when
// the k-th delete fails, exactly k-1 records are gone and the returned
// *errors.PartialBatchError names them and the failing item. A listed record
// without an id, or one whose delete matched nothing, counts as a failure.
func (c *MutationCoordinator) RemoveAll(ctx context.Context, collection string, mode ReconcileMode) error {
	ctx = withOperation(ctx, collection, "delete_all")
	records, err := c.backend.Select(ctx, model.SelectQuery{Collection: collection})
	if err != nil {
		return queryFailure(collection, err)
	}

	completed := make([]string, 0, len(records))
	for i, rec := range records {
		id := rec.ID()
		if err := c.removeListed(ctx, collection, id); err != nil {
			c.log.WithContext(ctx).Warnf("delete stopped at item %d of %d (%q): %v", i+1, len(records), id, err)
			c.reconcile(ctx, collection, mode)
			return &errors.PartialBatchError{
				Collection: collection,
				Operation:  "delete",
				Completed:  completed,
				Failed:     []errors.BatchItemFailure{{Index: i, ID: id, Err: writeFailure(collection, "delete", err)}},
			}
		}
		completed = append(completed, id)
	}

	c.log.WithContext(ctx).Infof("deleted %d record(s)", len(completed))
	c.reconcile(ctx, collection, mode)
	return nil
}

func (c *MutationCoordinator) removeListed(ctx context.Context, collection, id string) error {
	if id == "" {
		return errors.NewValidationError("record has no id and cannot be deleted").WithCode(errors.CodeMissingID)
	}
	n, err := c.backend.Delete(ctx, collection, model.ByID(id))
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.NewNotFoundError(fmt.Sprintf("%s record %q", collection, id)).WithCause(errors.ErrRecordNotFound)
	}
	return nil
}

func (c *MutationCoordinator) reconcile(ctx context.Context, collection string, mode ReconcileMode) {
	if mode == ReconcileNone || c.stores == nil {
		return
	}
	store, ok := c.stores.Store(collection)
	if !ok {
		c.log.Debugf("no store mounted for %s, skipping %s reconcile", collection, mode)
		return
	}
	switch mode {
	case ReconcileDelayed:
		store.ScheduleRefetch(c.delay)
	case ReconcileAwaited:
		store.Refetch(ctx)
	}
}

func writeFailure(collection, operation string, err error) error {
	if errors.IsWriteFailure(err) {
		return err
	}
	return errors.NewWriteFailure(collection, operation, err).WithComponent("mutation_coordinator")
}

func withOperation(ctx context.Context, collection, operation string) context.Context {
	return utils.WithOperation(utils.WithCollection(ctx, collection), operation)
}
