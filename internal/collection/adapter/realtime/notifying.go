package realtime

import (
	"context"
	"fmt"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/logger"
)

// NotifyingBackend announces every successful write of the wrapped backend on
// a publisher. Publish failures are logged; the write result stands.
type NotifyingBackend struct {
	repository.Backend
	publisher repository.ChangePublisher
	log       logger.Logger
}

var _ repository.Backend = (*NotifyingBackend)(nil)

// NewNotifyingBackend wraps backend.
func NewNotifyingBackend(backend repository.Backend, publisher repository.ChangePublisher, log logger.Logger) *NotifyingBackend {
	return &NotifyingBackend{
		Backend:   backend,
		publisher: publisher,
		log:       logger.OrNop(log).WithComponent("notifying_backend"),
	}
}

// Insert publishes one insert event per stored record, including the
// completed part of a partial batch.
func (n *NotifyingBackend) Insert(ctx context.Context, collection string, records []model.Record) ([]model.Record, error) {
	stored, err := n.Backend.Insert(ctx, collection, records)
	for _, rec := range stored {
		n.publish(ctx, model.NewChangeEvent(collection, model.ChangeInsert, rec.ID()))
	}
	return stored, err
}

// Update publishes an update event.
func (n *NotifyingBackend) Update(ctx context.Context, collection, id string, patch model.Record) (model.Record, error) {
	rec, err := n.Backend.Update(ctx, collection, id, patch)
	if err == nil {
		n.publish(ctx, model.NewChangeEvent(collection, model.ChangeUpdate, id))
	}
	return rec, err
}

// Delete publishes a delete event per filtered id, or a single event without
// an id when the filter is not keyed by id.
func (n *NotifyingBackend) Delete(ctx context.Context, collection string, filter model.Filter) (int64, error) {
	removed, err := n.Backend.Delete(ctx, collection, filter)
	if err != nil || removed == 0 {
		return removed, err
	}
	for _, id := range deletedIDs(filter) {
		n.publish(ctx, model.NewChangeEvent(collection, model.ChangeDelete, id))
	}
	return removed, nil
}

func (n *NotifyingBackend) publish(ctx context.Context, event model.ChangeEvent) {
	if err := n.publisher.Publish(ctx, event); err != nil {
		n.log.WithContext(ctx).Warnf("failed to publish %s on %s: %v", event.Kind, event.Collection, err)
	}
}

func deletedIDs(filter model.Filter) []string {
	if filter.Field != model.FieldID {
		return []string{""}
	}
	switch filter.Operator {
	case model.OpEqual:
		return []string{fmt.Sprint(filter.Value)}
	case model.OpIn:
		if ids, ok := filter.Value.([]string); ok {
			return ids
		}
	}
	return []string{""}
}
