// Package realtime holds the push channels a collection store can listen on
// and the publishers that feed them.
package realtime

import (
	"context"
	"fmt"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/eventbus"
	"content-sync/internal/shared/logger"
)

// LocalHub delivers change events inside one process over the shared event
// bus. It is both the push channel and the publisher.
type LocalHub struct {
	bus *eventbus.EventBus
	log logger.Logger
}

var (
	_ repository.PushChannel     = (*LocalHub)(nil)
	_ repository.ChangePublisher = (*LocalHub)(nil)
)

// NewLocalHub creates a hub on bus. A nil bus gets a private synchronous one.
func NewLocalHub(bus *eventbus.EventBus, log logger.Logger) *LocalHub {
	log = logger.OrNop(log).WithComponent("local_hub")
	if bus == nil {
		bus = eventbus.NewEventBus(log)
	}
	return &LocalHub{bus: bus, log: log}
}

// Bus returns the underlying event bus.
func (h *LocalHub) Bus() *eventbus.EventBus { return h.bus }

// Subscribe implements repository.PushChannel.
func (h *LocalHub) Subscribe(_ context.Context, collection string, onChange func(model.ChangeEvent)) (repository.Unsubscribe, error) {
	id := h.bus.Subscribe(collection, func(_ context.Context, event eventbus.Event) error {
		change, ok := event.Data().(model.ChangeEvent)
		if !ok {
			return fmt.Errorf("unexpected payload %T on %s", event.Data(), collection)
		}
		onChange(change)
		return nil
	})
	return func() error {
		h.bus.Unsubscribe(collection, id)
		return nil
	}, nil
}

// Publish implements repository.ChangePublisher.
func (h *LocalHub) Publish(ctx context.Context, event model.ChangeEvent) error {
	return h.bus.Publish(ctx, eventbus.NewBasicEventWithSource(event.Collection, event, "local_hub"))
}
