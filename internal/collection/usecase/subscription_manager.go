package usecase

import (
	"context"
	stderrors "errors"
	"sync"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/errors"
	"content-sync/internal/shared/logger"

	"github.com/google/uuid"
)

// SubscriptionHandle is one open push channel bound to a collection. It is
// owned by the store that opened it and never shared.
type SubscriptionHandle struct {
	id         string
	collection string
	manager    *SubscriptionManager

	// mu is held for reading while onChange runs, and for writing when the
	// handle is released, so no callback can start or still be running once
	// Release returns.
	mu          sync.RWMutex
	released    bool
	once        sync.Once
	unsubscribe repository.Unsubscribe
	onChange    func(model.ChangeEvent)
	releaseErr  error
}

// ID returns the handle identifier.
func (h *SubscriptionHandle) ID() string { return h.id }

// Collection returns the collection the handle listens to.
func (h *SubscriptionHandle) Collection() string { return h.collection }

// Released reports whether Release has been called.
func (h *SubscriptionHandle) Released() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.released
}

// Release closes the push channel. It is safe to call any number of times;
// the channel is unsubscribed exactly once. onChange must not call Release
// synchronously.
func (h *SubscriptionHandle) Release() error {
	return h.manager.Release(h)
}

func (h *SubscriptionHandle) deliver(event model.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.released {
		return
	}
	h.onChange(event)
}

// SubscriptionManager opens one push channel per Subscribe call and keeps
// track of the live ones so they can all be released on shutdown.
type SubscriptionManager struct {
	channel repository.PushChannel
	log     logger.Logger

	mu     sync.Mutex
	active map[string]*SubscriptionHandle
}

// NewSubscriptionManager creates a manager over the given push channel.
func NewSubscriptionManager(channel repository.PushChannel, log logger.Logger) *SubscriptionManager {
	return &SubscriptionManager{
		channel: channel,
		log:     logger.OrNop(log).WithComponent("subscription_manager"),
		active:  make(map[string]*SubscriptionHandle),
	}
}

// Subscribe opens a push channel for the collection. Every insert, update and
// delete event invokes onChange; events are neither filtered nor debounced.
func (m *SubscriptionManager) Subscribe(ctx context.Context, collection string, onChange func(model.ChangeEvent)) (*SubscriptionHandle, error) {
	h := &SubscriptionHandle{
		id:         uuid.NewString(),
		collection: collection,
		manager:    m,
		onChange:   onChange,
	}

	unsubscribe, err := m.channel.Subscribe(ctx, collection, h.deliver)
	if err != nil {
		return nil, errors.NewInfrastructureError("failed to open push channel for "+collection).
			WithCause(err).
			WithComponent("subscription_manager").
			WithDetail("collection", collection)
	}
	h.unsubscribe = unsubscribe

	m.mu.Lock()
	m.active[h.id] = h
	m.mu.Unlock()

	m.log.WithContext(ctx).Debugf("subscribed %s to %s", h.id, collection)
	return h, nil
}

// Release closes the handle's push channel. Repeated calls return the result
// of the first one.
func (m *SubscriptionManager) Release(h *SubscriptionHandle) error {
	if h == nil {
		return nil
	}
	h.once.Do(func() {
		h.mu.Lock()
		h.released = true
		h.mu.Unlock()

		m.mu.Lock()
		delete(m.active, h.id)
		m.mu.Unlock()

		if h.unsubscribe != nil {
			h.releaseErr = h.unsubscribe()
		}
		if h.releaseErr != nil {
			m.log.Warnf("unsubscribe %s from %s failed: %v", h.id, h.collection, h.releaseErr)
		} else {
			m.log.Debugf("released %s from %s", h.id, h.collection)
		}
	})
	return h.releaseErr
}

// ReleaseAll releases every live handle.
func (m *SubscriptionManager) ReleaseAll() error {
	m.mu.Lock()
	handles := make([]*SubscriptionHandle, 0, len(m.active))
	for _, h := range m.active {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	var errs []error
	for _, h := range handles {
		if err := m.Release(h); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// ActiveCount returns the number of handles not yet released.
func (m *SubscriptionManager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}
