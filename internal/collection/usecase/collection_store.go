package usecase

import (
	"context"
	"sync"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/shared/errors"
	"content-sync/internal/shared/logger"
	"content-sync/internal/shared/utils"

	"github.com/google/uuid"
)

// DefaultRefetchDelay is the delay of a best-effort refetch after a write.
const DefaultRefetchDelay = 300 * time.Millisecond

// StoreOptions configures a CollectionStore.
type StoreOptions struct {
	Logger       logger.Logger
	RefetchDelay time.Duration
}

// CollectionStore keeps the latest snapshot of one collection and refreshes
// it on mount, on explicit refetch and on every push event.
//
// Each fetch takes a generation number. A result is applied only when it is
// newer than the last applied one, so the data always equals exactly one
// fetch result and never goes back in time. A superseded fetch that is still
// newer than the data is applied, which keeps the store moving while push
// events arrive faster than a fetch completes. Loading stays true until the
// newest issued fetch has landed. After Unmount no fetch is applied and no
// watcher runs.
//
// Watchers run synchronously on the goroutine that applied the change and
// must not call Refetch or Unmount on the same store.
type CollectionStore struct {
	id       string
	name     string
	resolver QueryResolver
	subs     *SubscriptionManager
	delay    time.Duration
	log      logger.Logger

	mu         sync.Mutex
	state      model.FetchState
	generation uint64
	applied    uint64
	mounted    bool
	unmounted  bool
	baseCtx    context.Context
	sub        *SubscriptionHandle
	timers     map[uint64]*time.Timer
	nextTimer  uint64
	watchers   map[uint64]func(model.FetchState)
	nextWatch  uint64

	// emitMu serializes watcher notification and lets Unmount wait for a
	// notification already in progress.
	emitMu sync.Mutex
}

// NewCollectionStore creates an idle store. subs may be nil, in which case
// the store is only refreshed by explicit refetches.
func NewCollectionStore(name string, resolver QueryResolver, subs *SubscriptionManager, opts StoreOptions) *CollectionStore {
	delay := opts.RefetchDelay
	if delay <= 0 {
		delay = DefaultRefetchDelay
	}
	id := uuid.NewString()
	return &CollectionStore{
		id:       id,
		name:     name,
		resolver: resolver,
		subs:     subs,
		delay:    delay,
		log: logger.OrNop(opts.Logger).WithComponent("collection_store").WithFields(map[string]interface{}{
			"collection": name,
			"store_id":   id,
		}),
		state:    model.FetchState{Collection: name, Data: []model.Record{}, Status: model.StatusIdle},
		baseCtx:  context.Background(),
		timers:   make(map[uint64]*time.Timer),
		watchers: make(map[uint64]func(model.FetchState)),
	}
}

// Name returns the collection name.
func (s *CollectionStore) Name() string { return s.name }

// Mount opens the push subscription and runs the first fetch. A failure to
// subscribe is returned after the fetch; the store stays usable without live
// updates.
func (s *CollectionStore) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return errors.ErrStoreClosed
	}
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.mounted = true
	s.baseCtx = context.WithoutCancel(s.scoped(ctx))
	s.mu.Unlock()

	var subErr error
	if s.subs != nil {
		h, err := s.subs.Subscribe(ctx, s.name, s.onChange)
		if err != nil {
			s.log.Warnf("live updates disabled: %v", err)
			subErr = err
		} else {
			s.mu.Lock()
			closed := s.unmounted
			if !closed {
				s.sub = h
			}
			s.mu.Unlock()
			if closed {
				_ = h.Release()
				return errors.ErrStoreClosed
			}
		}
	}

	s.Refetch(ctx)
	return subErr
}

// Refetch runs the resolver and returns a snapshot at least as new as its
// own fetch. Errors are reported in the
// returned state, never as a Go error. A store that was unmounted is not
// fetched again.
func (s *CollectionStore) Refetch(ctx context.Context) model.FetchState {
	gen, ok := s.begin()
	if !ok {
		return s.Snapshot()
	}
	s.emit()

	records, err := s.resolver.Resolve(s.scoped(ctx), s.name)
	s.finish(gen, records, err)
	return s.Snapshot()
}

// ScheduleRefetch refetches after delay without blocking. It is the
// best-effort idiom: it races with push-triggered fetches and is dropped on
// unmount. A non-positive delay uses the store default.
func (s *CollectionStore) ScheduleRefetch(delay time.Duration) {
	if delay <= 0 {
		delay = s.delay
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted {
		return
	}
	id := s.nextTimer
	s.nextTimer++
	s.timers[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.timers, id)
		ctx := s.baseCtx
		s.mu.Unlock()
		s.Refetch(ctx)
	})
}

// Snapshot returns the current state.
func (s *CollectionStore) Snapshot() model.FetchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch registers fn to receive every new state. The returned func removes it.
func (s *CollectionStore) Watch(fn func(model.FetchState)) (cancel func()) {
	s.mu.Lock()
	id := s.nextWatch
	s.nextWatch++
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

// Unmount releases the subscription and stops pending refetches. Fetches
// still in flight complete but their results are discarded. No watcher runs
// after Unmount returns.
func (s *CollectionStore) Unmount() error {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return nil
	}
	s.unmounted = true
	s.state.Loading = false
	s.state.Status = model.StatusUnmounted
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	// Wait for a notification that started before the flag was set.
	s.emitMu.Lock()
	s.emitMu.Unlock()

	var err error
	if sub != nil {
		err = sub.Release()
	}
	s.log.Debug("store unmounted")
	return err
}

// Unmounted reports whether Unmount has been called.
func (s *CollectionStore) Unmounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unmounted
}

func (s *CollectionStore) onChange(event model.ChangeEvent) {
	s.log.Debugf("push event %s %s", event.Kind, event.RecordID)
	s.mu.Lock()
	ctx := s.baseCtx
	closed := s.unmounted
	s.mu.Unlock()
	if closed {
		return
	}
	go s.Refetch(ctx)
}

// begin issues a new generation and marks the store as loading.
func (s *CollectionStore) begin() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmounted {
		return 0, false
	}
	s.generation++
	s.state.Loading = true
	s.state.Status = model.StatusLoading
	return s.generation, true
}

// finish applies a fetch result unless a newer one was applied already.
func (s *CollectionStore) finish(gen uint64, records []model.Record, err error) {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		s.log.Debugf("discarding fetch %d, store unmounted", gen)
		return
	}
	if gen <= s.applied {
		s.mu.Unlock()
		s.log.Debugf("discarding fetch %d, fetch %d already applied", gen, s.applied)
		return
	}
	s.applied = gen

	if err != nil {
		s.state.Err = err
		s.state.Status = model.StatusFailed
		s.log.Warnf("fetch failed, keeping %d stale record(s): %v", len(s.state.Data), err)
	} else {
		s.state.Data = records
		s.state.Err = nil
		s.state.Status = model.StatusReady
	}
	s.state.Loading = gen != s.generation
	s.mu.Unlock()

	s.emit()
}

func (s *CollectionStore) emit() {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if s.unmounted || len(s.watchers) == 0 {
		s.mu.Unlock()
		return
	}
	snapshot := s.state
	watchers := make([]func(model.FetchState), 0, len(s.watchers))
	for _, w := range s.watchers {
		watchers = append(watchers, w)
	}
	s.mu.Unlock()

	for _, w := range watchers {
		w(snapshot)
	}
}

func (s *CollectionStore) scoped(ctx context.Context) context.Context {
	return utils.WithStoreID(utils.WithCollection(ctx, s.name), s.id)
}
