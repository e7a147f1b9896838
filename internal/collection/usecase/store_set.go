package usecase

import (
	"context"
	"sort"
	"sync"
)

// StoreSet is a StoreRegistry of mounted stores keyed by collection name.
type StoreSet struct {
	mu     sync.RWMutex
	stores map[string]*CollectionStore
}

// NewStoreSet creates an empty set.
func NewStoreSet() *StoreSet {
	return &StoreSet{stores: make(map[string]*CollectionStore)}
}

// Add registers a store under its collection name, replacing any previous one.
func (s *StoreSet) Add(store *CollectionStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[store.Name()] = store
}

// Store implements StoreRegistry.
func (s *StoreSet) Store(collection string) (*CollectionStore, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stores[collection]
	return st, ok
}

// Names returns the registered collection names, sorted.
func (s *StoreSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.stores))
	for name := range s.stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RefetchAll refetches every store and waits for all of them.
func (s *StoreSet) RefetchAll(ctx context.Context) {
	s.mu.RLock()
	stores := make([]*CollectionStore, 0, len(s.stores))
	for _, st := range s.stores {
		stores = append(stores, st)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, st := range stores {
		wg.Add(1)
		go func(st *CollectionStore) {
			defer wg.Done()
			st.Refetch(ctx)
		}(st)
	}
	wg.Wait()
}

// UnmountAll unmounts and forgets every store.
func (s *StoreSet) UnmountAll() {
	s.mu.Lock()
	stores := s.stores
	s.stores = make(map[string]*CollectionStore)
	s.mu.Unlock()

	for _, st := range stores {
		_ = st.Unmount()
	}
}
