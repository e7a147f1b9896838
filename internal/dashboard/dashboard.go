// Package dashboard composes the content collections into the object the
// view layer talks to: live state per collection, derived counts and named
// actions.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/usecase"
	"content-sync/internal/shared/errors"
	"content-sync/internal/shared/logger"

	"golang.org/x/sync/errgroup"
)

// Collection names.
const (
	Poems         = "poems"
	Videos        = "videos"
	MediaAssets   = "media_assets"
	Comments      = "comments"
	Invites       = "invites"
	Profiles      = "profiles"
	LiveSettings  = "live_settings"
	Notifications = "notifications"
)

// Collections lists every collection the dashboard mounts.
var Collections = []string{Poems, Videos, MediaAssets, Comments, Invites, Profiles, LiveSettings, Notifications}

// StoreFactory creates registered stores; collection.CollectionModule is one.
type StoreFactory interface {
	NewStore(collection string) *usecase.CollectionStore
}

// Options configures a Dashboard.
type Options struct {
	Logger logger.Logger
	// CountRules replaces DefaultCountRules when set.
	CountRules []CountRule
	Notices    *NoticeBoard
	// Now stamps created_at and updated_at columns.
	Now func() time.Time
}

// Dashboard owns one store per collection and the actions that write to them.
type Dashboard struct {
	stores    map[string]*usecase.CollectionStore
	mutations *usecase.MutationCoordinator
	counts    *CountRules
	notices   *NoticeBoard
	log       logger.Logger
	now       func() time.Time
}

// State is a point-in-time view of the whole dashboard.
type State struct {
	Collections map[string]model.FetchState `json:"collections"`
	Counts      DerivedCounts               `json:"counts"`
	Notices     []Notice                    `json:"notices"`
}

// New creates the stores of every collection. They are not mounted yet.
func New(factory StoreFactory, mutations *usecase.MutationCoordinator, opts Options) (*Dashboard, error) {
	rules := opts.CountRules
	if rules == nil {
		rules = DefaultCountRules
	}
	counts, err := NewCountRules(rules)
	if err != nil {
		return nil, err
	}
	notices := opts.Notices
	if notices == nil {
		notices = NewNoticeBoard(DefaultNoticeTTL)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	d := &Dashboard{
		stores:    make(map[string]*usecase.CollectionStore, len(Collections)),
		mutations: mutations,
		counts:    counts,
		notices:   notices,
		log:       logger.OrNop(opts.Logger).WithComponent("dashboard"),
		now:       now,
	}
	for _, name := range Collections {
		d.stores[name] = factory.NewStore(name)
	}
	return d, nil
}

// Mount mounts every store in parallel. Each store is fetched even if
// another fails to subscribe; the first subscribe error is returned.
func (d *Dashboard) Mount(ctx context.Context) error {
	var g errgroup.Group
	for _, name := range Collections {
		store := d.stores[name]
		g.Go(func() error {
			if err := store.Mount(ctx); err != nil {
				return fmt.Errorf("mount %s: %w", store.Name(), err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err != nil {
		d.log.Warnf("dashboard mounted with errors: %v", err)
	} else {
		d.log.Infof("dashboard mounted %d collections", len(Collections))
	}
	return err
}

// Unmount stops every store and clears the notice board.
func (d *Dashboard) Unmount() {
	for _, store := range d.stores {
		_ = store.Unmount()
	}
	d.notices.Clear()
}

// Store returns the store of a collection.
func (d *Dashboard) Store(collection string) (*usecase.CollectionStore, bool) {
	s, ok := d.stores[collection]
	return s, ok
}

// Collection returns the current state of one collection.
func (d *Dashboard) Collection(collection string) (model.FetchState, error) {
	s, ok := d.stores[collection]
	if !ok {
		return model.FetchState{}, errors.NewNotFoundError(fmt.Sprintf("collection %q", collection)).
			WithCause(errors.ErrUnknownStore)
	}
	return s.Snapshot(), nil
}

// Refetch refreshes one collection and returns its new state.
func (d *Dashboard) Refetch(ctx context.Context, collection string) (model.FetchState, error) {
	s, ok := d.stores[collection]
	if !ok {
		return model.FetchState{}, errors.NewNotFoundError(fmt.Sprintf("collection %q", collection)).
			WithCause(errors.ErrUnknownStore)
	}
	return s.Refetch(ctx), nil
}

// Counts recomputes the derived counts from the current snapshots.
func (d *Dashboard) Counts() DerivedCounts {
	counts, err := d.counts.Compute(d.records)
	if err != nil {
		d.log.Warnf("derived counts: %v", err)
	}
	return counts
}

// Notices returns the notice board.
func (d *Dashboard) Notices() *NoticeBoard { return d.notices }

// Snapshot returns every collection's state with the counts derived from
// those same states.
func (d *Dashboard) Snapshot() State {
	states := make(map[string]model.FetchState, len(d.stores))
	for name, s := range d.stores {
		states[name] = s.Snapshot()
	}
	counts, err := d.counts.Compute(func(collection string) []model.Record {
		return states[collection].Data
	})
	if err != nil {
		d.log.Warnf("derived counts: %v", err)
	}
	return State{Collections: states, Counts: counts, Notices: d.notices.List()}
}

func (d *Dashboard) records(collection string) []model.Record {
	s, ok := d.stores[collection]
	if !ok {
		return nil
	}
	return s.Snapshot().Data
}

func (d *Dashboard) timestamp() string {
	return d.now().UTC().Format(time.RFC3339Nano)
}
