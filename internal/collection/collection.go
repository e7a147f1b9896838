// Package collection wires the sync layer: a backend, a push channel, and
// the stores and mutation coordinator built on them.
package collection

import (
	"context"
	stderrors "errors"
	"fmt"

	"content-sync/internal/collection/adapter/persistence/mongodb"
	"content-sync/internal/collection/adapter/persistence/sqlite"
	"content-sync/internal/collection/adapter/realtime"
	"content-sync/internal/collection/config"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/collection/usecase"
	"content-sync/internal/shared/eventbus"
	"content-sync/internal/shared/logger"
)

// CollectionModule holds the wired sync layer.
type CollectionModule struct {
	Config        *config.Config
	Logger        logger.Logger
	Backend       repository.Backend
	Push          repository.PushChannel
	Resolver      usecase.QueryResolver
	Subscriptions *usecase.SubscriptionManager
	Stores        *usecase.StoreSet
	Mutations     *usecase.MutationCoordinator

	// closers are released in reverse order on Stop.
	closers []repository.Closer
}

// NewCollectionModule opens the configured backend and push channel. When
// the push channel is in-process or Redis, writes made through the module
// are announced on it.
func NewCollectionModule(ctx context.Context, cfg *config.Config, log logger.Logger) (*CollectionModule, error) {
	log = logger.OrNop(log)
	if cfg == nil {
		cfg = config.DefaultConfig()
		log.Info("No configuration provided, using defaults.")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		backend repository.Backend
		closers []repository.Closer
		mongoDB *mongodb.Backend
	)
	fail := func(err error) (*CollectionModule, error) {
		closeAll(context.Background(), closers, log)
		return nil, err
	}

	switch cfg.Backend {
	case config.BackendMongoDB:
		client, err := mongodb.Connect(ctx, cfg.MongoDBURI, cfg.ConnectTimeout)
		if err != nil {
			return nil, err
		}
		mongoDB = mongodb.NewBackend(client.Database(cfg.MongoDatabase), log)
		backend = mongoDB
		closers = append(closers, mongoDB)
	default:
		sq, err := sqlite.Open(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		closers = append(closers, sq)
		if err := sq.Bootstrap(ctx); err != nil {
			return fail(err)
		}
		backend = sq
	}
	log.Infof("%s backend ready", cfg.Backend)

	var push repository.PushChannel
	switch cfg.Push {
	case config.PushRedis:
		client := config.NewRedisClient(&cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return fail(fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Redis.GetAddr(), err))
		}
		hub := realtime.NewRedisHub(client, cfg.Redis.ChannelPrefix, log)
		closers = append(closers, hub)
		backend = realtime.NewNotifyingBackend(backend, hub, log)
		push = hub
	case config.PushMongoDB:
		push = mongodb.NewChangeStreamChannel(mongoDB.Database(), log)
	case config.PushWebSocket:
		ch, err := realtime.DialWebSocket(ctx, cfg.RelayURL, nil, log)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, ch)
		push = ch
	default:
		hub := realtime.NewLocalHub(eventbus.NewEventBus(log), log)
		backend = realtime.NewNotifyingBackend(backend, hub, log)
		push = hub
	}
	log.Infof("%s push channel ready", cfg.Push)

	m := NewCollectionModuleWithBackend(cfg, backend, push, log)
	m.closers = closers
	return m, nil
}

// NewCollectionModuleWithBackend wires the module on an existing backend and
// push channel. push may be nil, in which case stores only refresh on
// demand.
func NewCollectionModuleWithBackend(cfg *config.Config, backend repository.Backend, push repository.PushChannel, log logger.Logger) *CollectionModule {
	log = logger.OrNop(log)
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	stores := usecase.NewStoreSet()
	var subs *usecase.SubscriptionManager
	if push != nil {
		subs = usecase.NewSubscriptionManager(push, log)
	}

	return &CollectionModule{
		Config:        cfg,
		Logger:        log,
		Backend:       backend,
		Push:          push,
		Resolver:      usecase.NewQueryResolver(backend, cfg.OrderingPolicy(), log),
		Subscriptions: subs,
		Stores:        stores,
		Mutations: usecase.NewMutationCoordinator(backend, stores, usecase.CoordinatorOptions{
			Logger:       log,
			RefetchDelay: cfg.RefetchDelay,
		}),
	}
}

// NewStore creates a store for collection and registers it, replacing any
// previous store of that name. The caller mounts it.
func (m *CollectionModule) NewStore(collection string) *usecase.CollectionStore {
	store := usecase.NewCollectionStore(collection, m.Resolver, m.Subscriptions, usecase.StoreOptions{
		Logger:       m.Logger,
		RefetchDelay: m.Config.RefetchDelay,
	})
	m.Stores.Add(store)
	return store
}

// Stop unmounts every store, releases remaining subscriptions and closes
// connections.
func (m *CollectionModule) Stop(ctx context.Context) error {
	m.Logger.Info("Stopping collection module...")
	m.Stores.UnmountAll()
	var errs []error
	if m.Subscriptions != nil {
		if err := m.Subscriptions.ReleaseAll(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := closeAll(ctx, m.closers, m.Logger); err != nil {
		errs = append(errs, err)
	}
	m.closers = nil
	m.Logger.Info("Collection module stopped.")
	return stderrors.Join(errs...)
}

func closeAll(ctx context.Context, closers []repository.Closer, log logger.Logger) error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(ctx); err != nil {
			log.Warnf("close failed: %v", err)
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
