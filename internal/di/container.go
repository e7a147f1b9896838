package di

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"content-sync/internal/collection"
	"content-sync/internal/collection/config"
	"content-sync/internal/collection/domain/model"
	"content-sync/internal/dashboard"
	dashboardhttp "content-sync/internal/dashboard/adapter/http"
	"content-sync/internal/shared/logger"
)

// Container owns the modules of one process and shuts them down in reverse
// order of initialization.
type Container struct {
	mu sync.RWMutex

	Config *config.Config
	Logger logger.Logger

	CollectionModule *collection.CollectionModule
	Dashboard        *dashboard.Dashboard
	Server           *dashboardhttp.Server
}

// NewContainer creates an empty container. A nil cfg means defaults and a
// nil log means the environment-selected logger.
func NewContainer(cfg *config.Config, log logger.Logger) *Container {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.NewLogger()
	}
	return &Container{Config: cfg, Logger: log}
}

// InitializeCollection opens the backend and push channel.
func (c *Container) InitializeCollection(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CollectionModule != nil {
		return nil
	}

	m, err := collection.NewCollectionModule(ctx, c.Config, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create collection module: %w", err)
	}
	c.CollectionModule = m
	return nil
}

// InitializeDashboard creates and mounts the dashboard stores. Count rules
// from the collections file override the defaults by name.
func (c *Container) InitializeDashboard(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CollectionModule == nil {
		return fmt.Errorf("collection module must be initialized before the dashboard")
	}
	if c.Dashboard != nil {
		return nil
	}

	dash, err := dashboard.New(c.CollectionModule, c.CollectionModule.Mutations, dashboard.Options{
		Logger:     c.Logger,
		CountRules: dashboard.MergeCountRules(dashboard.DefaultCountRules, countOverrides(c.Config.CountRules)),
	})
	if err != nil {
		return fmt.Errorf("failed to create dashboard: %w", err)
	}
	if err := dash.Mount(ctx); err != nil {
		// The stores that did subscribe keep working; the rest still fetched once.
		c.Logger.Warnf("dashboard mounted without push for some collections: %v", err)
	}
	c.Dashboard = dash
	return nil
}

// InitializeServer builds the HTTP server over the dashboard.
func (c *Container) InitializeServer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Dashboard == nil {
		return fmt.Errorf("dashboard must be initialized before the server")
	}
	if c.Server == nil {
		c.Server = dashboardhttp.NewServer(c.Config, c.Dashboard, c.CollectionModule.Push, c.Logger)
	}
	return nil
}

// HealthCheck fails when any mounted collection's last fetch failed.
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.CollectionModule == nil {
		return fmt.Errorf("collection module not initialized")
	}

	var failed []string
	for _, name := range c.CollectionModule.Stores.Names() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		store, ok := c.CollectionModule.Stores.Store(name)
		if !ok {
			continue
		}
		if s := store.Snapshot(); s.Status == model.StatusFailed {
			failed = append(failed, fmt.Sprintf("%s: %s", name, s.ErrorMessage()))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("unhealthy collections: %v", failed)
	}
	return nil
}

// Cleanup stops the server, unmounts the dashboard and releases the
// collection module.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	if c.Server != nil {
		if err := c.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop server: %w", err))
		}
		c.Server = nil
	}
	if c.Dashboard != nil {
		c.Dashboard.Unmount()
		c.Dashboard = nil
	}
	if c.CollectionModule != nil {
		if err := c.CollectionModule.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop collection module: %w", err))
		}
		c.CollectionModule = nil
	}
	return stderrors.Join(errs...)
}

// Close runs Cleanup with a 30 second timeout.
func (c *Container) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Cleanup(ctx); err != nil {
		c.Logger.Warnf("cleanup errors occurred: %v", err)
		return err
	}
	c.Logger.Info("container resources closed")
	return nil
}

func countOverrides(rules map[string]config.CountRuleConfig) map[string]dashboard.CountRule {
	if len(rules) == 0 {
		return nil
	}
	out := make(map[string]dashboard.CountRule, len(rules))
	for name, r := range rules {
		out[name] = dashboard.CountRule{Name: name, Collection: r.Collection, Expr: r.Expr}
	}
	return out
}
