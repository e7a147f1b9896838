package di

import (
	"context"
	"testing"
	"time"

	"content-sync/internal/collection/config"
	"content-sync/internal/dashboard"
	"content-sync/internal/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.SQLitePath = ":memory:"
	cfg.RefetchDelay = 5 * time.Millisecond
	return cfg
}

func TestContainer_Lifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CountRules = map[string]config.CountRuleConfig{
		"drafts": {Collection: dashboard.Videos, Expr: `!flag(record, "is_published")`},
	}
	c := NewContainer(cfg, logger.NewNopLogger())

	require.Error(t, c.InitializeDashboard(ctx), "collection module comes first")
	require.Error(t, c.InitializeServer())

	require.NoError(t, c.InitializeCollection(ctx))
	require.NoError(t, c.InitializeDashboard(ctx))
	require.NoError(t, c.InitializeServer())
	require.NotNil(t, c.Server.App())

	require.NoError(t, c.HealthCheck(ctx))
	counts := c.Dashboard.Counts()
	assert.Contains(t, counts, "drafts")
	assert.Contains(t, counts, dashboard.CountUnreadInvites)

	require.NoError(t, c.Cleanup(ctx))
	assert.Nil(t, c.Dashboard)
	assert.Error(t, c.HealthCheck(ctx))
}

func TestContainer_InvalidCountRule(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.CountRules = map[string]config.CountRuleConfig{"broken": {Collection: dashboard.Poems, Expr: "record.("}}
	c := NewContainer(cfg, logger.NewNopLogger())
	defer c.Close()

	require.NoError(t, c.InitializeCollection(ctx))
	err := c.InitializeDashboard(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestContainer_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Backend = "oracle"
	c := NewContainer(cfg, logger.NewNopLogger())
	assert.Error(t, c.InitializeCollection(context.Background()))
}

func TestCountOverrides(t *testing.T) {
	assert.Nil(t, countOverrides(nil))
	out := countOverrides(map[string]config.CountRuleConfig{"a": {Collection: "poems", Expr: "true"}})
	assert.Equal(t, dashboard.CountRule{Name: "a", Collection: "poems", Expr: "true"}, out["a"])
}
