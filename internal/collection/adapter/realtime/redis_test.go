package realtime_test

import (
	"context"
	"os"
	"testing"
	"time"

	"content-sync/internal/collection/adapter/realtime"
	"content-sync/internal/collection/domain/model"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestRedisClient() *redis.Client {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	return redis.NewClient(&redis.Options{Addr: addr, DialTimeout: time.Second})
}

func TestRedisHub_PublishSubscribe(t *testing.T) {
	client := createTestRedisClient()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available for testing:", err)
	}

	hub := realtime.NewRedisHub(client, "content-sync-test:"+ulid.Make().String()+":", nil)
	defer hub.Close(ctx)

	events := make(chan model.ChangeEvent, 4)
	stop, err := hub.Subscribe(ctx, "invites", func(e model.ChangeEvent) { events <- e })
	require.NoError(t, err)

	require.NoError(t, hub.Publish(ctx, model.NewChangeEvent("invites", model.ChangeUpdate, "i1")))

	select {
	case e := <-events:
		assert.Equal(t, "invites", e.Collection)
		assert.Equal(t, model.ChangeUpdate, e.Kind)
		assert.Equal(t, "i1", e.RecordID)
	case <-ctx.Done():
		t.Fatal("change not delivered")
	}

	require.NoError(t, stop())
	require.NoError(t, hub.Publish(ctx, model.NewChangeEvent("invites", model.ChangeDelete, "i1")))
	select {
	case e := <-events:
		t.Fatalf("delivered after unsubscribe: %+v", e)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestRedisHub_ChannelName(t *testing.T) {
	hub := realtime.NewRedisHub(redis.NewClient(&redis.Options{}), "", nil)
	assert.Equal(t, realtime.DefaultChannelPrefix+"poems", hub.ChannelName("poems"))
}
