package realtime

import (
	"context"
	"fmt"
	"sync"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/logger"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// DefaultChannelPrefix namespaces the pub/sub channels of every collection.
const DefaultChannelPrefix = "content-sync:changes:"

// RedisHub fans change events out across processes with Redis pub/sub. Each
// collection maps to one channel named prefix+collection.
type RedisHub struct {
	client *redis.Client
	prefix string
	log    logger.Logger
}

var (
	_ repository.PushChannel     = (*RedisHub)(nil)
	_ repository.ChangePublisher = (*RedisHub)(nil)
)

// NewRedisHub creates a hub on client. An empty prefix selects DefaultChannelPrefix.
func NewRedisHub(client *redis.Client, prefix string, log logger.Logger) *RedisHub {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisHub{client: client, prefix: prefix, log: logger.OrNop(log).WithComponent("redis_hub")}
}

// ChannelName returns the pub/sub channel of a collection.
func (h *RedisHub) ChannelName(collection string) string {
	return h.prefix + collection
}

// Publish implements repository.ChangePublisher.
func (h *RedisHub) Publish(ctx context.Context, event model.ChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}
	if err := h.client.Publish(ctx, h.ChannelName(event.Collection), payload).Err(); err != nil {
		h.log.Errorf("failed to publish change on %s: %v", event.Collection, err)
		return err
	}
	return nil
}

// Subscribe implements repository.PushChannel. The subscription is confirmed
// before Subscribe returns, so a publish that follows is never missed.
func (h *RedisHub) Subscribe(ctx context.Context, collection string, onChange func(model.ChangeEvent)) (repository.Unsubscribe, error) {
	channel := h.ChannelName(collection)
	pubsub := h.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range pubsub.Channel() {
			var event model.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				h.log.Warnf("undecodable change on %s: %v", channel, err)
				continue
			}
			if event.Collection == "" {
				event.Collection = collection
			}
			onChange(event)
		}
	}()

	var once sync.Once
	return func() error {
		var closeErr error
		once.Do(func() {
			closeErr = pubsub.Close()
			wg.Wait()
		})
		return closeErr
	}, nil
}

// Close closes the client.
func (h *RedisHub) Close(context.Context) error {
	return h.client.Close()
}
