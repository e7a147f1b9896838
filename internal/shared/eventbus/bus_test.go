package eventbus

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// DummyEvent implements Event for testing
type DummyEvent struct {
	typeStr   string
	data      interface{}
	timestamp time.Time
	source    string
}

func (e *DummyEvent) Type() string         { return e.typeStr }
func (e *DummyEvent) Data() interface{}    { return e.data }
func (e *DummyEvent) Timestamp() time.Time { return e.timestamp }
func (e *DummyEvent) Source() string       { return e.source }

func TestEventBus_SubscribePublish(t *testing.T) {
	bus := NewEventBus(nil)
	var called bool
	bus.Subscribe("test", func(ctx context.Context, event Event) error {
		called = true
		assert.Equal(t, "test", event.Type())
		return nil
	})
	err := bus.Publish(context.Background(), &DummyEvent{typeStr: "test", timestamp: time.Now()})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestEventBus_PublishRunsAllHandlersOnError(t *testing.T) {
	bus := NewEventBus(nil)
	boom := errors.New("boom")
	var second bool
	bus.Subscribe("ev", func(ctx context.Context, event Event) error { return boom })
	bus.Subscribe("ev", func(ctx context.Context, event Event) error {
		second = true
		return nil
	})

	err := bus.Publish(context.Background(), NewBasicEventWithSource("ev", nil, "test"))
	assert.ErrorIs(t, err, boom)
	assert.True(t, second)
}

func TestEventBus_UnsubscribeSingleHandler(t *testing.T) {
	bus := NewEventBus(nil)
	first := bus.Subscribe("ev", func(ctx context.Context, event Event) error { return nil })
	bus.Subscribe("ev", func(ctx context.Context, event Event) error { return nil })
	assert.Equal(t, 2, bus.GetSubscriberCount("ev"))

	assert.True(t, bus.Unsubscribe("ev", first))
	assert.False(t, bus.Unsubscribe("ev", first), "second unsubscribe is a no-op")
	assert.Equal(t, 1, bus.GetSubscriberCount("ev"))
}

func TestEventBus_UnsubscribeLastHandlerDropsTopic(t *testing.T) {
	bus := NewEventBus(nil)
	id := bus.Subscribe("ev", func(ctx context.Context, event Event) error { return nil })
	assert.True(t, bus.Unsubscribe("ev", id))
	assert.Equal(t, 0, bus.GetSubscriberCount("ev"))
	assert.False(t, bus.Unsubscribe("other", id))
}

func TestEventBus_PublishRunsOnCallerGoroutine(t *testing.T) {
	bus := NewEventBus(nil)
	var seen []string
	bus.Subscribe("ev", func(ctx context.Context, event Event) error {
		seen = append(seen, event.Source())
		return nil
	})

	assert.NoError(t, bus.Publish(context.Background(), NewBasicEventWithSource("ev", nil, "one")))
	assert.NoError(t, bus.Publish(context.Background(), NewBasicEventWithSource("ev", nil, "two")))
	assert.Equal(t, []string{"one", "two"}, seen, "handlers have run by the time Publish returns")
}

func TestEventBus_PublishWithoutSubscribers(t *testing.T) {
	bus := NewEventBus(nil)
	assert.NoError(t, bus.Publish(context.Background(), NewBasicEventWithSource("nobody", 1, "test")))
	assert.Equal(t, 0, bus.GetSubscriberCount("nobody"))
}

func TestEventBus_FailingHandlerIsNotRetried(t *testing.T) {
	bus := NewEventBus(nil)
	attempts := 0
	bus.Subscribe("flaky", func(ctx context.Context, event Event) error {
		attempts++
		return errors.New("not yet")
	})
	assert.Error(t, bus.Publish(context.Background(), NewBasicEventWithSource("flaky", nil, "test")))
	assert.Equal(t, 1, attempts)
}
