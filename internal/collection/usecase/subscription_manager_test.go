package usecase_test

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/usecase"
	"content-sync/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_ThreeEventsThenRelease(t *testing.T) {
	push := newFakePush()
	manager := usecase.NewSubscriptionManager(push, nil)

	var calls int32
	handle, err := manager.Subscribe(context.Background(), "comments", func(model.ChangeEvent) {
		atomic.AddInt32(&calls, 1)
	})
	require.NoError(t, err)
	assert.Equal(t, "comments", handle.Collection())

	push.emit("comments", model.ChangeInsert)
	push.emit("comments", model.ChangeUpdate)
	push.emit("comments", model.ChangeDelete)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "every event triggers the callback, no dedupe")

	require.NoError(t, handle.Release())
	require.NoError(t, handle.Release())
	require.NoError(t, manager.Release(handle))
	assert.Equal(t, 1, push.unsubscribeCount("comments"))
	assert.True(t, handle.Released())

	push.emitLate("comments")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "no callback after release")
	assert.Equal(t, 0, manager.ActiveCount())
}

func TestSubscription_EventsForOtherCollectionsAreIgnored(t *testing.T) {
	push := newFakePush()
	manager := usecase.NewSubscriptionManager(push, nil)

	var calls int32
	_, err := manager.Subscribe(context.Background(), "poems", func(model.ChangeEvent) { atomic.AddInt32(&calls, 1) })
	require.NoError(t, err)

	push.emit("videos", model.ChangeInsert)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSubscription_OneChannelPerSubscribe(t *testing.T) {
	push := newFakePush()
	manager := usecase.NewSubscriptionManager(push, nil)

	a, err := manager.Subscribe(context.Background(), "poems", func(model.ChangeEvent) {})
	require.NoError(t, err)
	b, err := manager.Subscribe(context.Background(), "videos", func(model.ChangeEvent) {})
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, 2, manager.ActiveCount())
	assert.Equal(t, 2, push.liveCount())

	require.NoError(t, manager.ReleaseAll())
	assert.Equal(t, 0, manager.ActiveCount())
	assert.Equal(t, 0, push.liveCount())
	assert.Equal(t, 1, push.unsubscribeCount("poems"))
}

func TestSubscription_ConcurrentReleaseUnsubscribesOnce(t *testing.T) {
	push := newFakePush()
	manager := usecase.NewSubscriptionManager(push, nil)
	handle, err := manager.Subscribe(context.Background(), "invites", func(model.ChangeEvent) {})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = handle.Release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, push.unsubscribeCount("invites"))
}

func TestSubscription_OpenFailure(t *testing.T) {
	push := newFakePush()
	push.failWith = stderrors.New("dial tcp: refused")
	manager := usecase.NewSubscriptionManager(push, nil)

	handle, err := manager.Subscribe(context.Background(), "poems", func(model.ChangeEvent) {})
	require.Error(t, err)
	assert.Nil(t, handle)
	assert.Equal(t, errors.ErrorTypeInfrastructure, errors.TypeOf(err))
	assert.Equal(t, 0, manager.ActiveCount())
	assert.NoError(t, manager.Release(nil))
}
