package realtime_test

import (
	"context"
	"testing"

	"content-sync/internal/collection/adapter/persistence/sqlite/sqlitetest"
	"content-sync/internal/collection/adapter/realtime"
	"content-sync/internal/collection/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []model.ChangeEvent
}

func (r *recordingPublisher) Publish(_ context.Context, e model.ChangeEvent) error {
	r.events = append(r.events, e)
	return nil
}

func TestNotifyingBackend_PublishesSuccessfulWrites(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	backend := realtime.NewNotifyingBackend(sqlitetest.NewBackend(t), pub, nil)

	stored, err := backend.Insert(ctx, "poems", []model.Record{{"title": "a"}, {"title": "b"}})
	require.NoError(t, err)
	require.Len(t, pub.events, 2)
	assert.Equal(t, model.ChangeInsert, pub.events[0].Kind)
	assert.Equal(t, stored[0].ID(), pub.events[0].RecordID)

	_, err = backend.Update(ctx, "poems", stored[0].ID(), model.Record{"title": "c"})
	require.NoError(t, err)
	assert.Equal(t, model.ChangeUpdate, pub.events[2].Kind)

	_, err = backend.Delete(ctx, "poems", model.ByIDs(model.IDs(stored)))
	require.NoError(t, err)
	require.Len(t, pub.events, 5)
	assert.Equal(t, model.ChangeDelete, pub.events[4].Kind)
}

func TestNotifyingBackend_SilentOnFailureOrNoop(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	backend := realtime.NewNotifyingBackend(sqlitetest.NewBackend(t), pub, nil)

	_, err := backend.Insert(ctx, "live_settings", []model.Record{{"created_at": "2024-01-01"}})
	require.Error(t, err)

	_, err = backend.Update(ctx, "poems", "missing", model.Record{"title": "x"})
	require.Error(t, err)

	n, err := backend.Delete(ctx, "poems", model.ByID("missing"))
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Empty(t, pub.events)
}

func TestNotifyingBackend_FeedsLocalHub(t *testing.T) {
	ctx := context.Background()
	hub := realtime.NewLocalHub(nil, nil)
	backend := realtime.NewNotifyingBackend(sqlitetest.NewBackend(t), hub, nil)

	var got []model.ChangeEvent
	_, err := hub.Subscribe(ctx, "comments", func(e model.ChangeEvent) { got = append(got, e) })
	require.NoError(t, err)

	_, err = backend.Insert(ctx, "comments", []model.Record{{"message": "hi"}})
	require.NoError(t, err)
	_, err = backend.Delete(ctx, "comments", model.MatchAll())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, model.ChangeDelete, got[1].Kind)
	assert.Empty(t, got[1].RecordID)
}
