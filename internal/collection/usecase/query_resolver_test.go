package usecase_test

import (
	"context"
	stderrors "errors"
	"testing"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/usecase"
	"content-sync/internal/shared/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func itemsPolicy() *model.OrderingPolicy {
	return model.NewOrderingPolicy([]string{"createdAt", "updatedAt"})
}

func TestResolve_RetriesOnceWithSecondCandidate(t *testing.T) {
	backend := new(MockBackend)
	want := []model.Record{{"id": "2", "updatedAt": "2024-02-01"}, {"id": "1", "updatedAt": "2024-01-01"}}
	backend.On("Select", mock.Anything, orderedBy("createdAt")).
		Return(nil, errors.NewSchemaMismatchError("items", "createdAt")).Once()
	backend.On("Select", mock.Anything, orderedBy("updatedAt")).Return(want, nil).Once()

	resolver := usecase.NewQueryResolver(backend, itemsPolicy(), nil)
	got, err := resolver.Resolve(context.Background(), "items")

	require.NoError(t, err)
	assert.Equal(t, want, got)
	backend.AssertNumberOfCalls(t, "Select", 2)
	backend.AssertExpectations(t)
}

func TestResolve_FallsBackToUnordered(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Select", mock.Anything, orderedBy("createdAt")).
		Return(nil, errors.NewSchemaMismatchError("items", "createdAt"))
	backend.On("Select", mock.Anything, orderedBy("updatedAt")).
		Return(nil, errors.NewSchemaMismatchError("items", "updatedAt"))
	backend.On("Select", mock.Anything, unordered()).Return([]model.Record{{"id": "a"}}, nil)

	got, err := usecase.NewQueryResolver(backend, itemsPolicy(), nil).Resolve(context.Background(), "items")

	require.NoError(t, err)
	assert.Len(t, got, 1)
	backend.AssertNumberOfCalls(t, "Select", 3)
}

func TestResolve_OtherErrorsAreNotRetried(t *testing.T) {
	backend := new(MockBackend)
	cause := stderrors.New("connection refused")
	backend.On("Select", mock.Anything, orderedBy("createdAt")).Return(nil, cause).Once()

	got, err := usecase.NewQueryResolver(backend, itemsPolicy(), nil).Resolve(context.Background(), "items")

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, errors.ErrorTypeQueryFailure, errors.TypeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, errors.IsSchemaMismatch(err))
	backend.AssertNumberOfCalls(t, "Select", 1)
}

func TestResolve_UnorderedSchemaErrorIsQueryFailure(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Select", mock.Anything, mock.Anything).
		Return(nil, errors.NewSchemaMismatchError("items", "x"))

	policy := model.NewOrderingPolicy(nil).Override("items", nil)
	_, err := usecase.NewQueryResolver(backend, policy, nil).Resolve(context.Background(), "items")

	require.Error(t, err)
	assert.Equal(t, errors.ErrorTypeQueryFailure, errors.TypeOf(err))
	backend.AssertNumberOfCalls(t, "Select", 1)
}

func TestResolve_EmptyCollection(t *testing.T) {
	backend := new(MockBackend)
	backend.On("Select", mock.Anything, mock.Anything).Return(nil, nil)

	got, err := usecase.NewQueryResolver(backend, nil, nil).Resolve(context.Background(), "poems")

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestResolve_SameMembershipOnEveryFallbackPath(t *testing.T) {
	rows := []model.Record{
		{"id": "1", "createdAt": "2024-01-03", "updatedAt": "2024-02-01"},
		{"id": "2", "createdAt": "2024-01-01", "updatedAt": "2024-02-03"},
		{"id": "3", "createdAt": "2024-01-02", "updatedAt": "2024-02-02"},
	}
	schemas := map[string][]string{
		"both":        {"id", "createdAt", "updatedAt"},
		"updatedOnly": {"id", "updatedAt"},
		"neither":     {"id"},
	}

	var baseline []string
	for name, cols := range schemas {
		t.Run(name, func(t *testing.T) {
			backend := newMemBackend().withColumns("items", cols...).seed("items", rows...)
			got, err := usecase.NewQueryResolver(backend, itemsPolicy(), nil).Resolve(context.Background(), "items")
			require.NoError(t, err)

			ids := model.IDs(got)
			if baseline == nil {
				baseline = ids
			}
			assert.ElementsMatch(t, baseline, ids)
		})
	}
}

func TestResolve_OrdersDescending(t *testing.T) {
	backend := newMemBackend().seed("poems",
		model.Record{"id": "old", "created_at": "2024-01-01"},
		model.Record{"id": "new", "created_at": "2024-03-01"},
	)
	got, err := usecase.NewQueryResolver(backend, nil, nil).Resolve(context.Background(), "poems")
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, model.IDs(got))
}
