package usecase

import (
	"context"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/errors"
	"content-sync/internal/shared/logger"
)

// QueryResolver reads a whole collection with the best ordering the backend accepts.
type QueryResolver interface {
	// Resolve tries every ordering candidate of the collection in turn, falling
	// through only on a schema mismatch, then reads unordered. Any other error
	// is returned at once as a query failure.
	Resolve(ctx context.Context, collection string) ([]model.Record, error)
}

type queryResolver struct {
	backend repository.Backend
	policy  *model.OrderingPolicy
	log     logger.Logger
}

// NewQueryResolver creates a resolver. A nil policy uses the default candidates.
func NewQueryResolver(backend repository.Backend, policy *model.OrderingPolicy, log logger.Logger) QueryResolver {
	if policy == nil {
		policy = model.NewOrderingPolicy(nil)
	}
	return &queryResolver{
		backend: backend,
		policy:  policy,
		log:     logger.OrNop(log).WithComponent("query_resolver"),
	}
}

// Resolve implements QueryResolver.
func (r *queryResolver) Resolve(ctx context.Context, collection string) ([]model.Record, error) {
	base := model.SelectQuery{Collection: collection}

	for _, field := range r.policy.Candidates(collection) {
		records, err := r.backend.Select(ctx, base.Ordered(field))
		if err == nil {
			return nonNil(records), nil
		}
		if !errors.IsSchemaMismatch(err) {
			return nil, queryFailure(collection, err)
		}
		r.log.Debugf("ordering column %q rejected on %q, trying next candidate", field, collection)
	}

	records, err := r.backend.Select(ctx, base)
	if err != nil {
		return nil, queryFailure(collection, err)
	}
	return nonNil(records), nil
}

func queryFailure(collection string, err error) error {
	if errors.TypeOf(err) == errors.ErrorTypeQueryFailure {
		return err
	}
	return errors.NewQueryFailure(collection, err).WithComponent("query_resolver")
}

func nonNil(records []model.Record) []model.Record {
	if records == nil {
		return []model.Record{}
	}
	return records
}
