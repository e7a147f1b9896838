package mongodb

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/errors"
	"content-sync/internal/shared/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoID = "_id"

// Backend stores every collection as a MongoDB collection of flat documents
// keyed by a string _id. Documents have no schema, so a sort field that no
// document of a non-empty collection carries is reported as unknown; that
// keeps the resolver's fallback working the same way it does on SQL.
type Backend struct {
	db  *mongo.Database
	log logger.Logger
}

var _ repository.Backend = (*Backend)(nil)

// Connect opens a client and checks it answers within timeout.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// NewBackend creates a backend over the given database.
func NewBackend(db *mongo.Database, log logger.Logger) *Backend {
	return &Backend{db: db, log: logger.OrNop(log).WithComponent("mongodb_backend")}
}

// Database returns the underlying database.
func (b *Backend) Database() *mongo.Database { return b.db }

// Close disconnects the client.
func (b *Backend) Close(ctx context.Context) error {
	return b.db.Client().Disconnect(ctx)
}

// Select implements repository.Backend.
func (b *Backend) Select(ctx context.Context, q model.SelectQuery) ([]model.Record, error) {
	coll := b.db.Collection(q.Collection)
	opts := options.Find()

	if q.OrderBy != nil {
		field := fieldName(q.OrderBy.Field)
		if err := b.checkField(ctx, coll, q.Collection, field); err != nil {
			return nil, err
		}
		dir := -1
		if q.OrderBy.Direction == model.Ascending {
			dir = 1
		}
		opts.SetSort(bson.D{{Key: field, Value: dir}})
	}

	cursor, err := coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, classify(q.Collection, err)
	}
	defer cursor.Close(ctx)

	records := make([]model.Record, 0)
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return nil, classify(q.Collection, err)
		}
		records = append(records, toRecord(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, classify(q.Collection, err)
	}
	return records, nil
}

// checkField reports a schema mismatch when the collection has documents but
// none of them carries field.
func (b *Backend) checkField(ctx context.Context, coll *mongo.Collection, name, field string) error {
	if field == mongoID {
		return nil
	}
	total, err := coll.CountDocuments(ctx, bson.M{}, options.Count().SetLimit(1))
	if err != nil {
		return classify(name, err)
	}
	if total == 0 {
		return nil
	}
	with, err := coll.CountDocuments(ctx, bson.M{field: bson.M{"$exists": true}}, options.Count().SetLimit(1))
	if err != nil {
		return classify(name, err)
	}
	if with == 0 {
		return errors.NewSchemaMismatchError(name, field).WithComponent("mongodb_backend")
	}
	return nil
}

// Insert implements repository.Backend. Documents are inserted in order; if
// one fails after others were written, a *errors.PartialBatchError lists the
// written ids.
func (b *Backend) Insert(ctx context.Context, collection string, records []model.Record) ([]model.Record, error) {
	if len(records) == 0 {
		return []model.Record{}, nil
	}

	docs := make([]interface{}, len(records))
	stored := make([]model.Record, len(records))
	ids := make([]string, len(records))
	for i, rec := range records {
		doc := toDocument(rec)
		if _, ok := doc[mongoID]; !ok {
			doc[mongoID] = uuid.NewString()
		}
		docs[i] = doc
		stored[i] = toRecord(doc)
		ids[i] = stored[i].ID()
	}

	_, err := b.db.Collection(collection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	if err == nil {
		return stored, nil
	}

	var bulk mongo.BulkWriteException
	if stderrors.As(err, &bulk) && len(bulk.WriteErrors) > 0 {
		failedAt := bulk.WriteErrors[0].Index
		if failedAt > 0 {
			b.log.WithContext(ctx).Warnf("insert into %s stopped at item %d", collection, failedAt)
			return stored[:failedAt], partialInsert(collection, ids, failedAt, classify(collection, err))
		}
	}
	return nil, classify(collection, err)
}

func partialInsert(collection string, ids []string, failedAt int, cause error) *errors.PartialBatchError {
	return &errors.PartialBatchError{
		Collection: collection,
		Operation:  "insert",
		Completed:  append([]string(nil), ids[:failedAt]...),
		Failed:     []errors.BatchItemFailure{{Index: failedAt, ID: ids[failedAt], Err: cause}},
	}
}

// Update implements repository.Backend.
func (b *Backend) Update(ctx context.Context, collection, id string, patch model.Record) (model.Record, error) {
	set := toDocument(patch)
	delete(set, mongoID)
	if len(set) == 0 {
		return nil, errors.NewValidationError("update without fields")
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc bson.M
	err := b.db.Collection(collection).FindOneAndUpdate(ctx, bson.M{mongoID: idMatch(id)}, bson.M{"$set": set}, opts).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return nil, errors.NewNotFoundError(fmt.Sprintf("%s record %q", collection, id)).WithCause(errors.ErrRecordNotFound)
	}
	if err != nil {
		return nil, classify(collection, err)
	}
	return toRecord(doc), nil
}

// Delete implements repository.Backend.
func (b *Backend) Delete(ctx context.Context, collection string, filter model.Filter) (int64, error) {
	f, err := toFilter(filter)
	if err != nil {
		return 0, err
	}
	res, err := b.db.Collection(collection).DeleteMany(ctx, f)
	if err != nil {
		return 0, classify(collection, err)
	}
	return res.DeletedCount, nil
}

func toFilter(filter model.Filter) (bson.M, error) {
	switch filter.Operator {
	case model.OpAll:
		return bson.M{}, nil
	case model.OpEqual:
		if id, ok := filter.Value.(string); ok && filter.Field == model.FieldID {
			return bson.M{mongoID: idMatch(id)}, nil
		}
		return bson.M{fieldName(filter.Field): filter.Value}, nil
	case model.OpIn:
		if ids, ok := filter.Value.([]string); ok && filter.Field == model.FieldID {
			values := bson.A{}
			for _, id := range ids {
				values = append(values, idValues(id)...)
			}
			return bson.M{mongoID: bson.M{"$in": values}}, nil
		}
		return bson.M{fieldName(filter.Field): bson.M{"$in": filter.Value}}, nil
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unsupported filter operator %q", filter.Operator)).
			WithCode(errors.CodeUnsupportedFilter)
	}
}

// idValues lists the stored forms an id read back from Select may have.
// Documents written by other clients usually carry ObjectID keys, which
// records expose as hex strings.
func idValues(id string) bson.A {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.A{id, oid}
	}
	return bson.A{id}
}

func idMatch(id string) interface{} {
	values := idValues(id)
	if len(values) == 1 {
		return id
	}
	return bson.M{"$in": values}
}

func fieldName(field string) string {
	if field == model.FieldID {
		return mongoID
	}
	return field
}

func toDocument(rec model.Record) bson.M {
	doc := make(bson.M, len(rec))
	for k, v := range rec {
		if k == model.FieldID {
			if s := rec.ID(); s != "" {
				doc[mongoID] = s
			}
			continue
		}
		doc[k] = v
	}
	return doc
}

func toRecord(doc bson.M) model.Record {
	rec := make(model.Record, len(doc))
	for k, v := range doc {
		if k == mongoID {
			k = model.FieldID
		}
		rec[k] = fromBSON(v)
	}
	return rec
}

func fromBSON(v interface{}) interface{} {
	switch x := v.(type) {
	case primitive.DateTime:
		return x.Time().UTC()
	case primitive.ObjectID:
		return x.Hex()
	case int32:
		return int64(x)
	case primitive.A:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = fromBSON(e)
		}
		return out
	case bson.M:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = fromBSON(e)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(x))
		for _, e := range x {
			out[e.Key] = fromBSON(e.Value)
		}
		return out
	default:
		return v
	}
}

func classify(collection string, err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return errors.NewConflictError(err.Error()).WithCause(err)
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return errors.NewInfrastructureError("mongodb unavailable").WithCause(err).WithDetail("collection", collection)
	}
	var cmdErr mongo.CommandError
	if stderrors.As(err, &cmdErr) && (cmdErr.Code == 13 || cmdErr.Name == "Unauthorized") {
		return errors.NewAuthorizationError(cmdErr.Message).WithCause(err)
	}
	return errors.NewInfrastructureError("mongodb: "+err.Error()).WithCause(err).WithDetail("collection", collection)
}
