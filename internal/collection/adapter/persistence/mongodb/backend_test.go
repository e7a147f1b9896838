package mongodb

import (
	"context"
	"os"
	"testing"
	"time"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/shared/errors"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestToRecord_ConvertsBSONValues(t *testing.T) {
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rec := toRecord(bson.M{
		"_id":        "v1",
		"views":      int32(7),
		"created_at": primitive.NewDateTimeFromTime(when),
		"tags":       primitive.A{"a", int32(1)},
		"meta":       bson.D{{Key: "k", Value: "v"}},
	})

	assert.Equal(t, "v1", rec.ID())
	assert.Equal(t, int64(7), rec["views"])
	assert.True(t, when.Equal(rec.Timestamp()))
	assert.Equal(t, []interface{}{"a", int64(1)}, rec["tags"])
	assert.Equal(t, map[string]interface{}{"k": "v"}, rec["meta"])
}

func TestToDocument_MapsID(t *testing.T) {
	doc := toDocument(model.Record{"id": "p1", "title": "x"})
	assert.Equal(t, "p1", doc["_id"])
	_, hasID := doc["id"]
	assert.False(t, hasID)

	doc = toDocument(model.Record{"id": "", "title": "x"})
	_, hasID = doc["_id"]
	assert.False(t, hasID, "empty ids are generated on insert")
}

func TestToFilter(t *testing.T) {
	f, err := toFilter(model.ByID("a"))
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": "a"}, f)

	f, err = toFilter(model.ByIDs([]string{"a", "b"}))
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": bson.M{"$in": bson.A{"a", "b"}}}, f)

	f, err = toFilter(model.Filter{Field: "status", Operator: model.OpEqual, Value: "draft"})
	require.NoError(t, err)
	assert.Equal(t, bson.M{"status": "draft"}, f)

	f, err = toFilter(model.MatchAll())
	require.NoError(t, err)
	assert.Empty(t, f)

	_, err = toFilter(model.Filter{Operator: "like"})
	assert.True(t, errors.IsValidation(err))
}

func TestToFilter_HexIDMatchesObjectID(t *testing.T) {
	oid := primitive.NewObjectID()
	hex := oid.Hex()

	// An ObjectID key comes back from Select as its hex string.
	assert.Equal(t, hex, toRecord(bson.M{"_id": oid}).ID())

	f, err := toFilter(model.ByID(hex))
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": bson.M{"$in": bson.A{hex, oid}}}, f)

	f, err = toFilter(model.ByIDs([]string{hex, "plain"}))
	require.NoError(t, err)
	assert.Equal(t, bson.M{"_id": bson.M{"$in": bson.A{hex, oid, "plain"}}}, f)

	assert.Equal(t, hex+"-x", idMatch(hex+"-x"), "non-hex ids match as strings")
}

func TestPartialInsert(t *testing.T) {
	pb := partialInsert("poems", []string{"a", "b", "c"}, 2, errors.NewConflictError("dup"))
	assert.Equal(t, []string{"a", "b"}, pb.Completed)
	assert.Equal(t, "c", pb.Failed[0].ID)
	assert.Equal(t, 2, pb.Failed[0].Index)
}

func TestChangeKind(t *testing.T) {
	for op, want := range map[string]model.ChangeKind{
		"insert":  model.ChangeInsert,
		"update":  model.ChangeUpdate,
		"replace": model.ChangeUpdate,
		"delete":  model.ChangeDelete,
	} {
		got, ok := changeKind(op)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}
	_, ok := changeKind("invalidate")
	assert.False(t, ok)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify("x", nil))
	err := classify("x", mongo.ErrClientDisconnected)
	assert.Equal(t, errors.ErrorTypeInfrastructure, errors.TypeOf(err))
}

type BackendSuite struct {
	suite.Suite
	client  *mongo.Client
	db      *mongo.Database
	backend *Backend
}

func (s *BackendSuite) SetupSuite() {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	client, err := Connect(context.Background(), uri, 2*time.Second)
	if err != nil {
		s.T().Skip("MongoDB not available for testing:", err)
		return
	}
	s.client = client
	s.db = client.Database("content_sync_test_" + ulid.Make().String())
	s.backend = NewBackend(s.db, nil)
}

func (s *BackendSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.db.Drop(context.Background())
		_ = s.client.Disconnect(context.Background())
	}
}

func (s *BackendSuite) TestInsertSelectOrdered() {
	ctx := context.Background()
	_, err := s.backend.Insert(ctx, "poems", []model.Record{
		{"title": "old", "created_at": "2024-01-01"},
		{"title": "new", "created_at": "2024-06-01"},
	})
	s.Require().NoError(err)

	rows, err := s.backend.Select(ctx, model.SelectQuery{Collection: "poems"}.Ordered("created_at"))
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("new", rows[0].String("title"))
}

func (s *BackendSuite) TestMissingSortFieldIsSchemaMismatch() {
	ctx := context.Background()
	_, err := s.backend.Insert(ctx, "media_assets", []model.Record{{"file_url": "a.png", "updated_at": "2024-01-01"}})
	s.Require().NoError(err)

	_, err = s.backend.Select(ctx, model.SelectQuery{Collection: "media_assets"}.Ordered("created_at"))
	s.True(errors.IsSchemaMismatch(err))

	rows, err := s.backend.Select(ctx, model.SelectQuery{Collection: "empty_collection"}.Ordered("created_at"))
	s.NoError(err, "an empty collection accepts any ordering")
	s.Empty(rows)
}

func (s *BackendSuite) TestPartialInsert() {
	ctx := context.Background()
	_, err := s.backend.Insert(ctx, "invites", []model.Record{{"id": "dup", "message": "first"}})
	s.Require().NoError(err)

	stored, err := s.backend.Insert(ctx, "invites", []model.Record{
		{"id": "fresh", "message": "ok"},
		{"id": "dup", "message": "again"},
		{"id": "never", "message": "skipped"},
	})
	pb, ok := errors.AsPartialBatch(err)
	s.Require().True(ok, "got %v", err)
	s.Equal([]string{"fresh"}, pb.Completed)
	s.Equal("dup", pb.Failed[0].ID)
	s.Len(stored, 1)
}

func (s *BackendSuite) TestUpdateAndDelete() {
	ctx := context.Background()
	stored, err := s.backend.Insert(ctx, "notifications", []model.Record{{"title": "hi", "is_read": false}})
	s.Require().NoError(err)
	id := stored[0].ID()

	updated, err := s.backend.Update(ctx, "notifications", id, model.Record{"is_read": true})
	s.Require().NoError(err)
	s.True(updated.Bool("is_read"))

	_, err = s.backend.Update(ctx, "notifications", "missing", model.Record{"is_read": true})
	s.True(errors.IsNotFound(err))

	n, err := s.backend.Delete(ctx, "notifications", model.ByID(id))
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *BackendSuite) TestDeleteAndUpdateForeignObjectIDs() {
	ctx := context.Background()
	coll := s.db.Collection("foreign_invites")
	_, err := coll.InsertMany(ctx, []interface{}{
		bson.M{"message": "from another client", "is_read": false},
		bson.M{"message": "second", "is_read": false},
	})
	s.Require().NoError(err)

	rows, err := s.backend.Select(ctx, model.SelectQuery{Collection: "foreign_invites"})
	s.Require().NoError(err)
	s.Require().Len(rows, 2)

	updated, err := s.backend.Update(ctx, "foreign_invites", rows[0].ID(), model.Record{"is_read": true})
	s.Require().NoError(err)
	s.True(updated.Bool("is_read"))

	n, err := s.backend.Delete(ctx, "foreign_invites", model.ByID(rows[0].ID()))
	s.Require().NoError(err)
	s.Equal(int64(1), n)

	n, err = s.backend.Delete(ctx, "foreign_invites", model.ByIDs([]string{rows[1].ID()}))
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func TestBackendSuite(t *testing.T) {
	suite.Run(t, new(BackendSuite))
}
