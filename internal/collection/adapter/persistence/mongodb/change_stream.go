package mongodb

import (
	"context"
	"fmt"
	"sync"

	"content-sync/internal/collection/domain/model"
	"content-sync/internal/collection/domain/repository"
	"content-sync/internal/shared/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ChangeStreamChannel is a PushChannel backed by MongoDB change streams.
// Change streams need a replica set or sharded cluster.
type ChangeStreamChannel struct {
	db  *mongo.Database
	log logger.Logger
}

var _ repository.PushChannel = (*ChangeStreamChannel)(nil)

// NewChangeStreamChannel creates a channel over the given database.
func NewChangeStreamChannel(db *mongo.Database, log logger.Logger) *ChangeStreamChannel {
	return &ChangeStreamChannel{db: db, log: logger.OrNop(log).WithComponent("mongodb_change_stream")}
}

type changeDoc struct {
	OperationType string `bson:"operationType"`
	DocumentKey   struct {
		ID interface{} `bson:"_id"`
	} `bson:"documentKey"`
}

// Subscribe implements repository.PushChannel. The stream is read on its own
// goroutine until the returned Unsubscribe is called.
func (c *ChangeStreamChannel) Subscribe(ctx context.Context, collection string, onChange func(model.ChangeEvent)) (repository.Unsubscribe, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}}}}},
	}
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := c.db.Collection(collection).Watch(streamCtx, pipeline, options.ChangeStream())
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open change stream on %s: %w", collection, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for stream.Next(streamCtx) {
			var change changeDoc
			if err := stream.Decode(&change); err != nil {
				c.log.Warnf("undecodable change on %s: %v", collection, err)
				continue
			}
			kind, ok := changeKind(change.OperationType)
			if !ok {
				continue
			}
			onChange(model.NewChangeEvent(collection, kind, fmt.Sprint(change.DocumentKey.ID)))
		}
		if err := stream.Err(); err != nil && streamCtx.Err() == nil {
			c.log.Errorf("change stream on %s ended: %v", collection, err)
		}
	}()

	var once sync.Once
	return func() error {
		var closeErr error
		once.Do(func() {
			cancel()
			wg.Wait()
			closeErr = stream.Close(context.Background())
		})
		return closeErr
	}, nil
}

func changeKind(operationType string) (model.ChangeKind, bool) {
	switch operationType {
	case "insert":
		return model.ChangeInsert, true
	case "update", "replace":
		return model.ChangeUpdate, true
	case "delete":
		return model.ChangeDelete, true
	default:
		return "", false
	}
}
