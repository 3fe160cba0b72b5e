// Package deadletter keeps fulfillment tasks that ran out of retries where an
// operator can see and replay them.
package deadletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Chidera001-dev/e-commerce-system/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "dead_letters"

var ErrNotFound = errors.New("dead letter not found")

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(20)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type MongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{collection: db.Collection(collectionName)}
}

func (s *MongoStore) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "order_id", Value: 1}}},
		{Keys: bson.D{{Key: "replayed_at", Value: 1}, {Key: "failed_at", Value: -1}}},
	}

	_, err := s.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// Save stores dl under its id. Saving the same id again overwrites the record,
// so a message that is dead-lettered twice shows up once.
func (s *MongoStore) Save(ctx context.Context, dl *domain.DeadLetter) error {
	if dl.ID == "" {
		return errors.New("dead letter has no id")
	}
	if dl.FailedAt.IsZero() {
		dl.FailedAt = time.Now().UTC()
	}

	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": dl.ID}, dl, opts)
	if err != nil {
		return fmt.Errorf("failed to save dead letter: %w", err)
	}
	return nil
}

// List returns dead letters newest first. With pendingOnly, replayed ones are skipped.
func (s *MongoStore) List(ctx context.Context, pendingOnly bool, limit int64) ([]*domain.DeadLetter, error) {
	filter := bson.M{}
	if pendingOnly {
		filter["replayed_at"] = bson.M{"$exists": false}
	}
	opts := options.Find().SetSort(bson.D{{Key: "failed_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}

	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer cur.Close(ctx)

	var out []*domain.DeadLetter
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode dead letters: %w", err)
	}
	return out, nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*domain.DeadLetter, error) {
	var dl domain.DeadLetter
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&dl)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get dead letter: %w", err)
	}
	return &dl, nil
}

func (s *MongoStore) MarkReplayed(ctx context.Context, id string) error {
	res, err := s.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"replayed_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark dead letter replayed: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.collection.Database().Client().Disconnect(ctx)
}
