package outbox

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository implements Repository over a MongoDB collection.
// Add joins an ambient session transaction when the context carries
// one, which is how persistence scopes stage entries transactionally.
type MongoRepository struct {
	coll *mongo.Collection
}

// NewMongoRepository creates a MongoDB outbox repository.
func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{coll: db.Collection(CollectionName)}
}

// Add stages a new entry.
func (r *MongoRepository) Add(ctx context.Context, entry *Entry) error {
	if _, err := r.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// MarkSent confirms the publish of the given entries.
func (r *MongoRepository) MarkSent(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}}
	update := bson.M{"$set": bson.M{
		"status":     int(StatusSent),
		"updated_at": time.Now().UTC(),
	}}
	if _, err := r.coll.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("mark outbox entries sent: %w", err)
	}
	return nil
}

// FetchUnsent returns stuck PENDING entries, oldest first, and bumps
// their attempt count.
func (r *MongoRepository) FetchUnsent(ctx context.Context, olderThan time.Duration, limit int) ([]*Entry, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	filter := bson.M{
		"status":     int(StatusPending),
		"created_at": bson.M{"$lt": cutoff},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent outbox entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("decode outbox entries: %w", err)
	}

	if len(entries) > 0 {
		ids := make([]string, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
			e.Attempts++
		}
		update := bson.M{
			"$inc": bson.M{"attempts": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		}
		if _, err := r.coll.UpdateMany(ctx, bson.M{"_id": bson.M{"$in": ids}}, update); err != nil {
			return nil, fmt.Errorf("bump outbox attempts: %w", err)
		}
	}
	return entries, nil
}

// CountPending returns the number of PENDING entries.
func (r *MongoRepository) CountPending(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"status": int(StatusPending)})
	if err != nil {
		return 0, fmt.Errorf("count pending outbox entries: %w", err)
	}
	return n, nil
}

// EnsureIndexes creates the indexes the relay queries rely on.
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create outbox indexes: %w", err)
	}
	return nil
}
