package databases

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linesmerrill/resolveit-api/models"
)

const counterName = "counters"

// CounterDatabase hands out gap-free sequence numbers per key
type CounterDatabase interface {
	Next(ctx context.Context, key string) (int64, error)
}

type counterDatabase struct {
	db DatabaseHelper
}

// NewCounterDatabase initializes a new instance of counter database with the provided db connection
func NewCounterDatabase(db DatabaseHelper) CounterDatabase {
	return &counterDatabase{db: db}
}

// Next atomically increments the counter for key, creating it on first use.
// A single findAndModify makes concurrent callers see distinct values.
func (c *counterDatabase) Next(ctx context.Context, key string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	counter := &models.Counter{}
	err := c.db.Collection(counterName).FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}
