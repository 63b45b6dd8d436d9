package cache

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/semwebtools/rdfproxy/pkg/errors"
)

// MongoCache stores entries as documents in a MongoDB collection, one
// document per key, upserted on Set.
type MongoCache struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// MongoOptions configures a MongoDB store.
type MongoOptions struct {
	// URI is the mongodb:// connection string.
	URI string

	// Database name, default "rdfproxy".
	Database string

	// Collection name, default "entries".
	Collection string
}

type mongoDoc struct {
	Key   string `bson:"_id"`
	Entry Entry  `bson:"entry"`
}

// NewMongoCache connects to MongoDB and verifies the connection.
func NewMongoCache(ctx context.Context, opts MongoOptions) (*MongoCache, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCache, err, "connecting to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(errors.ErrCodeCache, err, "pinging mongodb")
	}
	db := opts.Database
	if db == "" {
		db = "rdfproxy"
	}
	coll := opts.Collection
	if coll == "" {
		coll = "entries"
	}
	return &MongoCache{client: client, coll: client.Database(db).Collection(coll)}, nil
}

// Get retrieves an entry.
func (c *MongoCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	var doc mongoDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(errors.ErrCodeCache, err, "reading mongodb entry")
	}
	return doc.Entry, true, nil
}

// Set upserts an entry.
func (c *MongoCache) Set(ctx context.Context, key string, entry Entry) error {
	_, err := c.coll.ReplaceOne(ctx,
		bson.M{"_id": key},
		mongoDoc{Key: key, Entry: entry},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "writing mongodb entry")
	}
	return nil
}

// Delete removes an entry.
func (c *MongoCache) Delete(ctx context.Context, key string) error {
	if _, err := c.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "deleting mongodb entry")
	}
	return nil
}

// Close disconnects from MongoDB.
func (c *MongoCache) Close() error {
	return c.client.Disconnect(context.Background())
}

var _ Cache = (*MongoCache)(nil)
