package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/semwebtools/rdfproxy/pkg/errors"
)

// RedisCache stores entries as JSON values in Redis, one value per key.
// Suited for multi-instance deployments that share one cache.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions configures a Redis store.
type RedisOptions struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password is optional.
	Password string

	// DB selects the logical database.
	DB int

	// Prefix namespaces the keys, default "rdfproxy:".
	Prefix string

	// TTL expires entries; zero keeps them forever.
	TTL time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(errors.ErrCodeCache, err, "connecting to redis at %s", opts.Addr)
	}
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "rdfproxy:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: opts.TTL}, nil
}

// Get retrieves an entry.
func (c *RedisCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(errors.ErrCodeCache, err, "reading redis entry")
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Set stores an entry, applying the configured TTL.
func (c *RedisCache) Set(ctx context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "encoding redis entry")
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "writing redis entry")
	}
	return nil
}

// Delete removes an entry.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "deleting redis entry")
	}
	return nil
}

// Close shuts down the client connection pool.
func (c *RedisCache) Close() error { return c.client.Close() }

var _ Cache = (*RedisCache)(nil)
