// Package cache stores converted documents keyed by (source URI, target
// format). The default store is a sharded on-disk layout that survives
// restarts; Redis and MongoDB stores are available for shared
// deployments, and a null store disables caching entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Entry is one cached document.
type Entry struct {
	Payload   []byte    `json:"payload" bson:"payload"`
	MediaType string    `json:"media_type" bson:"media_type"`
	StoredAt  time.Time `json:"stored_at" bson:"stored_at"`
}

// Cache is the store contract. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get retrieves an entry. The second return value reports whether
	// the key was present; a miss is not an error.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set stores an entry, replacing any previous value for the key.
	Set(ctx context.Context, key string, entry Entry) error

	// Delete removes an entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the store.
	Close() error
}

// EntryKey derives the cache key for a document: the hash of the source
// URI and the target format ID. The URI goes in raw, not normalized;
// two spellings of the same address are distinct documents as far as
// the cache is concerned.
func EntryKey(uri, formatID string) string {
	h := sha256.New()
	h.Write([]byte(uri))
	h.Write([]byte{0})
	h.Write([]byte(formatID))
	return hex.EncodeToString(h.Sum(nil))
}

// Hash computes the SHA-256 hex digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
