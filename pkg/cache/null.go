package cache

import "context"

// NullCache never stores anything. It serves deployments where caching
// is disabled and tests that need a cold path on every request.
type NullCache struct{}

// NewNullCache creates a null cache.
func NewNullCache() *NullCache { return &NullCache{} }

// Get always misses.
func (*NullCache) Get(context.Context, string) (Entry, bool, error) { return Entry{}, false, nil }

// Set does nothing.
func (*NullCache) Set(context.Context, string, Entry) error { return nil }

// Delete does nothing.
func (*NullCache) Delete(context.Context, string) error { return nil }

// Close does nothing.
func (*NullCache) Close() error { return nil }

var _ Cache = (*NullCache)(nil)
