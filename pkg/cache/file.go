package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/semwebtools/rdfproxy/pkg/errors"
)

// FileCache stores entries as JSON files under a root directory,
// sharded by the first two characters of the key hash so no single
// directory grows unbounded.
type FileCache struct {
	dir string
}

// NewFileCache creates a file-based cache rooted at dir. The directory
// is created if it does not exist.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeCache, err, "creating cache directory %s", dir)
	}
	return &FileCache{dir: dir}, nil
}

// Dir returns the cache root directory.
func (c *FileCache) Dir() string { return c.dir }

// Get retrieves an entry from disk.
func (c *FileCache) Get(_ context.Context, key string) (Entry, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if os.IsNotExist(err) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(errors.ErrCodeCache, err, "reading cache entry")
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// A corrupt file is a miss; drop it so it gets rewritten.
		_ = os.Remove(c.path(key))
		return Entry{}, false, nil
	}
	return entry, true, nil
}

// Set writes an entry to disk. The write goes through a temp file and a
// rename, so readers never observe a partial entry.
func (c *FileCache) Set(_ context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "encoding cache entry")
	}
	path := c.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "creating cache shard")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "creating temp entry")
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeCache, err, "writing cache entry")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeCache, err, "closing cache entry")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return errors.Wrap(errors.ErrCodeCache, err, "committing cache entry")
	}
	return nil
}

// Delete removes an entry.
func (c *FileCache) Delete(_ context.Context, key string) error {
	err := os.Remove(c.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrCodeCache, err, "deleting cache entry")
	}
	return nil
}

// Clear removes every entry under the cache root.
func (c *FileCache) Clear() error {
	shards, err := os.ReadDir(c.dir)
	if err != nil {
		return errors.Wrap(errors.ErrCodeCache, err, "listing cache directory")
	}
	for _, shard := range shards {
		if err := os.RemoveAll(filepath.Join(c.dir, shard.Name())); err != nil {
			return errors.Wrap(errors.ErrCodeCache, err, "clearing cache shard %s", shard.Name())
		}
	}
	return nil
}

// Close does nothing for the file store.
func (c *FileCache) Close() error { return nil }

func (c *FileCache) path(key string) string {
	hash := Hash([]byte(key))
	return filepath.Join(c.dir, hash[:2], hash[2:]+".json")
}

var _ Cache = (*FileCache)(nil)
