package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEntryKey(t *testing.T) {
	a := EntryKey("http://example.org/ont", "turtle")
	if a != EntryKey("http://example.org/ont", "turtle") {
		t.Error("key derivation must be deterministic")
	}
	if a == EntryKey("http://example.org/ont", "jsonld") {
		t.Error("different target formats must key differently")
	}
	if a == EntryKey("http://example.org/other", "turtle") {
		t.Error("different URIs must key differently")
	}
	// The separator prevents ambiguous concatenations.
	if EntryKey("http://e.org/ab", "c") == EntryKey("http://e.org/a", "bc") {
		t.Error("uri/format boundary must be unambiguous")
	}
	if len(a) != 64 {
		t.Errorf("key should be a sha256 hex digest, got %d chars", len(a))
	}
}

func TestFileCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(filepath.Join(t.TempDir(), "store"))
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	key := EntryKey("http://example.org/ont", "turtle")
	entry := Entry{
		Payload:   []byte("@prefix ex: <http://example.org/> ."),
		MediaType: "text/turtle",
		StoredAt:  time.Now().UTC().Truncate(time.Second),
	}

	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Fatalf("cold Get = ok %v, err %v; want miss", ok, err)
	}
	if err := c.Set(ctx, key, entry); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get after Set = ok %v, err %v", ok, err)
	}
	if string(got.Payload) != string(entry.Payload) || got.MediaType != entry.MediaType {
		t.Errorf("entry changed in the store: %+v", got)
	}
	if !got.StoredAt.Equal(entry.StoredAt) {
		t.Errorf("StoredAt = %v, want %v", got.StoredAt, entry.StoredAt)
	}
}

func TestFileCacheDelete(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := EntryKey("http://example.org/ont", "turtle")
	if err := c.Set(ctx, key, Entry{Payload: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := c.Get(ctx, key); ok {
		t.Error("entry survived Delete")
	}
	if err := c.Delete(ctx, key); err != nil {
		t.Errorf("deleting a missing key should be a no-op, got %v", err)
	}
}

func TestFileCacheCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}

	key := EntryKey("http://example.org/ont", "turtle")
	if err := c.Set(ctx, key, Entry{Payload: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.path(key), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(ctx, key); err != nil || ok {
		t.Errorf("corrupt entry should read as a miss, got ok %v err %v", ok, err)
	}
	if _, err := os.Stat(c.path(key)); !os.IsNotExist(err) {
		t.Error("corrupt entry should have been dropped")
	}
}

func TestFileCacheSharding(t *testing.T) {
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	p := c.path("somekey")
	shard := filepath.Base(filepath.Dir(p))
	if len(shard) != 2 {
		t.Errorf("shard directory should be two hash chars, got %q", shard)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, uri := range []string{"http://a.org", "http://b.org", "http://c.org"} {
		if err := c.Set(ctx, EntryKey(uri, "turtle"), Entry{Payload: []byte(uri)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	left, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("cache root not empty after Clear: %v", left)
	}
}

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()

	if err := c.Set(ctx, "k", Entry{Payload: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Get(ctx, "k"); err != nil || ok {
		t.Error("null cache must never hit")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
}
