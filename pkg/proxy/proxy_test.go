package proxy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/semwebtools/rdfproxy/pkg/cache"
	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/fetch"
	"github.com/semwebtools/rdfproxy/pkg/format"
)

// fakeDownloader serves a fixed document and counts calls.
type fakeDownloader struct {
	calls atomic.Int32
	doc   fetch.Document
	err   error
	gate  chan struct{} // when set, Fetch blocks until the gate closes
}

func (d *fakeDownloader) Fetch(ctx context.Context, uri, accept string) (fetch.Document, error) {
	d.calls.Add(1)
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return fetch.Document{}, d.err
	}
	return d.doc, nil
}

// fakeConverter tags payloads with the hop it performed and counts calls.
type fakeConverter struct {
	calls atomic.Int32
	err   error
}

func (c *fakeConverter) Convert(_ context.Context, payload []byte, source, target format.Format) ([]byte, error) {
	c.calls.Add(1)
	if c.err != nil {
		return nil, c.err
	}
	return append(payload, []byte(fmt.Sprintf("|%s>%s", source.ID, target.ID))...), nil
}

func newTestService(t *testing.T, dl *fakeDownloader, conv *fakeConverter) *Service {
	t.Helper()
	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewService(Options{
		Cache:     store,
		Fetcher:   dl,
		Converter: conv,
		Registry:  format.NewRegistry(),
	})
}

func turtleDoc() fetch.Document {
	return fetch.Document{
		Body:      []byte("@prefix ex: <http://example.org/> ."),
		MediaType: "text/turtle",
		FileName:  "ont.ttl",
	}
}

func target(t *testing.T, id string) format.Format {
	t.Helper()
	f, ok := format.NewRegistry().Lookup(id)
	if !ok {
		t.Fatalf("unknown format %s", id)
	}
	return f
}

func TestGetDownloadsConvertsAndCaches(t *testing.T) {
	dl := &fakeDownloader{doc: turtleDoc()}
	conv := &fakeConverter{}
	s := newTestService(t, dl, conv)

	req := Request{URI: "http://example.org/ont", Target: target(t, format.JSONLD)}
	resp, err := s.Get(context.Background(), req)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.FromCache {
		t.Error("first request must not be a cache hit")
	}
	if resp.MediaType != "application/ld+json" {
		t.Errorf("MediaType = %q", resp.MediaType)
	}
	if want := string(turtleDoc().Body) + "|turtle>jsonld"; string(resp.Payload) != want {
		t.Errorf("payload = %q, want %q", resp.Payload, want)
	}

	again, err := s.Get(context.Background(), req)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if !again.FromCache {
		t.Error("second request should be a cache hit")
	}
	if dl.calls.Load() != 1 {
		t.Errorf("downloader called %d times, want 1", dl.calls.Load())
	}
}

func TestGetServesMatchingSourceRaw(t *testing.T) {
	dl := &fakeDownloader{doc: turtleDoc()}
	conv := &fakeConverter{}
	s := newTestService(t, dl, conv)

	resp, err := s.Get(context.Background(), Request{URI: "http://example.org/ont", Target: target(t, format.Turtle)})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(resp.Payload) != string(turtleDoc().Body) {
		t.Errorf("matching source must be served unchanged, got %q", resp.Payload)
	}
	if conv.calls.Load() != 0 {
		t.Error("no conversion should run when source equals target")
	}
}

func TestGetCachesOriginalSerialization(t *testing.T) {
	dl := &fakeDownloader{doc: turtleDoc()}
	s := newTestService(t, dl, &fakeConverter{})

	_, err := s.Get(context.Background(), Request{URI: "http://example.org/ont", Target: target(t, format.JSONLD)})
	if err != nil {
		t.Fatal(err)
	}

	// The downloaded turtle must now be a hit without another fetch.
	resp, err := s.Get(context.Background(), Request{URI: "http://example.org/ont", Target: target(t, format.Turtle)})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.FromCache {
		t.Error("original serialization should have been cached")
	}
	if dl.calls.Load() != 1 {
		t.Errorf("downloader called %d times, want 1", dl.calls.Load())
	}
}

func TestGetPreferConversionSkipsDownload(t *testing.T) {
	dl := &fakeDownloader{doc: turtleDoc()}
	conv := &fakeConverter{}
	s := newTestService(t, dl, conv)

	uri := "http://example.org/ont"
	if _, err := s.Get(context.Background(), Request{URI: uri, Target: target(t, format.Turtle)}); err != nil {
		t.Fatal(err)
	}

	resp, err := s.Get(context.Background(), Request{
		URI: uri, Target: target(t, format.NTriples), PreferConversion: true,
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if dl.calls.Load() != 1 {
		t.Errorf("prefer-conversion should not re-download, downloader called %d times", dl.calls.Load())
	}
	if want := string(turtleDoc().Body) + "|turtle>ntriples"; string(resp.Payload) != want {
		t.Errorf("payload = %q, want %q", resp.Payload, want)
	}
}

func TestGetPreferConversionFallsBackToDownload(t *testing.T) {
	dl := &fakeDownloader{doc: turtleDoc()}
	s := newTestService(t, dl, &fakeConverter{})

	// Nothing cached for this URI, so the policy has no sibling to use.
	_, err := s.Get(context.Background(), Request{
		URI: "http://example.org/fresh", Target: target(t, format.NTriples), PreferConversion: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if dl.calls.Load() != 1 {
		t.Errorf("downloader called %d times, want 1", dl.calls.Load())
	}
}

func TestGetUnidentifiableSource(t *testing.T) {
	dl := &fakeDownloader{doc: fetch.Document{Body: []byte("plain prose"), MediaType: "", FileName: "blob"}}
	s := newTestService(t, dl, &fakeConverter{})

	_, err := s.Get(context.Background(), Request{URI: "http://example.org/blob", Target: target(t, format.Turtle)})
	if !errors.Is(err, errors.ErrCodeUnknownFormat) {
		t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeUnknownFormat)
	}
}

func TestGetNonMachineReadableSource(t *testing.T) {
	dl := &fakeDownloader{doc: fetch.Document{Body: []byte("<!DOCTYPE html><html></html>"), MediaType: "text/html"}}
	s := newTestService(t, dl, &fakeConverter{})

	_, err := s.Get(context.Background(), Request{URI: "http://example.org/page", Target: target(t, format.Turtle)})
	if !errors.Is(err, errors.ErrCodeNotMachineReadable) {
		t.Errorf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeNotMachineReadable)
	}
}

func TestGetValidatesRequest(t *testing.T) {
	s := newTestService(t, &fakeDownloader{}, &fakeConverter{})

	if _, err := s.Get(context.Background(), Request{Target: target(t, format.Turtle)}); !errors.Is(err, errors.ErrCodeInvalidURI) {
		t.Error("empty URI should be rejected")
	}
	if _, err := s.Get(context.Background(), Request{URI: "http://example.org/x"}); !errors.Is(err, errors.ErrCodeUnknownFormat) {
		t.Error("zero target should be rejected")
	}
}

func TestGetConcurrentRequestsShareOneFlight(t *testing.T) {
	gate := make(chan struct{})
	dl := &fakeDownloader{doc: turtleDoc(), gate: gate}
	s := newTestService(t, dl, &fakeConverter{})

	req := Request{URI: "http://example.org/ont", Target: target(t, format.JSONLD)}
	const workers = 16

	var wg sync.WaitGroup
	results := make([]Response, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Get(context.Background(), req)
		}(i)
	}
	close(gate)
	wg.Wait()

	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if string(results[i].Payload) != string(results[0].Payload) {
			t.Fatalf("worker %d saw a different payload", i)
		}
	}
	// Some workers may arrive after the flight finished and hit the
	// cache instead; the downloader still runs at most once.
	if got := dl.calls.Load(); got != 1 {
		t.Errorf("downloader called %d times, want 1", got)
	}
}

func TestGetFailedFlightIsForgotten(t *testing.T) {
	dl := &fakeDownloader{err: errors.New(errors.ErrCodeFetchFailed, "upstream down")}
	s := newTestService(t, dl, &fakeConverter{})

	req := Request{URI: "http://example.org/ont", Target: target(t, format.Turtle)}
	if _, err := s.Get(context.Background(), req); !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Fatalf("expected fetch failure, got %v", err)
	}

	dl.err = nil
	dl.doc = turtleDoc()
	if _, err := s.Get(context.Background(), req); err != nil {
		t.Fatalf("retry after failure should succeed, got %v", err)
	}
	if dl.calls.Load() != 2 {
		t.Errorf("downloader called %d times, want 2", dl.calls.Load())
	}
}
