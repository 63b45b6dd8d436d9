package proxy

import (
	"bytes"
	"context"
	"testing"

	"github.com/semwebtools/rdfproxy/pkg/cache"
	"github.com/semwebtools/rdfproxy/pkg/convert"
	"github.com/semwebtools/rdfproxy/pkg/format"
)

// htmlStubBackend renders any machine-readable format to HTML in
// process, standing in for pylode.
type htmlStubBackend struct{}

func (htmlStubBackend) Name() string    { return "htmlstub" }
func (htmlStubBackend) Available() bool { return true }
func (htmlStubBackend) Cost() int       { return convert.CostExternal }

func (htmlStubBackend) Supports(from, to string) bool {
	return to == format.HTML && from != format.HTML
}

func (htmlStubBackend) Convert(_ context.Context, payload []byte, _, _ format.Format) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("<html><body><pre>")
	buf.Write(payload)
	buf.WriteString("</pre></body></html>")
	return buf.Bytes(), nil
}

// Exercises the whole pipeline with a real registry and resolver: a
// Turtle document fetched once, rendered to HTML, and served from cache
// on the second request.
func TestGetTurtleToHTMLThroughResolver(t *testing.T) {
	reg := format.NewRegistry()
	resolver := convert.NewResolver(reg, convert.NewNativeBackend(), htmlStubBackend{})

	store, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	dl := &fakeDownloader{doc: turtleDoc()}

	s := NewService(Options{
		Cache:     store,
		Fetcher:   dl,
		Converter: resolver,
		Registry:  reg,
	})

	req := Request{URI: "http://example.org/ont", Target: target(t, format.HTML)}

	resp, err := s.Get(context.Background(), req)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.MediaType != "text/html" {
		t.Errorf("media type = %q", resp.MediaType)
	}
	if !bytes.Contains(resp.Payload, []byte("<pre>@prefix")) {
		t.Errorf("payload is not the rendered document: %q", resp.Payload)
	}
	if resp.FromCache {
		t.Error("first request cannot be a cache hit")
	}

	again, err := s.Get(context.Background(), req)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if !again.FromCache {
		t.Error("second request should be served from cache")
	}
	if got := dl.calls.Load(); got != 1 {
		t.Errorf("downloads = %d, want 1", got)
	}
	if !bytes.Equal(again.Payload, resp.Payload) {
		t.Error("cached payload differs from the converted one")
	}
}
