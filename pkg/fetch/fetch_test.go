package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/semwebtools/rdfproxy/pkg/errors"
)

func testFetcher(client *http.Client) *Fetcher {
	return NewFetcher(Options{Client: client, Attempts: 3, Delay: time.Millisecond})
}

func TestFetchCapturesSignals(t *testing.T) {
	var gotAccept, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/turtle; charset=utf-8")
		w.Write([]byte("@prefix ex: <http://example.org/> ."))
	}))
	defer srv.Close()

	doc, err := testFetcher(srv.Client()).Fetch(context.Background(), srv.URL+"/onts/pizza.ttl", "text/turtle")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.MediaType != "text/turtle" {
		t.Errorf("MediaType = %q, want text/turtle", doc.MediaType)
	}
	if doc.FileName != "pizza.ttl" {
		t.Errorf("FileName = %q, want pizza.ttl", doc.FileName)
	}
	if gotAccept != "text/turtle" {
		t.Errorf("Accept header = %q", gotAccept)
	}
	if gotUA != "rdfproxy" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if len(doc.Body) == 0 {
		t.Error("empty body")
	}
}

func TestFetchContentDispositionWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="ontology.rdf"`)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	doc, err := testFetcher(srv.Client()).Fetch(context.Background(), srv.URL+"/download", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if doc.FileName != "ontology.rdf" {
		t.Errorf("FileName = %q, want ontology.rdf", doc.FileName)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	doc, err := testFetcher(srv.Client()).Fetch(context.Background(), srv.URL, "")
	if err != nil {
		t.Fatalf("Fetch should succeed on the third attempt: %v", err)
	}
	if string(doc.Body) != "ok" {
		t.Errorf("body = %q", doc.Body)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestFetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := testFetcher(srv.Client()).Fetch(context.Background(), srv.URL, "")
	if !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Fatalf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeFetchFailed)
	}
	if calls.Load() != 1 {
		t.Errorf("404 must not be retried, server saw %d calls", calls.Load())
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := testFetcher(srv.Client()).Fetch(context.Background(), srv.URL, "")
	if !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Fatalf("error code = %v, want %v", errors.GetCode(err), errors.ErrCodeFetchFailed)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestFetchRejectsBadURIs(t *testing.T) {
	f := NewFetcher(Options{})
	for _, uri := range []string{"", "ftp://example.org/x", "file:///etc/passwd", "not a uri"} {
		if _, err := f.Fetch(context.Background(), uri, ""); !errors.Is(err, errors.ErrCodeInvalidURI) {
			t.Errorf("Fetch(%q) code = %v, want %v", uri, errors.GetCode(err), errors.ErrCodeInvalidURI)
		}
	}
}

func TestFetchBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := NewFetcher(Options{Client: srv.Client(), MaxBodySize: 1024, Attempts: 1})
	_, err := f.Fetch(context.Background(), srv.URL, "")
	if !errors.Is(err, errors.ErrCodeFetchFailed) {
		t.Fatalf("oversized body should fail, got %v", err)
	}
}

func TestContentTypeEssence(t *testing.T) {
	tests := []struct{ in, want string }{
		{"text/turtle", "text/turtle"},
		{"Text/Turtle; charset=UTF-8", "text/turtle"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := contentTypeEssence(tt.in); got != tt.want {
			t.Errorf("contentTypeEssence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
