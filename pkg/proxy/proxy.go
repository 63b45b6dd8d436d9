// Package proxy ties fetching, format identification, conversion and
// caching together. A [Service] answers "give me document X as format Y"
// requests, serving from cache when possible, converting a cached
// sibling serialization when allowed, and downloading only as a last
// resort.
package proxy

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/semwebtools/rdfproxy/pkg/cache"
	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/fetch"
	"github.com/semwebtools/rdfproxy/pkg/format"
)

// Downloader fetches source documents.
type Downloader interface {
	Fetch(ctx context.Context, uri, accept string) (fetch.Document, error)
}

// Converter plans and executes conversions between formats.
type Converter interface {
	Convert(ctx context.Context, payload []byte, source, target format.Format) ([]byte, error)
}

// Request asks for one document in one target format.
type Request struct {
	// URI of the source document.
	URI string

	// Target serialization to deliver.
	Target format.Format

	// QueryAccept, when set, is sent as the Accept header of the
	// upstream request so content-negotiating servers pick a useful
	// source serialization.
	QueryAccept string

	// PreferConversion tries converting an already-cached sibling
	// serialization of the same URI before downloading again.
	PreferConversion bool
}

// Response is a delivered document.
type Response struct {
	Payload   []byte
	MediaType string

	// FromCache reports a direct cache hit. Responses produced by
	// sibling conversion or download are not marked, even when several
	// concurrent callers shared one execution.
	FromCache bool
}

// Options configures a Service.
type Options struct {
	Cache     cache.Cache
	Fetcher   Downloader
	Converter Converter
	Registry  *format.Registry

	// Logger receives structured request progress; nil disables logging.
	Logger *log.Logger
}

// Service is the caching conversion proxy. Safe for concurrent use.
type Service struct {
	cache  cache.Cache
	dl     Downloader
	conv   Converter
	reg    *format.Registry
	logger *log.Logger

	flights singleflight.Group

	mu       sync.Mutex
	siblings map[string][]string // URI -> cached format IDs, oldest first
}

// NewService builds a proxy service. Cache, Fetcher, Converter and
// Registry are required.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{
		cache:    opts.Cache,
		dl:       opts.Fetcher,
		conv:     opts.Converter,
		reg:      opts.Registry,
		logger:   logger,
		siblings: make(map[string][]string),
	}
}

// Get delivers the document at req.URI in req.Target.
//
// Concurrent requests for the same (URI, target) pair share a single
// execution and its outcome. The flight is forgotten once it completes,
// so a failure does not poison later requests.
func (s *Service) Get(ctx context.Context, req Request) (Response, error) {
	if req.URI == "" {
		return Response{}, errors.New(errors.ErrCodeInvalidURI, "empty URI")
	}
	if req.Target.IsZero() {
		return Response{}, errors.New(errors.ErrCodeUnknownFormat, "no target format")
	}

	key := cache.EntryKey(req.URI, req.Target.ID)
	if entry, ok, err := s.cache.Get(ctx, key); err != nil {
		return Response{}, err
	} else if ok {
		s.logger.Debug("cache hit", "uri", req.URI, "target", req.Target.ID)
		return Response{Payload: entry.Payload, MediaType: entry.MediaType, FromCache: true}, nil
	}

	v, err, _ := s.flights.Do(key, func() (any, error) {
		defer s.flights.Forget(key)
		return s.produce(ctx, key, req)
	})
	if err != nil {
		return Response{}, err
	}
	return v.(Response), nil
}

// produce runs the miss path: sibling conversion when allowed, then
// download, identify, convert, store.
func (s *Service) produce(ctx context.Context, key string, req Request) (Response, error) {
	// Another caller may have populated the entry while this request
	// waited for the flight lock.
	if entry, ok, err := s.cache.Get(ctx, key); err != nil {
		return Response{}, err
	} else if ok {
		return Response{Payload: entry.Payload, MediaType: entry.MediaType, FromCache: true}, nil
	}

	if req.PreferConversion {
		if resp, ok := s.convertSibling(ctx, key, req); ok {
			return resp, nil
		}
	}

	s.logger.Info("downloading", "uri", req.URI, "target", req.Target.ID)
	doc, err := s.dl.Fetch(ctx, req.URI, req.QueryAccept)
	if err != nil {
		return Response{}, err
	}

	source, ok := s.reg.Identify(doc.Body, doc.FileName, doc.MediaType)
	if !ok {
		return Response{}, errors.New(errors.ErrCodeUnknownFormat,
			"cannot identify the format of %s (media type %q, file %q)", req.URI, doc.MediaType, doc.FileName)
	}
	s.logger.Debug("identified source", "uri", req.URI, "format", source.ID)

	if source.ID == req.Target.ID {
		if err := s.store(ctx, key, req.URI, req.Target, doc.Body); err != nil {
			return Response{}, err
		}
		return Response{Payload: doc.Body, MediaType: req.Target.MediaType}, nil
	}
	if !source.MachineReadable {
		return Response{}, errors.New(errors.ErrCodeNotMachineReadable,
			"%s served %s, which cannot be converted to %s", req.URI, source.Name, req.Target.Name)
	}

	// Keep the original serialization too, so a later request for it is
	// a hit and prefer-conversion has a machine-readable sibling.
	srcKey := cache.EntryKey(req.URI, source.ID)
	if err := s.store(ctx, srcKey, req.URI, source, doc.Body); err != nil {
		return Response{}, err
	}

	converted, err := s.conv.Convert(ctx, doc.Body, source, req.Target)
	if err != nil {
		return Response{}, err
	}
	if err := s.store(ctx, key, req.URI, req.Target, converted); err != nil {
		return Response{}, err
	}
	return Response{Payload: converted, MediaType: req.Target.MediaType}, nil
}

// convertSibling tries to satisfy the request from a cached
// machine-readable serialization of the same URI.
func (s *Service) convertSibling(ctx context.Context, key string, req Request) (Response, bool) {
	for _, f := range s.siblingCandidates(req.URI) {
		if f.ID == req.Target.ID || !f.MachineReadable {
			continue
		}
		entry, ok, err := s.cache.Get(ctx, cache.EntryKey(req.URI, f.ID))
		if err != nil || !ok {
			continue
		}
		converted, err := s.conv.Convert(ctx, entry.Payload, f, req.Target)
		if err != nil {
			s.logger.Debug("sibling conversion failed", "uri", req.URI, "from", f.ID, "err", err)
			continue
		}
		if err := s.store(ctx, key, req.URI, req.Target, converted); err != nil {
			return Response{}, false
		}
		s.logger.Info("converted from cached sibling", "uri", req.URI, "from", f.ID, "target", req.Target.ID)
		return Response{Payload: converted, MediaType: req.Target.MediaType}, true
	}
	return Response{}, false
}

// siblingCandidates returns the formats worth probing for a URI: the
// recorded cached formats when known, otherwise the whole catalogue
// (the record does not survive restarts, the store does).
func (s *Service) siblingCandidates(uri string) []format.Format {
	s.mu.Lock()
	ids := s.siblings[uri]
	s.mu.Unlock()

	if len(ids) == 0 {
		return s.reg.All()
	}
	out := make([]format.Format, 0, len(ids))
	for _, id := range ids {
		if f, ok := s.reg.Lookup(id); ok {
			out = append(out, f)
		}
	}
	return out
}

func (s *Service) store(ctx context.Context, key, uri string, f format.Format, payload []byte) error {
	err := s.cache.Set(ctx, key, cache.Entry{
		Payload:   payload,
		MediaType: f.MediaType,
		StoredAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.siblings[uri] {
		if id == f.ID {
			return nil
		}
	}
	s.siblings[uri] = append(s.siblings[uri], f.ID)
	return nil
}
