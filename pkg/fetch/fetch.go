// Package fetch downloads source documents over HTTP with bounded
// retries. It captures the response media type and a filename hint so
// the format identification layer has every signal the server offered.
package fetch

import (
	"context"
	goerrors "errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/semwebtools/rdfproxy/pkg/errors"
)

// DefaultMaxBodySize bounds how much of a response body is read.
// Ontologies are text documents; anything larger is a misbehaving server.
const DefaultMaxBodySize = 64 << 20

// Document is a fetched source document with its identification signals.
type Document struct {
	Body      []byte
	MediaType string // Content-Type essence, empty if the server sent none
	FileName  string // from Content-Disposition or the URL path
}

// Options configures a Fetcher.
type Options struct {
	// Client is the HTTP client; nil uses a client with a 30s timeout.
	Client *http.Client

	// Attempts is the number of tries for transient failures, default 3.
	Attempts int

	// Delay is the initial backoff delay, default 500ms; it doubles
	// after each failed attempt.
	Delay time.Duration

	// MaxBodySize bounds the response body, default DefaultMaxBodySize.
	MaxBodySize int64

	// UserAgent overrides the request User-Agent header.
	UserAgent string
}

// Fetcher downloads documents. Safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	attempts int
	delay    time.Duration
	maxBody  int64
	ua       string
}

// NewFetcher returns a fetcher with the given options.
func NewFetcher(opts Options) *Fetcher {
	f := &Fetcher{
		client:   opts.Client,
		attempts: opts.Attempts,
		delay:    opts.Delay,
		maxBody:  opts.MaxBodySize,
		ua:       opts.UserAgent,
	}
	if f.client == nil {
		f.client = &http.Client{Timeout: 30 * time.Second}
	}
	if f.attempts <= 0 {
		f.attempts = 3
	}
	if f.delay <= 0 {
		f.delay = 500 * time.Millisecond
	}
	if f.maxBody <= 0 {
		f.maxBody = DefaultMaxBodySize
	}
	if f.ua == "" {
		f.ua = "rdfproxy"
	}
	return f
}

// Fetch downloads uri. When accept is non-empty it is sent as the
// Accept header, letting content-negotiating ontology servers pick the
// serialization the caller asked for.
//
// Transient failures (network errors, 5xx) are retried with exponential
// backoff; other non-2xx statuses fail immediately with
// ErrCodeFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, uri, accept string) (Document, error) {
	u, err := url.Parse(uri)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return Document{}, errors.New(errors.ErrCodeInvalidURI, "unsupported URI %q: need http or https", uri)
	}

	var doc Document
	err = f.retry(ctx, func() error {
		d, err := f.fetchOnce(ctx, uri, accept)
		if err != nil {
			return err
		}
		doc = d
		return nil
	})
	if err != nil {
		var re *retryableError
		if goerrors.As(err, &re) {
			err = re.Err
		}
		return Document{}, err
	}
	return doc, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, uri, accept string) (Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return Document{}, errors.Wrap(errors.ErrCodeInvalidURI, err, "building request for %s", uri)
	}
	req.Header.Set("User-Agent", f.ua)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Document{}, &retryableError{Err: errors.Wrap(errors.ErrCodeFetchFailed, err, "requesting %s", uri)}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Document{}, &retryableError{Err: errors.New(errors.ErrCodeFetchFailed,
			"fetching %s: server responded %s", uri, resp.Status)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Document{}, errors.New(errors.ErrCodeFetchFailed,
			"fetching %s: server responded %s", uri, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return Document{}, &retryableError{Err: errors.Wrap(errors.ErrCodeFetchFailed, err, "reading body of %s", uri)}
	}
	if int64(len(body)) > f.maxBody {
		return Document{}, errors.New(errors.ErrCodeFetchFailed,
			"fetching %s: body exceeds %d bytes", uri, f.maxBody)
	}

	return Document{
		Body:      body,
		MediaType: contentTypeEssence(resp.Header.Get("Content-Type")),
		FileName:  fileNameHint(resp.Header.Get("Content-Disposition"), uri),
	}, nil
}

// retry runs fn with exponential backoff, retrying only errors wrapped
// as retryableError.
func (f *Fetcher) retry(ctx context.Context, fn func() error) error {
	delay := f.delay
	var lastErr error
	for i := 0; i < f.attempts; i++ {
		if err := fn(); err == nil {
			return nil
		} else if lastErr = err; !isRetryable(err) {
			return err
		}
		if i < f.attempts-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(errors.ErrCodeFetchFailed, ctx.Err(), "fetch cancelled")
			case <-time.After(delay):
				delay *= 2
			}
		}
	}
	return lastErr
}

type retryableError struct{ Err error }

func (e *retryableError) Error() string { return e.Err.Error() }
func (e *retryableError) Unwrap() error { return e.Err }

func isRetryable(err error) bool {
	return goerrors.As(err, new(*retryableError))
}

func contentTypeEssence(ct string) string {
	if ct == "" {
		return ""
	}
	essence, _, err := mime.ParseMediaType(ct)
	if err != nil {
		essence, _, _ = strings.Cut(ct, ";")
		essence = strings.TrimSpace(strings.ToLower(essence))
	}
	return essence
}

// fileNameHint extracts a filename from Content-Disposition, falling
// back to the last URL path segment.
func fileNameHint(disposition, uri string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return path.Base(name)
			}
		}
	}
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return ""
	}
	return base
}
