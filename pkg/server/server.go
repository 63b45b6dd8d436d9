// Package server exposes the proxy over HTTP. The surface is small: one
// document endpoint driven by query parameters and content negotiation,
// plus a health probe.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/format"
	"github.com/semwebtools/rdfproxy/pkg/proxy"
)

// Getter answers proxy requests. *proxy.Service implements it.
type Getter interface {
	Get(ctx context.Context, req proxy.Request) (proxy.Response, error)
}

// Options configures a Server.
type Options struct {
	Service  Getter
	Registry *format.Registry

	// Logger receives request logs; nil uses the default logger.
	Logger *log.Logger

	// Version is reported by the health endpoint.
	Version string

	// PreferConversion is the default policy when a request does not
	// carry an explicit ?prefer= override.
	PreferConversion bool
}

// Server handles the HTTP surface.
type Server struct {
	svc     Getter
	reg     *format.Registry
	logger  *log.Logger
	version string
	prefer  bool
}

// New builds a server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		svc:     opts.Service,
		reg:     opts.Registry,
		logger:  logger,
		version: opts.Version,
		prefer:  opts.PreferConversion,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleGet)
	r.Get("/healthz", s.handleHealth)
	return r
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	uri := q.Get("uri")
	if uri == "" {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "missing required query parameter 'uri'"))
		return
	}

	target, err := s.resolveTarget(q.Get("accept"), r.Header.Get("Accept"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	prefer, err := s.resolvePrefer(q.Get("prefer"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp, err := s.svc.Get(r.Context(), proxy.Request{
		URI:              uri,
		Target:           target,
		QueryAccept:      q.Get("query-accept"),
		PreferConversion: prefer,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", resp.MediaType)
	if resp.FromCache {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	w.Write(resp.Payload)
}

// resolveTarget picks the target format from the explicit ?accept=
// parameter or the Accept header. No preference at all, or a pure
// wildcard, falls back to the HTML rendering, which is what a human
// behind a browser wants.
func (s *Server) resolveTarget(param, header string) (format.Format, error) {
	if param != "" {
		f, ok := s.reg.ByMediaType(param)
		if !ok {
			if f, ok = s.reg.Lookup(param); !ok {
				return format.Format{}, errors.New(errors.ErrCodeUnknownMediaType,
					"unsupported target %q", param)
			}
		}
		return f, nil
	}
	if strings.TrimSpace(header) == "" {
		return s.defaultTarget()
	}
	f, err := s.reg.ParseAccept(header)
	if err != nil {
		if acceptsAnything(header) {
			return s.defaultTarget()
		}
		return format.Format{}, err
	}
	return f, nil
}

func (s *Server) defaultTarget() (format.Format, error) {
	f, ok := s.reg.Lookup(format.HTML)
	if !ok {
		return format.Format{}, errors.New(errors.ErrCodeInternal, "html format not registered")
	}
	return f, nil
}

func acceptsAnything(header string) bool {
	for _, entry := range strings.Split(header, ",") {
		entry, _, _ = strings.Cut(entry, ";")
		if strings.TrimSpace(entry) == "*/*" {
			return true
		}
	}
	return false
}

func (s *Server) resolvePrefer(param string) (bool, error) {
	switch strings.ToLower(param) {
	case "":
		return s.prefer, nil
	case "conversion", "convert", "true", "1":
		return true, nil
	case "download", "false", "0":
		return false, nil
	}
	return false, errors.New(errors.ErrCodeInvalidInput,
		"invalid 'prefer' value %q: want 'conversion' or 'download'", param)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// statusFor maps error codes to HTTP statuses. Client mistakes are 4xx,
// upstream and conversion trouble is 5xx.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidURI:
		return http.StatusBadRequest
	case errors.ErrCodeUnknownMediaType:
		return http.StatusUnsupportedMediaType
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case errors.ErrCodeFetchFailed,
		errors.ErrCodeUnknownFormat,
		errors.ErrCodeNoConversionPath,
		errors.ErrCodeNotMachineReadable,
		errors.ErrCodeConversionFailed,
		errors.ErrCodeToolFailed,
		errors.ErrCodeSpawnFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.logger.Error("request failed", "path", r.URL.Path, "uri", r.URL.Query().Get("uri"), "err", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Millisecond),
		)
	})
}
