// Package convert turns RDF documents from one serialization into
// another. Conversions are performed by backends: one in-process backend
// for the line-oriented formats and subprocess backends wrapping the
// external tools. A [Resolver] plans multi-hop paths over the edges the
// installed backends declare, preferring in-process hops over subprocess
// hops.
package convert

import (
	"bytes"
	"context"

	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/format"
	"github.com/semwebtools/rdfproxy/pkg/rdf"
)

// Edge costs. A subprocess hop is an order of magnitude more expensive
// than an in-process hop, so the planner only shells out when it must.
const (
	CostNative   = 1
	CostExternal = 10
)

// Backend converts documents along the edges it declares.
type Backend interface {
	// Name identifies the backend in logs and error messages.
	Name() string

	// Available reports whether the backend can run right now. For
	// subprocess backends this probes PATH; the result is cached.
	Available() bool

	// Cost is the per-hop cost used by the path planner.
	Cost() int

	// Supports reports whether the backend can convert from one format
	// ID directly to another.
	Supports(from, to string) bool

	// Convert performs a single declared hop.
	Convert(ctx context.Context, payload []byte, from, to format.Format) ([]byte, error)
}

// nativeBackend handles the line-oriented formats in process through
// pkg/rdf. Going from N-Quads to N-Triples drops graph terms.
type nativeBackend struct{}

// NewNativeBackend returns the in-process backend for N-Triples and
// N-Quads.
func NewNativeBackend() Backend { return nativeBackend{} }

func (nativeBackend) Name() string    { return "native" }
func (nativeBackend) Available() bool { return true }
func (nativeBackend) Cost() int       { return CostNative }

func (nativeBackend) Supports(from, to string) bool {
	if from == to {
		return false
	}
	return isLineFormat(from) && isLineFormat(to)
}

func isLineFormat(id string) bool {
	return id == format.NTriples || id == format.NQuads
}

func (b nativeBackend) Convert(ctx context.Context, payload []byte, from, to format.Format) ([]byte, error) {
	if !b.Supports(from.ID, to.ID) {
		return nil, errors.New(errors.ErrCodeInternal, "native backend cannot convert %s to %s", from.ID, to.ID)
	}
	g, err := rdf.ParseGraph(bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConversionFailed, err, "parsing %s input", from.Name)
	}
	out, err := g.Serialize(to.ID == format.NQuads)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConversionFailed, err, "serializing %s output", to.Name)
	}
	return out, nil
}
