// Package format catalogues the RDF serialization formats the proxy can
// identify and convert between.
//
// The catalogue is static: a [Registry] is built once at startup and is
// read-only afterwards, so it needs no locking. Each [Format] carries a
// canonical media type, the alternate media types seen in the wild, the
// file extensions used for it, and a capability set that the conversion
// layer uses to decide which backends may produce or consume it.
//
// Format identity is the ID; two formats are equal iff their IDs match.
package format

import "strings"

// Capability is a flag describing what the conversion layer may do with a format.
type Capability uint8

const (
	// CapNativeRead marks formats the in-process library can parse.
	CapNativeRead Capability = 1 << iota

	// CapNativeWrite marks formats the in-process library can serialize.
	CapNativeWrite

	// CapHTMLTarget marks the terminal HTML rendering. Formats with this
	// capability are reachable only as the final node of a conversion path.
	CapHTMLTarget

	// CapExternalOnly marks formats that only external tools handle.
	CapExternalOnly
)

// Format describes one RDF serialization (or the derived HTML rendering).
// Values are immutable after registry construction.
type Format struct {
	ID         string
	Name       string   // human-oriented name, e.g. "Turtle"
	MediaType  string   // canonical media type
	Aliases    []string // alternate media types
	Extensions []string // file extensions without dot, preferred first
	Caps       Capability

	// MachineReadable reports whether the format carries parseable graph
	// data. HTML is a human-oriented rendering and is not machine readable.
	MachineReadable bool
}

// Ext returns the preferred file extension for the format.
func (f Format) Ext() string {
	if len(f.Extensions) == 0 {
		return ""
	}
	return f.Extensions[0]
}

// Has reports whether the format carries the given capability.
func (f Format) Has(c Capability) bool {
	return f.Caps&c != 0
}

// IsZero reports whether f is the zero Format (no ID).
func (f Format) IsZero() bool {
	return f.ID == ""
}

// MatchesMediaType reports whether mt (already reduced to its essence,
// i.e. without parameters) names this format.
func (f Format) MatchesMediaType(mt string) bool {
	mt = strings.ToLower(mt)
	if mt == f.MediaType {
		return true
	}
	for _, a := range f.Aliases {
		if mt == a {
			return true
		}
	}
	return false
}

// Well-known format IDs.
const (
	Turtle   = "turtle"
	NTriples = "ntriples"
	NQuads   = "nquads"
	TriG     = "trig"
	RDFXML   = "rdfxml"
	JSONLD   = "jsonld"
	N3       = "n3"
	HTML     = "html"
)

// builtin is the static catalogue. Canonical media types and extension
// lists follow the W3C registrations; aliases cover the unofficial spellings
// ontology servers actually emit.
var builtin = []Format{
	{
		ID:              Turtle,
		Name:            "Turtle",
		MediaType:       "text/turtle",
		Aliases:         []string{"application/x-turtle"},
		Extensions:      []string{"ttl"},
		Caps:            CapExternalOnly,
		MachineReadable: true,
	},
	{
		ID:              NTriples,
		Name:            "N-Triples",
		MediaType:       "application/n-triples",
		Aliases:         []string{"text/n-triples"},
		Extensions:      []string{"nt"},
		Caps:            CapNativeRead | CapNativeWrite,
		MachineReadable: true,
	},
	{
		ID:              NQuads,
		Name:            "N-Quads",
		MediaType:       "application/n-quads",
		Aliases:         []string{"text/x-nquads", "text/n-quads"},
		Extensions:      []string{"nq"},
		Caps:            CapNativeRead | CapNativeWrite,
		MachineReadable: true,
	},
	{
		ID:              TriG,
		Name:            "TriG",
		MediaType:       "application/trig",
		Aliases:         []string{"application/x-trig"},
		Extensions:      []string{"trig"},
		Caps:            CapExternalOnly,
		MachineReadable: true,
	},
	{
		ID:              RDFXML,
		Name:            "RDF/XML",
		MediaType:       "application/rdf+xml",
		Aliases:         []string{"application/xml", "text/xml"},
		Extensions:      []string{"rdf", "rdfs", "owl", "xml"},
		Caps:            CapExternalOnly,
		MachineReadable: true,
	},
	{
		ID:              JSONLD,
		Name:            "JSON-LD",
		MediaType:       "application/ld+json",
		Aliases:         []string{"application/json-ld"},
		Extensions:      []string{"jsonld"},
		Caps:            CapExternalOnly,
		MachineReadable: true,
	},
	{
		ID:              N3,
		Name:            "N3",
		MediaType:       "text/n3",
		Aliases:         []string{"text/rdf+n3"},
		Extensions:      []string{"n3"},
		Caps:            CapExternalOnly,
		MachineReadable: true,
	},
	{
		ID:              HTML,
		Name:            "HTML",
		MediaType:       "text/html",
		Aliases:         []string{"application/xhtml+xml"},
		Extensions:      []string{"html", "htm", "xhtml"},
		Caps:            CapHTMLTarget,
		MachineReadable: false,
	},
}
