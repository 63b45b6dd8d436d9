package format

import (
	"strings"

	"github.com/semwebtools/rdfproxy/pkg/errors"
)

// Registry is the static catalogue of known formats with lookup indexes
// for media types and file extensions. Build it once with [NewRegistry];
// it is safe for concurrent reads afterwards.
type Registry struct {
	formats []Format
	byID    map[string]Format
	byMT    map[string]Format
	byExt   map[string]Format
}

// NewRegistry builds a registry over the builtin format catalogue.
func NewRegistry() *Registry {
	return newRegistry(builtin)
}

func newRegistry(formats []Format) *Registry {
	r := &Registry{
		formats: formats,
		byID:    make(map[string]Format, len(formats)),
		byMT:    make(map[string]Format, len(formats)*2),
		byExt:   make(map[string]Format, len(formats)*2),
	}
	for _, f := range formats {
		r.byID[f.ID] = f
		r.indexMediaType(f.MediaType, f)
		for _, a := range f.Aliases {
			r.indexMediaType(a, f)
		}
		for _, ext := range f.Extensions {
			// Earlier formats win ambiguous extensions (e.g. "xml").
			if _, taken := r.byExt[ext]; !taken {
				r.byExt[ext] = f
			}
		}
	}
	return r
}

func (r *Registry) indexMediaType(mt string, f Format) {
	mt = strings.ToLower(mt)
	if _, taken := r.byMT[mt]; !taken {
		r.byMT[mt] = f
	}
}

// All returns the formats in registration order.
func (r *Registry) All() []Format {
	out := make([]Format, len(r.formats))
	copy(out, r.formats)
	return out
}

// Lookup returns the format with the given ID.
func (r *Registry) Lookup(id string) (Format, bool) {
	f, ok := r.byID[id]
	return f, ok
}

// ByMediaType resolves a single media type string (parameters are
// stripped) to a format. The generic types text/plain and
/// application/octet-stream match nothing: they could be any format.
func (r *Registry) ByMediaType(mt string) (Format, bool) {
	essence := mediaTypeEssence(mt)
	if essence == "" || isGenericMediaType(essence) {
		return Format{}, false
	}
	f, ok := r.byMT[essence]
	return f, ok
}

// ByExtension resolves a file extension (with or without leading dot,
// case-insensitive) to a format.
func (r *Registry) ByExtension(ext string) (Format, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	f, ok := r.byExt[ext]
	return f, ok
}

// ByFileName resolves the extension of name to a format.
func (r *Registry) ByFileName(name string) (Format, bool) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return Format{}, false
	}
	return r.ByExtension(name[idx+1:])
}

// ParseAccept maps an Accept-style header to a target format.
//
// The header may be a comma-separated list with quality parameters, as
// browsers send it (e.g. "text/html,application/xhtml+xml,*/*;q=0.8").
// Entries are tried in order and the first recognized media type wins.
// Wildcards and generic types are skipped, not treated as errors.
//
// Returns ErrCodeUnknownMediaType when no entry maps to a known format.
func (r *Registry) ParseAccept(header string) (Format, error) {
	if strings.TrimSpace(header) == "" {
		return Format{}, errors.New(errors.ErrCodeUnknownMediaType, "empty accept header")
	}
	sawWildcard := false
	for _, entry := range strings.Split(header, ",") {
		essence := mediaTypeEssence(entry)
		if essence == "" {
			continue
		}
		if essence == "*/*" || strings.HasSuffix(essence, "/*") {
			sawWildcard = true
			continue
		}
		if f, ok := r.ByMediaType(essence); ok {
			return f, nil
		}
	}
	if sawWildcard {
		// The client accepts anything; let the caller pick the default.
		return Format{}, errors.New(errors.ErrCodeUnknownMediaType, "only wildcard media types in accept header %q", header)
	}
	return Format{}, errors.New(errors.ErrCodeUnknownMediaType, "no known RDF media type in accept header %q", header)
}

// mediaTypeEssence reduces a media type to lowercase "type/subtype",
// dropping parameters and surrounding whitespace.
func mediaTypeEssence(mt string) string {
	mt, _, _ = strings.Cut(mt, ";")
	mt = strings.TrimSpace(strings.ToLower(mt))
	if !strings.ContainsRune(mt, '/') {
		return ""
	}
	return mt
}

func isGenericMediaType(essence string) bool {
	switch essence {
	case "text/plain", "application/octet-stream":
		return true
	}
	return false
}
