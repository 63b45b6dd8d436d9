package convert

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/execx"
	"github.com/semwebtools/rdfproxy/pkg/format"
)

// ToolOptions configures the subprocess backends.
type ToolOptions struct {
	// Dir is the scratch directory for exchange files. Empty means the
	// system temp dir.
	Dir string

	// Timeout bounds each tool invocation. Zero means DefaultToolTimeout.
	Timeout time.Duration
}

// DefaultToolTimeout bounds a single tool run when no timeout is set.
const DefaultToolTimeout = 2 * time.Minute

func (o ToolOptions) dir() string {
	if o.Dir == "" {
		return os.TempDir()
	}
	return o.Dir
}

func (o ToolOptions) timeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultToolTimeout
	}
	return o.Timeout
}

// rdflibNames maps format IDs to the names the rdflib-based tools use.
var rdflibNames = map[string]string{
	format.Turtle:   "turtle",
	format.NTriples: "nt",
	format.NQuads:   "nquads",
	format.TriG:     "trig",
	format.RDFXML:   "xml",
	format.JSONLD:   "json-ld",
	format.N3:       "n3",
}

// toolBackend wraps one external CLI converter. The tools all exchange
// documents through files, so a hop writes the payload to a scratch
// file, runs the tool, and reads the output file back.
type toolBackend struct {
	name    string
	tool    string
	reads   map[string]bool
	writes  map[string]bool
	args    func(in, out string, from, to format.Format) []string
	opts    ToolOptions
	probe   sync.Once
	present bool
}

func (b *toolBackend) Name() string { return b.name }
func (b *toolBackend) Cost() int    { return CostExternal }

func (b *toolBackend) Available() bool {
	b.probe.Do(func() {
		_, err := execx.LookTool(b.tool)
		b.present = err == nil
	})
	return b.present
}

func (b *toolBackend) Supports(from, to string) bool {
	if from == to {
		return false
	}
	return b.reads[from] && b.writes[to]
}

func (b *toolBackend) Convert(ctx context.Context, payload []byte, from, to format.Format) ([]byte, error) {
	if !b.Supports(from.ID, to.ID) {
		return nil, errors.New(errors.ErrCodeInternal, "%s cannot convert %s to %s", b.name, from.ID, to.ID)
	}

	in := execx.ScratchPath(b.opts.dir(), from.Ext())
	out := execx.ScratchPath(b.opts.dir(), to.Ext())
	if err := os.WriteFile(in, payload, 0o600); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConversionFailed, err, "staging input for %s", b.name)
	}
	defer os.Remove(in)
	defer os.Remove(out)

	_, err := execx.Run(ctx, execx.Command{
		Path:    b.tool,
		Args:    b.args(in, out, from, to),
		Timeout: b.opts.timeout(),
	})
	if err != nil {
		return nil, err
	}

	result, err := os.ReadFile(out)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeToolFailed, err, "%s produced no output file", b.name)
	}
	return result, nil
}

func idSet(ids ...string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// NewRdfxBackend wraps the rdfx converter. It covers the formats rdfx
// can both read and write.
func NewRdfxBackend(opts ToolOptions) Backend {
	ids := []string{format.Turtle, format.JSONLD, format.NTriples, format.RDFXML, format.N3}
	return &toolBackend{
		name:   "rdfx",
		tool:   "rdfx",
		reads:  idSet(ids...),
		writes: idSet(ids...),
		opts:   opts,
		args: func(in, out string, _, to format.Format) []string {
			return []string{"convert", "--format", to.ID, "--output", out, in}
		},
	}
}

// NewRdfConvertBackend wraps the rdflib-based rdf-convert tool, which
// additionally handles N-Quads and TriG.
func NewRdfConvertBackend(opts ToolOptions) Backend {
	ids := []string{
		format.Turtle, format.NTriples, format.NQuads,
		format.TriG, format.RDFXML, format.JSONLD, format.N3,
	}
	return &toolBackend{
		name:   "rdf-convert",
		tool:   "rdf-convert",
		reads:  idSet(ids...),
		writes: idSet(ids...),
		opts:   opts,
		args: func(in, out string, from, to format.Format) []string {
			return []string{
				"--input", in, "--output", out,
				"--read", rdflibNames[from.ID], "--write", rdflibNames[to.ID],
			}
		},
	}
}

// NewPylodeBackend wraps the pyLODE ontology documentation generator.
// It is the only producer of the terminal HTML rendering.
func NewPylodeBackend(opts ToolOptions) Backend {
	return &toolBackend{
		name:   "pylode",
		tool:   "pylode",
		reads:  idSet(format.Turtle, format.NTriples, format.RDFXML, format.JSONLD, format.N3),
		writes: idSet(format.HTML),
		opts:   opts,
		args: func(in, out string, _, _ format.Format) []string {
			return []string{"--sort", "--css", "true", "--profile", "ontpub", "--outputfile", out, in}
		},
	}
}

// DefaultBackends returns the standard backend set in planning order:
// the in-process backend first, then the subprocess converters, then the
// HTML renderer.
func DefaultBackends(opts ToolOptions) []Backend {
	return []Backend{
		NewNativeBackend(),
		NewRdfxBackend(opts),
		NewRdfConvertBackend(opts),
		NewPylodeBackend(opts),
	}
}
