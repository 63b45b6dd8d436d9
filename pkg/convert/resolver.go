package convert

import (
	"context"
	"sort"
	"strings"

	"github.com/semwebtools/rdfproxy/pkg/errors"
	"github.com/semwebtools/rdfproxy/pkg/format"
)

// Step is one hop of a conversion path.
type Step struct {
	Backend Backend
	From    format.Format
	To      format.Format
}

// Path is an ordered list of hops. The empty path is the identity
// conversion.
type Path []Step

// String renders the path for logs, e.g. "turtle -rdfx-> jsonld".
func (p Path) String() string {
	if len(p) == 0 {
		return "(identity)"
	}
	var b strings.Builder
	b.WriteString(p[0].From.ID)
	for _, s := range p {
		b.WriteString(" -")
		b.WriteString(s.Backend.Name())
		b.WriteString("-> ")
		b.WriteString(s.To.ID)
	}
	return b.String()
}

type edge struct {
	backend Backend
	from    string
	to      string
	cost    int
	order   int
}

// Resolver plans conversion paths over the edges the available backends
// declare. Edges are collected once at construction; a backend that is
// not available contributes none.
type Resolver struct {
	reg   *format.Registry
	edges map[string][]edge // outbound edges keyed by source format ID
}

// NewResolver builds the conversion graph from the given backends.
// Backend and format order is significant: when two paths cost the same,
// the one using earlier-registered edges wins.
func NewResolver(reg *format.Registry, backends ...Backend) *Resolver {
	r := &Resolver{reg: reg, edges: make(map[string][]edge)}
	order := 0
	for _, b := range backends {
		if !b.Available() {
			continue
		}
		for _, from := range reg.All() {
			// A non-machine-readable format carries no graph data to
			// convert, so it has no outbound edges. This keeps HTML a
			// terminal node.
			if !from.MachineReadable {
				continue
			}
			for _, to := range reg.All() {
				if !b.Supports(from.ID, to.ID) {
					continue
				}
				r.edges[from.ID] = append(r.edges[from.ID], edge{
					backend: b, from: from.ID, to: to.ID, cost: b.Cost(), order: order,
				})
				order++
			}
		}
	}
	return r
}

// Resolve plans the cheapest path from source to target. Equal-cost
// paths tie-break on edge registration order, so planning is
// deterministic. source == target yields the empty path.
//
// Returns ErrCodeNoConversionPath when target is unreachable and
// ErrCodeNotMachineReadable when source carries no graph data.
func (r *Resolver) Resolve(source, target format.Format) (Path, error) {
	if source.ID == target.ID {
		return Path{}, nil
	}
	if !source.MachineReadable {
		return nil, errors.New(errors.ErrCodeNotMachineReadable,
			"%s is not machine readable and cannot be converted to %s", source.Name, target.Name)
	}

	type nodeState struct {
		dist    int
		minEdge int // highest edge order on the best path, for tie-breaks
		via     *edge
		settled bool
	}
	const inf = int(^uint(0) >> 1)
	states := map[string]*nodeState{source.ID: {dist: 0, minEdge: -1}}

	state := func(id string) *nodeState {
		s, ok := states[id]
		if !ok {
			s = &nodeState{dist: inf}
			states[id] = s
		}
		return s
	}

	// The catalogue is tiny, so a scan-based Dijkstra beats a heap.
	for {
		var cur string
		best := inf
		bestOrder := inf
		for id, s := range states {
			if s.settled || s.dist == inf {
				continue
			}
			if s.dist < best || (s.dist == best && s.minEdge < bestOrder) {
				cur, best, bestOrder = id, s.dist, s.minEdge
			}
		}
		if best == inf {
			break
		}
		cs := states[cur]
		cs.settled = true
		if cur == target.ID {
			break
		}
		for i := range r.edges[cur] {
			e := &r.edges[cur][i]
			ns := state(e.to)
			if ns.settled {
				continue
			}
			nd := cs.dist + e.cost
			tie := e.order
			if cs.minEdge > tie {
				tie = cs.minEdge
			}
			if nd < ns.dist || (nd == ns.dist && tie < ns.minEdge) {
				ns.dist, ns.minEdge, ns.via = nd, tie, e
			}
		}
	}

	ts, ok := states[target.ID]
	if !ok || ts.dist == inf {
		return nil, errors.New(errors.ErrCodeNoConversionPath,
			"no conversion path from %s to %s", source.ID, target.ID)
	}

	var path Path
	for id := target.ID; id != source.ID; {
		e := states[id].via
		from, _ := r.reg.Lookup(e.from)
		to, _ := r.reg.Lookup(e.to)
		path = append(Path{{Backend: e.backend, From: from, To: to}}, path...)
		id = e.from
	}
	return path, nil
}

// EdgeInfo describes one edge of the conversion graph for inspection
// and rendering.
type EdgeInfo struct {
	Backend string
	From    string
	To      string
	Cost    int
}

// Edges returns every edge of the conversion graph in registration
// order.
func (r *Resolver) Edges() []EdgeInfo {
	var all []edge
	for _, edges := range r.edges {
		all = append(all, edges...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].order < all[j].order })
	out := make([]EdgeInfo, len(all))
	for i, e := range all {
		out[i] = EdgeInfo{Backend: e.backend.Name(), From: e.from, To: e.to, Cost: e.cost}
	}
	return out
}

// Validate checks that every machine-readable format and the HTML
// rendering have at least one inbound edge, i.e. each catalogued target
// is producible by some available backend. Run it at startup so a
// missing tool surfaces immediately instead of on the first request.
func (r *Resolver) Validate() error {
	inbound := make(map[string]bool)
	for _, edges := range r.edges {
		for _, e := range edges {
			inbound[e.to] = true
		}
	}
	var orphans []string
	for _, f := range r.reg.All() {
		if !inbound[f.ID] {
			orphans = append(orphans, f.ID)
		}
	}
	if len(orphans) > 0 {
		return errors.New(errors.ErrCodeNoConversionPath,
			"no backend can produce: %s (conversion tools missing?)", strings.Join(orphans, ", "))
	}
	return nil
}

// Execute runs a planned path over a payload, feeding each hop's output
// to the next. The empty path returns the payload unchanged.
func (r *Resolver) Execute(ctx context.Context, path Path, payload []byte) ([]byte, error) {
	current := payload
	for _, step := range path {
		if !step.Backend.Supports(step.From.ID, step.To.ID) {
			return nil, errors.New(errors.ErrCodeInternal,
				"planned hop %s to %s not supported by %s", step.From.ID, step.To.ID, step.Backend.Name())
		}
		out, err := step.Backend.Convert(ctx, current, step.From, step.To)
		if err != nil {
			return nil, err
		}
		current = out
	}
	return current, nil
}

// Convert plans and executes in one call.
func (r *Resolver) Convert(ctx context.Context, payload []byte, source, target format.Format) ([]byte, error) {
	path, err := r.Resolve(source, target)
	if err != nil {
		return nil, err
	}
	return r.Execute(ctx, path, payload)
}
