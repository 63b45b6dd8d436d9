package rdf

import (
	"bytes"
	"io"
)

// Graph is an ordered collection of statements. Order is preserved from
// the input so conversions are reproducible byte for byte.
type Graph struct {
	Quads []Quad
}

// ParseGraph decodes a full statement stream into a graph.
func ParseGraph(r io.Reader) (*Graph, error) {
	quads, err := ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Graph{Quads: quads}, nil
}

// Len returns the number of statements.
func (g *Graph) Len() int { return len(g.Quads) }

// Serialize renders the graph as N-Quads when asQuads is set, otherwise
// as N-Triples with graph terms dropped.
func (g *Graph) Serialize(asQuads bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteAll(&buf, g.Quads, asQuads); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
