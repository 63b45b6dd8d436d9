// Package rdf implements the small in-process RDF layer: term and quad
// values plus streaming codecs for the line-oriented serializations
// (N-Triples and N-Quads). The richer syntaxes are handled by external
// tools; this package only needs to read and write the line formats
// losslessly and fast.
package rdf

import "strings"

// TermKind discriminates the three RDF term shapes.
type TermKind uint8

const (
	TermIRI TermKind = iota + 1
	TermBlank
	TermLiteral
)

// Term is one RDF term. Value holds the IRI, the blank node label
// (without the "_:" prefix), or the unescaped literal lexical form.
// Datatype and Lang are only set for literals, and are mutually
// exclusive per the RDF data model.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// IRI returns an IRI term.
func IRI(v string) Term { return Term{Kind: TermIRI, Value: v} }

// Blank returns a blank node term with the given label.
func Blank(label string) Term { return Term{Kind: TermBlank, Value: label} }

// Literal returns a plain string literal.
func Literal(v string) Term { return Term{Kind: TermLiteral, Value: v} }

// TypedLiteral returns a literal with a datatype IRI.
func TypedLiteral(v, datatype string) Term {
	return Term{Kind: TermLiteral, Value: v, Datatype: datatype}
}

// LangLiteral returns a language-tagged literal.
func LangLiteral(v, lang string) Term {
	return Term{Kind: TermLiteral, Value: v, Lang: lang}
}

// IsZero reports whether t is the zero Term.
func (t Term) IsZero() bool { return t.Kind == 0 }

// String renders the term in N-Triples syntax.
func (t Term) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Term) write(b *strings.Builder) {
	switch t.Kind {
	case TermIRI:
		b.WriteByte('<')
		b.WriteString(t.Value)
		b.WriteByte('>')
	case TermBlank:
		b.WriteString("_:")
		b.WriteString(t.Value)
	case TermLiteral:
		b.WriteByte('"')
		writeEscaped(b, t.Value)
		b.WriteByte('"')
		if t.Lang != "" {
			b.WriteByte('@')
			b.WriteString(t.Lang)
		} else if t.Datatype != "" {
			b.WriteString("^^<")
			b.WriteString(t.Datatype)
			b.WriteByte('>')
		}
	}
}

func writeEscaped(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
}

// Quad is one statement. Graph is the zero Term for statements in the
// default graph, which makes a triple just a quad without a graph.
type Quad struct {
	Subject   Term
	Predicate Term
	Object    Term
	Graph     Term
}
