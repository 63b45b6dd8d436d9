package format

import (
	"bytes"
	"strings"
)

// sniffLimit bounds how much of a document the content sniffer inspects.
// Identification stays O(1) regardless of document size.
const sniffLimit = 4096

// Identify resolves the most likely format of a document from up to three
// signals. Precedence when signals disagree:
//
//  1. declaredMediaType, if it matches a known media type exactly
//  2. content sniffing over the first 4 KiB of sample
//  3. the file extension of fileName
//
// Any signal may be empty. The second return value is false when no signal
// matched; that is not an error, callers decide whether an unidentified
// document is fatal for their use case.
func (r *Registry) Identify(sample []byte, fileName, declaredMediaType string) (Format, bool) {
	if declaredMediaType != "" {
		if f, ok := r.ByMediaType(declaredMediaType); ok {
			return f, true
		}
	}
	if len(sample) > 0 {
		if f, ok := r.sniff(sample); ok {
			return f, true
		}
	}
	if fileName != "" {
		if f, ok := r.ByFileName(fileName); ok {
			return f, true
		}
	}
	return Format{}, false
}

// sniff applies structural heuristics to a bounded prefix of the document.
// The heuristics only need to separate the formats in the catalogue, not
// validate them; the parsers downstream do the real checking.
func (r *Registry) sniff(sample []byte) (Format, bool) {
	if len(sample) > sniffLimit {
		sample = sample[:sniffLimit]
	}
	text := string(bytes.TrimLeft(sample, " \t\r\n\uFEFF"))
	if text == "" {
		return Format{}, false
	}

	switch {
	case hasAnyPrefix(text, "<!DOCTYPE html", "<!doctype html", "<html"):
		return r.byID[HTML], true
	case strings.Contains(firstChunk(text, 1024), "<rdf:RDF"):
		return r.byID[RDFXML], true
	case hasAnyPrefix(text, "<?xml"):
		// XML prolog without an <rdf:RDF> root nearby is still most
		// likely RDF/XML in this catalogue (OWL files start this way).
		return r.byID[RDFXML], true
	case hasAnyPrefix(text, "{", "["):
		return r.byID[JSONLD], true
	}

	// Prefix-style syntaxes: Turtle and TriG share @prefix/@base; TriG is
	// recognized by a GRAPH keyword or a graph block after the prologue.
	if hasAnyPrefix(text, "@prefix", "@base", "PREFIX ", "BASE ", "prefix ", "base ") {
		if containsTriGBlock(text) {
			return r.byID[TriG], true
		}
		return r.byID[Turtle], true
	}
	if hasAnyPrefix(text, "GRAPH ", "GRAPH<") {
		return r.byID[TriG], true
	}

	// Line-oriented syntaxes: classify by the term count of the first
	// statement line.
	if f, ok := r.sniffStatementLine(text); ok {
		return f, true
	}
	return Format{}, false
}

// sniffStatementLine inspects the first non-comment line that looks like a
// triple/quad statement: IRI or blank-node terms ending with a dot.
func (r *Registry) sniffStatementLine(text string) (Format, bool) {
	for _, line := range strings.SplitN(text, "\n", 64) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "<") && !strings.HasPrefix(line, "_:") {
			return Format{}, false
		}
		if !strings.HasSuffix(line, ".") {
			return Format{}, false
		}
		switch countStatementTerms(line) {
		case 3:
			return r.byID[NTriples], true
		case 4:
			return r.byID[NQuads], true
		}
		return Format{}, false
	}
	return Format{}, false
}

// countStatementTerms counts top-level terms in a statement line, treating
// quoted literals and IRIs as single terms.
func countStatementTerms(line string) int {
	line = strings.TrimSuffix(strings.TrimSpace(line), ".")
	terms := 0
	inIRI, inLit := false, false
	prevSpace := true
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case inIRI:
			if c == '>' {
				inIRI = false
			}
		case inLit:
			if c == '\\' {
				i++
			} else if c == '"' {
				inLit = false
			}
		case c == '<':
			inIRI = true
		case c == '"':
			inLit = true
		}
		isSpace := !inIRI && !inLit && (c == ' ' || c == '\t')
		if prevSpace && !isSpace {
			terms++
		}
		prevSpace = isSpace
	}
	return terms
}

// containsTriGBlock reports whether text contains a named-graph block after
// its prologue, which distinguishes TriG from plain Turtle.
func containsTriGBlock(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") ||
			hasAnyPrefix(line, "@prefix", "@base", "PREFIX", "BASE", "prefix", "base") {
			continue
		}
		if strings.HasPrefix(line, "GRAPH ") || strings.HasSuffix(line, "{") {
			return true
		}
		return false
	}
	return false
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func firstChunk(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
