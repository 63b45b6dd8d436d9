package rdf

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/semwebtools/rdfproxy/pkg/errors"
)

// Decoder reads N-Triples or N-Quads statements from a stream. The two
// grammars only differ in the optional graph term, so one decoder covers
// both; callers that require triples can reject quads with a set Graph.
type Decoder struct {
	sc   *bufio.Scanner
	line int
}

// NewDecoder returns a decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &Decoder{sc: sc}
}

// Decode returns the next statement, or io.EOF when the stream ends.
// Blank lines and comment lines are skipped.
func (d *Decoder) Decode() (Quad, error) {
	for d.sc.Scan() {
		d.line++
		line := strings.TrimSpace(d.sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		q, err := d.parseLine(line)
		if err != nil {
			return Quad{}, err
		}
		return q, nil
	}
	if err := d.sc.Err(); err != nil {
		return Quad{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "reading statement stream")
	}
	return Quad{}, io.EOF
}

func (d *Decoder) parseLine(line string) (Quad, error) {
	p := &lineParser{src: line, line: d.line}

	subj, err := p.term()
	if err != nil {
		return Quad{}, err
	}
	if subj.Kind == TermLiteral {
		return Quad{}, p.errorf("literal in subject position")
	}
	pred, err := p.term()
	if err != nil {
		return Quad{}, err
	}
	if pred.Kind != TermIRI {
		return Quad{}, p.errorf("predicate must be an IRI")
	}
	obj, err := p.term()
	if err != nil {
		return Quad{}, err
	}

	q := Quad{Subject: subj, Predicate: pred, Object: obj}

	p.skipSpace()
	if p.peek() != '.' {
		g, err := p.term()
		if err != nil {
			return Quad{}, err
		}
		if g.Kind == TermLiteral {
			return Quad{}, p.errorf("literal in graph position")
		}
		q.Graph = g
	}
	p.skipSpace()
	if p.peek() != '.' {
		return Quad{}, p.errorf("statement does not end with '.'")
	}
	p.pos++
	p.skipSpace()
	if !p.done() && p.peek() != '#' {
		return Quad{}, p.errorf("trailing content after '.'")
	}
	return q, nil
}

type lineParser struct {
	src  string
	pos  int
	line int
}

func (p *lineParser) errorf(format string, args ...any) error {
	args = append([]any{p.line}, args...)
	return errors.New(errors.ErrCodeInvalidInput, "line %d: "+format, args...)
}

func (p *lineParser) done() bool { return p.pos >= len(p.src) }

func (p *lineParser) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *lineParser) skipSpace() {
	for !p.done() && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *lineParser) term() (Term, error) {
	p.skipSpace()
	switch p.peek() {
	case '<':
		return p.iri()
	case '_':
		return p.blank()
	case '"':
		return p.literal()
	case 0:
		return Term{}, p.errorf("unexpected end of statement")
	default:
		return Term{}, p.errorf("unexpected character %q", p.src[p.pos])
	}
}

func (p *lineParser) iri() (Term, error) {
	p.pos++ // '<'
	end := strings.IndexByte(p.src[p.pos:], '>')
	if end < 0 {
		return Term{}, p.errorf("unterminated IRI")
	}
	raw := p.src[p.pos : p.pos+end]
	p.pos += end + 1
	v, err := unescape(raw, false)
	if err != nil {
		return Term{}, p.errorf("%v in IRI", err)
	}
	return IRI(v), nil
}

func (p *lineParser) blank() (Term, error) {
	if !strings.HasPrefix(p.src[p.pos:], "_:") {
		return Term{}, p.errorf("malformed blank node label")
	}
	p.pos += 2
	start := p.pos
	for !p.done() {
		c := p.src[p.pos]
		if c == ' ' || c == '\t' {
			break
		}
		p.pos++
	}
	if p.pos == start {
		return Term{}, p.errorf("empty blank node label")
	}
	return Blank(p.src[start:p.pos]), nil
}

func (p *lineParser) literal() (Term, error) {
	p.pos++ // opening quote
	var b strings.Builder
	closed := false
	for !p.done() {
		c := p.src[p.pos]
		if c == '"' {
			p.pos++
			closed = true
			break
		}
		if c == '\\' {
			if p.pos+1 >= len(p.src) {
				return Term{}, p.errorf("dangling escape in literal")
			}
			b.WriteString(p.src[p.pos : p.pos+2])
			p.pos += 2
			continue
		}
		b.WriteByte(c)
		p.pos++
	}
	if !closed {
		return Term{}, p.errorf("unterminated literal")
	}
	v, err := unescape(b.String(), true)
	if err != nil {
		return Term{}, p.errorf("%v in literal", err)
	}

	t := Literal(v)
	switch p.peek() {
	case '@':
		p.pos++
		start := p.pos
		for !p.done() && isLangChar(p.src[p.pos]) {
			p.pos++
		}
		if p.pos == start {
			return Term{}, p.errorf("empty language tag")
		}
		t.Lang = p.src[start:p.pos]
	case '^':
		if !strings.HasPrefix(p.src[p.pos:], "^^<") {
			return Term{}, p.errorf("malformed datatype annotation")
		}
		p.pos += 2
		dt, err := p.iri()
		if err != nil {
			return Term{}, err
		}
		t.Datatype = dt.Value
	}
	return t, nil
}

func isLangChar(c byte) bool {
	return c == '-' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// unescape resolves the N-Triples string escapes. The full set is only
// legal inside literals; IRIs allow just the numeric escapes.
func unescape(s string, literal bool) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			return "", errors.New(errors.ErrCodeInvalidInput, "dangling escape")
		}
		i++
		switch e := s[i]; e {
		case 'u', 'U':
			n := 4
			if e == 'U' {
				n = 8
			}
			if i+n >= len(s) {
				return "", errors.New(errors.ErrCodeInvalidInput, "truncated \\%c escape", e)
			}
			r, err := parseHexRune(s[i+1 : i+1+n])
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i += n
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case '\\':
			b.WriteByte('\\')
		case '"':
			if !literal {
				return "", errors.New(errors.ErrCodeInvalidInput, `illegal \" escape`)
			}
			b.WriteByte('"')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		default:
			return "", errors.New(errors.ErrCodeInvalidInput, "unknown escape \\%c", e)
		}
	}
	return b.String(), nil
}

func parseHexRune(hex string) (rune, error) {
	var r rune
	for i := 0; i < len(hex); i++ {
		c := hex[i]
		var d rune
		switch {
		case c >= '0' && c <= '9':
			d = rune(c - '0')
		case c >= 'a' && c <= 'f':
			d = rune(c-'a') + 10
		case c >= 'A' && c <= 'F':
			d = rune(c-'A') + 10
		default:
			return 0, errors.New(errors.ErrCodeInvalidInput, "bad hex digit %q in escape", c)
		}
		r = r<<4 | d
	}
	if !utf8.ValidRune(r) {
		return 0, errors.New(errors.ErrCodeInvalidInput, "escape does not encode a valid rune")
	}
	return r, nil
}

// Encoder writes statements in N-Triples or N-Quads syntax.
type Encoder struct {
	w     *bufio.Writer
	quads bool
}

// NewEncoder returns an encoder writing to w. With quads set, statements
// carrying a graph term are written as N-Quads; otherwise the graph term
// is dropped and every statement is a triple.
func NewEncoder(w io.Writer, quads bool) *Encoder {
	return &Encoder{w: bufio.NewWriter(w), quads: quads}
}

// Encode writes one statement.
func (e *Encoder) Encode(q Quad) error {
	var b strings.Builder
	q.Subject.write(&b)
	b.WriteByte(' ')
	q.Predicate.write(&b)
	b.WriteByte(' ')
	q.Object.write(&b)
	if e.quads && !q.Graph.IsZero() {
		b.WriteByte(' ')
		q.Graph.write(&b)
	}
	b.WriteString(" .\n")
	if _, err := e.w.WriteString(b.String()); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "writing statement")
	}
	return nil
}

// Flush commits buffered output to the underlying writer.
func (e *Encoder) Flush() error {
	if err := e.w.Flush(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "flushing statement stream")
	}
	return nil
}

// ReadAll decodes every statement from r.
func ReadAll(r io.Reader) ([]Quad, error) {
	d := NewDecoder(r)
	var out []Quad
	for {
		q, err := d.Decode()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
}

// WriteAll encodes every statement to w.
func WriteAll(w io.Writer, quads []Quad, asQuads bool) error {
	e := NewEncoder(w, asQuads)
	for _, q := range quads {
		if err := e.Encode(q); err != nil {
			return err
		}
	}
	return e.Flush()
}
