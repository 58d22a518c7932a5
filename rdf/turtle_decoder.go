package rdf

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"
)

// turtleDecoder reads Turtle and TriG. Statements are parsed one at a time
// from a buffered reader; the quads of a statement are queued and handed
// out by Next.
type turtleDecoder struct {
	reader   *bufio.Reader
	format   Format
	opts     Options
	prefixes map[string]string
	base     string
	line     int
	column   int

	// graph is the name of the TriG block being read, nil for the default
	// graph.
	graph   Term
	inBlock bool

	bnodes   int
	pending  []Quad
	produced int64
	err      error
}

// nodeKind says how a subject was written, which decides what may follow it.
type nodeKind uint8

const (
	termNode nodeKind = iota
	anonNode
	propertyListNode
	collectionNode
)

func newTurtleDecoder(r io.Reader, format Format, opts Options) *turtleDecoder {
	return &turtleDecoder{
		reader:   bufio.NewReader(r),
		format:   format,
		opts:     opts,
		prefixes: map[string]string{},
		base:     opts.Base,
		line:     1,
		column:   1,
	}
}

func (d *turtleDecoder) Next() (Quad, error) {
	for len(d.pending) == 0 {
		if d.err != nil {
			return Quad{}, d.err
		}
		if err := d.advance(); err != nil {
			d.pending = nil
			d.err = err
			return Quad{}, err
		}
	}
	q := d.pending[0]
	d.pending = d.pending[1:]
	d.produced++
	if d.opts.MaxQuads > 0 && d.produced > d.opts.MaxQuads {
		d.pending = nil
		d.err = ErrQuadLimitExceeded
		return Quad{}, d.err
	}
	return q, nil
}

func (d *turtleDecoder) Close() error {
	return nil
}

// advance parses the next statement.
func (d *turtleDecoder) advance() error {
	if d.opts.Context != nil {
		if err := d.opts.Context.Err(); err != nil {
			return err
		}
	}
	if err := d.skipWS(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	if _, err := d.reader.Peek(1); err != nil {
		if !errors.Is(err, io.EOF) {
			return err
		}
		if d.inBlock {
			return d.errorf("unterminated graph block")
		}
		return io.EOF
	}
	err := d.statement()
	if errors.Is(err, io.EOF) {
		return d.errorf("unexpected end of input")
	}
	return err
}

func (d *turtleDecoder) statement() error {
	ch := d.peekAt(0)
	switch {
	case ch == '@':
		d.skip(1)
		switch {
		case d.keyword("prefix", false):
			d.skip(6)
			return d.prefixDirective(true)
		case d.keyword("base", false):
			d.skip(4)
			return d.baseDirective(true)
		}
		return d.errorf("unknown directive")
	case d.keyword("PREFIX", true):
		d.skip(6)
		return d.prefixDirective(false)
	case d.keyword("BASE", true):
		d.skip(4)
		return d.baseDirective(false)
	case ch == '}':
		if !d.inBlock {
			return d.errorf("unexpected '}'")
		}
		d.skip(1)
		d.inBlock, d.graph = false, nil
		return nil
	case d.format == FormatTriG && !d.inBlock && ch == '{':
		d.skip(1)
		d.inBlock = true
		return nil
	case d.format == FormatTriG && !d.inBlock && d.keyword("GRAPH", true):
		d.skip(5)
		if err := d.skipWS(); err != nil {
			return err
		}
		label, err := d.graphLabel()
		if err != nil {
			return err
		}
		if err := d.expect('{'); err != nil {
			return err
		}
		d.inBlock, d.graph = true, label
		return nil
	}
	return d.triples()
}

func (d *turtleDecoder) prefixDirective(dotted bool) error {
	if err := d.skipWS(); err != nil {
		return err
	}
	var prefix strings.Builder
	for isPNChar(d.peekAt(0)) || d.peekAt(0) == '.' && isPNChar(d.peekAt(1)) {
		if err := d.accept(&prefix); err != nil {
			return err
		}
	}
	if err := d.expect(':'); err != nil {
		return err
	}
	if err := d.skipWS(); err != nil {
		return err
	}
	iri, err := d.iriRef()
	if err != nil {
		return err
	}
	d.prefixes[prefix.String()] = iri.Value
	if dotted {
		return d.expect('.')
	}
	return nil
}

func (d *turtleDecoder) baseDirective(dotted bool) error {
	if err := d.skipWS(); err != nil {
		return err
	}
	iri, err := d.iriRef()
	if err != nil {
		return err
	}
	d.base = iri.Value
	if dotted {
		return d.expect('.')
	}
	return nil
}

func (d *turtleDecoder) graphLabel() (Term, error) {
	if d.peekAt(0) == '_' && d.peekAt(1) == ':' {
		return d.blankNodeLabel()
	}
	return d.iri()
}

func (d *turtleDecoder) triples() error {
	subject, kind, err := d.subject()
	if err != nil {
		return err
	}
	if err := d.skipWS(); err != nil {
		return err
	}
	ch := d.peekAt(0)
	if d.format == FormatTriG && !d.inBlock && ch == '{' && (kind == termNode || kind == anonNode) {
		d.skip(1)
		d.inBlock, d.graph = true, subject
		return nil
	}
	if kind == propertyListNode && (ch == '.' || d.inBlock && ch == '}') {
		return d.endTriples()
	}
	if err := d.predicateObjectList(subject); err != nil {
		return err
	}
	return d.endTriples()
}

// endTriples consumes the '.' closing a statement. Inside a TriG block the
// last statement may end at '}' instead.
func (d *turtleDecoder) endTriples() error {
	if err := d.skipWS(); err != nil {
		return err
	}
	switch d.peekAt(0) {
	case '.':
		d.skip(1)
		return nil
	case '}':
		if d.inBlock {
			return nil
		}
	}
	return d.errorf("expected '.' after triples")
}

func (d *turtleDecoder) subject() (Term, nodeKind, error) {
	ch := d.peekAt(0)
	switch {
	case ch == '[':
		return d.blankNodePropertyList()
	case ch == '(':
		t, err := d.collection()
		return t, collectionNode, err
	case ch == '_' && d.peekAt(1) == ':':
		t, err := d.blankNodeLabel()
		return t, termNode, err
	case ch == '"' || ch == '\'' || isDigit(ch):
		return nil, termNode, d.errorf("literal not allowed as subject")
	}
	t, err := d.iri()
	return t, termNode, err
}

func (d *turtleDecoder) predicateObjectList(subject Term) error {
	for {
		if err := d.skipWS(); err != nil {
			return err
		}
		p, err := d.verb()
		if err != nil {
			return err
		}
		if err := d.objectList(subject, p); err != nil {
			return err
		}
		if err := d.skipWS(); err != nil {
			return err
		}
		if d.peekAt(0) != ';' {
			return nil
		}
		for d.peekAt(0) == ';' {
			d.skip(1)
			if err := d.skipWS(); err != nil {
				return err
			}
		}
		switch d.peekAt(0) {
		case '.', ']', '}':
			return nil
		}
	}
}

func (d *turtleDecoder) verb() (IRI, error) {
	if d.keyword("a", false) {
		d.skip(1)
		return IRI{Value: RDFType}, nil
	}
	return d.iri()
}

func (d *turtleDecoder) objectList(subject Term, p IRI) error {
	for {
		if err := d.skipWS(); err != nil {
			return err
		}
		o, err := d.object()
		if err != nil {
			return err
		}
		d.emit(subject, p, o)
		if err := d.skipWS(); err != nil {
			return err
		}
		if d.peekAt(0) != ',' {
			return nil
		}
		d.skip(1)
	}
}

func (d *turtleDecoder) object() (Term, error) {
	ch := d.peekAt(0)
	switch {
	case ch == '[':
		t, _, err := d.blankNodePropertyList()
		return t, err
	case ch == '(':
		return d.collection()
	case ch == '_' && d.peekAt(1) == ':':
		return d.blankNodeLabel()
	case ch == '"' || ch == '\'':
		return d.literal()
	case isDigit(ch) || ch == '+' || ch == '-' || ch == '.' && isDigit(d.peekAt(1)):
		return d.numeric()
	case d.keyword("true", false):
		d.skip(4)
		return NewLiteral("true", XSDBoolean), nil
	case d.keyword("false", false):
		d.skip(5)
		return NewLiteral("false", XSDBoolean), nil
	}
	return d.iri()
}

func (d *turtleDecoder) iri() (IRI, error) {
	if d.peekAt(0) == '<' {
		return d.iriRef()
	}
	return d.prefixedName()
}

// iriRef reads <...> and resolves it against the current base.
func (d *turtleDecoder) iriRef() (IRI, error) {
	if d.peekAt(0) != '<' {
		return IRI{}, d.errorf("expected IRI")
	}
	d.skip(1)
	var b strings.Builder
	for {
		ch, err := d.readByte()
		if err != nil {
			return IRI{}, err
		}
		switch ch {
		case '>':
			return IRI{Value: ResolveIRI(d.base, b.String())}, nil
		case '\\':
			r, err := d.unicodeEscape()
			if err != nil {
				return IRI{}, err
			}
			b.WriteRune(r)
		case ' ', '\t', '\r', '\n', '<', '"', '{', '}', '|', '^', '`':
			return IRI{}, d.errorf("invalid character %q in IRI", ch)
		default:
			b.WriteByte(ch)
		}
	}
}

func (d *turtleDecoder) prefixedName() (IRI, error) {
	var prefix strings.Builder
	for isPNChar(d.peekAt(0)) || d.peekAt(0) == '.' && isPNChar(d.peekAt(1)) {
		if err := d.accept(&prefix); err != nil {
			return IRI{}, err
		}
	}
	if d.peekAt(0) != ':' {
		return IRI{}, d.errorf("expected IRI or prefixed name")
	}
	d.skip(1)
	ns, ok := d.prefixes[prefix.String()]
	if !ok {
		return IRI{}, d.errorf("undefined prefix %q", prefix.String())
	}

	var local strings.Builder
	for {
		ch, next := d.peekAt(0), d.peekAt(1)
		switch {
		case isPNChar(ch) || ch == ':':
		case ch == '.' && (isPNChar(next) || next == ':' || next == '%' || next == '\\'):
		case ch == '%':
			if !isHex(next) || !isHex(d.peekAt(2)) {
				return IRI{}, d.errorf("invalid percent escape in local name")
			}
			if err := d.accept(&local); err != nil {
				return IRI{}, err
			}
			if err := d.accept(&local); err != nil {
				return IRI{}, err
			}
		case ch == '\\':
			if !strings.ContainsRune(`_~.-!$&'()*+,;=/?#@%`, rune(next)) {
				return IRI{}, d.errorf("invalid escape in local name")
			}
			d.skip(1)
		default:
			return IRI{Value: ns + local.String()}, nil
		}
		if err := d.accept(&local); err != nil {
			return IRI{}, err
		}
	}
}

func (d *turtleDecoder) blankNodeLabel() (BlankNode, error) {
	d.skip(2)
	var b strings.Builder
	for isPNChar(d.peekAt(0)) || d.peekAt(0) == '.' && isPNChar(d.peekAt(1)) {
		if err := d.accept(&b); err != nil {
			return BlankNode{}, err
		}
	}
	if b.Len() == 0 {
		return BlankNode{}, d.errorf("blank node label missing")
	}
	return BlankNode{ID: blankLabel(b.String())}, nil
}

// blankLabel keeps document labels apart from the genidN labels of
// anonymous nodes.
func blankLabel(label string) string {
	if strings.HasPrefix(strings.TrimLeft(label, "x"), "genid") {
		return "x" + label
	}
	return label
}

func (d *turtleDecoder) newBlank() BlankNode {
	d.bnodes++
	return BlankNode{ID: "genid" + strconv.Itoa(d.bnodes)}
}

func (d *turtleDecoder) blankNodePropertyList() (Term, nodeKind, error) {
	d.skip(1)
	if err := d.skipWS(); err != nil {
		return nil, anonNode, err
	}
	node := d.newBlank()
	if d.peekAt(0) == ']' {
		d.skip(1)
		return node, anonNode, nil
	}
	if err := d.predicateObjectList(node); err != nil {
		return nil, propertyListNode, err
	}
	if err := d.expect(']'); err != nil {
		return nil, propertyListNode, err
	}
	return node, propertyListNode, nil
}

func (d *turtleDecoder) collection() (Term, error) {
	d.skip(1)
	var items []Term
	for {
		if err := d.skipWS(); err != nil {
			return nil, err
		}
		if d.peekAt(0) == ')' {
			d.skip(1)
			break
		}
		o, err := d.object()
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	if len(items) == 0 {
		return IRI{Value: RDFNil}, nil
	}
	head := d.newBlank()
	node := head
	for i, item := range items {
		d.emit(node, IRI{Value: RDFFirst}, item)
		if i == len(items)-1 {
			d.emit(node, IRI{Value: RDFRest}, IRI{Value: RDFNil})
			break
		}
		next := d.newBlank()
		d.emit(node, IRI{Value: RDFRest}, next)
		node = next
	}
	return head, nil
}

func (d *turtleDecoder) literal() (Term, error) {
	lexical, err := d.quotedString()
	if err != nil {
		return nil, err
	}
	switch {
	case d.peekAt(0) == '@':
		d.skip(1)
		var tag strings.Builder
		for isAlnum(d.peekAt(0)) || d.peekAt(0) == '-' && isAlnum(d.peekAt(1)) {
			if err := d.accept(&tag); err != nil {
				return nil, err
			}
		}
		if tag.Len() == 0 {
			return nil, d.errorf("empty language tag")
		}
		return NewLangLiteral(lexical, tag.String()), nil
	case d.peekAt(0) == '^' && d.peekAt(1) == '^':
		d.skip(2)
		dt, err := d.iri()
		if err != nil {
			return nil, err
		}
		return NewLiteral(lexical, dt.Value), nil
	}
	return Literal{Lexical: lexical}, nil
}

// quotedString reads a short or long string in single or double quotes.
func (d *turtleDecoder) quotedString() (string, error) {
	q, err := d.readByte()
	if err != nil {
		return "", err
	}
	long := d.peekAt(0) == q && d.peekAt(1) == q
	switch {
	case long:
		d.skip(2)
	case d.peekAt(0) == q:
		d.skip(1)
		return "", nil
	}

	var b strings.Builder
	for {
		ch, err := d.readByte()
		if errors.Is(err, io.EOF) {
			return "", d.errorf("unterminated string")
		}
		if err != nil {
			return "", err
		}
		switch {
		case ch == q && !long:
			return b.String(), nil
		case ch == q && d.peekAt(0) == q && d.peekAt(1) == q && d.peekAt(2) != q:
			d.skip(2)
			return b.String(), nil
		case ch == '\\':
			if err := d.stringEscape(&b); err != nil {
				return "", err
			}
		case !long && (ch == '\n' || ch == '\r'):
			return "", d.errorf("line break in string")
		default:
			b.WriteByte(ch)
		}
	}
}

func (d *turtleDecoder) stringEscape(b *strings.Builder) error {
	ch := d.peekAt(0)
	if ch == 'u' || ch == 'U' {
		r, err := d.unicodeEscape()
		if err != nil {
			return err
		}
		b.WriteRune(r)
		return nil
	}
	d.skip(1)
	switch ch {
	case 't':
		b.WriteByte('\t')
	case 'b':
		b.WriteByte('\b')
	case 'n':
		b.WriteByte('\n')
	case 'r':
		b.WriteByte('\r')
	case 'f':
		b.WriteByte('\f')
	case '"', '\'', '\\':
		b.WriteByte(ch)
	default:
		return d.errorf("invalid escape \\%c", ch)
	}
	return nil
}

// unicodeEscape reads uXXXX or UXXXXXXXX after a backslash.
func (d *turtleDecoder) unicodeEscape() (rune, error) {
	ch, err := d.readByte()
	if err != nil {
		return 0, err
	}
	width := 0
	switch ch {
	case 'u':
		width = 4
	case 'U':
		width = 8
	default:
		return 0, d.errorf("invalid escape \\%c", ch)
	}
	var hex [8]byte
	for i := range width {
		if hex[i], err = d.readByte(); err != nil {
			return 0, err
		}
	}
	v, err := strconv.ParseUint(string(hex[:width]), 16, 32)
	if err != nil || !utf8.ValidRune(rune(v)) {
		return 0, d.errorf("invalid unicode escape")
	}
	return rune(v), nil
}

func (d *turtleDecoder) numeric() (Term, error) {
	var b strings.Builder
	if ch := d.peekAt(0); ch == '+' || ch == '-' {
		if err := d.accept(&b); err != nil {
			return nil, err
		}
	}
	digits := 0
	for isDigit(d.peekAt(0)) {
		if err := d.accept(&b); err != nil {
			return nil, err
		}
		digits++
	}
	datatype := XSDInteger
	if d.peekAt(0) == '.' && isDigit(d.peekAt(1)) {
		datatype = XSDDecimal
		if err := d.accept(&b); err != nil {
			return nil, err
		}
		for isDigit(d.peekAt(0)) {
			if err := d.accept(&b); err != nil {
				return nil, err
			}
			digits++
		}
	}
	if digits == 0 {
		return nil, d.errorf("invalid number")
	}
	if ch := d.peekAt(0); ch == 'e' || ch == 'E' {
		datatype = XSDDouble
		if err := d.accept(&b); err != nil {
			return nil, err
		}
		if ch := d.peekAt(0); ch == '+' || ch == '-' {
			if err := d.accept(&b); err != nil {
				return nil, err
			}
		}
		exp := 0
		for isDigit(d.peekAt(0)) {
			if err := d.accept(&b); err != nil {
				return nil, err
			}
			exp++
		}
		if exp == 0 {
			return nil, d.errorf("invalid exponent in %q", b.String())
		}
	}
	return NewLiteral(b.String(), datatype), nil
}

func (d *turtleDecoder) emit(s Term, p IRI, o Term) {
	d.pending = append(d.pending, Quad{S: s, P: p, O: o, G: d.graph})
}

// peekAt returns the byte n positions ahead, or 0 past the end of input.
func (d *turtleDecoder) peekAt(n int) byte {
	b, _ := d.reader.Peek(n + 1)
	if len(b) <= n {
		return 0
	}
	return b[n]
}

func (d *turtleDecoder) readByte() (byte, error) {
	ch, err := d.reader.ReadByte()
	if err != nil {
		return 0, err
	}
	if ch == '\n' {
		d.line++
		d.column = 1
		return ch, nil
	}
	d.column++
	if d.opts.MaxLineBytes > 0 && d.column > d.opts.MaxLineBytes {
		return 0, ErrLineTooLong
	}
	return ch, nil
}

func (d *turtleDecoder) accept(b *strings.Builder) error {
	ch, err := d.readByte()
	if err != nil {
		return err
	}
	b.WriteByte(ch)
	return nil
}

// skip consumes n bytes already seen through peekAt.
func (d *turtleDecoder) skip(n int) {
	for range n {
		if _, err := d.readByte(); err != nil {
			return
		}
	}
}

func (d *turtleDecoder) skipWS() error {
	for {
		switch d.peekAt(0) {
		case ' ', '\t', '\r', '\n':
			if _, err := d.readByte(); err != nil {
				return err
			}
		case '#':
			for {
				ch, err := d.readByte()
				if err != nil {
					return err
				}
				if ch == '\n' {
					break
				}
			}
		default:
			return nil
		}
	}
}

func (d *turtleDecoder) expect(want byte) error {
	if err := d.skipWS(); err != nil {
		return err
	}
	if got := d.peekAt(0); got != want {
		if got == 0 {
			return d.errorf("expected %q, found end of input", want)
		}
		return d.errorf("expected %q, found %q", want, got)
	}
	d.skip(1)
	return nil
}

// keyword reports whether word is the next token. SPARQL style keywords
// match case-insensitively.
func (d *turtleDecoder) keyword(word string, fold bool) bool {
	for i := 0; i < len(word); i++ {
		ch := d.peekAt(i)
		if fold && ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch != word[i] {
			return false
		}
	}
	next := d.peekAt(len(word))
	return !isPNChar(next) && next != ':'
}

func (d *turtleDecoder) errorf(format string, args ...any) error {
	return newParseError(d.format, "", d.line, d.column, fmt.Errorf(format, args...))
}

// isPNChar reports whether ch may appear inside a prefixed or blank node
// name. Bytes of multi-byte UTF-8 sequences are accepted as they come.
func isPNChar(ch byte) bool {
	return isAlnum(ch) || ch == '_' || ch == '-' || ch >= 0x80
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHex(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
