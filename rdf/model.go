package rdf

import (
	"strconv"
	"strings"
)

// TermKind identifies RDF term types.
type TermKind uint8

const (
	// TermIRI represents an IRI term.
	TermIRI TermKind = iota
	// TermBlankNode represents a blank node term.
	TermBlankNode
	// TermLiteral represents a literal term.
	TermLiteral
)

// Term is a value that can appear in RDF statements.
type Term interface {
	Kind() TermKind
	String() string
}

// IRI represents an RDF IRI.
type IRI struct {
	// Value is the IRI string value.
	Value string
}

// Kind returns TermIRI.
func (i IRI) Kind() TermKind { return TermIRI }

// String returns the IRI value.
func (i IRI) String() string { return i.Value }

// BlankNode represents an RDF blank node.
type BlankNode struct {
	// ID is the blank node identifier.
	ID string
}

// Kind returns TermBlankNode.
func (b BlankNode) Kind() TermKind { return TermBlankNode }

// String returns the blank node identifier prefixed with "_:".
func (b BlankNode) String() string { return "_:" + b.ID }

// Literal represents an RDF literal.
type Literal struct {
	// Lexical is the lexical form of the literal.
	Lexical string
	// Datatype is the datatype IRI. Empty means xsd:string, or rdf:langString
	// when Lang is set.
	Datatype IRI
	// Lang is the language tag, if any.
	Lang string
}

// Kind returns TermLiteral.
func (l Literal) Kind() TermKind { return TermLiteral }

// String returns the N-Triples form of the literal.
func (l Literal) String() string {
	return renderTerm(l)
}

// DatatypeIRI returns the effective datatype of the literal.
func (l Literal) DatatypeIRI() string {
	switch {
	case l.Datatype.Value != "":
		return l.Datatype.Value
	case l.Lang != "":
		return RDFLangString
	default:
		return XSDString
	}
}

// NewLiteral returns a literal with an explicit datatype. xsd:string is
// stored as the empty datatype so plain and typed strings compare equal.
func NewLiteral(lexical, datatype string) Literal {
	if datatype == XSDString {
		datatype = ""
	}
	return Literal{Lexical: lexical, Datatype: IRI{Value: datatype}}
}

// NewLangLiteral returns a language-tagged literal.
func NewLangLiteral(lexical, lang string) Literal {
	return Literal{Lexical: lexical, Lang: strings.ToLower(lang)}
}

// Quad is an RDF quad (triple + optional graph name).
type Quad struct {
	// S is the subject.
	S Term
	// P is the predicate.
	P IRI
	// O is the object.
	O Term
	// G is the graph name, or nil for the default graph.
	G Term
}

// IsZero reports whether the quad has no subject/predicate/object.
func (q Quad) IsZero() bool {
	return q.S == nil && q.P.Value == "" && q.O == nil && q.G == nil
}

// InDefaultGraph reports whether the quad is in the default graph (no named graph).
func (q Quad) InDefaultGraph() bool {
	return q.G == nil
}

// Key returns a string that identifies the quad. Two quads with equal keys
// are the same statement.
func (q Quad) Key() string {
	var b strings.Builder
	b.WriteString(TermKey(q.S))
	b.WriteByte(' ')
	b.WriteString(TermKey(q.P))
	b.WriteByte(' ')
	b.WriteString(TermKey(q.O))
	if q.G != nil {
		b.WriteByte(' ')
		b.WriteString(TermKey(q.G))
	}
	return b.String()
}

// String returns the N-Quads line for q without the trailing newline.
func (q Quad) String() string {
	return q.Key() + " ."
}

// TermKey returns the N-Triples rendering of t, or "" for nil.
func TermKey(t Term) string {
	if t == nil {
		return ""
	}
	return renderTerm(t)
}

// Equal reports whether two terms are the same RDF term.
func Equal(a, b Term) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return TermKey(a) == TermKey(b)
}

// IsResource reports whether t is an IRI or blank node.
func IsResource(t Term) bool {
	if t == nil {
		return false
	}
	k := t.Kind()
	return k == TermIRI || k == TermBlankNode
}

// BlankNodeGenerator mints blank node identifiers with a fixed prefix.
// It is not safe for concurrent use.
type BlankNodeGenerator struct {
	prefix  string
	counter int
}

// NewBlankNodeGenerator creates a generator. An empty prefix defaults to "b".
func NewBlankNodeGenerator(prefix string) *BlankNodeGenerator {
	if prefix == "" {
		prefix = "b"
	}
	return &BlankNodeGenerator{prefix: prefix}
}

// Next returns a fresh blank node.
func (g *BlankNodeGenerator) Next() BlankNode {
	g.counter++
	return BlankNode{ID: g.prefix + strconv.Itoa(g.counter)}
}
