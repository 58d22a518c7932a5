package rdf

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
)

// turtleEncoder writes Turtle, or TriG when format is FormatTriG. Consecutive
// quads with the same subject share one subject block.
type turtleEncoder struct {
	writer   *bufio.Writer
	format   Format
	base     string
	prefixes map[string]string
	started  bool
	closed   bool
	subject  string
	graph    string
	inGraph  bool
	err      error
}

func newTurtleEncoder(w io.Writer, format Format, opts Options) *turtleEncoder {
	return &turtleEncoder{
		writer:   bufio.NewWriter(w),
		format:   format,
		base:     opts.Base,
		prefixes: opts.Prefixes,
	}
}

func (e *turtleEncoder) Write(q Quad) error {
	if e.err != nil {
		return e.err
	}
	if e.closed {
		return ErrWriterClosed
	}
	if q.S == nil || q.P.Value == "" || q.O == nil {
		return fmt.Errorf("%s: missing statement fields", e.format)
	}
	if !e.started {
		e.writeHeader()
	}

	graph := ""
	if e.format == FormatTriG && q.G != nil {
		graph = e.term(q.G)
	}
	subject := e.term(q.S)
	indent := ""
	if e.inGraph {
		indent = "  "
	}

	switch {
	case graph != e.graph || (graph != "" && !e.inGraph):
		e.endSubject()
		if e.inGraph {
			e.writeString("}\n")
			e.inGraph = false
		}
		e.graph = graph
		if graph != "" {
			e.writeString(graph + " {\n")
			e.inGraph = true
			indent = "  "
		} else {
			indent = ""
		}
		e.writeString(indent + subject + " " + e.predicate(q.P) + " " + e.term(q.O))
	case subject == e.subject:
		e.writeString(" ;\n" + indent + "    " + e.predicate(q.P) + " " + e.term(q.O))
	default:
		e.endSubject()
		e.writeString(indent + subject + " " + e.predicate(q.P) + " " + e.term(q.O))
	}
	e.subject = subject
	return e.err
}

func (e *turtleEncoder) endSubject() {
	if e.subject != "" {
		e.writeString(" .\n")
		e.subject = ""
	}
}

func (e *turtleEncoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	return e.writer.Flush()
}

func (e *turtleEncoder) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true
	if e.err != nil {
		return e.err
	}
	e.endSubject()
	if e.inGraph {
		e.writeString("}\n")
	}
	if e.err != nil {
		return e.err
	}
	return e.writer.Flush()
}

func (e *turtleEncoder) writeString(s string) {
	if e.err != nil {
		return
	}
	if _, err := e.writer.WriteString(s); err != nil {
		e.err = err
	}
}

func (e *turtleEncoder) writeHeader() {
	e.started = true
	if e.base != "" {
		e.writeString("@base <" + e.base + "> .\n")
	}
	for _, prefix := range sortedPrefixKeys(e.prefixes) {
		e.writeString("@prefix " + prefix + ": <" + e.prefixes[prefix] + "> .\n")
	}
	if e.base != "" || len(e.prefixes) > 0 {
		e.writeString("\n")
	}
}

func (e *turtleEncoder) predicate(p IRI) string {
	if p.Value == RDFType {
		return "a"
	}
	return e.iri(p)
}

func (e *turtleEncoder) iri(iri IRI) string {
	if qname, ok := abbreviateQName(iri.Value, e.prefixes); ok {
		return qname
	}
	return renderIRI(iri)
}

func (e *turtleEncoder) term(term Term) string {
	switch value := term.(type) {
	case IRI:
		return e.iri(value)
	case Literal:
		quoted := `"` + escapeLiteral(value.Lexical) + `"`
		if value.Lang != "" {
			return quoted + "@" + value.Lang
		}
		if value.Datatype.Value != "" && value.Datatype.Value != XSDString {
			return quoted + "^^" + e.iri(value.Datatype)
		}
		return quoted
	default:
		return renderTerm(term)
	}
}

func sortedPrefixKeys(prefixes map[string]string) []string {
	keys := make([]string, 0, len(prefixes))
	for key := range prefixes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// abbreviateQName picks the longest namespace that yields a valid local name.
func abbreviateQName(iri string, prefixes map[string]string) (string, bool) {
	bestNS := ""
	bestPrefix := ""
	for prefix, ns := range prefixes {
		if ns == "" || !strings.HasPrefix(iri, ns) || len(ns) <= len(bestNS) {
			continue
		}
		if !isQNameLocal(iri[len(ns):]) {
			continue
		}
		bestNS = ns
		bestPrefix = prefix
	}
	if bestNS == "" {
		return "", false
	}
	return bestPrefix + ":" + iri[len(bestNS):], true
}
