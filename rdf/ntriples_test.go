package rdf

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

func collectQuads(t *testing.T, r Reader) []Quad {
	t.Helper()
	var out []Quad
	for {
		q, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out = append(out, q)
	}
}

func TestNTriplesDecodeErrors(t *testing.T) {
	inputs := map[string]string{
		"missing object":    "<http://example.org/s> <http://example.org/p> .\n",
		"missing dot":       "<http://example.org/s> <http://example.org/p> <http://example.org/o>\n",
		"graph in triples":  "<http://example.org/s> <http://example.org/p> <http://example.org/o> <http://example.org/g> .\n",
		"literal subject":   "\"s\" <http://example.org/p> <http://example.org/o> .\n",
		"unterminated text": "<http://example.org/s> <http://example.org/p> \"open .\n",
	}
	for name, input := range inputs {
		dec, err := NewReader(strings.NewReader(input), FormatNTriples)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		_, err = dec.Next()
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		var perr *ParseError
		if !errors.As(err, &perr) || perr.Line != 1 {
			t.Fatalf("%s: expected ParseError on line 1, got %v", name, err)
		}
	}
}

func TestNTriplesDecodeTerms(t *testing.T) {
	input := strings.Join([]string{
		"# comment",
		"_:b1 <http://example.org/p> \"v\"@EN .",
		"<http://example.org/s> <http://example.org/p> \"1\"^^<http://www.w3.org/2001/XMLSchema#integer> .",
		"<http://example.org/s> <http://example.org/p> \"a\\tb\\u00E9\\\"\" .",
		"<http://example.org/s> <http://example.org/p> \"x\"^^<http://www.w3.org/2001/XMLSchema#string> .",
		"",
	}, "\n")
	dec, err := NewReader(strings.NewReader(input), FormatNTriples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	quads := collectQuads(t, dec)
	if len(quads) != 4 {
		t.Fatalf("expected 4 quads, got %d", len(quads))
	}
	if _, ok := quads[0].S.(BlankNode); !ok {
		t.Fatalf("expected blank node subject")
	}
	if lit := quads[0].O.(Literal); lit.Lang != "en" {
		t.Fatalf("expected lowercased lang tag, got %q", lit.Lang)
	}
	if lit := quads[1].O.(Literal); lit.Datatype.Value != NSXSD+"integer" {
		t.Fatalf("unexpected datatype %q", lit.Datatype.Value)
	}
	if lit := quads[2].O.(Literal); lit.Lexical != "a\tbé\"" {
		t.Fatalf("unexpected lexical %q", lit.Lexical)
	}
	if !Equal(quads[3].O, Literal{Lexical: "x"}) {
		t.Fatalf("xsd:string literal should equal a plain literal")
	}
}

func TestNQuadsGraph(t *testing.T) {
	input := "<http://example.org/s> <http://example.org/p> <http://example.org/o> <http://example.org/g> .\n"
	dec, err := NewReader(strings.NewReader(input), FormatNQuads)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	quads := collectQuads(t, dec)
	if len(quads) != 1 || quads[0].InDefaultGraph() {
		t.Fatalf("expected one quad in a named graph, got %v", quads)
	}
}

func TestNTriplesRoundTrip(t *testing.T) {
	quads := []Quad{
		{S: IRI{Value: "http://example.org/s"}, P: IRI{Value: "http://example.org/p"}, O: NewLangLiteral("line\nbreak \"quoted\"", "en")},
		{S: BlankNode{ID: "b1"}, P: IRI{Value: "http://example.org/p2"}, O: IRI{Value: "http://example.org/o"}},
		{S: IRI{Value: "http://example.org/s2"}, P: IRI{Value: "http://example.org/p3"}, O: NewLiteral("1", NSXSD+"integer"), G: IRI{Value: "http://example.org/g"}},
	}
	var buf bytes.Buffer
	enc, err := NewWriter(&buf, FormatNQuads)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteAll(enc, quads); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dec, err := NewReader(strings.NewReader(buf.String()), FormatNQuads)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed := collectQuads(t, dec)
	if len(parsed) != len(quads) {
		t.Fatalf("expected %d quads, got %d", len(quads), len(parsed))
	}
	for i := range quads {
		if parsed[i].Key() != quads[i].Key() {
			t.Fatalf("quad %d mismatch:\n got %s\nwant %s", i, parsed[i].Key(), quads[i].Key())
		}
	}
	if err := enc.Write(quads[0]); !errors.Is(err, ErrWriterClosed) {
		t.Fatalf("expected ErrWriterClosed, got %v", err)
	}
}

func TestNTriplesMaxQuads(t *testing.T) {
	input := "<http://e/s> <http://e/p> \"1\" .\n<http://e/s> <http://e/p> \"2\" .\n"
	dec, err := NewReader(strings.NewReader(input), FormatNTriples, OptMaxQuads(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dec.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = dec.Next()
	if !errors.Is(err, ErrQuadLimitExceeded) {
		t.Fatalf("expected ErrQuadLimitExceeded, got %v", err)
	}
	if Code(err) != ErrCodeQuadLimitExceeded {
		t.Fatalf("unexpected code %q", Code(err))
	}
}
