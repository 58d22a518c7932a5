package rdf

import (
	"bytes"
	"strings"
	"testing"
)

func TestTurtleEncoderGroupsSubjects(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatTurtle, OptPrefixes(map[string]string{"ex": "http://example.org/"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	quads := []Quad{
		{S: IRI{Value: "http://example.org/a"}, P: IRI{Value: RDFType}, O: IRI{Value: "http://example.org/Person"}},
		{S: IRI{Value: "http://example.org/a"}, P: IRI{Value: "http://example.org/name"}, O: Literal{Lexical: "Alice"}},
		{S: IRI{Value: "http://example.org/b"}, P: IRI{Value: "http://example.org/age"}, O: NewLiteral("3", NSXSD+"integer")},
	}
	if err := WriteAll(w, quads); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "@prefix ex: <http://example.org/> .\n\n" +
		"ex:a a ex:Person ;\n    ex:name \"Alice\" .\n" +
		"ex:b ex:age \"3\"^^<http://www.w3.org/2001/XMLSchema#integer> .\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestTriGEncoderGraphBlocks(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, FormatTriG)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	g := IRI{Value: "http://example.org/g"}
	quads := []Quad{
		{S: IRI{Value: "http://example.org/s"}, P: IRI{Value: "http://example.org/p"}, O: Literal{Lexical: "x"}},
		{S: IRI{Value: "http://example.org/s"}, P: IRI{Value: "http://example.org/p"}, O: Literal{Lexical: "y"}, G: g},
	}
	if err := WriteAll(w, quads); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "<http://example.org/g> {\n  <http://example.org/s> <http://example.org/p> \"y\" .\n}\n") {
		t.Fatalf("missing graph block:\n%s", out)
	}
	if !strings.HasPrefix(out, "<http://example.org/s> <http://example.org/p> \"x\" .\n") {
		t.Fatalf("default graph quad should come first:\n%s", out)
	}
}

func TestNewWriterUnsupported(t *testing.T) {
	if _, err := NewWriter(&bytes.Buffer{}, FormatRDFXML); err != ErrUnsupportedFormat {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := NewReader(strings.NewReader("   "), FormatAuto); err != ErrUnsupportedFormat {
		t.Fatalf("expected ErrUnsupportedFormat for blank input, got %v", err)
	}
}
