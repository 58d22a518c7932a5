package rdf

import "testing"

func TestQuadKey(t *testing.T) {
	q := Quad{S: IRI{Value: "http://e/s"}, P: IRI{Value: "http://e/p"}, O: Literal{Lexical: "a \"b\""}}
	if got := q.Key(); got != `<http://e/s> <http://e/p> "a \"b\""` {
		t.Fatalf("unexpected key %s", got)
	}
	q.G = BlankNode{ID: "g"}
	if got := q.String(); got != `<http://e/s> <http://e/p> "a \"b\"" _:g .` {
		t.Fatalf("unexpected string %s", got)
	}
}

func TestLiteralDatatype(t *testing.T) {
	if NewLiteral("x", XSDString).DatatypeIRI() != XSDString {
		t.Fatalf("expected xsd:string")
	}
	if NewLangLiteral("x", "EN").DatatypeIRI() != RDFLangString {
		t.Fatalf("expected rdf:langString")
	}
	if !Equal(NewLiteral("x", XSDString), Literal{Lexical: "x"}) {
		t.Fatalf("typed and plain strings should be equal")
	}
	if Equal(IRI{Value: "x"}, nil) || !Equal(nil, nil) {
		t.Fatalf("unexpected nil handling")
	}
}

func TestBlankNodeGenerator(t *testing.T) {
	gen := NewBlankNodeGenerator("row")
	if gen.Next().ID != "row1" || gen.Next().ID != "row2" {
		t.Fatalf("unexpected sequence")
	}
}

func TestExpandPrefixed(t *testing.T) {
	cases := map[string]string{
		"schema:name":        "http://schema.org/name",
		"xsd:integer":        NSXSD + "integer",
		"http://example.org": "http://example.org",
		"unknown:thing":      "unknown:thing",
	}
	for in, want := range cases {
		if got := ExpandPrefixed(in); got != want {
			t.Fatalf("%s: got %s, want %s", in, got, want)
		}
	}
}

func TestResolveIRI(t *testing.T) {
	cases := []struct{ base, rel, want string }{
		{"http://example.org/data/t.csv", "#1", "http://example.org/data/t.csv#1"},
		{"http://example.org/data/t.csv", "other.csv", "http://example.org/data/other.csv"},
		{"http://example.org/data/", "http://x.org/a", "http://x.org/a"},
		{"", "#1", "#1"},
	}
	for _, c := range cases {
		if got := ResolveIRI(c.base, c.rel); got != c.want {
			t.Fatalf("ResolveIRI(%q, %q) = %q, want %q", c.base, c.rel, got, c.want)
		}
	}
}

func TestValidateIRI(t *testing.T) {
	for _, ok := range []string{"http://example.org/a", "#frag", "urn:isbn:1"} {
		if err := ValidateIRI(ok); err != nil {
			t.Fatalf("%s: unexpected error: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "http://a b", "1http://x", "http://x/<y>"} {
		if err := ValidateIRI(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}
