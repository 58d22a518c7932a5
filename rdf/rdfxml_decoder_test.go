package rdf

import (
	"errors"
	"testing"
)

const rdfxmlHeader = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:ex="http://example.org/"`

func TestRDFXMLDecode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name: "node and property elements",
			input: rdfxmlHeader + ` xml:base="http://example.org/base/">
  <ex:Person rdf:about="alice" ex:name="Alice">
    <ex:knows rdf:resource="#bob"/>
    <ex:age rdf:datatype="http://www.w3.org/2001/XMLSchema#integer">42</ex:age>
    <ex:note xml:lang="EN">hi</ex:note>
    <ex:address rdf:parseType="Resource"><ex:city>Paris</ex:city></ex:address>
    <ex:friend><rdf:Description rdf:nodeID="n1" ex:name="Bob"/></ex:friend>
    <ex:list rdf:parseType="Collection"><rdf:Description rdf:about="http://example.org/a"/></ex:list>
  </ex:Person>
</rdf:RDF>`,
			want: []string{
				`<http://example.org/base/alice> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.org/Person> .`,
				`<http://example.org/base/alice> <http://example.org/name> "Alice" .`,
				`<http://example.org/base/alice> <http://example.org/knows> <http://example.org/base/#bob> .`,
				`<http://example.org/base/alice> <http://example.org/age> "42"^^<http://www.w3.org/2001/XMLSchema#integer> .`,
				`<http://example.org/base/alice> <http://example.org/note> "hi"@en .`,
				`<http://example.org/base/alice> <http://example.org/address> _:genid1 .`,
				`_:genid1 <http://example.org/city> "Paris" .`,
				`_:n1 <http://example.org/name> "Bob" .`,
				`<http://example.org/base/alice> <http://example.org/friend> _:n1 .`,
				`_:genid2 <http://www.w3.org/1999/02/22-rdf-syntax-ns#first> <http://example.org/a> .`,
				`_:genid2 <http://www.w3.org/1999/02/22-rdf-syntax-ns#rest> <http://www.w3.org/1999/02/22-rdf-syntax-ns#nil> .`,
				`<http://example.org/base/alice> <http://example.org/list> _:genid2 .`,
			},
		},
		{
			name: "container members",
			input: rdfxmlHeader + `>
  <rdf:Bag rdf:about="http://example.org/bag">
    <rdf:li>a</rdf:li>
    <rdf:li rdf:resource="http://example.org/b"/>
  </rdf:Bag>
</rdf:RDF>`,
			want: []string{
				`<http://example.org/bag> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/1999/02/22-rdf-syntax-ns#Bag> .`,
				`<http://example.org/bag> <http://www.w3.org/1999/02/22-rdf-syntax-ns#_1> "a" .`,
				`<http://example.org/bag> <http://www.w3.org/1999/02/22-rdf-syntax-ns#_2> <http://example.org/b> .`,
			},
		},
		{
			name: "anonymous nodes and inherited language",
			input: rdfxmlHeader + ` xml:lang="fr">
  <rdf:Description>
    <ex:label>bonjour</ex:label>
    <ex:seeAlso ex:title="page"/>
  </rdf:Description>
</rdf:RDF>`,
			want: []string{
				`_:genid1 <http://example.org/label> "bonjour"@fr .`,
				`_:genid2 <http://example.org/title> "page"@fr .`,
				`_:genid1 <http://example.org/seeAlso> _:genid2 .`,
			},
		},
		{
			name: "reified statement",
			input: rdfxmlHeader + ` xml:base="http://example.org/doc">
  <rdf:Description rdf:about="http://example.org/s">
    <ex:p rdf:ID="st">v</ex:p>
  </rdf:Description>
</rdf:RDF>`,
			want: []string{
				`<http://example.org/s> <http://example.org/p> "v" .`,
				`<http://example.org/doc#st> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://www.w3.org/1999/02/22-rdf-syntax-ns#Statement> .`,
				`<http://example.org/doc#st> <http://www.w3.org/1999/02/22-rdf-syntax-ns#subject> <http://example.org/s> .`,
				`<http://example.org/doc#st> <http://www.w3.org/1999/02/22-rdf-syntax-ns#predicate> <http://example.org/p> .`,
				`<http://example.org/doc#st> <http://www.w3.org/1999/02/22-rdf-syntax-ns#object> "v" .`,
			},
		},
		{
			name: "document labels kept apart from generated ones",
			input: rdfxmlHeader + `>
  <rdf:Description rdf:nodeID="genid1">
    <ex:p><rdf:Description/></ex:p>
  </rdf:Description>
</rdf:RDF>`,
			want: []string{
				`_:xgenid1 <http://example.org/p> _:genid1 .`,
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assertLines(t, decodeLines(t, c.input, FormatRDFXML), c.want)
		})
	}
}

func TestRDFXMLDecodeXMLLiteral(t *testing.T) {
	input := rdfxmlHeader + `>
  <rdf:Description rdf:about="http://example.org/s">
    <ex:body rdf:parseType="Literal"><b>bold</b> text</ex:body>
  </rdf:Description>
</rdf:RDF>`
	dec := decodeLines(t, input, FormatRDFXML)
	assertLines(t, dec, []string{
		`<http://example.org/s> <http://example.org/body> "<b>bold</b> text"^^<http://www.w3.org/1999/02/22-rdf-syntax-ns#XMLLiteral> .`,
	})
}

func TestRDFXMLDecodeOptions(t *testing.T) {
	input := `<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:ex="http://example.org/">
  <rdf:Description rdf:about="#me"><ex:p rdf:resource="other"/></rdf:Description>
</rdf:RDF>`
	lines := decodeLines(t, input, FormatAuto, OptBase("http://example.org/doc"))
	assertLines(t, lines, []string{
		`<http://example.org/doc#me> <http://example.org/p> <http://example.org/other> .`,
	})
}

func TestRDFXMLDecodeErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"text in node element", rdfxmlHeader + `><rdf:Description rdf:about="http://e/s">oops</rdf:Description></rdf:RDF>`},
		{"text at top level", rdfxmlHeader + `>stray</rdf:RDF>`},
		{"element in empty property", rdfxmlHeader + `><rdf:Description><ex:p rdf:resource="http://e/o"><ex:q/></ex:p></rdf:Description></rdf:RDF>`},
		{"unclosed element", rdfxmlHeader + `><rdf:Description rdf:about="http://e/s">`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := decodeError(t, c.input, FormatRDFXML)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if perr.Format != FormatRDFXML || perr.Line == 0 {
				t.Fatalf("unexpected error position: %v", perr)
			}
		})
	}
}
