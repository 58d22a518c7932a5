package rdf

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, input string, format Format, opts ...Option) []string {
	t.Helper()
	dec, err := NewReader(strings.NewReader(input), format, opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var lines []string
	for _, q := range collectQuads(t, dec) {
		lines = append(lines, q.String())
	}
	return lines
}

func decodeError(t *testing.T, input string, format Format) error {
	t.Helper()
	dec, err := NewReader(strings.NewReader(input), format)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for {
		_, err := dec.Next()
		if err == io.EOF {
			t.Fatalf("expected error for %q", input)
		}
		if err != nil {
			return err
		}
	}
}

func assertLines(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d quads, want %d:\n%s", len(got), len(want), strings.Join(got, "\n"))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("quad %d:\n got  %s\n want %s", i, got[i], want[i])
		}
	}
}

func TestTurtleDecode(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "predicate and object lists",
			input: "@prefix ex: <http://example.org/> .\nex:s ex:p \"v\" ; ex:q ex:o1 , ex:o2 .\n",
			want: []string{
				`<http://example.org/s> <http://example.org/p> "v" .`,
				`<http://example.org/s> <http://example.org/q> <http://example.org/o1> .`,
				`<http://example.org/s> <http://example.org/q> <http://example.org/o2> .`,
			},
		},
		{
			name:  "base directive",
			input: "@base <http://example.org/dir/> .\n<rel> <#p> <../o> .\n",
			want: []string{
				`<http://example.org/dir/rel> <http://example.org/dir/#p> <http://example.org/o> .`,
			},
		},
		{
			name:  "sparql directives",
			input: "PREFIX ex: <http://example.org/>\nbase <http://example.org/>\nex:s a <T> .\n",
			want: []string{
				`<http://example.org/s> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://example.org/T> .`,
			},
		},
		{
			name: "literals",
			input: `@prefix ex: <http://example.org/> .
ex:s ex:p 1, -2.5, 1e3, true, "x"@EN-gb, 'y'^^ex:dt, """multi
"line""" .
`,
			want: []string{
				`<http://example.org/s> <http://example.org/p> "1"^^<http://www.w3.org/2001/XMLSchema#integer> .`,
				`<http://example.org/s> <http://example.org/p> "-2.5"^^<http://www.w3.org/2001/XMLSchema#decimal> .`,
				`<http://example.org/s> <http://example.org/p> "1e3"^^<http://www.w3.org/2001/XMLSchema#double> .`,
				`<http://example.org/s> <http://example.org/p> "true"^^<http://www.w3.org/2001/XMLSchema#boolean> .`,
				`<http://example.org/s> <http://example.org/p> "x"@en-gb .`,
				`<http://example.org/s> <http://example.org/p> "y"^^<http://example.org/dt> .`,
				`<http://example.org/s> <http://example.org/p> "multi\n\"line" .`,
			},
		},
		{
			name: "blank nodes and collections",
			input: `@prefix ex: <http://example.org/> .
ex:s ex:p [ ex:q "a" ] ; ex:list ( 1 ex:o ) .
_:genid1 ex:p [] .
`,
			want: []string{
				`_:genid1 <http://example.org/q> "a" .`,
				`<http://example.org/s> <http://example.org/p> _:genid1 .`,
				`_:genid2 <http://www.w3.org/1999/02/22-rdf-syntax-ns#first> "1"^^<http://www.w3.org/2001/XMLSchema#integer> .`,
				`_:genid2 <http://www.w3.org/1999/02/22-rdf-syntax-ns#rest> _:genid3 .`,
				`_:genid3 <http://www.w3.org/1999/02/22-rdf-syntax-ns#first> <http://example.org/o> .`,
				`_:genid3 <http://www.w3.org/1999/02/22-rdf-syntax-ns#rest> <http://www.w3.org/1999/02/22-rdf-syntax-ns#nil> .`,
				`<http://example.org/s> <http://example.org/list> _:genid2 .`,
				`_:xgenid1 <http://example.org/p> _:genid4 .`,
			},
		},
		{
			name:  "standalone property list",
			input: "@prefix ex: <http://example.org/> .\n[ ex:p \"v\" ] .\n",
			want: []string{
				`_:genid1 <http://example.org/p> "v" .`,
			},
		},
		{
			name: "comments escapes and dotted names",
			input: `@prefix ex: <http://example.org/> . # prefixes
# a full line comment
ex:a.b ex:p "a\tb\u00E9", ex:c.
`,
			want: []string{
				`<http://example.org/a.b> <http://example.org/p> "a\tbé" .`,
				`<http://example.org/a.b> <http://example.org/p> <http://example.org/c> .`,
			},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assertLines(t, decodeLines(t, c.input, FormatTurtle), c.want)
		})
	}
}

func TestTriGDecode(t *testing.T) {
	input := `@prefix ex: <http://example.org/> .
ex:s ex:p ex:o .
ex:g { ex:s ex:p "in g" . ex:t ex:p ex:o }
GRAPH <http://example.org/h> { ex:s ex:p ex:o . }
{ ex:d ex:p ex:o }
`
	assertLines(t, decodeLines(t, input, FormatTriG), []string{
		`<http://example.org/s> <http://example.org/p> <http://example.org/o> .`,
		`<http://example.org/s> <http://example.org/p> "in g" <http://example.org/g> .`,
		`<http://example.org/t> <http://example.org/p> <http://example.org/o> <http://example.org/g> .`,
		`<http://example.org/s> <http://example.org/p> <http://example.org/o> <http://example.org/h> .`,
		`<http://example.org/d> <http://example.org/p> <http://example.org/o> .`,
	})
}

func TestTurtleDecodeOptions(t *testing.T) {
	lines := decodeLines(t, "<#x> <p> <y> .\n", FormatTurtle, OptBase("http://example.org/doc"))
	assertLines(t, lines, []string{
		`<http://example.org/doc#x> <http://example.org/p> <http://example.org/y> .`,
	})

	lines = decodeLines(t, "@prefix ex: <http://example.org/> .\nex:s ex:p ex:o .\n", FormatAuto)
	assertLines(t, lines, []string{
		`<http://example.org/s> <http://example.org/p> <http://example.org/o> .`,
	})

	dec, err := NewReader(strings.NewReader("<http://e/s> <http://e/p> 1, 2 .\n"), FormatTurtle, OptMaxQuads(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dec.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := dec.Next(); !errors.Is(err, ErrQuadLimitExceeded) {
		t.Fatalf("expected quad limit error, got %v", err)
	}
}

func TestTurtleDecodeErrors(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		format Format
	}{
		{"unknown prefix", "ex:s ex:p ex:o .\n", FormatTurtle},
		{"literal predicate", "_:b1 \"literal\" <http://e/o> .\n", FormatTurtle},
		{"literal subject", "\"s\" <http://e/p> <http://e/o> .\n", FormatTurtle},
		{"missing dot", "<http://e/s> <http://e/p> <http://e/o>\n", FormatTurtle},
		{"line break in string", "<http://e/s> <http://e/p> \"open\n\" .\n", FormatTurtle},
		{"unterminated long string", "<http://e/s> <http://e/p> \"\"\"open .\n", FormatTurtle},
		{"graph block in turtle", "<http://e/g> { <http://e/s> <http://e/p> <http://e/o> }\n", FormatTurtle},
		{"unterminated directive", "@prefix ex: <http://e/> ", FormatTurtle},
		{"unknown directive", "@vocab <http://e/> .\n", FormatTurtle},
		{"unclosed graph block", "<http://e/g> { <http://e/s> <http://e/p> <http://e/o> .\n", FormatTriG},
		{"stray brace", "}\n", FormatTriG},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := decodeError(t, c.input, c.format)
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if perr.Format != c.format || perr.Line == 0 {
				t.Fatalf("unexpected error position: %v", perr)
			}
		})
	}
}
