package csvw

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/resolve"
	"github.com/geoknoesis/csvw-go/stream"
)

type files map[string]string

func (f files) ResolveText(_ context.Context, url, base string) (string, error) {
	target := rdf.ResolveIRI(base, url)
	body, ok := f[target]
	if !ok {
		return "", errs.Newf(errs.KindResolution, "%s not found", target)
	}
	return body, nil
}

func (f files) ResolveJSONLD(ctx context.Context, url, base string) (any, error) {
	body, err := f.ResolveText(ctx, url, base)
	if err != nil {
		return nil, err
	}
	var doc any
	err = json.Unmarshal([]byte(body), &doc)
	return doc, err
}

func (f files) ResolveStream(ctx context.Context, url, base string) (io.ReadCloser, error) {
	body, err := f.ResolveText(ctx, url, base)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

// quadReader replays quads as an rdf.Reader.
type quadReader struct {
	quads []rdf.Quad
}

func (r *quadReader) Next() (rdf.Quad, error) {
	if len(r.quads) == 0 {
		return rdf.Quad{}, io.EOF
	}
	q := r.quads[0]
	r.quads = r.quads[1:]
	return q, nil
}

func (r *quadReader) Close() error { return nil }

const metadata = `{
  "@context": "http://www.w3.org/ns/csvw",
  "url": "people.csv",
  "tableSchema": {
    "aboutUrl": "#{id}",
    "columns": [
      {"name": "id", "titles": "id", "propertyUrl": "http://ex.org/id"},
      {"name": "name", "titles": "name"}
    ],
    "primaryKey": "id"
  }
}`

func fixture() files {
	return files{
		"http://ex.org/meta.json":  metadata,
		"http://ex.org/people.csv": "id,name\n1,Alice\n",
	}
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := fixture()

	quads, tr := ConvertTabularToRDF(ctx, "http://ex.org/meta.json", OptResolver(fs))
	got, err := stream.Collect(ctx, quads)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, `<#1> <http://ex.org/id> "1" .`, got[0].String())
	assert.Equal(t, `<#1> <http://ex.org/people.csv#name> "Alice" .`, got[1].String())
	assert.Empty(t, tr.Issues())

	g, err := descriptor.Normalize(ctx, metadata, descriptor.Options{Base: "http://ex.org/meta.json"})
	require.NoError(t, err)
	rows, tr := ConvertRDFToTabular(ctx, &quadReader{quads: got}, OptTableGroup(g))
	back, err := stream.Collect(ctx, rows)
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, map[string]string{"id": "1", "name": "Alice"}, back[0].Map())
	assert.Empty(t, tr.Issues())
}

func TestConvertTabularToRDF_Inputs(t *testing.T) {
	fs := fixture()
	fs["http://ex.org/people.csv-metadata.json"] = metadata
	g, err := descriptor.Normalize(context.Background(), metadata, descriptor.Options{Base: "http://ex.org/meta.json"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		input any
		opts  []Option
	}{
		{name: "metadata url", input: "http://ex.org/meta.json"},
		{name: "relative metadata url", input: "meta.json", opts: []Option{OptBaseIRI("http://ex.org/")}},
		{name: "csv url", input: "http://ex.org/people.csv"},
		{name: "json bytes", input: []byte(metadata), opts: []Option{OptBaseIRI("http://ex.org/meta.json")}},
		{name: "reader", input: strings.NewReader(metadata), opts: []Option{OptBaseIRI("http://ex.org/meta.json")}},
		{name: "descriptor", input: g},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quads, _ := ConvertTabularToRDF(context.Background(), tt.input, append(tt.opts, OptResolver(fs))...)
			got, err := stream.Collect(context.Background(), quads)
			require.NoError(t, err)
			assert.Len(t, got, 2)
		})
	}
}

func TestConvertTabularToRDF_Minimal(t *testing.T) {
	fs := fixture()
	fs["http://ex.org/people.csv"] = "id,nom\n1,Alice\n1,Bob\n"

	quads, tr := ConvertTabularToRDF(context.Background(), "http://ex.org/meta.json", OptResolver(fs), OptMinimal(true))
	got, err := stream.Collect(context.Background(), quads)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Len(t, tr.Warnings(), 1)
	require.Len(t, tr.Errors(), 1)
	assert.Contains(t, tr.Errors()[0].Message, "duplicate primary key")
}

func TestConvertTabularToRDF_TableMetadata(t *testing.T) {
	quads, _ := ConvertTabularToRDF(context.Background(), "http://ex.org/meta.json",
		OptResolver(fixture()), OptIncludeTableMetadata(true))
	got, err := stream.Collect(context.Background(), quads)
	require.NoError(t, err)
	assert.Greater(t, len(got), 2)
	assert.Contains(t, got[0].String(), rdf.CSVWTableGroup)
}

func TestConvertTabularToRDF_BadOverride(t *testing.T) {
	quads, _ := ConvertTabularToRDF(context.Background(), "meta.json",
		OptPathOverrides(resolve.PathOverride{From: "(", To: "x", Regex: true}))
	_, err := stream.Collect(context.Background(), quads)
	require.Error(t, err)
	assert.True(t, errs.IsStructural(err))
}

func TestValidateTabular(t *testing.T) {
	doc := []byte(`{"@context": "http://www.w3.org/ns/csvw", "tables": [], "color": "red"}`)

	got, err := stream.Collect(context.Background(), ValidateTabular(context.Background(), doc))
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))

	var errors, warnings int
	for _, i := range got {
		switch i.Severity {
		case issues.SeverityError:
			errors++
		case issues.SeverityWarning:
			warnings++
			assert.Contains(t, i.Message, `"color"`)
		}
	}
	assert.Equal(t, 1, errors)
	assert.Equal(t, 1, warnings)
}

func TestValidateTabular_StreamsConversionIssues(t *testing.T) {
	fs := fixture()
	fs["http://ex.org/people.csv"] = "id,name\n1,Alice\n1,Bob\n"

	got, err := stream.Collect(context.Background(), ValidateTabular(context.Background(), "http://ex.org/meta.json", OptResolver(fs)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, issues.SeverityError, got[0].Severity)
}

func TestInferSchema(t *testing.T) {
	ex := func(s string) rdf.IRI { return rdf.IRI{Value: "http://ex.org/" + s} }
	src := &quadReader{quads: []rdf.Quad{
		{S: ex("alice"), P: rdf.IRI{Value: rdf.RDFType}, O: ex("Person")},
		{S: ex("alice"), P: ex("name"), O: rdf.NewLiteral("Alice", "")},
	}}

	g, err := InferSchema(context.Background(), src, OptBaseIRI("http://out.org/"))
	require.NoError(t, err)
	require.Len(t, g.Tables, 1)
	assert.Equal(t, "http://out.org/Person.csv", g.Tables[0].URL)
}

func TestOpenRDF_Formats(t *testing.T) {
	turtle := `@prefix ex: <http://ex.org/> .
ex:alice a ex:Person ; ex:name "Alice" .
`
	rdfxml := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#" xmlns:ex="http://ex.org/">
  <ex:Person rdf:about="http://ex.org/alice"><ex:name>Alice</ex:name></ex:Person>
</rdf:RDF>`
	fs := files{
		"http://ex.org/people.ttl": turtle,
		"http://ex.org/people.rdf": rdfxml,
		"http://ex.org/people":     turtle,
	}
	for _, url := range []string{"http://ex.org/people.ttl", "http://ex.org/people.rdf", "http://ex.org/people"} {
		t.Run(url, func(t *testing.T) {
			src, err := OpenRDF(context.Background(), url, OptResolver(fs))
			require.NoError(t, err)
			g, err := InferSchema(context.Background(), src, OptBaseIRI("http://out.org/"))
			require.NoError(t, err)
			require.Len(t, g.Tables, 1)
			assert.Equal(t, "http://out.org/Person.csv", g.Tables[0].URL)
		})
	}
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	quads, _ := ConvertTabularToRDF(context.Background(), "http://ex.org/meta.json", OptResolver(fixture()), OptMetrics(m))
	_, err := stream.Collect(context.Background(), quads)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "csvw_quads_emitted_total 2")
	assert.Contains(t, rec.Body.String(), `csvw_conversions_total{direction="csv2rdf",outcome="ok"} 1`)
}
