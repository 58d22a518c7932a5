package descriptor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/issues"
)

const peopleDescriptor = `{
  "@context": "http://www.w3.org/ns/csvw",
  "url": "people.csv",
  "tableSchema": {
    "aboutUrl": "#{id}",
    "columns": [
      {"name": "id", "titles": "id", "propertyUrl": "http://ex.org/id"},
      {"name": "name", "titles": "name", "datatype": "string"}
    ],
    "primaryKey": "id"
  }
}`

func normalize(t *testing.T, doc string, opts Options) (*TableGroup, *issues.Tracker) {
	t.Helper()
	if opts.Tracker == nil {
		opts.Tracker = issues.New()
	}
	g, err := Normalize(context.Background(), doc, opts)
	require.NoError(t, err)
	return g, opts.Tracker
}

func TestNormalize_SingleTable(t *testing.T) {
	g, tr := normalize(t, peopleDescriptor, Options{Base: "http://example.org/meta.json"})
	assert.Empty(t, tr.Issues())

	require.Len(t, g.Tables, 1)
	table := g.Tables[0]
	assert.Equal(t, "http://example.org/people.csv", table.URL)
	assert.Same(t, g, table.Group())
	require.Len(t, table.Schema.Columns, 2)
	assert.Equal(t, []string{"id"}, table.Schema.PrimaryKey)

	id := table.Schema.Column("id")
	require.NotNil(t, id)
	assert.Equal(t, 1, id.Number)
	assert.Same(t, table, id.Table())

	p := id.Props()
	assert.Equal(t, "#{id}", p.AboutURL)
	assert.Equal(t, "http://ex.org/id", p.PropertyURL)
	assert.Equal(t, []string{""}, p.Null)
	assert.Equal(t, "und", p.Lang)
	assert.Equal(t, "inherit", p.TextDirection)
	assert.Equal(t, "string", p.Datatype.BaseName())
}

func TestNormalize_UnknownKeyWarns(t *testing.T) {
	doc := `{"@context": "http://www.w3.org/ns/csvw", "url": "a.csv", "bogus": 1, "dc:title": "A"}`
	g, tr := normalize(t, doc, Options{})
	require.Len(t, tr.Warnings(), 1)
	assert.Contains(t, tr.Warnings()[0].Message, "bogus")
	assert.False(t, tr.HasErrors())
	assert.Equal(t, map[string]any{"dc:title": "A"}, g.Tables[0].Common)
}

func TestNormalize_EmptyTablesIsFatal(t *testing.T) {
	tr := issues.New()
	_, err := Normalize(context.Background(), `{"@context": "http://www.w3.org/ns/csvw", "tables": []}`, Options{Tracker: tr})
	require.Error(t, err)
	assert.True(t, errs.IsStructural(err))
	assert.Len(t, tr.Errors(), 1)
}

func TestNormalize_StructuralErrors(t *testing.T) {
	docs := map[string]string{
		"missing url":   `{"@context": "http://www.w3.org/ns/csvw", "tableSchema": {}}`,
		"blank node id": `{"@context": "http://www.w3.org/ns/csvw", "@id": "_:b0", "url": "a.csv"}`,
		"wrong type":    `{"@context": "http://www.w3.org/ns/csvw", "@type": "Column", "url": "a.csv"}`,
		"not an object": `[1, 2]`,
		"unknown fk target": `{"@context": "http://www.w3.org/ns/csvw", "url": "a.csv", "tableSchema": {
			"columns": [{"name": "x"}],
			"foreignKeys": [{"columnReference": "x", "reference": {"resource": "b.csv", "columnReference": "y"}}]}}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := Normalize(context.Background(), doc, Options{})
			require.Error(t, err)
			assert.True(t, errs.IsStructural(err), "got %v", err)
		})
	}
}

func TestNormalize_PrefixedKeys(t *testing.T) {
	doc := `{"@context": "http://www.w3.org/ns/csvw", "csvw:url": "a.csv",
		"http://www.w3.org/ns/csvw#tableSchema": {"csvw:columns": [{"csvw:name": "x"}]}}`
	g, _ := normalize(t, doc, Options{})
	assert.Equal(t, "a.csv", g.Tables[0].URL)
	assert.NotNil(t, g.Tables[0].Schema.Column("x"))
}

func TestNormalize_Inheritance(t *testing.T) {
	doc := `{
	  "@context": ["http://www.w3.org/ns/csvw", {"@language": "en"}],
	  "null": "-",
	  "tableSchema": {"propertyUrl": "http://ex.org/{_name}", "columns": [{"name": "a"}, {"name": "b", "null": ["NA", ""]}]},
	  "tables": [{"url": "one.csv", "lang": "fr"}, {"url": "two.csv"}]
	}`
	g, _ := normalize(t, doc, Options{})
	require.Len(t, g.Tables, 2)
	assert.Equal(t, "en", g.Language)

	a := g.Tables[0].Schema.Column("a").Props()
	assert.Equal(t, []string{"-"}, a.Null)
	assert.Equal(t, "fr", a.Lang)
	assert.Equal(t, "http://ex.org/{_name}", a.PropertyURL)

	b := g.Tables[1].Schema.Column("b").Props()
	assert.Equal(t, []string{"NA", ""}, b.Null)
	assert.True(t, b.IsNull("NA"))
	assert.Equal(t, "NA", b.NullValue())

	// Each table owns its copy of the shared schema.
	assert.NotSame(t, g.Tables[0].Schema, g.Tables[1].Schema)
	assert.Same(t, g.Tables[1], g.Tables[1].Schema.Column("a").Table())
}

func TestNormalize_NonStringTemplateIgnored(t *testing.T) {
	doc := `{
	  "@context": "http://www.w3.org/ns/csvw",
	  "aboutUrl": "#{id}",
	  "tables": [{"url": "a.csv", "aboutUrl": 5, "propertyUrl": ["x"],
	    "tableSchema": {"columns": [{"name": "id"}]}}]
	}`
	g, tr := normalize(t, doc, Options{})
	require.Len(t, tr.Warnings(), 2)
	assert.Contains(t, tr.Warnings()[0].Message, "aboutUrl must be a string")
	assert.Contains(t, tr.Warnings()[1].Message, "propertyUrl must be a string")

	p := g.Tables[0].Schema.Column("id").Props()
	assert.Equal(t, "#{id}", p.AboutURL)
	assert.Equal(t, "", p.PropertyURL)
}

func TestNormalize_Dialect(t *testing.T) {
	doc := `{"@context": "http://www.w3.org/ns/csvw", "url": "a.tsv",
		"dialect": {"delimiter": "\t", "header": false, "encoding": "ISO-8859-1", "trim": false, "lineTerminators": ["", "\n"]}}`
	g, tr := normalize(t, doc, Options{})
	d := g.Tables[0].EffectiveDialect()
	assert.Equal(t, "\t", d.Delimiter)
	assert.False(t, d.Header)
	assert.Equal(t, 0, d.HeaderRowCount)
	assert.Equal(t, "iso-8859-1", d.Encoding)
	assert.Equal(t, "false", d.Trim)
	assert.Equal(t, []string{"\n"}, d.LineTerminators)
	assert.Len(t, tr.Warnings(), 1)

	g, _ = normalize(t, `{"@context": "http://www.w3.org/ns/csvw", "url": "a.csv"}`, Options{})
	assert.Equal(t, DefaultDialect(), g.Tables[0].EffectiveDialect())
}

func TestNormalize_Datatypes(t *testing.T) {
	doc := `{"@context": "http://www.w3.org/ns/csvw", "url": "a.csv", "tableSchema": {"columns": [
		{"name": "n", "datatype": "number"},
		{"name": "d", "datatype": {"base": "decimal", "minimum": 0, "maximum": "10.5", "format": {"pattern": "#,##0.00", "groupChar": ","}}},
		{"name": "s", "datatype": {"base": "string", "minLength": 5, "maxLength": 2}},
		{"name": "u", "datatype": "nonsense"}
	]}}`
	g, tr := normalize(t, doc, Options{})
	s := g.Tables[0].Schema

	assert.Equal(t, "double", s.Column("n").Props().Datatype.BaseName())

	d := s.Column("d").Props().Datatype
	assert.Equal(t, "decimal", d.BaseName())
	require.NotNil(t, d.MinInclusive)
	assert.Equal(t, "0", *d.MinInclusive)
	assert.Equal(t, "10.5", *d.MaxInclusive)
	assert.Equal(t, "#,##0.00", d.Format)
	assert.Equal(t, ",", d.GroupChar)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema#decimal", d.IRI())

	str := s.Column("s").Props().Datatype
	assert.Nil(t, str.MinLength)
	assert.Nil(t, str.MaxLength)

	assert.Equal(t, "string", s.Column("u").Props().Datatype.BaseName())
	assert.Len(t, tr.Warnings(), 2)
}

func TestNormalize_Columns(t *testing.T) {
	doc := `{"@context": "http://www.w3.org/ns/csvw", "url": "a.csv", "tableSchema": {"columns": [
		{"titles": "First Name"},
		{"name": "_bad"},
		{"name": "dup"},
		{"name": "dup"},
		{"name": "v", "virtual": true},
		{"name": "after"}
	], "rowTitles": ["missing"]}}`
	g, tr := normalize(t, doc, Options{})
	s := g.Tables[0].Schema

	names := make([]string, 0, len(s.Columns))
	for _, c := range s.Columns {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"First%20Name", "_col.2", "dup", "v", "after"}, names)
	assert.True(t, s.Column("after").Virtual)
	assert.Nil(t, s.RowTitles)
	assert.Len(t, s.SourceColumns(), 3)

	// duplicate, non-virtual after virtual, unknown row title
	assert.Len(t, tr.Errors(), 3)
	for _, issue := range tr.Errors() {
		require.NotNil(t, issue.Location.Table)
		assert.Equal(t, "a.csv", *issue.Location.Table)
	}
}

func TestNormalize_TitlesByLanguage(t *testing.T) {
	doc := `{"@context": "http://www.w3.org/ns/csvw", "url": "a.csv", "tableSchema": {"columns": [
		{"titles": {"en": "Country", "de": ["Land", "Staat"]}}
	]}}`
	g, _ := normalize(t, doc, Options{})
	c := g.Tables[0].Schema.Columns[0]
	assert.Equal(t, []string{"Land", "Staat", "Country"}, c.Titles)
	assert.Equal(t, []string{"Country"}, c.TitlesByLang["en"])
	assert.True(t, c.HasTitle("Staat"))
	assert.Equal(t, "Land", c.Name)
}

func TestNormalize_LocalForeignKeyDropped(t *testing.T) {
	doc := `{"@context": "http://www.w3.org/ns/csvw", "tables": [
		{"url": "a.csv", "tableSchema": {"columns": [{"name": "x"}], "foreignKeys": [
			{"columnReference": "nope", "reference": {"resource": "b.csv", "columnReference": "y"}},
			{"columnReference": "x", "reference": {"resource": "b.csv", "columnReference": "y"}}
		]}},
		{"url": "b.csv", "tableSchema": {"columns": [{"name": "y"}]}}
	]}`
	g, tr := normalize(t, doc, Options{})
	require.Len(t, g.Tables[0].Schema.ForeignKeys, 1)
	assert.Equal(t, "b.csv", g.Tables[0].Schema.ForeignKeys[0].Reference.Resource)
	assert.Len(t, tr.Errors(), 1)
}

type mapFetcher map[string]any

func (m mapFetcher) ResolveJSONLD(_ context.Context, url, _ string) (any, error) {
	doc, ok := m[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return doc, nil
}

func TestNormalize_RemoteSchema(t *testing.T) {
	fetcher := mapFetcher{
		"http://example.org/schema.json": map[string]any{
			"@context": "http://www.w3.org/ns/csvw",
			"columns":  []any{map[string]any{"name": "x"}},
		},
	}
	doc := `{"@context": "http://www.w3.org/ns/csvw", "url": "a.csv", "tableSchema": "schema.json"}`
	g, _ := normalize(t, doc, Options{Base: "http://example.org/meta.json", Fetcher: fetcher})
	s := g.Tables[0].Schema
	assert.Equal(t, "http://example.org/schema.json", s.ID)
	assert.NotNil(t, s.Column("x"))

	doc = `{"@context": "http://www.w3.org/ns/csvw", "url": "a.csv", "tableSchema": "missing.json"}`
	_, err := Normalize(context.Background(), doc, Options{Base: "http://example.org/meta.json", Fetcher: fetcher})
	require.Error(t, err)
	assert.True(t, errs.IsResolution(err))
}

func TestToJSON_RoundTrip(t *testing.T) {
	g, _ := normalize(t, peopleDescriptor, Options{Base: "http://example.org/meta.json"})
	out := g.ToJSON()
	assert.Equal(t, "TableGroup", out["@type"])

	again, tr := normalize(t, string(mustMarshal(t, g)), Options{})
	assert.Empty(t, tr.Issues())
	require.Len(t, again.Tables, 1)
	assert.Equal(t, g.Tables[0].URL, again.Tables[0].URL)
	assert.Equal(t, "#{id}", again.Tables[0].Schema.Column("id").Props().AboutURL)
	assert.Equal(t, []string{"id"}, again.Tables[0].Schema.PrimaryKey)
}

func mustMarshal(t *testing.T, g *TableGroup) []byte {
	t.Helper()
	b, err := g.MarshalJSON()
	require.NoError(t, err)
	return b
}
