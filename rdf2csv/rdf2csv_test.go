package rdf2csv

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/internal/metrics"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/store"
	"github.com/geoknoesis/csvw-go/store/memory"
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

func nquads(t *testing.T, doc string) rdf.Reader {
	t.Helper()
	r, err := rdf.NewReader(strings.NewReader(doc), rdf.FormatNQuads)
	require.NoError(t, err)
	return r
}

func normalize(t *testing.T, doc string) *descriptor.TableGroup {
	t.Helper()
	g, err := descriptor.Normalize(context.Background(), doc, descriptor.Options{Base: "http://ex.org/meta.json"})
	require.NoError(t, err)
	return g
}

func rows(t *testing.T, c *Converter, src rdf.Reader) []map[string]string {
	t.Helper()
	got, err := stream.Collect(context.Background(), c.Convert(context.Background(), src))
	require.NoError(t, err)
	out := make([]map[string]string, len(got))
	for i, r := range got {
		out[i] = r.Map()
	}
	return out
}

const peopleDescriptor = `{
  "@context": "http://www.w3.org/ns/csvw",
  "url": "people.csv",
  "tableSchema": {
    "aboutUrl": "http://ex.org/people/{id}",
    "columns": [
      {"name": "id", "titles": "id", "propertyUrl": "http://ex.org/id"},
      {"name": "name", "titles": "name"}
    ]
  }
}`

func TestConvert_WithDescriptor(t *testing.T) {
	src := nquads(t, `<http://ex.org/people/1> <http://ex.org/id> "1" .
<http://ex.org/people/1> <http://ex.org/people.csv#name> "Alice" .
`)
	tr := issues.New()
	c := New(Options{Descriptor: normalize(t, peopleDescriptor), Tracker: tr})

	got, err := stream.Collect(context.Background(), c.Convert(context.Background(), src))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "http://ex.org/people.csv", got[0].Table)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, []string{"id", "name"}, got[0].Titles)
	assert.Equal(t, map[string]string{"id": "1", "name": "Alice"}, got[0].Map())
	assert.Empty(t, tr.Issues())
}

func TestConvert_RecoversAboutColumn(t *testing.T) {
	doc := `{
	  "@context": "http://www.w3.org/ns/csvw",
	  "url": "p.csv",
	  "tableSchema": {
	    "aboutUrl": "http://ex.org/p/{id}",
	    "columns": [
	      {"name": "id"},
	      {"name": "tags", "separator": ";", "ordered": true, "propertyUrl": "http://ex.org/tags"},
	      {"name": "friend", "propertyUrl": "http://ex.org/friend", "valueUrl": "http://ex.org/p/{friend}"},
	      {"name": "age", "propertyUrl": "http://ex.org/age", "datatype": "integer", "null": "-"}
	    ]
	  }
	}`
	src := nquads(t, `<http://ex.org/p/1> <http://ex.org/tags> _:l1 .
_:l1 <http://www.w3.org/1999/02/22-rdf-syntax-ns#first> "a" .
_:l1 <http://www.w3.org/1999/02/22-rdf-syntax-ns#rest> _:l2 .
_:l2 <http://www.w3.org/1999/02/22-rdf-syntax-ns#first> "b" .
_:l2 <http://www.w3.org/1999/02/22-rdf-syntax-ns#rest> <http://www.w3.org/1999/02/22-rdf-syntax-ns#nil> .
<http://ex.org/p/1> <http://ex.org/friend> <http://ex.org/p/2> .
`)
	c := New(Options{Descriptor: normalize(t, doc)})

	assert.Equal(t, []map[string]string{
		{"id": "1", "tags": "a;b", "friend": "2", "age": "-"},
	}, rows(t, c, src))
}

func TestConvert_MultipleValuesWithoutSeparator(t *testing.T) {
	src := nquads(t, `<http://ex.org/people/1> <http://ex.org/people.csv#name> "Alice" .
<http://ex.org/people/1> <http://ex.org/people.csv#name> "Ally" .
`)
	tr := issues.New()
	c := New(Options{Descriptor: normalize(t, peopleDescriptor), Tracker: tr})

	assert.Equal(t, []map[string]string{{"id": "1", "name": "Alice"}}, rows(t, c, src))
	require.Len(t, tr.Warnings(), 1)
	assert.Contains(t, tr.Warnings()[0].Message, `column "name" has 2 values`)
	require.NotNil(t, tr.Warnings()[0].Location.Table)
	assert.Equal(t, "http://ex.org/people.csv", *tr.Warnings()[0].Location.Table)
}

const personInput = `<http://ex.org/alice> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ex.org/Person> .
<http://ex.org/alice> <http://ex.org/name> "Alice" .
<http://ex.org/bob> <http://www.w3.org/1999/02/22-rdf-syntax-ns#type> <http://ex.org/Person> .
<http://ex.org/bob> <http://ex.org/name> "Bob" .
`

const typedInput = personInput + `<http://ex.org/paris> <http://ex.org/label> "Paris"@fr .
`

func TestConvert_Inferred(t *testing.T) {
	c := New(Options{Base: "http://out.org/"})

	got, err := stream.Collect(context.Background(), c.Convert(context.Background(), nquads(t, typedInput)))
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "http://out.org/Person.csv", got[0].Table)
	assert.Equal(t, []string{"id", "name"}, got[0].Titles)
	assert.Equal(t, []string{"http://ex.org/alice", "Alice"}, got[0].Cells)
	assert.Equal(t, []string{"http://ex.org/bob", "Bob"}, got[1].Cells)
	assert.Equal(t, 2, got[1].Number)

	assert.Equal(t, "http://out.org/table2.csv", got[2].Table)
	assert.Equal(t, []string{"http://ex.org/paris", "Paris"}, got[2].Cells)
	assert.Equal(t, 1, got[2].Number)
}

func TestConvert_Windowed(t *testing.T) {
	unbounded := rows(t, New(Options{Base: "http://out.org/"}), nquads(t, personInput))

	m := metrics.New()
	c := New(Options{Base: "http://out.org/", WindowSize: 2, StepSize: 1, Metrics: m})
	windowed := rows(t, c, nquads(t, personInput))

	assert.Equal(t, unbounded, windowed)
	assert.Len(t, windowed, 2)
}

func TestConvert_WindowedScatteredSubject(t *testing.T) {
	input := `<http://ex.org/people/1> <http://ex.org/id> "1" .
<http://ex.org/people/2> <http://ex.org/id> "2" .
<http://ex.org/people/3> <http://ex.org/id> "3" .
<http://ex.org/people/1> <http://ex.org/people.csv#name> "Alice" .
`
	tr := issues.New()
	unbounded := rows(t, New(Options{Descriptor: normalize(t, peopleDescriptor), Tracker: tr}), nquads(t, input))
	assert.ElementsMatch(t, []map[string]string{
		{"id": "1", "name": "Alice"},
		{"id": "2", "name": ""},
		{"id": "3", "name": ""},
	}, unbounded)
	assert.Empty(t, tr.Warnings())

	tr = issues.New()
	c := New(Options{Descriptor: normalize(t, peopleDescriptor), Tracker: tr, WindowSize: 2, StepSize: 1})
	windowed := rows(t, c, nquads(t, input))
	assert.Len(t, windowed, 4)

	require.Len(t, tr.Warnings(), 1)
	assert.Contains(t, tr.Warnings()[0].Message, "<http://ex.org/people/1> reappears")
	assert.Nil(t, tr.Warnings()[0].Location.Table)
}

func TestConvert_WindowedContiguousSubjectsDoNotWarn(t *testing.T) {
	tr := issues.New()
	c := New(Options{Base: "http://out.org/", WindowSize: 2, StepSize: 1, Tracker: tr})
	rows(t, c, nquads(t, personInput))
	for _, w := range tr.Warnings() {
		assert.NotContains(t, w.Message, "reappears")
	}
}

// boundedStore fails when more than limit quads are resident.
type boundedStore struct {
	store.Store
	limit int
	n     int
}

func (b *boundedStore) Put(ctx context.Context, q rdf.Quad) error {
	b.n++
	if b.n > b.limit {
		return errors.New("window overflow")
	}
	return b.Store.Put(ctx, q)
}

func (b *boundedStore) Delete(ctx context.Context, q rdf.Quad) error {
	b.n--
	return b.Store.Delete(ctx, q)
}

func TestConvert_WindowIsBounded(t *testing.T) {
	var b strings.Builder
	for i := range 50 {
		b.WriteString(`<http://ex.org/s` + string(rune('a'+i%26)) + `> <http://ex.org/p` + string(rune('a'+i/26)) + `> "v" .` + "\n")
	}
	c := New(Options{
		WindowSize: 5,
		StepSize:   2,
		Store: func(context.Context) (store.Store, error) {
			return &boundedStore{Store: memory.New(), limit: 5}, nil
		},
	})

	_, err := stream.Collect(context.Background(), c.Convert(context.Background(), nquads(t, b.String())))
	require.NoError(t, err)
}

func TestConvert_StoreFailure(t *testing.T) {
	c := New(Options{Store: func(context.Context) (store.Store, error) {
		return nil, errors.New("connection refused")
	}})

	_, err := stream.Collect(context.Background(), c.Convert(context.Background(), nquads(t, typedInput)))
	require.Error(t, err)
	assert.True(t, errs.IsStore(err))
}

func TestConvert_ParseFailure(t *testing.T) {
	c := New(Options{})
	_, err := stream.Collect(context.Background(), c.Convert(context.Background(), nquads(t, "<http://ex.org/a> oops .\n")))
	require.Error(t, err)
	assert.True(t, errs.IsParse(err))
}

func TestConvert_EmptyInput(t *testing.T) {
	tr := issues.New()
	c := New(Options{Tracker: tr})
	assert.Empty(t, rows(t, c, nquads(t, "")))
	assert.Empty(t, tr.Issues())
}

func TestConvert_VocabLabels(t *testing.T) {
	fs := files{
		"http://ex.org/vocab": `<http://ex.org/vocab#name> <http://www.w3.org/2004/02/skos/core#prefLabel> "Name" .
<http://ex.org/vocab#name> <http://www.w3.org/2000/01/rdf-schema#label> "Full name" .
`,
	}
	src := nquads(t, `<http://ex.org/alice> <http://ex.org/vocab#name> "Alice" .
<http://ex.org/alice> <http://ex.org/other#age> "42" .
`)
	tr := issues.New()
	c := New(Options{UseVocabMetadata: true, Resolver: fs, Tracker: tr})

	got, err := stream.Collect(context.Background(), c.Convert(context.Background(), src))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"id", "age", "Full name"}, got[0].Titles)
	require.Len(t, tr.Warnings(), 1)
	assert.Contains(t, tr.Warnings()[0].Message, "cannot load vocabulary http://ex.org/other")
}

func TestInferSchema(t *testing.T) {
	g, err := New(Options{Base: "http://out.org/"}).InferSchema(context.Background(), nquads(t, typedInput))
	require.NoError(t, err)
	require.Len(t, g.Tables, 2)
	assert.Equal(t, "http://out.org/Person.csv", g.Tables[0].URL)

	g, err = New(Options{Base: "http://out.org/", WindowSize: 2}).InferSchema(context.Background(), nquads(t, typedInput))
	require.NoError(t, err)
	require.Len(t, g.Tables, 1)
	assert.Equal(t, []string{"id", "name", "type"}, g.Tables[0].ColumnNames())
}

type buffer struct{ strings.Builder }

func (*buffer) Close() error { return nil }

func TestWriteCSV(t *testing.T) {
	in := []TableRow{
		{Table: "a.csv", Number: 1, Titles: []string{"id", "note"}, Cells: []string{"1", "hello, world"}},
		{Table: "b.csv", Number: 1, Titles: []string{"x"}, Cells: []string{"y"}},
		{Table: "a.csv", Number: 2, Titles: []string{"id", "note"}, Cells: []string{"2", `say "hi"`}},
	}
	out := make(map[string]*buffer)
	open := func(table string) (io.WriteCloser, error) {
		out[table] = &buffer{}
		return out[table], nil
	}

	err := WriteCSV(context.Background(), stream.FromSlice(context.Background(), in), open, nil)
	require.NoError(t, err)
	assert.Equal(t, "id,note\r\n1,\"hello, world\"\r\n2,\"say \"\"hi\"\"\"\r\n", out["a.csv"].String())
	assert.Equal(t, "x\r\ny\r\n", out["b.csv"].String())
}

func TestWriteCSV_OpenFailure(t *testing.T) {
	in := []TableRow{{Table: "a.csv", Titles: []string{"id"}, Cells: []string{"1"}}}
	open := func(string) (io.WriteCloser, error) { return nil, errors.New("read-only") }

	err := WriteCSV(context.Background(), stream.FromSlice(context.Background(), in), open, nil)
	require.Error(t, err)
	assert.Equal(t, errs.KindIO, errs.KindOf(err))
}
