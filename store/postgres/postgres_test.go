package postgres

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/store"
	"github.com/geoknoesis/csvw-go/stream"
)

func TestMatchQuery(t *testing.T) {
	sql, args := matchQuery(`"q"`, "scope-1", store.Pattern{
		S: rdf.IRI{Value: "http://ex.org/a"},
		O: rdf.NewLiteral("1", ""),
	})
	assert.Equal(t, `SELECT qkey FROM "q" WHERE scope = $1 AND s = $2 AND o = $3 ORDER BY seq`, sql)
	assert.Equal(t, []any{"scope-1", "<http://ex.org/a>", `"1"`}, args)
}

func TestDecodeKeys(t *testing.T) {
	quads := []rdf.Quad{
		{S: rdf.IRI{Value: "http://ex.org/a"}, P: rdf.IRI{Value: "http://ex.org/p"}, O: rdf.NewLangLiteral("chat", "fr")},
		{S: rdf.BlankNode{ID: "b1"}, P: rdf.IRI{Value: "http://ex.org/p"}, O: rdf.IRI{Value: "http://ex.org/o"}, G: rdf.IRI{Value: "http://ex.org/g"}},
	}
	keys := []string{quads[0].Key(), quads[1].Key()}
	got, err := decodeKeys(t.Context(), keys)
	require.NoError(t, err)
	assert.Equal(t, quads, got)

	got, err = decodeKeys(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil, "x"))
	assert.True(t, errs.IsStore(mapError(assert.AnError, "x")))
}

// TestStore_Contract runs against a live database when
// CSVW_TEST_POSTGRES_DSN is set.
func TestStore_Contract(t *testing.T) {
	dsn := os.Getenv("CSVW_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CSVW_TEST_POSTGRES_DSN not set")
	}
	ctx := t.Context()
	st, err := New(ctx, DefaultConfig(dsn))
	require.NoError(t, err)
	defer st.Close()

	a := rdf.Quad{S: rdf.IRI{Value: "http://ex.org/a"}, P: rdf.IRI{Value: "http://ex.org/name"}, O: rdf.NewLiteral("Alice", "")}
	b := rdf.Quad{S: rdf.IRI{Value: "http://ex.org/b"}, P: rdf.IRI{Value: "http://ex.org/name"}, O: rdf.NewLiteral("Bob", "")}

	n, err := st.PutStream(ctx, stream.FromSlice(ctx, []rdf.Quad{a, b, a}))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	size, err := st.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	got, err := st.Match(ctx, store.Pattern{P: rdf.IRI{Value: "http://ex.org/name"}})
	require.NoError(t, err)
	assert.Equal(t, []rdf.Quad{a, b}, got)

	require.NoError(t, st.Delete(ctx, a))
	require.NoError(t, st.Delete(ctx, a))
	assert.ErrorIs(t, st.Delete(ctx, a), store.ErrNotFound)

	got, err = st.Match(ctx, store.Pattern{})
	require.NoError(t, err)
	assert.Equal(t, []rdf.Quad{b}, got)
}
