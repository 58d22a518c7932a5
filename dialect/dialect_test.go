package dialect

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/errs"
)

func readAll(t *testing.T, r *Reader) []Row {
	t.Helper()
	var rows []Row
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows
		}
		require.NoError(t, err)
		rows = append(rows, row)
	}
}

func cells(rows []Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.Cells
	}
	return out
}

func TestReader_Default(t *testing.T) {
	input := "\ufeffid,name\r\n1,Alice\n# a comment\n2,\"Smith, \"\"Bob\"\"\"\n3,\"multi\nline\"\n"
	r, err := NewReader(strings.NewReader(input), nil)
	require.NoError(t, err)

	titles, err := r.Titles()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"id"}, {"name"}}, titles)

	rows := readAll(t, r)
	assert.Equal(t, [][]string{
		{"1", "Alice"},
		{"2", `Smith, "Bob"`},
		{"3", "multi\nline"},
	}, cells(rows))
	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, 2, rows[0].SourceNumber)
	assert.Equal(t, 2, rows[1].Number)
	assert.Equal(t, 4, rows[1].SourceNumber)
	assert.Equal(t, []string{"a comment"}, r.Comments())
}

func TestReader_Dialects(t *testing.T) {
	tests := []struct {
		name    string
		dialect func(d *descriptor.Dialect)
		input   string
		want    [][]string
	}{
		{
			name:    "tab delimited no header",
			dialect: func(d *descriptor.Dialect) { d.Delimiter = "\t"; d.Header = false; d.HeaderRowCount = 0 },
			input:   "a\tb\nc\td",
			want:    [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:    "single quote with backslash escape",
			dialect: func(d *descriptor.Dialect) { d.QuoteChar = "'"; d.DoubleQuote = false; d.HeaderRowCount = 0 },
			input:   `'it\'s',x` + "\n",
			want:    [][]string{{"it's", "x"}},
		},
		{
			name:    "skip rows, columns and blank rows",
			dialect: func(d *descriptor.Dialect) { d.SkipRows = 1; d.SkipColumns = 1; d.SkipBlankRows = true },
			input:   "generated by tool\nrow,h1,h2\n1,a,b\n,,\n2,c,d\n",
			want:    [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:    "no trim",
			dialect: func(d *descriptor.Dialect) { d.Trim = "false"; d.HeaderRowCount = 0 },
			input:   " a , b \n",
			want:    [][]string{{" a ", " b "}},
		},
		{
			name:    "trim start",
			dialect: func(d *descriptor.Dialect) { d.Trim = "start"; d.HeaderRowCount = 0 },
			input:   " a , b \n",
			want:    [][]string{{"a ", "b "}},
		},
		{
			name:    "skip initial space before quote",
			dialect: func(d *descriptor.Dialect) { d.SkipInitialSpace = true; d.Trim = "false"; d.HeaderRowCount = 0 },
			input:   `a,  "b,c"` + "\n",
			want:    [][]string{{"a", "b,c"}},
		},
		{
			name:    "custom terminator",
			dialect: func(d *descriptor.Dialect) { d.LineTerminators = []string{"|"}; d.HeaderRowCount = 0 },
			input:   "a,b|c,d|",
			want:    [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:    "multi character delimiter",
			dialect: func(d *descriptor.Dialect) { d.Delimiter = "::"; d.HeaderRowCount = 0 },
			input:   "a::b:c\n",
			want:    [][]string{{"a", "b:c"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := descriptor.DefaultDialect()
			tt.dialect(d)
			r, err := NewReader(strings.NewReader(tt.input), d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cells(readAll(t, r)))
		})
	}
}

func TestReader_MultipleHeaderRows(t *testing.T) {
	d := descriptor.DefaultDialect()
	d.HeaderRowCount = 2
	r, err := NewReader(strings.NewReader("a,b\nA,\n1,2\n"), d)
	require.NoError(t, err)
	titles, err := r.Titles()
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "A"}, {"b"}}, titles)
	assert.Equal(t, [][]string{{"1", "2"}}, cells(readAll(t, r)))
}

func TestReader_UnterminatedQuote(t *testing.T) {
	r, err := NewReader(strings.NewReader("id\n\"open\n"), nil)
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnterminatedQuote)
	assert.True(t, errs.IsParse(err))
}

func TestReader_Encoding(t *testing.T) {
	latin1, err := charmap.ISO8859_1.NewEncoder().String("name\ncafé\n")
	require.NoError(t, err)
	d := descriptor.DefaultDialect()
	d.Encoding = "iso-8859-1"
	r, err := NewReader(strings.NewReader(latin1), d)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"café"}}, cells(readAll(t, r)))
}

func TestWriter_RoundTrip(t *testing.T) {
	rows := [][]string{
		{"id", "note"},
		{"1", "plain"},
		{"2", "has, comma"},
		{"3", `has "quotes"`},
		{"4", "two\nlines"},
		{"5", ""},
		{"#6", " padded "},
	}
	dialects := map[string]func(d *descriptor.Dialect){
		"default":   func(*descriptor.Dialect) {},
		"semicolon": func(d *descriptor.Dialect) { d.Delimiter = ";"; d.LineTerminators = []string{"\r\n"} },
		"backslash": func(d *descriptor.Dialect) { d.DoubleQuote = false; d.QuoteChar = "'" },
		"latin1":    func(d *descriptor.Dialect) { d.Encoding = "windows-1252" },
	}
	for name, mutate := range dialects {
		t.Run(name, func(t *testing.T) {
			d := descriptor.DefaultDialect()
			mutate(d)
			d.Trim = "false"
			var buf bytes.Buffer
			w, err := NewWriter(&buf, d)
			require.NoError(t, err)
			require.NoError(t, w.WriteHeader(rows[0]))
			for _, row := range rows[1:] {
				require.NoError(t, w.Write(row))
			}
			require.NoError(t, w.Close())

			r, err := NewReader(&buf, d)
			require.NoError(t, err)
			header, err := r.Header()
			require.NoError(t, err)
			assert.Equal(t, [][]string{rows[0]}, header)
			assert.Equal(t, rows[1:], cells(readAll(t, r)))
		})
	}
}
