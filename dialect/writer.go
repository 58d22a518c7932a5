package dialect

import (
	"bufio"
	"io"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/errs"
)

// Writer writes rows using a dialect. Rows end with the first line
// terminator of the dialect.
type Writer struct {
	d      *descriptor.Dialect
	bw     *bufio.Writer
	closer io.Closer
	eol    string
}

// NewWriter encodes output with the dialect encoding. A nil dialect uses
// the defaults.
func NewWriter(w io.Writer, d *descriptor.Dialect) (*Writer, error) {
	if d == nil {
		d = descriptor.DefaultDialect()
	}
	enc, err := htmlindex.Get(d.Encoding)
	if err != nil {
		return nil, errs.Wrap(errs.KindStructural, "unsupported encoding "+d.Encoding, err)
	}
	eol := "\n"
	if len(d.LineTerminators) > 0 {
		eol = d.LineTerminators[0]
	}
	out := &Writer{d: d, eol: eol}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		out.bw = bufio.NewWriter(w)
	} else {
		tw := transform.NewWriter(w, enc.NewEncoder())
		out.bw = bufio.NewWriter(tw)
		out.closer = tw
	}
	return out, nil
}

// Write writes one row, quoting cells where needed.
func (w *Writer) Write(cells []string) error {
	for i, c := range cells {
		if i > 0 {
			if _, err := w.bw.WriteString(w.d.Delimiter); err != nil {
				return err
			}
		}
		if _, err := w.bw.WriteString(w.quote(c)); err != nil {
			return err
		}
	}
	_, err := w.bw.WriteString(w.eol)
	return err
}

// WriteHeader writes a header row when the dialect has one.
func (w *Writer) WriteHeader(titles []string) error {
	if !w.d.Header || w.d.HeaderRowCount == 0 {
		return nil
	}
	return w.Write(titles)
}

// Flush writes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Close flushes the writer and any encoder. It does not close the
// underlying writer.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

func (w *Writer) needsQuote(c string) bool {
	if c == "" {
		return false
	}
	if strings.Contains(c, w.d.Delimiter) || strings.ContainsAny(c, "\r\n") {
		return true
	}
	if w.d.QuoteChar != "" && strings.Contains(c, w.d.QuoteChar) {
		return true
	}
	if w.d.CommentPrefix != "" && strings.HasPrefix(c, w.d.CommentPrefix) {
		return true
	}
	return c[0] == ' ' || c[len(c)-1] == ' ' || c[0] == '\t' || c[len(c)-1] == '\t'
}

func (w *Writer) quote(c string) string {
	q := w.d.QuoteChar
	if q == "" || !w.needsQuote(c) {
		return c
	}
	if w.d.DoubleQuote {
		c = strings.ReplaceAll(c, q, q+q)
	} else {
		c = strings.ReplaceAll(c, `\`, `\\`)
		c = strings.ReplaceAll(c, q, `\`+q)
	}
	return q + c + q
}
