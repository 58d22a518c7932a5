// Package dialect reads and writes CSV text as described by a CSVW dialect:
// delimiter, quoting, encoding, line terminators, comment lines, skipped rows
// and columns, header rows and trimming.
package dialect

import (
	"bufio"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/encoding/htmlindex"
	xunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/errs"
)

// ErrUnterminatedQuote is the cause of a parse error for a quoted value
// that runs to the end of the input.
var ErrUnterminatedQuote = errors.New("dialect: unterminated quoted value")

// Row is one data row.
type Row struct {
	// Number is the 1-based position among data rows.
	Number int
	// SourceNumber is the 1-based record number in the file, counting
	// skipped, comment and header rows.
	SourceNumber int
	Cells        []string
}

// Reader reads rows from CSV text. It is not safe for concurrent use.
type Reader struct {
	d           *descriptor.Dialect
	br          *bufio.Reader
	terminators []string

	headerRead bool
	header     [][]string
	comments   []string
	source     int
	rows       int
}

// NewReader decodes r with the dialect encoding, skipping any byte order
// mark. A nil dialect uses the defaults.
func NewReader(r io.Reader, d *descriptor.Dialect) (*Reader, error) {
	if d == nil {
		d = descriptor.DefaultDialect()
	}
	enc, err := htmlindex.Get(d.Encoding)
	if err != nil {
		return nil, errs.Wrap(errs.KindStructural, "unsupported encoding "+d.Encoding, err)
	}
	decoded := transform.NewReader(r, xunicode.BOMOverride(enc.NewDecoder()))

	terms := append([]string(nil), d.LineTerminators...)
	if len(terms) == 0 {
		terms = descriptor.DefaultDialect().LineTerminators
	}
	sort.SliceStable(terms, func(i, j int) bool { return len(terms[i]) > len(terms[j]) })

	return &Reader{d: d, br: bufio.NewReader(decoded), terminators: terms}, nil
}

// Header consumes the skipped rows and the header rows and returns the
// header rows with skipColumns applied. It is called by the first Next.
func (r *Reader) Header() ([][]string, error) {
	if r.headerRead {
		return r.header, nil
	}
	r.headerRead = true
	for i := 0; i < r.d.SkipRows; i++ {
		line, err := r.readLine()
		if err != nil {
			return nil, r.eofOK(err)
		}
		r.comments = append(r.comments, line)
	}
	for len(r.header) < r.d.HeaderRowCount {
		cells, err := r.readRecord()
		if err != nil {
			return r.header, r.eofOK(err)
		}
		if cells == nil {
			continue
		}
		r.header = append(r.header, r.postProcess(cells))
	}
	return r.header, nil
}

// Titles returns the titles for each column gathered from every header row.
func (r *Reader) Titles() ([][]string, error) {
	header, err := r.Header()
	if err != nil {
		return nil, err
	}
	var titles [][]string
	for _, row := range header {
		for i, cell := range row {
			for len(titles) <= i {
				titles = append(titles, nil)
			}
			if cell != "" {
				titles[i] = append(titles[i], cell)
			}
		}
	}
	return titles, nil
}

// Next returns the next data row, or io.EOF.
func (r *Reader) Next() (Row, error) {
	if _, err := r.Header(); err != nil {
		return Row{}, err
	}
	for {
		cells, err := r.readRecord()
		if err != nil {
			return Row{}, err
		}
		if cells == nil {
			continue
		}
		cells = r.postProcess(cells)
		if r.d.SkipBlankRows && blank(cells) {
			continue
		}
		r.rows++
		return Row{Number: r.rows, SourceNumber: r.source, Cells: cells}, nil
	}
}

// Comments returns the skipped rows and comment lines seen so far.
func (r *Reader) Comments() []string {
	return r.comments
}

func (r *Reader) eofOK(err error) error {
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (r *Reader) postProcess(cells []string) []string {
	if r.d.SkipColumns > 0 {
		if r.d.SkipColumns >= len(cells) {
			cells = nil
		} else {
			cells = cells[r.d.SkipColumns:]
		}
	}
	for i, c := range cells {
		cells[i] = trim(c, r.d.Trim)
	}
	return cells
}

func trim(s, mode string) string {
	switch mode {
	case "true":
		return strings.TrimSpace(s)
	case "start":
		return strings.TrimLeftFunc(s, unicode.IsSpace)
	case "end":
		return strings.TrimRightFunc(s, unicode.IsSpace)
	default:
		return s
	}
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// consume reports whether the input continues with s, consuming it if so.
func (r *Reader) consume(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	b, err := r.br.Peek(len(s))
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	if string(b) != s {
		return false, nil
	}
	_, err = r.br.Discard(len(s))
	return true, err
}

func (r *Reader) consumeTerminator() (bool, error) {
	for _, t := range r.terminators {
		ok, err := r.consume(t)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

// readLine reads raw text up to the next line terminator.
func (r *Reader) readLine() (string, error) {
	var b strings.Builder
	for {
		ok, err := r.consumeTerminator()
		if err != nil {
			return "", err
		}
		if ok {
			r.source++
			return b.String(), nil
		}
		ch, _, err := r.br.ReadRune()
		if errors.Is(err, io.EOF) {
			if b.Len() == 0 {
				return "", io.EOF
			}
			r.source++
			return b.String(), nil
		}
		if err != nil {
			return "", err
		}
		b.WriteRune(ch)
	}
}

// readRecord reads one record. It returns nil cells for a comment line.
func (r *Reader) readRecord() ([]string, error) {
	if _, err := r.br.Peek(1); errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	if ok, err := r.consume(r.d.CommentPrefix); err != nil {
		return nil, err
	} else if ok {
		line, err := r.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		r.comments = append(r.comments, strings.TrimSpace(line))
		return nil, nil
	}

	r.source++
	start := r.source
	var (
		cells   []string
		field   strings.Builder
		atStart = true
	)
	for {
		if atStart && r.d.SkipInitialSpace {
			for {
				ch, _, err := r.br.ReadRune()
				if err != nil {
					break
				}
				if ch != ' ' && ch != '\t' {
					_ = r.br.UnreadRune()
					break
				}
			}
		}
		if atStart {
			quoted, err := r.consume(r.d.QuoteChar)
			if err != nil {
				return nil, err
			}
			if quoted {
				if err := r.readQuoted(&field, start); err != nil {
					return nil, err
				}
			}
			atStart = false
		}

		if ok, err := r.consume(r.d.Delimiter); err != nil {
			return nil, err
		} else if ok {
			cells = append(cells, field.String())
			field.Reset()
			atStart = true
			continue
		}
		if ok, err := r.consumeTerminator(); err != nil {
			return nil, err
		} else if ok {
			return append(cells, field.String()), nil
		}
		ch, _, err := r.br.ReadRune()
		if errors.Is(err, io.EOF) {
			return append(cells, field.String()), nil
		}
		if err != nil {
			return nil, err
		}
		field.WriteRune(ch)
	}
}

func (r *Reader) readQuoted(field *strings.Builder, start int) error {
	q := r.d.QuoteChar
	for {
		if r.d.DoubleQuote {
			if ok, err := r.consume(q + q); err != nil {
				return err
			} else if ok {
				field.WriteString(q)
				continue
			}
		}
		if ok, err := r.consume(q); err != nil {
			return err
		} else if ok {
			return nil
		}
		ch, _, err := r.br.ReadRune()
		if errors.Is(err, io.EOF) {
			return errs.Wrap(errs.KindParse, "row "+strconv.Itoa(start), ErrUnterminatedQuote)
		}
		if err != nil {
			return err
		}
		if !r.d.DoubleQuote && ch == '\\' {
			next, _, err := r.br.ReadRune()
			if err != nil {
				return errs.Wrap(errs.KindParse, "row "+strconv.Itoa(start), ErrUnterminatedQuote)
			}
			ch = next
		}
		field.WriteRune(ch)
	}
}
