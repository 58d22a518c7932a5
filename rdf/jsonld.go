package rdf

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	ld "github.com/piprate/json-gold/ld"
)

// DocumentLoader resolves remote JSON-LD contexts and documents.
type DocumentLoader interface {
	LoadDocument(ctx context.Context, iri string) (RemoteDocument, error)
}

// RemoteDocument represents a fetched JSON-LD document.
type RemoteDocument struct {
	DocumentURL string
	Document    any
	ContextURL  string
}

// ToRDF converts a parsed JSON-LD document to quads.
func ToRDF(ctx context.Context, doc any, opts Options) ([]Quad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proc := ld.NewJsonLdProcessor()
	result, err := proc.ToRDF(doc, newJSONGoldOptions(ctx, opts))
	if err != nil {
		return nil, fmt.Errorf("jsonld: %w", err)
	}
	dataset, ok := result.(*ld.RDFDataset)
	if !ok {
		return nil, fmt.Errorf("jsonld: unexpected ToRDF result %T", result)
	}
	serializer := &ld.NQuadRDFSerializer{}
	serialized, err := serializer.Serialize(dataset)
	if err != nil {
		return nil, fmt.Errorf("jsonld: %w", err)
	}
	nquads, ok := serialized.(string)
	if !ok {
		return nil, fmt.Errorf("jsonld: unexpected N-Quads result %T", serialized)
	}

	var quads []Quad
	dec := newNTDecoder(strings.NewReader(nquads), FormatNQuads, Options{Context: ctx})
	for {
		q, err := dec.Next()
		if err == io.EOF {
			return quads, nil
		}
		if err != nil {
			return nil, err
		}
		quads = append(quads, q)
	}
}

// FromRDF converts quads to an expanded JSON-LD document, compacted against
// opts.Prefixes when any are set.
func FromRDF(ctx context.Context, quads []Quad, opts Options) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var b strings.Builder
	for _, q := range quads {
		b.WriteString(q.String())
		b.WriteByte('\n')
	}
	proc := ld.NewJsonLdProcessor()
	goldOpts := newJSONGoldOptions(ctx, opts)
	goldOpts.Format = "application/n-quads"
	expanded, err := proc.FromRDF(b.String(), goldOpts)
	if err != nil {
		return nil, fmt.Errorf("jsonld: %w", err)
	}
	if len(opts.Prefixes) == 0 {
		return expanded, nil
	}
	jsonCtx := make(map[string]any, len(opts.Prefixes))
	for prefix, ns := range opts.Prefixes {
		jsonCtx[prefix] = ns
	}
	compacted, err := proc.Compact(expanded, map[string]any{"@context": jsonCtx}, newJSONGoldOptions(ctx, opts))
	if err != nil {
		return nil, fmt.Errorf("jsonld: %w", err)
	}
	return compacted, nil
}

// jsonldDecoder reads the whole document, converts it, then replays the quads.
type jsonldDecoder struct {
	quads []Quad
	index int
	err   error
}

func newJSONLDDecoder(r io.Reader, opts Options) *jsonldDecoder {
	dec := &jsonldDecoder{}
	var doc any
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		dec.err = newParseError(FormatJSONLD, "", 0, 0, err)
		return dec
	}
	quads, err := ToRDF(opts.Context, doc, opts)
	if err != nil {
		dec.err = err
		return dec
	}
	if opts.MaxQuads > 0 && int64(len(quads)) > opts.MaxQuads {
		dec.err = ErrQuadLimitExceeded
		return dec
	}
	dec.quads = quads
	return dec
}

func (d *jsonldDecoder) Next() (Quad, error) {
	if d.err != nil {
		return Quad{}, d.err
	}
	if d.index >= len(d.quads) {
		return Quad{}, io.EOF
	}
	q := d.quads[d.index]
	d.index++
	return q, nil
}

func (d *jsonldDecoder) Close() error {
	d.quads = nil
	return nil
}

// jsonldEncoder buffers quads and writes one document on Close.
type jsonldEncoder struct {
	writer *bufio.Writer
	opts   Options
	quads  []Quad
	closed bool
	err    error
}

func newJSONLDEncoder(w io.Writer, opts Options) *jsonldEncoder {
	return &jsonldEncoder{writer: bufio.NewWriter(w), opts: opts}
}

func (e *jsonldEncoder) Write(q Quad) error {
	if e.err != nil {
		return e.err
	}
	if e.closed {
		return ErrWriterClosed
	}
	e.quads = append(e.quads, q)
	return nil
}

// Flush is a no-op until Close: JSON-LD output is a single document.
func (e *jsonldEncoder) Flush() error {
	return e.err
}

func (e *jsonldEncoder) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true
	doc, err := FromRDF(e.opts.Context, e.quads, e.opts)
	if err != nil {
		e.err = err
		return err
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		e.err = err
		return err
	}
	if _, err := e.writer.Write(append(out, '\n')); err != nil {
		e.err = err
		return err
	}
	e.err = e.writer.Flush()
	return e.err
}

type jsonGoldDocumentLoader struct {
	ctx   context.Context
	inner DocumentLoader
}

func (l jsonGoldDocumentLoader) LoadDocument(iri string) (*ld.RemoteDocument, error) {
	remote, err := l.inner.LoadDocument(l.ctx, iri)
	if err != nil {
		return nil, err
	}
	return &ld.RemoteDocument{
		DocumentURL: remote.DocumentURL,
		Document:    remote.Document,
		ContextURL:  remote.ContextURL,
	}, nil
}

func newJSONGoldOptions(ctx context.Context, opts Options) *ld.JsonLdOptions {
	goldOpts := ld.NewJsonLdOptions(opts.Base)
	if opts.Base != "" {
		goldOpts.Base = opts.Base
	}
	if opts.DocumentLoader != nil {
		goldOpts.DocumentLoader = jsonGoldDocumentLoader{ctx: ctx, inner: opts.DocumentLoader}
	} else {
		goldOpts.DocumentLoader = ld.NewDefaultDocumentLoader(nil)
	}
	return goldOpts
}
