package rdf

import (
	"bufio"
	"context"
	"io"
)

// Reader streams RDF quads from an input. Next returns io.EOF at the end.
type Reader interface {
	Next() (Quad, error)
	Close() error
}

// Writer streams RDF quads to an output.
// For triple-only formats, the graph (G) field is ignored.
type Writer interface {
	Write(Quad) error
	Flush() error
	Close() error
}

// Handler processes quads in push mode.
type Handler func(Quad) error

// Option configures reader/writer behavior.
type Option func(*Options)

// Options configures parser/encoder behavior.
type Options struct {
	// Context for cancellation and timeouts
	Context context.Context

	// Security limits for untrusted input
	MaxLineBytes int
	MaxQuads     int64

	// Base resolves relative IRIs in Turtle, TriG, RDF/XML and JSON-LD
	// input and is written as @base by the Turtle and TriG writers.
	Base string
	// Prefixes abbreviate IRIs in Turtle and TriG output.
	Prefixes map[string]string
	// DocumentLoader fetches remote JSON-LD contexts.
	DocumentLoader DocumentLoader
}

// NewReader creates a reader for the specified format.
// If format is FormatAuto, the format is sniffed from the first bytes.
func NewReader(r io.Reader, format Format, opts ...Option) (Reader, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if format == FormatAuto {
		br := bufio.NewReader(r)
		sample, _ := br.Peek(512)
		detected, ok := DetectFormat(sample)
		if !ok {
			return nil, ErrUnsupportedFormat
		}
		format = detected
		r = br
	}

	switch format {
	case FormatNTriples, FormatNQuads:
		return newNTDecoder(r, format, options), nil
	case FormatTurtle, FormatTriG:
		return newTurtleDecoder(r, format, options), nil
	case FormatRDFXML:
		return newRDFXMLDecoder(r, options), nil
	case FormatJSONLD:
		return newJSONLDDecoder(r, options), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...Option) (Writer, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	switch format {
	case FormatNTriples, FormatNQuads:
		return newNTEncoder(w, format), nil
	case FormatTurtle, FormatTriG:
		return newTurtleEncoder(w, format, options), nil
	case FormatJSONLD:
		return newJSONLDEncoder(w, options), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Parse parses RDF from the reader and streams quads to the handler.
func Parse(ctx context.Context, r io.Reader, format Format, handler Handler, opts ...Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	opts = append([]Option{OptContext(ctx)}, opts...)
	reader, err := NewReader(r, format, opts...)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		q, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := handler(q); err != nil {
			return err
		}
	}
}

// WriteAll writes quads and closes the writer.
func WriteAll(w Writer, quads []Quad) error {
	for _, q := range quads {
		if err := w.Write(q); err != nil {
			return err
		}
	}
	return w.Close()
}

// OptContext sets the context for cancellation and timeouts.
func OptContext(ctx context.Context) Option {
	return func(opts *Options) {
		opts.Context = ctx
	}
}

// OptMaxLineBytes sets the maximum line size limit.
func OptMaxLineBytes(maxBytes int) Option {
	return func(opts *Options) {
		opts.MaxLineBytes = maxBytes
	}
}

// OptMaxQuads sets the maximum number of quads to decode.
func OptMaxQuads(maxQuads int64) Option {
	return func(opts *Options) {
		opts.MaxQuads = maxQuads
	}
}

// OptBase sets the base IRI.
func OptBase(base string) Option {
	return func(opts *Options) {
		opts.Base = base
	}
}

// OptPrefixes sets the prefixes used to abbreviate Turtle and TriG output.
func OptPrefixes(prefixes map[string]string) Option {
	return func(opts *Options) {
		opts.Prefixes = prefixes
	}
}

// OptDocumentLoader sets the loader used for remote JSON-LD contexts.
func OptDocumentLoader(loader DocumentLoader) Option {
	return func(opts *Options) {
		opts.DocumentLoader = loader
	}
}

// Default limits. Zero disables a limit.
const (
	DefaultMaxLineBytes = 1 << 20
	DefaultMaxQuads     = 0
)

func defaultOptions() Options {
	return Options{
		Context:      context.Background(),
		MaxLineBytes: DefaultMaxLineBytes,
		MaxQuads:     DefaultMaxQuads,
	}
}
