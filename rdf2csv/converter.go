// Package rdf2csv converts an RDF quad stream into CSV rows, either loading
// the whole input into a store or keeping a bounded window of it resident.
package rdf2csv

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/internal/metrics"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/resolve"
	"github.com/geoknoesis/csvw-go/schema"
	"github.com/geoknoesis/csvw-go/store"
	"github.com/geoknoesis/csvw-go/store/memory"
	"github.com/geoknoesis/csvw-go/stream"
)

// TableRow is one output row. Cells line up with Titles.
type TableRow struct {
	// Table is the URL of the table the row belongs to.
	Table string
	// Number is the 1-based position of the row in its table.
	Number int
	Titles []string
	Cells  []string
}

// Map returns the row as title → cell.
func (r TableRow) Map() map[string]string {
	out := make(map[string]string, len(r.Titles))
	for i, t := range r.Titles {
		out[t] = r.Cells[i]
	}
	return out
}

// StoreFactory opens the store a conversion keeps its quads in.
type StoreFactory func(ctx context.Context) (store.Store, error)

// Options configures a Converter.
type Options struct {
	// WindowSize bounds the number of resident quads. Zero loads the whole
	// input.
	WindowSize int
	// StepSize is the number of quads read per window move. Zero uses
	// store.DefaultStep(WindowSize).
	StepSize int
	// Descriptor, when set, is the layout of the output tables.
	Descriptor *descriptor.TableGroup
	// Schema, when set and Descriptor is not, is locked and used as the
	// layout.
	Schema *schema.TableGroupSchema
	// Base resolves the URLs of inferred tables.
	Base string
	// UseVocabMetadata titles inferred columns with the rdfs:label or
	// skos:prefLabel of their predicate, fetched through Resolver.
	UseVocabMetadata bool
	Resolver         resolve.Resolver
	// Store opens the quad store. Nil uses an in-memory store.
	Store   StoreFactory
	Tracker *issues.Tracker
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Buffer  int
}

// Converter runs RDF to tabular conversions.
type Converter struct {
	opts Options
	log  zerolog.Logger
}

// New returns a Converter.
func New(opts Options) *Converter {
	if opts.Resolver == nil && opts.UseVocabMetadata {
		opts.Resolver = resolve.NewFetcher(resolve.WithLogger(opts.Logger))
	}
	return &Converter{opts: opts, log: opts.Logger}
}

func (c *Converter) tracker() *issues.Tracker {
	if c.opts.Tracker != nil {
		return c.opts.Tracker
	}
	return issues.New()
}

func (c *Converter) openStore(ctx context.Context) (store.Store, error) {
	if c.opts.Store == nil {
		return memory.New(), nil
	}
	st, err := c.opts.Store(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindStore, "opening quad store", err)
	}
	return st, nil
}

// Convert streams the rows described by src. Convert takes ownership of
// src and closes it.
func (c *Converter) Convert(ctx context.Context, src rdf.Reader) *stream.Stream[TableRow] {
	return stream.Go(ctx, c.opts.Buffer, func(ctx context.Context, emit stream.Emit[TableRow]) (err error) {
		tr := c.tracker()
		start := time.Now()
		log := c.log.With().Str("conversion_id", uuid.NewString()).Logger()
		log.Info().Int("window", c.opts.WindowSize).Msg("RDF to tabular conversion started")
		defer func() {
			c.opts.Metrics.Finished(metrics.RDFToTabular, err)
			ev := log.Info()
			if err != nil {
				ev = log.Error().Err(err)
			}
			ev.Dur("elapsed", time.Since(start)).Msg("RDF to tabular conversion finished")
		}()

		r := &run{conv: c, tr: tr, log: log, emit: emit}
		if c.opts.WindowSize > 0 {
			return r.windowed(ctx, src)
		}
		return r.unbounded(ctx, src)
	})
}

// InferSchema infers the table layout of src: from the whole input, or
// from the first window in windowed mode. InferSchema closes src.
func (c *Converter) InferSchema(ctx context.Context, src rdf.Reader) (*schema.TableGroupSchema, error) {
	r := &run{conv: c, tr: c.tracker(), log: c.log}
	st, err := c.openStore(ctx)
	if err != nil {
		src.Close()
		return nil, err
	}
	if c.opts.WindowSize <= 0 {
		defer st.Close()
		if _, err := load(ctx, st, src); err != nil {
			return nil, err
		}
		return r.infer(ctx, st)
	}

	w, err := c.window(st, src)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	var inferred *schema.TableGroupSchema
	w.OnEvict = func(ctx context.Context, _ rdf.Quad) error {
		inferred, err = r.infer(ctx, st)
		if err != nil {
			return err
		}
		return errWindowFull
	}
	for !w.Done() {
		if _, err := w.Move(ctx); err != nil {
			if errors.Is(err, errWindowFull) {
				return inferred, nil
			}
			return nil, err
		}
	}
	return r.infer(ctx, st)
}

var errWindowFull = errors.New("rdf2csv: first window complete")

// window wraps st in a Window. On error src and st are closed.
func (c *Converter) window(st store.Store, src rdf.Reader) (*store.Window, error) {
	size := c.opts.WindowSize
	step := c.opts.StepSize
	if step <= 0 {
		step = store.DefaultStep(size)
	}
	w, err := store.NewWindow(st, src, size, min(step, size))
	if err != nil {
		src.Close()
		st.Close()
		return nil, err
	}
	return w, nil
}

// load reads all of src into st and closes src.
func load(ctx context.Context, st store.Store, src rdf.Reader) (int, error) {
	defer src.Close()
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		q, err := src.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, errs.Wrap(errs.KindParse, "reading RDF input", err)
		}
		if err := st.Put(ctx, q); err != nil {
			return n, errs.Wrap(errs.KindStore, "storing quad", err)
		}
		n++
	}
}
