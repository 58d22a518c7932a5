// Package csv2rdf converts CSV tables described by CSVW metadata into RDF
// quads.
package csv2rdf

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/internal/metrics"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/resolve"
	"github.com/geoknoesis/csvw-go/stream"
)

// Options configures a Converter.
type Options struct {
	// TemplateIRIs resolves expanded aboutUrl, propertyUrl and valueUrl
	// templates against the table URL. When false the expanded text is
	// used as the IRI as is.
	TemplateIRIs bool
	// IncludeTableMetadata emits the csvw:TableGroup, csvw:Table and
	// csvw:Row structure around the cell quads.
	IncludeTableMetadata bool
	// Resolver opens CSV files and metadata documents. Nil uses a
	// resolve.Fetcher with default settings.
	Resolver resolve.Resolver
	// Tracker receives issues. Nil gives each conversion a fresh tracker.
	Tracker *issues.Tracker
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	// Buffer is the capacity of the output stream.
	Buffer int
}

// Converter runs tabular to RDF conversions. It is safe for concurrent use
// when no shared Tracker is configured.
type Converter struct {
	opts     Options
	resolver resolve.Resolver
	log      zerolog.Logger
}

// New returns a Converter.
func New(opts Options) *Converter {
	r := opts.Resolver
	if r == nil {
		r = resolve.NewFetcher(resolve.WithLogger(opts.Logger))
	}
	return &Converter{opts: opts, resolver: r, log: opts.Logger}
}

func (c *Converter) tracker() *issues.Tracker {
	if c.opts.Tracker != nil {
		return c.opts.Tracker
	}
	return issues.New()
}

// Convert streams the quads for every table of g in descriptor order. Fatal
// problems end the stream with an error after the quads already emitted;
// everything else is recorded on the tracker.
func (c *Converter) Convert(ctx context.Context, g *descriptor.TableGroup) *stream.Stream[rdf.Quad] {
	return stream.Go(ctx, c.opts.Buffer, func(ctx context.Context, emit stream.Emit[rdf.Quad]) error {
		return c.run(ctx, g, c.tracker(), emit)
	})
}

// Validate runs the conversion without output and streams the issues as
// they are raised. The stream ends with an error only for fatal problems.
func (c *Converter) Validate(ctx context.Context, g *descriptor.TableGroup) *stream.Stream[issues.Issue] {
	return stream.Go(ctx, c.opts.Buffer, func(ctx context.Context, emit stream.Emit[issues.Issue]) error {
		var (
			done    atomic.Bool
			emitErr error
		)
		tr := c.tracker()
		tr.OnIssue(func(i issues.Issue) {
			if done.Load() || emitErr != nil {
				return
			}
			emitErr = emit(i)
		})
		defer done.Store(true)

		minimal := *c
		minimal.opts.IncludeTableMetadata = false
		err := minimal.run(ctx, g, tr, func(rdf.Quad) error { return emitErr })
		if err != nil {
			return err
		}
		return emitErr
	})
}

func (c *Converter) run(ctx context.Context, g *descriptor.TableGroup, tr *issues.Tracker, emit func(rdf.Quad) error) (err error) {
	if g == nil || len(g.Tables) == 0 {
		return errs.New(errs.KindStructural, "table group has no tables")
	}
	start := time.Now()
	log := c.log.With().Str("conversion_id", uuid.NewString()).Logger()
	log.Info().Int("tables", len(g.Tables)).Msg("tabular to RDF conversion started")
	defer func() {
		c.opts.Metrics.Finished(metrics.TabularToRDF, err)
		ev := log.Info()
		if err != nil {
			ev = log.Error().Err(err)
		}
		ev.Dur("elapsed", time.Since(start)).Int("errors", len(tr.Errors())).Msg("tabular to RDF conversion finished")
	}()

	out := &output{emit: emit, metrics: c.opts.Metrics, blanks: rdf.NewBlankNodeGenerator("b")}
	keys := newKeyIndex(g)

	var groupNode rdf.Term
	if c.opts.IncludeTableMetadata {
		groupNode = nodeFor(g.ID, out.blanks)
		if err := out.groupMetadata(groupNode, g); err != nil {
			return err
		}
	}
	for _, t := range g.Tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		tc := &tableConverter{
			conv:      c,
			table:     t,
			tr:        tr,
			out:       out,
			keys:      keys,
			log:       log,
			groupNode: groupNode,
		}
		if err := tc.run(ctx); err != nil {
			tr.ClearTable()
			return err
		}
		tr.ClearTable()
	}
	keys.checkForeignKeys(tr)
	return nil
}

// output emits quads and counts them.
type output struct {
	emit    func(rdf.Quad) error
	metrics *metrics.Metrics
	blanks  *rdf.BlankNodeGenerator
}

func (o *output) put(q rdf.Quad) error {
	if err := o.emit(q); err != nil {
		return err
	}
	o.metrics.QuadEmitted()
	return nil
}

func (o *output) quad(s rdf.Term, p string, obj rdf.Term) error {
	return o.put(rdf.Quad{S: s, P: rdf.IRI{Value: p}, O: obj})
}

func nodeFor(id string, blanks *rdf.BlankNodeGenerator) rdf.Term {
	if id != "" {
		return rdf.IRI{Value: id}
	}
	return blanks.Next()
}
