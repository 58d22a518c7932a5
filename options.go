package csvw

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/internal/logger"
	"github.com/geoknoesis/csvw-go/internal/metrics"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf2csv"
	"github.com/geoknoesis/csvw-go/resolve"
	"github.com/geoknoesis/csvw-go/schema"
)

// Metrics collects conversion counters on a private Prometheus registry.
type Metrics = metrics.Metrics

// NewMetrics returns a fresh set of conversion counters.
func NewMetrics() *Metrics { return metrics.New() }

// Option configures a conversion.
type Option func(*Options)

// Options holds the settings of one conversion. Use the Opt functions to
// set them.
type Options struct {
	PathOverrides        []resolve.PathOverride
	BaseIRI              string
	TemplateIRIs         bool
	Minimal              bool
	IncludeTableMetadata bool
	WindowSize           int
	StepSize             int
	UseVocabMetadata     bool
	LogLevel             string

	Resolver   resolve.Resolver
	Store      rdf2csv.StoreFactory
	Logger     *zerolog.Logger
	Metrics    *Metrics
	Tracker    *issues.Tracker
	TableGroup *descriptor.TableGroup
	Schema     *schema.TableGroupSchema
	Buffer     int
}

// OptPathOverrides rewrites resource URLs before they are fetched. The
// longest matching prefix wins.
func OptPathOverrides(overrides ...resolve.PathOverride) Option {
	return func(o *Options) { o.PathOverrides = append(o.PathOverrides, overrides...) }
}

// OptBaseIRI sets the base of relative descriptor URLs and of the tables
// produced by schema inference.
func OptBaseIRI(base string) Option {
	return func(o *Options) { o.BaseIRI = base }
}

// OptTemplateIRIs resolves expanded URI templates against the table URL.
func OptTemplateIRIs(on bool) Option {
	return func(o *Options) { o.TemplateIRIs = on }
}

// OptMinimal runs tabular conversions for validation only; no quads are
// produced.
func OptMinimal(on bool) Option {
	return func(o *Options) { o.Minimal = on }
}

// OptIncludeTableMetadata emits the csvw:TableGroup, csvw:Table and
// csvw:Row structure around the cell quads.
func OptIncludeTableMetadata(on bool) Option {
	return func(o *Options) { o.IncludeTableMetadata = on }
}

// OptWindowSize bounds the resident quads of RDF to tabular conversions.
func OptWindowSize(n int) Option {
	return func(o *Options) { o.WindowSize = n }
}

// OptStepSize sets the quads read per window move.
func OptStepSize(n int) Option {
	return func(o *Options) { o.StepSize = n }
}

// OptUseVocabMetadata titles inferred columns with vocabulary labels.
func OptUseVocabMetadata(on bool) Option {
	return func(o *Options) { o.UseVocabMetadata = on }
}

// OptLogLevel enables logging to stderr at level. It is ignored when
// OptLogger is given.
func OptLogLevel(level string) Option {
	return func(o *Options) { o.LogLevel = level }
}

// OptResolver replaces the default file, http(s) and s3 resolver.
func OptResolver(r resolve.Resolver) Option {
	return func(o *Options) { o.Resolver = r }
}

// OptStore opens the quad store of RDF to tabular conversions.
func OptStore(f rdf2csv.StoreFactory) Option {
	return func(o *Options) { o.Store = f }
}

// OptLogger sets the logger.
func OptLogger(l zerolog.Logger) Option {
	return func(o *Options) { o.Logger = &l }
}

// OptMetrics records the conversion in m.
func OptMetrics(m *Metrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// OptTracker collects issues in tr instead of a fresh tracker.
func OptTracker(tr *issues.Tracker) Option {
	return func(o *Options) { o.Tracker = tr }
}

// OptTableGroup sets the table layout of RDF to tabular conversions.
func OptTableGroup(g *descriptor.TableGroup) Option {
	return func(o *Options) { o.TableGroup = g }
}

// OptSchema sets the table layout of RDF to tabular conversions from an
// edited schema. The schema is locked.
func OptSchema(s *schema.TableGroupSchema) Option {
	return func(o *Options) { o.Schema = s }
}

// OptBuffer sets the capacity of result streams.
func OptBuffer(n int) Option {
	return func(o *Options) { o.Buffer = n }
}

func newOptions(opts []Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Options) logger() zerolog.Logger {
	switch {
	case o.Logger != nil:
		return *o.Logger
	case o.LogLevel != "":
		return logger.New(&logger.Config{Level: o.LogLevel, Format: "json", TimeFormat: "rfc3339", Output: os.Stderr})
	default:
		return zerolog.Nop()
	}
}

// tracker returns the tracker of a conversion with logging and metrics
// attached.
func (o *Options) tracker(log zerolog.Logger) *issues.Tracker {
	tr := o.Tracker
	if tr == nil {
		tr = issues.New()
	}
	logger.Issues(tr, log)
	o.Metrics.Track(tr)
	return tr
}

func (o *Options) resolver(log zerolog.Logger) (resolve.Resolver, error) {
	if o.Resolver != nil {
		return o.Resolver, nil
	}
	overrides, err := resolve.CompileOverrides(o.PathOverrides)
	if err != nil {
		return nil, errs.Wrap(errs.KindStructural, "invalid path override", err)
	}
	return resolve.NewFetcher(resolve.WithOverrides(overrides), resolve.WithLogger(log)), nil
}
