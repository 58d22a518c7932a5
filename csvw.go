// Package csvw converts CSV files described by CSV on the Web metadata to
// RDF and RDF back to CSV.
//
// Conversions return a *stream.Stream that produces results as they are
// computed. Validation problems that do not stop a conversion are recorded
// on an *issues.Tracker; fatal problems end the stream with an *errs.Error.
//
//	quads, tr := csvw.ConvertTabularToRDF(ctx, "people.csv-metadata.json")
//	err := stream.ForEach(ctx, quads, func(q rdf.Quad) error {
//	    fmt.Println(q)
//	    return nil
//	})
//	for _, w := range tr.Warnings() {
//	    log.Println(w)
//	}
package csvw

import (
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/geoknoesis/csvw-go/csv2rdf"
	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/rdf2csv"
	"github.com/geoknoesis/csvw-go/resolve"
	"github.com/geoknoesis/csvw-go/schema"
	"github.com/geoknoesis/csvw-go/stream"
)

// ConvertTabularToRDF converts the tables described by input. Input is one
// of:
//   - a *descriptor.TableGroup;
//   - the URL or path of a metadata document (ending in .json or .jsonld);
//   - the URL or path of a CSV file, whose metadata is located next to it;
//   - a metadata document as []byte, io.Reader or decoded map[string]any.
//
// With OptMinimal the stream carries no quads and only the tracker is
// filled.
func ConvertTabularToRDF(ctx context.Context, input any, opts ...Option) (*stream.Stream[rdf.Quad], *issues.Tracker) {
	o := newOptions(opts)
	log := o.logger()
	tr := o.tracker(log)
	return stream.Go(ctx, o.Buffer, func(ctx context.Context, emit stream.Emit[rdf.Quad]) error {
		conv, g, err := o.tabular(ctx, input, tr, log)
		if err != nil {
			return err
		}
		if o.Minimal {
			return stream.ForEach(ctx, conv.Validate(ctx, g), func(issues.Issue) error { return nil })
		}
		return stream.ForEach(ctx, conv.Convert(ctx, g), emit)
	}), tr
}

// ValidateTabular checks input, accepted as by ConvertTabularToRDF, and
// streams every issue found. The stream ends with an error only when the
// input cannot be processed at all.
func ValidateTabular(ctx context.Context, input any, opts ...Option) *stream.Stream[issues.Issue] {
	o := newOptions(opts)
	log := o.logger()
	return stream.Go(ctx, o.Buffer, func(ctx context.Context, emit stream.Emit[issues.Issue]) error {
		tr := o.tracker(log)
		conv, g, err := o.tabular(ctx, input, tr, log)
		for _, i := range tr.Issues() {
			if err := emit(i); err != nil {
				return err
			}
		}
		if err != nil {
			return err
		}
		return stream.ForEach(ctx, conv.Validate(ctx, g), emit)
	})
}

// ConvertRDFToTabular streams the rows of the tables described by src. The
// layout comes from OptTableGroup or OptSchema, or is inferred from the
// input. ConvertRDFToTabular closes src.
func ConvertRDFToTabular(ctx context.Context, src rdf.Reader, opts ...Option) (*stream.Stream[rdf2csv.TableRow], *issues.Tracker) {
	o := newOptions(opts)
	log := o.logger()
	tr := o.tracker(log)
	conv, err := o.reverse(tr, log)
	if err != nil {
		src.Close()
		return stream.Go(ctx, o.Buffer, func(context.Context, stream.Emit[rdf2csv.TableRow]) error { return err }), tr
	}
	return conv.Convert(ctx, src), tr
}

// InferSchema infers a table layout for src. In windowed mode only the
// first window is examined. InferSchema closes src.
func InferSchema(ctx context.Context, src rdf.Reader, opts ...Option) (*schema.TableGroupSchema, error) {
	o := newOptions(opts)
	log := o.logger()
	conv, err := o.reverse(o.tracker(log), log)
	if err != nil {
		src.Close()
		return nil, err
	}
	return conv.InferSchema(ctx, src)
}

// OpenRDF opens the RDF document at url. The format is taken from the file
// extension, or sniffed from the content when the extension is unknown.
func OpenRDF(ctx context.Context, url string, opts ...Option) (rdf.Reader, error) {
	o := newOptions(opts)
	log := o.logger()
	res, err := o.resolver(log)
	if err != nil {
		return nil, err
	}
	body, err := res.ResolveStream(ctx, url, o.BaseIRI)
	if err != nil {
		return nil, err
	}
	format, _ := rdf.FormatFromPath(url)
	readerOpts := []rdf.Option{rdf.OptContext(ctx), rdf.OptBase(rdf.ResolveIRI(o.BaseIRI, url))}
	if loader, ok := res.(rdf.DocumentLoader); ok {
		readerOpts = append(readerOpts, rdf.OptDocumentLoader(loader))
	}
	r, err := rdf.NewReader(body, format, readerOpts...)
	if err != nil {
		body.Close()
		return nil, errs.Wrap(errs.KindParse, "opening "+url, err)
	}
	return &closingReader{Reader: r, body: body}, nil
}

// closingReader closes the resource a decoder reads from.
type closingReader struct {
	rdf.Reader
	body io.Closer
}

func (r *closingReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.body.Close(); err == nil {
		err = cerr
	}
	return err
}

func (o *Options) tabular(ctx context.Context, input any, tr *issues.Tracker, log zerolog.Logger) (*csv2rdf.Converter, *descriptor.TableGroup, error) {
	res, err := o.resolver(log)
	if err != nil {
		return nil, nil, err
	}
	conv := csv2rdf.New(csv2rdf.Options{
		TemplateIRIs:         o.TemplateIRIs,
		IncludeTableMetadata: o.IncludeTableMetadata,
		Resolver:             res,
		Tracker:              tr,
		Logger:               log,
		Metrics:              o.Metrics,
		Buffer:               o.Buffer,
	})

	var g *descriptor.TableGroup
	switch in := input.(type) {
	case *descriptor.TableGroup:
		g = in
	case string:
		if isMetadataURL(in) {
			url := rdf.ResolveIRI(o.BaseIRI, in)
			doc, ferr := res.ResolveJSONLD(ctx, url, "")
			if ferr != nil {
				return nil, nil, ferr
			}
			g, err = descriptor.Normalize(ctx, doc, descriptor.Options{Base: url, Fetcher: res, Tracker: tr})
		} else {
			g, err = conv.Locate(ctx, rdf.ResolveIRI(o.BaseIRI, in), tr)
		}
	default:
		g, err = descriptor.Normalize(ctx, input, descriptor.Options{Base: o.BaseIRI, Fetcher: res, Tracker: tr})
	}
	if err != nil {
		return nil, nil, err
	}
	return conv, g, nil
}

func (o *Options) reverse(tr *issues.Tracker, log zerolog.Logger) (*rdf2csv.Converter, error) {
	var res resolve.Resolver
	if o.UseVocabMetadata {
		var err error
		if res, err = o.resolver(log); err != nil {
			return nil, err
		}
	}
	return rdf2csv.New(rdf2csv.Options{
		WindowSize:       o.WindowSize,
		StepSize:         o.StepSize,
		Descriptor:       o.TableGroup,
		Schema:           o.Schema,
		Base:             o.BaseIRI,
		UseVocabMetadata: o.UseVocabMetadata,
		Resolver:         res,
		Store:            o.Store,
		Tracker:          tr,
		Logger:           log,
		Metrics:          o.Metrics,
		Buffer:           o.Buffer,
	}), nil
}

func isMetadataURL(u string) bool {
	path, _, _ := strings.Cut(u, "?")
	path = strings.ToLower(path)
	return strings.HasSuffix(path, ".json") || strings.HasSuffix(path, ".jsonld")
}
