package csv2rdf

import (
	"context"
	"path/filepath"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/dialect"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/stream"
)

// DirectoryMetadata is the metadata file name looked up next to a CSV file
// that has no file-specific metadata.
const DirectoryMetadata = "csv-metadata.json"

// ConvertCSV converts a CSV file without a descriptor, locating its
// metadata with Locate first.
func (c *Converter) ConvertCSV(ctx context.Context, csvURL string) *stream.Stream[rdf.Quad] {
	return stream.Go(ctx, c.opts.Buffer, func(ctx context.Context, emit stream.Emit[rdf.Quad]) error {
		tr := c.tracker()
		g, err := c.Locate(ctx, csvURL, tr)
		if err != nil {
			return err
		}
		return c.run(ctx, g, tr, emit)
	})
}

// Locate returns the metadata for csvURL. It tries "<csvURL>-metadata.json",
// then csv-metadata.json in the same directory, and otherwise builds
// embedded metadata from the header row. Metadata that does not describe
// csvURL is ignored with a warning.
func (c *Converter) Locate(ctx context.Context, csvURL string, tr *issues.Tracker) (*descriptor.TableGroup, error) {
	csvURL = absolute(csvURL)
	for _, candidate := range []string{csvURL + "-metadata.json", sibling(csvURL, DirectoryMetadata)} {
		doc, err := c.resolver.ResolveJSONLD(ctx, candidate, "")
		if err != nil {
			c.log.Debug().Str("url", candidate).Err(err).Msg("no metadata")
			continue
		}
		g, err := descriptor.Normalize(ctx, doc, descriptor.Options{Base: candidate, Fetcher: c.resolver, Tracker: tr})
		if err != nil {
			return nil, err
		}
		if g.Table(csvURL) == nil {
			tr.Warnf("metadata %s does not describe %s", candidate, csvURL)
			continue
		}
		c.log.Debug().Str("url", candidate).Msg("using metadata")
		return g, nil
	}
	return c.embedded(ctx, csvURL)
}

// embedded builds a one-table group whose columns come from the header.
func (c *Converter) embedded(ctx context.Context, csvURL string) (*descriptor.TableGroup, error) {
	rc, err := c.resolver.ResolveStream(ctx, csvURL, "")
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	r, err := dialect.NewReader(rc, nil)
	if err != nil {
		return nil, err
	}
	titles, err := r.Titles()
	if err != nil {
		return nil, err
	}

	schema := &descriptor.Schema{}
	for i, ts := range titles {
		col := &descriptor.Column{
			Name:   descriptor.DefaultColumnName(ts, i+1),
			Titles: ts,
		}
		if len(ts) > 0 {
			col.TitlesByLang = map[string][]string{"und": ts}
		}
		schema.Columns = append(schema.Columns, col)
	}
	g := &descriptor.TableGroup{Tables: []*descriptor.Table{{URL: csvURL, Schema: schema}}}
	g.Link()
	return g, nil
}

func absolute(u string) string {
	if rdf.IsAbsoluteIRI(u) || filepath.IsAbs(u) {
		return u
	}
	if abs, err := filepath.Abs(u); err == nil {
		return abs
	}
	return u
}

func sibling(u, name string) string {
	if rdf.IsAbsoluteIRI(u) {
		return rdf.ResolveIRI(u, name)
	}
	return filepath.Join(filepath.Dir(u), name)
}
