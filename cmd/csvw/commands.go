package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	csvw "github.com/geoknoesis/csvw-go"
	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/rdf2csv"
	"github.com/geoknoesis/csvw-go/stream"
)

func csv2rdfCmd(flags *globalFlags) *cobra.Command {
	var (
		out           string
		format        string
		templateIRIs  bool
		minimal       bool
		tableMetadata bool
	)
	cmd := &cobra.Command{
		Use:   "csv2rdf <metadata-or-csv>",
		Short: "Convert CSV tables to RDF",
		Long: `Convert the tables described by a CSVW metadata document, or a CSV file
whose metadata is located next to it, to RDF.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()
			c := &a.cfg.Conversion
			if format != "" {
				c.Format = format
			}
			c.TemplateIRIs = c.TemplateIRIs || templateIRIs
			c.Minimal = c.Minimal || minimal
			c.TableMetadata = c.TableMetadata || tableMetadata

			f, ok := rdf.ParseFormat(c.Format)
			if !ok || !f.Writable() {
				return fmt.Errorf("cannot write RDF format %q", c.Format)
			}
			dst, closeOut, err := output(cmd, out)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			quads, tr := csvw.ConvertTabularToRDF(ctx, locate(args[0]), a.options()...)
			w, err := rdf.NewWriter(dst, f, rdf.OptContext(ctx), rdf.OptPrefixes(rdf.DefaultPrefixes))
			if err != nil {
				quads.Close()
				closeOut()
				return err
			}
			err = stream.ForEach(ctx, quads, w.Write)
			if cerr := w.Close(); err == nil {
				err = cerr
			}
			if cerr := closeOut(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			return report(cmd.ErrOrStderr(), tr.Issues())
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "RDF output format (nquads, ntriples, turtle, trig, jsonld)")
	cmd.Flags().BoolVar(&templateIRIs, "template-iris", false, "Resolve expanded URI templates against the table URL")
	cmd.Flags().BoolVar(&minimal, "minimal", false, "Validate only, without emitting RDF")
	cmd.Flags().BoolVar(&tableMetadata, "table-metadata", false, "Describe the table group, tables and rows in the output")
	return cmd
}

func rdf2csvCmd(flags *globalFlags) *cobra.Command {
	var (
		outDir      string
		metadata    string
		window      int
		step        int
		vocabLabels bool
	)
	cmd := &cobra.Command{
		Use:   "rdf2csv <rdf>",
		Short: "Convert RDF to CSV tables",
		Long: `Convert an RDF document to CSV files, one per table. The table layout is
read from --metadata or inferred from the input. A positive --window keeps
at most that many quads resident.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()
			c := &a.cfg.Conversion
			if cmd.Flags().Changed("window") {
				c.WindowSize = window
			}
			if cmd.Flags().Changed("step") {
				c.StepSize = step
			}
			c.UseVocabMetadata = c.UseVocabMetadata || vocabLabels
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			opts := a.options()
			if metadata != "" {
				g, err := a.loadDescriptor(cmd, metadata)
				if err != nil {
					return err
				}
				opts = append(opts, csvw.OptTableGroup(g))
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			src, err := csvw.OpenRDF(ctx, locate(args[0]), opts...)
			if err != nil {
				return err
			}
			rows, tr := csvw.ConvertRDFToTabular(ctx, src, opts...)
			written := make(map[string]bool)
			err = rdf2csv.WriteCSV(ctx, rows, func(table string) (io.WriteCloser, error) {
				name := tableFileName(table)
				if written[name] {
					return nil, fmt.Errorf("tables %s and another table share the file name %s", table, name)
				}
				written[name] = true
				a.log.Info().Str("table", table).Str("file", name).Msg("writing table")
				return os.Create(filepath.Join(outDir, name))
			}, nil)
			if err != nil {
				return err
			}
			return report(cmd.ErrOrStderr(), tr.Issues())
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", ".", "Output directory")
	cmd.Flags().StringVarP(&metadata, "metadata", "m", "", "CSVW metadata describing the output tables")
	cmd.Flags().IntVar(&window, "window", 0, "Maximum resident quads (0 loads the whole input)")
	cmd.Flags().IntVar(&step, "step", 0, "Quads read per window move")
	cmd.Flags().BoolVar(&vocabLabels, "vocab-labels", false, "Title columns with vocabulary labels")
	return cmd
}

func validateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <metadata-or-csv>",
		Short: "Validate CSV tables against their metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			var found []issues.Issue
			err = stream.ForEach(cmd.Context(), csvw.ValidateTabular(cmd.Context(), locate(args[0]), a.options()...),
				func(i issues.Issue) error {
					found = append(found, i)
					fmt.Fprintln(cmd.OutOrStdout(), i)
					return nil
				})
			if err != nil {
				return err
			}
			if invalid(found) {
				return errInvalid
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
}

func inferCmd(flags *globalFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "infer <rdf>",
		Short: "Infer CSVW metadata for an RDF document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			opts := a.options()
			src, err := csvw.OpenRDF(ctx, locate(args[0]), opts...)
			if err != nil {
				return err
			}
			g, err := csvw.InferSchema(ctx, src, opts...)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(g.Descriptor(), "", "  ")
			if err != nil {
				return err
			}
			dst, closeOut, err := output(cmd, out)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(dst, "%s\n", data); err != nil {
				closeOut()
				return err
			}
			return closeOut()
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "Output file (default stdout)")
	return cmd
}

// loadDescriptor loads and normalizes the metadata document at loc.
func (a *app) loadDescriptor(cmd *cobra.Command, loc string) (*descriptor.TableGroup, error) {
	u := locate(loc)
	doc, err := a.resolver.ResolveJSONLD(cmd.Context(), u, a.cfg.Conversion.BaseIRI)
	if err != nil {
		return nil, err
	}
	return descriptor.Normalize(cmd.Context(), doc, descriptor.Options{
		Base:    rdf.ResolveIRI(a.cfg.Conversion.BaseIRI, u),
		Fetcher: a.resolver,
	})
}

// locate turns an existing local path into a file URL so relative
// references in it resolve to absolute IRIs. Anything else is returned
// unchanged.
func locate(arg string) string {
	if u, err := url.Parse(arg); err == nil && len(u.Scheme) > 1 {
		return arg
	}
	if _, err := os.Stat(arg); err != nil {
		return arg
	}
	abs, err := filepath.Abs(arg)
	if err != nil {
		return arg
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

// tableFileName names the CSV file of a table after the last segment of
// its URL.
func tableFileName(table string) string {
	name := table
	if u, err := url.Parse(table); err == nil {
		name = u.Path
	}
	name = path.Base(name)
	if name == "." || name == "/" || name == "" {
		return "table.csv"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		name += ".csv"
	}
	return name
}

// report prints issues to w. It fails when any of them is an error.
func report(w io.Writer, found []issues.Issue) error {
	for _, i := range found {
		fmt.Fprintln(w, i)
	}
	if invalid(found) {
		return errInvalid
	}
	return nil
}

func invalid(found []issues.Issue) bool {
	for _, i := range found {
		if i.Severity == issues.SeverityError {
			return true
		}
	}
	return false
}
