package csv2rdf

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/geoknoesis/csvw-go/datatype"
	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/dialect"
	"github.com/geoknoesis/csvw-go/internal/metrics"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/uritemplate"
)

// columnPlan is everything about a column that is decided once per table.
type columnPlan struct {
	col   *descriptor.Column
	props descriptor.Props
	codec datatype.Codec
	dtIRI string
	lang  string

	about    *uritemplate.Template
	property *uritemplate.Template
	value    *uritemplate.Template
	// defaultProperty is used when propertyUrl is unset.
	defaultProperty string
}

// cell is a parsed cell. A null cell has no values.
type cell struct {
	null   bool
	list   bool
	values []string
}

type tableConverter struct {
	conv      *Converter
	table     *descriptor.Table
	tr        *issues.Tracker
	out       *output
	keys      *keyIndex
	log       zerolog.Logger
	groupNode rdf.Term

	plans       []*columnPlan
	sources     int
	skipColumns int
	tableNode   rdf.Term
	suppressed  bool
}

func (tc *tableConverter) run(ctx context.Context) error {
	t := tc.table
	if err := tc.tr.Update(issues.Update{Table: issues.Set(t.URL)}); err != nil {
		return err
	}
	tc.suppressed = t.Suppressed()
	tc.plan()

	rc, err := tc.conv.resolver.ResolveStream(ctx, t.URL, t.Group().Base)
	if err != nil {
		return err
	}
	defer rc.Close()

	d := t.EffectiveDialect()
	tc.skipColumns = d.SkipColumns
	r, err := dialect.NewReader(rc, d)
	if err != nil {
		return err
	}
	titles, err := r.Titles()
	if err != nil {
		return err
	}
	tc.checkHeader(titles, d)

	if tc.conv.opts.IncludeTableMetadata && !tc.suppressed {
		tc.tableNode = nodeFor(t.ID, tc.out.blanks)
		if err := tc.out.tableMetadata(tc.groupNode, tc.tableNode, t); err != nil {
			return err
		}
	}

	rows := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := tc.row(row); err != nil {
			return err
		}
		rows++
	}
	tc.log.Debug().Str("table", t.URL).Int("rows", rows).Msg("table converted")
	return nil
}

// plan parses the templates and picks the datatype codec of every column.
func (tc *tableConverter) plan() {
	names := make(map[string]bool)
	for _, c := range tc.table.Schema.Columns {
		names[c.Name] = true
	}
	if len(tc.table.Schema.SourceColumns()) == 0 {
		tc.tr.AddWarning("table has no columns, only row structure is produced")
	}
	for _, c := range tc.table.Schema.Columns {
		p := c.Props()
		plan := &columnPlan{
			col:             c,
			props:           p,
			codec:           datatype.For(p.Datatype),
			dtIRI:           datatype.IRI(p.Datatype),
			defaultProperty: tc.table.URL + "#" + c.Name,
		}
		if p.Datatype.BaseName() == "string" && p.Datatype.ID == "" && p.Lang != "und" && p.Lang != "" {
			plan.lang = p.Lang
		}
		plan.about = tc.template(c, "aboutUrl", p.AboutURL, names)
		plan.property = tc.template(c, "propertyUrl", p.PropertyURL, names)
		plan.value = tc.template(c, "valueUrl", p.ValueURL, names)
		if !c.Virtual {
			tc.sources++
		}
		tc.plans = append(tc.plans, plan)
	}
}

var rowVariables = map[string]bool{
	"_row": true, "_sourceRow": true, "_column": true, "_sourceColumn": true, "_name": true,
}

func (tc *tableConverter) template(c *descriptor.Column, prop, raw string, names map[string]bool) *uritemplate.Template {
	if raw == "" {
		return nil
	}
	if rdf.IsPrefixed(raw) {
		raw = rdf.ExpandPrefixed(raw)
	}
	t, err := uritemplate.Parse(raw)
	if err != nil {
		tc.tr.Warnf("column %q: invalid %s template: %v", c.Name, prop, err)
		return nil
	}
	for _, v := range t.Variables() {
		if !names[v] && !rowVariables[v] {
			tc.tr.Warnf("column %q: %s template %q references unknown column %q", c.Name, prop, raw, v)
		}
	}
	return t
}

func (tc *tableConverter) checkHeader(titles [][]string, d *descriptor.Dialect) {
	if d.HeaderRowCount == 0 || tc.sources == 0 {
		return
	}
	if len(titles) != tc.sources {
		tc.tr.Warnf("header has %d columns, schema has %d", len(titles), tc.sources)
	}
	for i, p := range tc.plans {
		if p.col.Virtual || i >= len(titles) || len(p.col.Titles) == 0 {
			continue
		}
		matched := len(titles[i]) == 0
		for _, title := range titles[i] {
			if p.col.HasTitle(title) {
				matched = true
				break
			}
		}
		if !matched {
			tc.tr.Warnf("header %q does not match the titles of column %q", strings.Join(titles[i], " "), p.col.Name)
		}
	}
}

// parse applies the null, default, separator and datatype rules to one cell.
func (p *columnPlan) parse(raw string, present bool, tr *issues.Tracker) cell {
	if !present {
		raw = p.props.NullValue()
	}
	if raw == "" {
		raw = p.props.Default
	}
	if p.props.IsNull(raw) {
		return cell{null: true}
	}
	if p.props.Separator == "" {
		return cell{values: []string{p.codec.Parse(raw, p.props.Datatype, tr)}}
	}
	c := cell{list: true}
	if raw == "" {
		return c
	}
	for _, item := range strings.Split(raw, p.props.Separator) {
		if p.props.IsNull(item) {
			continue
		}
		c.values = append(c.values, p.codec.Parse(item, p.props.Datatype, tr))
	}
	return c
}

func (p *columnPlan) literal(v string) rdf.Term {
	if p.lang != "" {
		return rdf.NewLangLiteral(v, p.lang)
	}
	return rdf.NewLiteral(v, p.dtIRI)
}

func (tc *tableConverter) row(row dialect.Row) error {
	tr := tc.tr
	if err := tr.Update(issues.Update{Row: issues.Set(row.Number)}); err != nil {
		return err
	}
	if tc.sources > 0 && len(row.Cells) != tc.sources {
		tr.Warnf("row has %d cells, schema has %d columns", len(row.Cells), tc.sources)
	}

	vars := uritemplate.Values{
		"_row":       strconv.Itoa(row.Number),
		"_sourceRow": strconv.Itoa(row.SourceNumber),
	}
	cells := make([]cell, len(tc.plans))
	keyValues := make(map[string]string)
	for i, p := range tc.plans {
		if p.col.Virtual {
			break
		}
		if err := tr.Update(issues.Update{Column: issues.Set(p.col.Number)}); err != nil {
			return err
		}
		raw, present := "", i < len(row.Cells)
		if present {
			raw = row.Cells[i]
		}
		c := p.parse(raw, present, tr)
		cells[i] = c
		if c.null {
			if p.props.Required {
				if err := tr.Errorf(true, "required column %q is null", p.col.Name); err != nil {
					return err
				}
			}
			continue
		}
		if c.list {
			vars[p.col.Name] = c.values
		} else {
			vars[p.col.Name] = c.values[0]
		}
		keyValues[p.col.Name] = strings.Join(c.values, "\x1f")
	}

	var (
		quads    []rdf.Quad
		subjects []rdf.Term
		rowBlank rdf.Term
	)
	for i, p := range tc.plans {
		if err := tr.Update(issues.Update{Column: issues.Set(p.col.Number)}); err != nil {
			return err
		}
		vars["_column"] = strconv.Itoa(p.col.Number)
		vars["_sourceColumn"] = strconv.Itoa(p.col.Number + tc.skipColumns)
		vars["_name"] = p.col.Name

		subject := tc.subject(p, vars, &rowBlank)
		if !containsTerm(subjects, subject) {
			subjects = append(subjects, subject)
		}
		if tc.suppressed || p.col.SuppressOutput {
			continue
		}
		predicate := p.defaultProperty
		if p.property != nil {
			expanded, _ := p.property.Expand(vars)
			if expanded == "" {
				continue
			}
			predicate = tc.resolve(expanded)
		}

		if p.col.Virtual {
			if p.value == nil {
				continue
			}
			expanded, _ := p.value.Expand(vars)
			if expanded == "" {
				continue
			}
			quads = append(quads, rdf.Quad{S: subject, P: rdf.IRI{Value: predicate}, O: tc.node(expanded)})
			continue
		}

		c := cells[i]
		if c.null || len(c.values) == 0 {
			continue
		}
		objects := make([]rdf.Term, len(c.values))
		for j, v := range c.values {
			if p.value == nil {
				objects[j] = p.literal(v)
				continue
			}
			objects[j] = tc.valueNode(p, v, vars)
		}
		if c.list && p.props.Ordered {
			head, chain := tc.list(objects)
			quads = append(quads, rdf.Quad{S: subject, P: rdf.IRI{Value: predicate}, O: head})
			quads = append(quads, chain...)
			continue
		}
		for _, o := range objects {
			quads = append(quads, rdf.Quad{S: subject, P: rdf.IRI{Value: predicate}, O: o})
		}
	}

	if err := tr.Update(issues.Update{Row: issues.Set(row.Number)}); err != nil {
		return err
	}
	tc.keys.record(tc.table, row.Number, keyValues, tr)

	if tc.tableNode != nil {
		if err := tc.out.rowMetadata(tc.tableNode, tc.table, row, subjects); err != nil {
			return err
		}
	}
	for _, q := range quads {
		if err := tc.out.put(q); err != nil {
			return err
		}
	}
	tc.out.metrics.RowEmitted(metrics.TabularToRDF)
	return nil
}

// subject expands the column's aboutUrl, falling back to one blank node
// per row.
func (tc *tableConverter) subject(p *columnPlan, vars uritemplate.Values, rowBlank *rdf.Term) rdf.Term {
	if p.about != nil {
		if expanded, _ := p.about.Expand(vars); expanded != "" {
			return tc.node(expanded)
		}
	}
	if *rowBlank == nil {
		*rowBlank = tc.out.blanks.Next()
	}
	return *rowBlank
}

// valueNode expands valueUrl for one value. A value that already has the
// shape of the template is first reduced to the part the template binds.
func (tc *tableConverter) valueNode(p *columnPlan, v string, vars uritemplate.Values) rdf.Term {
	if recovered, ok := p.value.Match(p.col.Name, v); ok {
		v = recovered
	}
	prev := vars[p.col.Name]
	vars[p.col.Name] = v
	expanded, _ := p.value.Expand(vars)
	vars[p.col.Name] = prev
	return tc.node(expanded)
}

// node turns expanded template text into a term. "_:" prefixes give blank
// nodes.
func (tc *tableConverter) node(expanded string) rdf.Term {
	if id, ok := strings.CutPrefix(expanded, "_:"); ok {
		return rdf.BlankNode{ID: id}
	}
	return rdf.IRI{Value: tc.resolve(expanded)}
}

func (tc *tableConverter) resolve(expanded string) string {
	if tc.conv.opts.TemplateIRIs {
		return rdf.ResolveIRI(tc.table.URL, expanded)
	}
	return expanded
}

// list builds an rdf:List of items and returns its head and the list quads.
func (tc *tableConverter) list(items []rdf.Term) (rdf.Term, []rdf.Quad) {
	nodes := make([]rdf.Term, len(items))
	for i := range nodes {
		nodes[i] = tc.out.blanks.Next()
	}
	quads := make([]rdf.Quad, 0, 2*len(items))
	for i, item := range items {
		var rest rdf.Term = rdf.IRI{Value: rdf.RDFNil}
		if i+1 < len(nodes) {
			rest = nodes[i+1]
		}
		quads = append(quads,
			rdf.Quad{S: nodes[i], P: rdf.IRI{Value: rdf.RDFFirst}, O: item},
			rdf.Quad{S: nodes[i], P: rdf.IRI{Value: rdf.RDFRest}, O: rest},
		)
	}
	return nodes[0], quads
}

func containsTerm(terms []rdf.Term, t rdf.Term) bool {
	for _, x := range terms {
		if rdf.Equal(x, t) {
			return true
		}
	}
	return false
}
