package rdf2csv

import (
	"context"
	"strconv"
	"strings"

	"github.com/geoknoesis/csvw-go/datatype"
	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/store"
	"github.com/geoknoesis/csvw-go/uritemplate"
)

const subjectVar = "s"

// tablePlan is the per-table layout used to bind rows.
type tablePlan struct {
	table   *descriptor.Table
	columns []*columnPlan
	titles  []string
	// types are the rdf:type values fixed by virtual columns.
	types  []rdf.Term
	anchor []store.TriplePattern
	preds  map[string]bool
	rows   int
}

type columnPlan struct {
	col   *descriptor.Column
	props descriptor.Props
	codec datatype.Codec
	// predicate is empty when propertyUrl depends on cell values.
	predicate string
	about     *uritemplate.Template
	value     *uritemplate.Template
}

func newTablePlan(t *descriptor.Table, tr *issues.Tracker) *tablePlan {
	tp := &tablePlan{table: t, preds: make(map[string]bool)}
	for _, c := range t.Schema.Columns {
		p := c.Props()
		predicate := columnPredicate(t, c, p, tr)
		if c.Virtual {
			if predicate == rdf.RDFType && p.ValueURL != "" {
				if v, err := uritemplate.Parse(rdf.ExpandPrefixed(p.ValueURL)); err == nil && v.IsLiteral() {
					typ := rdf.IRI{Value: v.String()}
					tp.types = append(tp.types, typ)
					tp.anchor = append(tp.anchor, store.TriplePattern{
						S: store.Variable(subjectVar),
						P: store.Bound(rdf.IRI{Value: rdf.RDFType}),
						O: store.Bound(typ),
					})
				}
			}
			continue
		}
		cp := &columnPlan{col: c, props: p, codec: datatype.For(p.Datatype), predicate: predicate}
		if p.AboutURL != "" {
			if about, err := uritemplate.Parse(p.AboutURL); err == nil && about.HasVariable(c.Name) {
				cp.about = about
			}
		}
		if p.ValueURL != "" {
			if value, err := uritemplate.Parse(rdf.ExpandPrefixed(p.ValueURL)); err == nil {
				cp.value = value
			} else {
				tr.Warnf("column %q: invalid valueUrl template: %v", c.Name, err)
			}
		}
		if predicate != "" {
			tp.preds[predicate] = true
		}
		tp.columns = append(tp.columns, cp)
		tp.titles = append(tp.titles, c.Title())
	}
	return tp
}

// columnPredicate returns the predicate IRI of c, or "" when its
// propertyUrl refers to cell values.
func columnPredicate(t *descriptor.Table, c *descriptor.Column, p descriptor.Props, tr *issues.Tracker) string {
	if p.PropertyURL == "" {
		return t.URL + "#" + c.Name
	}
	tmpl, err := uritemplate.Parse(rdf.ExpandPrefixed(p.PropertyURL))
	if err != nil {
		tr.Warnf("column %q: invalid propertyUrl template: %v", c.Name, err)
		return ""
	}
	expanded, missing := tmpl.Expand(uritemplate.Values{
		"_name":         c.Name,
		"_column":       strconv.Itoa(c.Number),
		"_sourceColumn": strconv.Itoa(c.Number),
	})
	if len(missing) > 0 {
		tr.Warnf("column %q: propertyUrl %q depends on cell values and cannot be matched", c.Name, p.PropertyURL)
		return ""
	}
	return expanded
}

// matches reports whether s has a row in the table: it has every type the
// table fixes or, for untyped tables, one of its predicates.
func (tp *tablePlan) matches(ctx context.Context, st store.Store, s rdf.Term) (bool, error) {
	if len(tp.anchor) > 0 {
		found, err := store.Evaluate(ctx, st, tp.anchor, store.Binding{subjectVar: s})
		return len(found) > 0, err
	}
	quads, err := st.Match(ctx, store.Pattern{S: s})
	if err != nil {
		return false, err
	}
	for _, q := range quads {
		if tp.preds[q.P.Value] {
			return true, nil
		}
	}
	return false, nil
}

func (tp *tablePlan) hasTypes(types map[string]bool) bool {
	for _, t := range tp.types {
		if !types[rdf.TermKey(t)] {
			return false
		}
	}
	return true
}

func (tp *tablePlan) coverage(preds map[string]bool) int {
	n := 0
	for p := range preds {
		if tp.preds[p] {
			n++
		}
	}
	return n
}

// row binds the cells of s. Values come from st; list nodes are followed
// in links.
func (tp *tablePlan) row(ctx context.Context, st, links store.Store, s rdf.Term, tr *issues.Tracker) (TableRow, error) {
	row := TableRow{Table: tp.table.URL, Titles: tp.titles, Cells: make([]string, len(tp.columns))}
	seed := store.Binding{subjectVar: s}
	for i, cp := range tp.columns {
		if err := tr.Update(issues.Update{Column: issues.Set(cp.col.Number)}); err != nil {
			return row, err
		}
		var values []string
		if cp.predicate != "" {
			found, err := store.Evaluate(ctx, st, []store.TriplePattern{{
				S: store.Variable(subjectVar),
				P: store.Bound(rdf.IRI{Value: cp.predicate}),
				O: store.Variable("o"),
			}}, seed)
			if err != nil {
				return row, err
			}
			for _, b := range found {
				vs, err := cp.format(ctx, links, b["o"], tr)
				if err != nil {
					return row, err
				}
				values = append(values, vs...)
			}
		}
		row.Cells[i] = cp.cell(values, tp.table.URL, s, tr)
	}
	return row, nil
}

// cell joins the formatted values of a column, recovering aboutUrl columns
// from the subject when the data has no value for them.
func (cp *columnPlan) cell(values []string, tableURL string, s rdf.Term, tr *issues.Tracker) string {
	switch {
	case len(values) == 0:
		if cp.about != nil {
			if v, ok := extractSubject(cp.about, cp.col.Name, tableURL, s); ok {
				return v
			}
			tr.Warnf("cannot recover column %q from subject %s", cp.col.Name, rdf.TermKey(s))
		}
		return cp.props.NullValue()
	case cp.props.Separator != "":
		return strings.Join(values, cp.props.Separator)
	case len(values) > 1:
		tr.Warnf("column %q has %d values, keeping the first", cp.col.Name, len(values))
	}
	return values[0]
}

// extractSubject matches s against an aboutUrl template. Blank nodes are
// matched in their "_:id" form.
func extractSubject(about *uritemplate.Template, name, tableURL string, s rdf.Term) (string, bool) {
	var text string
	switch t := s.(type) {
	case rdf.IRI:
		text = t.Value
	case rdf.BlankNode:
		text = t.String()
	default:
		return "", false
	}
	if v, ok := about.Match(name, text); ok {
		return v, true
	}
	// Subjects resolved against the table URL.
	if rest, ok := strings.CutPrefix(text, tableURL); ok {
		return about.Match(name, rest)
	}
	return "", false
}

// format renders one object. Ordered list heads are expanded to their
// members.
func (cp *columnPlan) format(ctx context.Context, links store.Store, o rdf.Term, tr *issues.Tracker) ([]string, error) {
	if b, ok := o.(rdf.BlankNode); ok && cp.props.Ordered {
		items, err := listItems(ctx, links, b)
		if err != nil {
			return nil, err
		}
		if items != nil {
			var out []string
			for _, item := range items {
				vs, err := cp.format(ctx, links, item, tr)
				if err != nil {
					return nil, err
				}
				out = append(out, vs...)
			}
			return out, nil
		}
	}
	switch t := o.(type) {
	case rdf.Literal:
		return []string{cp.codec.Format(t.Lexical, cp.props.Datatype, tr)}, nil
	case rdf.IRI:
		if cp.value != nil {
			return []string{cp.value.Extract(cp.col.Name, t.Value, tr)}, nil
		}
		return []string{t.Value}, nil
	case rdf.BlankNode:
		return []string{t.String()}, nil
	}
	return nil, nil
}

// listItems returns the members of the rdf:List starting at head, or nil
// when head is not a well formed list in st.
func listItems(ctx context.Context, st store.Store, head rdf.Term) ([]rdf.Term, error) {
	var items []rdf.Term
	seen := make(map[string]bool)
	node := head
	for {
		if iri, ok := node.(rdf.IRI); ok && iri.Value == rdf.RDFNil {
			return items, nil
		}
		key := rdf.TermKey(node)
		if seen[key] {
			return nil, nil
		}
		seen[key] = true
		first, err := st.Match(ctx, store.Pattern{S: node, P: rdf.IRI{Value: rdf.RDFFirst}})
		if err != nil {
			return nil, err
		}
		rest, err := st.Match(ctx, store.Pattern{S: node, P: rdf.IRI{Value: rdf.RDFRest}})
		if err != nil {
			return nil, err
		}
		if len(first) != 1 || len(rest) != 1 {
			return nil, nil
		}
		items = append(items, first[0].O)
		node = rest[0].O
	}
}
