package schema

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/store"
)

// SubjectColumn is the name of the inferred column holding each row's
// subject.
const SubjectColumn = "id"

// ListSeparator separates the values of multi-valued inferred columns.
const ListSeparator = "|"

// Labeler returns a human readable label for a predicate IRI.
type Labeler func(ctx context.Context, iri string) (string, bool)

// InferOptions configures Infer.
type InferOptions struct {
	// Base resolves the generated table file names.
	Base string
	// Labels, when set, supplies column titles.
	Labels Labeler
}

type subjectInfo struct {
	term  rdf.Term
	types []string
	preds []string
	objs  map[string][]rdf.Term
}

func (s *subjectInfo) signature() string {
	if len(s.types) > 0 {
		return "type " + strings.Join(s.types, " ")
	}
	return "pred " + strings.Join(s.preds, " ")
}

// Infer derives a table layout from the quads in st. Subjects are grouped
// into tables by their set of rdf:type values, or by their set of
// predicates when untyped. Each table gets a suppressed id column holding
// the subject, one column per predicate and a virtual column per type.
// IRI-valued columns become foreign keys when every value is a subject of
// one table.
func Infer(ctx context.Context, st store.Store, opts InferOptions) (*TableGroupSchema, error) {
	quads, err := st.Match(ctx, store.Pattern{})
	if err != nil {
		return nil, err
	}

	var (
		order    []string
		subjects = make(map[string]*subjectInfo)
	)
	for _, q := range quads {
		key := rdf.TermKey(q.S)
		info, ok := subjects[key]
		if !ok {
			info = &subjectInfo{term: q.S, objs: make(map[string][]rdf.Term)}
			subjects[key] = info
			order = append(order, key)
		}
		if q.P.Value == rdf.RDFType && q.O.Kind() == rdf.TermIRI {
			if !slices.Contains(info.types, q.O.String()) {
				info.types = append(info.types, q.O.String())
			}
			continue
		}
		if _, seen := info.objs[q.P.Value]; !seen {
			info.preds = append(info.preds, q.P.Value)
		}
		info.objs[q.P.Value] = append(info.objs[q.P.Value], q.O)
	}
	for _, info := range subjects {
		sort.Strings(info.types)
		sort.Strings(info.preds)
	}

	var (
		groupOrder []string
		groups     = make(map[string][]*subjectInfo)
	)
	for _, key := range order {
		info := subjects[key]
		sig := info.signature()
		if _, ok := groups[sig]; !ok {
			groupOrder = append(groupOrder, sig)
		}
		groups[sig] = append(groups[sig], info)
	}

	g := New()
	owner := make(map[string]*TableSchema)
	for i, sig := range groupOrder {
		members := groups[sig]
		t := inferTable(ctx, g, i+1, members, opts)
		if err := g.AddTable(t); err != nil {
			return nil, err
		}
		for _, m := range members {
			owner[rdf.TermKey(m.term)] = t
		}
	}
	for i, sig := range groupOrder {
		linkForeignKeys(g.Tables[i], groups[sig], owner)
	}
	return g, nil
}

func inferTable(ctx context.Context, g *TableGroupSchema, n int, members []*subjectInfo, opts InferOptions) *TableSchema {
	first := members[0]
	name := fmt.Sprintf("table%d", n)
	if len(first.types) > 0 {
		if local := columnName(localName(first.types[0]), n); local != "" {
			name = local
		}
	}
	url := rdf.ResolveIRI(opts.Base, name+".csv")
	for i := 2; g.Table(url) != nil; i++ {
		url = rdf.ResolveIRI(opts.Base, fmt.Sprintf("%s-%d.csv", name, i))
	}

	t := &TableSchema{
		URL:        url,
		AboutURL:   "{+" + SubjectColumn + "}",
		PrimaryKey: []string{SubjectColumn},
	}
	t.Columns = append(t.Columns, &Column{
		Name:           SubjectColumn,
		Titles:         []string{SubjectColumn},
		SuppressOutput: true,
	})

	var preds []string
	for _, m := range members {
		for _, p := range m.preds {
			if !slices.Contains(preds, p) {
				preds = append(preds, p)
			}
		}
	}
	for _, p := range preds {
		col := &Column{
			Name:        uniqueName(t, columnName(localName(p), len(t.Columns)+1)),
			PropertyURL: p,
		}
		col.Titles = []string{col.Name}
		if opts.Labels != nil {
			if label, ok := opts.Labels(ctx, p); ok && label != "" {
				col.Titles = []string{label}
			}
		}
		describeValues(col, members, p)
		t.Columns = append(t.Columns, col)
	}
	for _, typ := range first.types {
		t.Columns = append(t.Columns, &Column{
			Name:        uniqueName(t, "type"),
			PropertyURL: rdf.RDFType,
			ValueURL:    typ,
			Virtual:     true,
		})
	}
	return t
}

// describeValues sets the datatype, language, value template and separator
// of col from the objects of predicate p.
func describeValues(col *Column, members []*subjectInfo, p string) {
	var (
		resources, literals int
		multi               bool
		dtypes              = make(map[string]bool)
		langs               = make(map[string]bool)
	)
	for _, m := range members {
		objs := m.objs[p]
		if len(objs) > 1 {
			multi = true
		}
		for _, o := range objs {
			if rdf.IsResource(o) {
				resources++
				continue
			}
			literals++
			if lit, ok := o.(rdf.Literal); ok {
				if lit.Lang != "" {
					langs[lit.Lang] = true
				} else {
					dtypes[lit.DatatypeIRI()] = true
				}
			}
		}
	}
	if multi {
		col.Separator = ptr(ListSeparator)
	}
	switch {
	case resources > 0 && literals == 0:
		col.ValueURL = "{+" + col.Name + "}"
	case len(langs) == 1 && len(dtypes) == 0:
		for lang := range langs {
			col.Lang = lang
		}
	case len(dtypes) == 1 && len(langs) == 0:
		for iri := range dtypes {
			name, known := descriptor.DatatypeName(iri)
			switch {
			case !known:
				col.Datatype = &descriptor.Datatype{ID: iri, Base: "string"}
			case name != "string":
				col.Datatype = &descriptor.Datatype{Base: name}
			}
		}
	}
}

func linkForeignKeys(t *TableSchema, members []*subjectInfo, owner map[string]*TableSchema) {
	for _, col := range t.Columns {
		if col.ValueURL == "" || col.Virtual || col.PropertyURL == "" {
			continue
		}
		var target *TableSchema
		ok := true
		for _, m := range members {
			for _, o := range m.objs[col.PropertyURL] {
				ref := owner[rdf.TermKey(o)]
				if ref == nil || (target != nil && ref != target) {
					ok = false
				}
				target = ref
			}
		}
		if ok && target != nil {
			t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
				Columns:    []string{col.Name},
				Table:      target.URL,
				References: []string{SubjectColumn},
			})
		}
	}
}

// localName returns the part of an IRI after the last '#' or '/'.
func localName(iri string) string {
	if i := strings.LastIndexAny(iri, "#/"); i >= 0 {
		return iri[i+1:]
	}
	return iri
}

func columnName(local string, n int) string {
	if local == "" {
		return descriptor.DefaultColumnName(nil, n)
	}
	if descriptor.ValidColumnName(local) {
		return local
	}
	return descriptor.DefaultColumnName([]string{local}, n)
}

func uniqueName(t *TableSchema, name string) string {
	candidate := name
	for i := 2; t.Column(candidate) != nil; i++ {
		candidate = fmt.Sprintf("%s_%d", name, i)
	}
	return candidate
}
