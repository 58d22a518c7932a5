package csv2rdf

import (
	"strings"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/issues"
)

// keyIndex checks primary key uniqueness per table and, once every table
// has been read, foreign key references across the group.
type keyIndex struct {
	group *descriptor.TableGroup
	// referenced lists, per target table, the column lists foreign keys
	// point at.
	referenced map[*descriptor.Table][][]string
	values     map[*descriptor.Table]map[string]map[string]bool
	primary    map[*descriptor.Table]map[string]int
	pending    []pendingRef
}

type pendingRef struct {
	table   string
	row     int
	columns []string
	target  *descriptor.Table
	sig     string
	key     string
}

func newKeyIndex(g *descriptor.TableGroup) *keyIndex {
	k := &keyIndex{
		group:      g,
		referenced: make(map[*descriptor.Table][][]string),
		values:     make(map[*descriptor.Table]map[string]map[string]bool),
		primary:    make(map[*descriptor.Table]map[string]int),
	}
	for _, t := range g.Tables {
		for _, fk := range t.Schema.ForeignKeys {
			if target := g.Target(fk.Reference); target != nil {
				k.referenced[target] = append(k.referenced[target], fk.Reference.ColumnReference)
			}
		}
	}
	return k
}

func signature(columns []string) string {
	return strings.Join(columns, ",")
}

// keyOf joins the values of columns. It reports false when any of them is
// null.
func keyOf(columns []string, values map[string]string) (string, bool) {
	parts := make([]string, len(columns))
	for i, c := range columns {
		v, ok := values[c]
		if !ok {
			return "", false
		}
		parts[i] = v
	}
	return strings.Join(parts, "\x1e"), true
}

// record registers the key values of one row. values holds the non-null
// cells by column name.
func (k *keyIndex) record(t *descriptor.Table, row int, values map[string]string, tr *issues.Tracker) {
	if pk := t.Schema.PrimaryKey; len(pk) > 0 {
		key, ok := keyOf(pk, values)
		switch {
		case !ok:
			tr.Errorf(true, "primary key %s has a null value", signature(pk))
		default:
			seen := k.primary[t]
			if seen == nil {
				seen = make(map[string]int)
				k.primary[t] = seen
			}
			if first, dup := seen[key]; dup {
				tr.Errorf(true, "duplicate primary key %s, first seen in row %d", signature(pk), first)
			} else {
				seen[key] = row
			}
		}
	}

	for _, cols := range k.referenced[t] {
		key, ok := keyOf(cols, values)
		if !ok {
			continue
		}
		bySig := k.values[t]
		if bySig == nil {
			bySig = make(map[string]map[string]bool)
			k.values[t] = bySig
		}
		sig := signature(cols)
		if bySig[sig] == nil {
			bySig[sig] = make(map[string]bool)
		}
		bySig[sig][key] = true
	}

	for _, fk := range t.Schema.ForeignKeys {
		key, ok := keyOf(fk.ColumnReference, values)
		target := k.group.Target(fk.Reference)
		if !ok || target == nil {
			continue
		}
		k.pending = append(k.pending, pendingRef{
			table:   t.URL,
			row:     row,
			columns: fk.ColumnReference,
			target:  target,
			sig:     signature(fk.Reference.ColumnReference),
			key:     key,
		})
	}
}

// checkForeignKeys reports every recorded reference with no matching row in
// its target table.
func (k *keyIndex) checkForeignKeys(tr *issues.Tracker) {
	defer tr.ClearTable()
	for _, ref := range k.pending {
		if k.values[ref.target][ref.sig][ref.key] {
			continue
		}
		if err := tr.Update(issues.Update{Table: issues.Set(ref.table), Row: issues.Set(ref.row)}); err != nil {
			continue
		}
		tr.Errorf(true, "foreign key %s: value %q not found in %s",
			signature(ref.columns), strings.ReplaceAll(ref.key, "\x1e", ","), ref.target.URL)
	}
}
