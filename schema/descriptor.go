package schema

import (
	"slices"

	"github.com/geoknoesis/csvw-go/descriptor"
)

// Descriptor returns the schema as a linked descriptor.TableGroup. The
// schema is locked first.
func (g *TableGroupSchema) Descriptor() *descriptor.TableGroup {
	g.Lock()
	out := &descriptor.TableGroup{}
	for _, t := range g.Tables {
		dt := &descriptor.Table{URL: t.URL, Schema: &descriptor.Schema{}}
		if t.AboutURL != "" {
			dt.Schema.AboutURL = ptr(t.AboutURL)
		}
		for _, c := range t.Columns {
			dt.Schema.Columns = append(dt.Schema.Columns, c.descriptor())
		}
		dt.Schema.PrimaryKey = slices.Clone(t.PrimaryKey)
		for _, fk := range t.ForeignKeys {
			dt.Schema.ForeignKeys = append(dt.Schema.ForeignKeys, descriptor.ForeignKey{
				ColumnReference: slices.Clone(fk.Columns),
				Reference: descriptor.Reference{
					Resource:        fk.Table,
					ColumnReference: slices.Clone(fk.References),
				},
			})
		}
		out.Tables = append(out.Tables, dt)
	}
	out.Link()
	return out
}

func (c *Column) descriptor() *descriptor.Column {
	dc := &descriptor.Column{
		Name:           c.Name,
		Titles:         slices.Clone(c.Titles),
		Virtual:        c.Virtual,
		SuppressOutput: c.SuppressOutput,
	}
	if len(dc.Titles) == 0 && !c.Virtual {
		dc.Titles = []string{c.Name}
	}
	if len(dc.Titles) > 0 {
		dc.TitlesByLang = map[string][]string{"und": dc.Titles}
	}
	set := func(dst **string, v string) {
		if v != "" {
			*dst = ptr(v)
		}
	}
	set(&dc.AboutURL, c.AboutURL)
	set(&dc.PropertyURL, c.PropertyURL)
	set(&dc.ValueURL, c.ValueURL)
	set(&dc.Lang, c.Lang)
	dc.Datatype = c.Datatype
	if c.Separator != nil {
		dc.Separator = ptr(*c.Separator)
	}
	if c.Required {
		dc.Required = ptr(true)
	}
	return dc
}

// FromDescriptor builds an editable schema from a normalized descriptor.
// Inherited properties are resolved onto each column, so the result
// describes the same output without relying on inheritance.
func FromDescriptor(g *descriptor.TableGroup) *TableGroupSchema {
	out := New()
	for _, t := range g.Tables {
		ts := &TableSchema{URL: t.URL, PrimaryKey: slices.Clone(t.Schema.PrimaryKey)}
		for _, c := range t.Schema.Columns {
			p := c.Props()
			col := &Column{
				Name:           c.Name,
				Titles:         slices.Clone(c.Titles),
				AboutURL:       p.AboutURL,
				PropertyURL:    p.PropertyURL,
				ValueURL:       p.ValueURL,
				Required:       p.Required,
				Virtual:        c.Virtual,
				SuppressOutput: c.SuppressOutput,
			}
			if p.Lang != "und" {
				col.Lang = p.Lang
			}
			if p.Datatype.BaseName() != "string" || p.Datatype.ID != "" || p.Datatype.Format != "" {
				col.Datatype = p.Datatype
			}
			if p.Separator != "" {
				col.Separator = ptr(p.Separator)
			}
			ts.Columns = append(ts.Columns, col)
		}
		ts.AboutURL = commonAboutURL(ts.Columns)
		for _, fk := range t.Schema.ForeignKeys {
			target := g.Target(fk.Reference)
			if target == nil {
				continue
			}
			ts.ForeignKeys = append(ts.ForeignKeys, ForeignKey{
				Columns:    slices.Clone(fk.ColumnReference),
				Table:      target.URL,
				References: slices.Clone(fk.Reference.ColumnReference),
			})
		}
		out.Tables = append(out.Tables, ts)
	}
	return out
}

// commonAboutURL lifts an aboutUrl shared by every column to the table.
func commonAboutURL(cols []*Column) string {
	if len(cols) == 0 || cols[0].AboutURL == "" {
		return ""
	}
	about := cols[0].AboutURL
	for _, c := range cols[1:] {
		if c.AboutURL != about {
			return ""
		}
	}
	for _, c := range cols {
		c.AboutURL = ""
	}
	return about
}

func ptr[T any](v T) *T { return &v }
