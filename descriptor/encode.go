package descriptor

import (
	"encoding/json"
	"reflect"
)

// ToJSON renders g as a CSVW metadata document. Default dialect values and
// unset inherited properties are omitted.
func (g *TableGroup) ToJSON() map[string]any {
	out := map[string]any{}
	if g.Base != "" || g.Language != "" {
		ctx := map[string]any{}
		if g.Base != "" {
			ctx["@base"] = g.Base
		}
		if g.Language != "" {
			ctx["@language"] = g.Language
		}
		out["@context"] = []any{CSVWContext, ctx}
	} else {
		out["@context"] = CSVWContext
	}
	out["@type"] = "TableGroup"
	if g.ID != "" {
		out["@id"] = g.ID
	}
	putInherited(out, &g.Inherited)
	putCommon(out, g.Common, g.Notes, g.TableDirection)
	if g.Dialect != nil {
		putDialect(out, g.Dialect)
	}
	tables := make([]any, 0, len(g.Tables))
	for _, t := range g.Tables {
		tables = append(tables, t.toJSON())
	}
	out["tables"] = tables
	return out
}

// MarshalJSON implements json.Marshaler.
func (g *TableGroup) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.ToJSON())
}

func (t *Table) toJSON() map[string]any {
	out := map[string]any{"url": t.URL}
	if t.ID != "" {
		out["@id"] = t.ID
	}
	if t.SuppressOutput {
		out["suppressOutput"] = true
	}
	putInherited(out, &t.Inherited)
	putCommon(out, t.Common, t.Notes, t.TableDirection)
	if t.Dialect != nil {
		putDialect(out, t.Dialect)
	}
	if t.Schema != nil {
		out["tableSchema"] = t.Schema.toJSON()
	}
	return out
}

func (s *Schema) toJSON() map[string]any {
	out := map[string]any{}
	if s.ID != "" {
		out["@id"] = s.ID
	}
	putInherited(out, &s.Inherited)
	for k, v := range s.Common {
		out[k] = v
	}
	columns := make([]any, 0, len(s.Columns))
	for _, c := range s.Columns {
		columns = append(columns, c.toJSON())
	}
	out["columns"] = columns
	if len(s.PrimaryKey) > 0 {
		out["primaryKey"] = stringsAny(s.PrimaryKey)
	}
	if len(s.RowTitles) > 0 {
		out["rowTitles"] = stringsAny(s.RowTitles)
	}
	if len(s.ForeignKeys) > 0 {
		fks := make([]any, 0, len(s.ForeignKeys))
		for _, fk := range s.ForeignKeys {
			ref := map[string]any{"columnReference": stringsAny(fk.Reference.ColumnReference)}
			if fk.Reference.Resource != "" {
				ref["resource"] = fk.Reference.Resource
			} else {
				ref["schemaReference"] = fk.Reference.SchemaReference
			}
			fks = append(fks, map[string]any{
				"columnReference": stringsAny(fk.ColumnReference),
				"reference":       ref,
			})
		}
		out["foreignKeys"] = fks
	}
	return out
}

func (c *Column) toJSON() map[string]any {
	out := map[string]any{"name": c.Name}
	if c.ID != "" {
		out["@id"] = c.ID
	}
	switch {
	case len(c.TitlesByLang) > 1:
		byLang := map[string]any{}
		for lang, list := range c.TitlesByLang {
			byLang[lang] = stringsAny(list)
		}
		out["titles"] = byLang
	case len(c.Titles) == 1:
		out["titles"] = c.Titles[0]
	case len(c.Titles) > 1:
		out["titles"] = stringsAny(c.Titles)
	}
	if c.Virtual {
		out["virtual"] = true
	}
	if c.SuppressOutput {
		out["suppressOutput"] = true
	}
	putInherited(out, &c.Inherited)
	for k, v := range c.Common {
		out[k] = v
	}
	return out
}

func putInherited(out map[string]any, in *Inherited) {
	putString := func(key string, v *string) {
		if v != nil {
			out[key] = *v
		}
	}
	putString("aboutUrl", in.AboutURL)
	putString("propertyUrl", in.PropertyURL)
	putString("valueUrl", in.ValueURL)
	putString("default", in.Default)
	putString("lang", in.Lang)
	putString("separator", in.Separator)
	putString("textDirection", in.TextDirection)
	if in.Ordered != nil {
		out["ordered"] = *in.Ordered
	}
	if in.Required != nil {
		out["required"] = *in.Required
	}
	switch len(in.Null) {
	case 0:
	case 1:
		out["null"] = in.Null[0]
	default:
		out["null"] = stringsAny(in.Null)
	}
	if in.Datatype != nil {
		out["datatype"] = in.Datatype.toJSON()
	}
}

func putCommon(out, common map[string]any, notes []any, direction string) {
	for k, v := range common {
		out[k] = v
	}
	if len(notes) > 0 {
		out["notes"] = notes
	}
	if direction != "" {
		out["tableDirection"] = direction
	}
}

func putDialect(out map[string]any, d *Dialect) {
	def := DefaultDialect()
	m := map[string]any{}
	if d.CommentPrefix != def.CommentPrefix {
		m["commentPrefix"] = d.CommentPrefix
	}
	if d.Delimiter != def.Delimiter {
		m["delimiter"] = d.Delimiter
	}
	if d.DoubleQuote != def.DoubleQuote {
		m["doubleQuote"] = d.DoubleQuote
	}
	if d.Encoding != def.Encoding {
		m["encoding"] = d.Encoding
	}
	if d.Header != def.Header {
		m["header"] = d.Header
	}
	if d.HeaderRowCount != def.HeaderRowCount && d.Header {
		m["headerRowCount"] = d.HeaderRowCount
	}
	if !reflect.DeepEqual(d.LineTerminators, def.LineTerminators) {
		m["lineTerminators"] = stringsAny(d.LineTerminators)
	}
	if d.QuoteChar != def.QuoteChar {
		m["quoteChar"] = d.QuoteChar
	}
	if d.SkipBlankRows {
		m["skipBlankRows"] = true
	}
	if d.SkipColumns > 0 {
		m["skipColumns"] = d.SkipColumns
	}
	if d.SkipInitialSpace {
		m["skipInitialSpace"] = true
	}
	if d.SkipRows > 0 {
		m["skipRows"] = d.SkipRows
	}
	if d.Trim != def.Trim {
		m["trim"] = d.Trim
	}
	out["dialect"] = m
}

func (d *Datatype) toJSON() any {
	plain := d.ID == "" && d.Format == "" && d.Length == nil && d.MinLength == nil &&
		d.MaxLength == nil && d.MinInclusive == nil && d.MaxInclusive == nil &&
		d.MinExclusive == nil && d.MaxExclusive == nil
	if plain {
		return d.BaseName()
	}
	out := map[string]any{"base": d.BaseName()}
	if d.ID != "" {
		out["@id"] = d.ID
	}
	if d.Format != "" {
		if d.DecimalChar != "" || d.GroupChar != "" {
			f := map[string]any{"pattern": d.Format}
			if d.DecimalChar != "" {
				f["decimalChar"] = d.DecimalChar
			}
			if d.GroupChar != "" {
				f["groupChar"] = d.GroupChar
			}
			out["format"] = f
		} else {
			out["format"] = d.Format
		}
	}
	for key, v := range map[string]*int{"length": d.Length, "minLength": d.MinLength, "maxLength": d.MaxLength} {
		if v != nil {
			out[key] = *v
		}
	}
	for key, v := range map[string]*string{
		"minInclusive": d.MinInclusive,
		"maxInclusive": d.MaxInclusive,
		"minExclusive": d.MinExclusive,
		"maxExclusive": d.MaxExclusive,
	} {
		if v != nil {
			out[key] = *v
		}
	}
	return out
}

func stringsAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
