// Package descriptor holds the normalized CSVW metadata graph: a TableGroup
// of Tables, each with a Schema of Columns, and the inherited properties
// that flow from the group down to each column.
package descriptor

import (
	"fmt"
	"strings"
)

// Inherited holds the properties a column inherits from its schema, table
// and group. Nil fields are unset at that level.
type Inherited struct {
	AboutURL      *string
	PropertyURL   *string
	ValueURL      *string
	Datatype      *Datatype
	Default       *string
	Lang          *string
	Null          []string
	Ordered       *bool
	Required      *bool
	Separator     *string
	TextDirection *string
}

// Datatype describes a column datatype and its constraints.
type Datatype struct {
	ID   string
	Base string
	// Format is a pattern for the base type; numeric formats may also set
	// DecimalChar and GroupChar.
	Format      string
	DecimalChar string
	GroupChar   string

	Length    *int
	MinLength *int
	MaxLength *int

	MinInclusive *string
	MaxInclusive *string
	MinExclusive *string
	MaxExclusive *string
}

// BaseName returns the canonical base datatype name, defaulting to string.
func (d *Datatype) BaseName() string {
	if d == nil || d.Base == "" {
		return "string"
	}
	name, _ := CanonicalDatatype(d.Base)
	return name
}

// IRI returns the datatype IRI: @id when set, else the base's IRI.
func (d *Datatype) IRI() string {
	if d != nil && d.ID != "" {
		return d.ID
	}
	iri, _ := DatatypeIRI(d.BaseName())
	return iri
}

// Dialect describes how a CSV file is laid out.
type Dialect struct {
	CommentPrefix    string
	Delimiter        string
	DoubleQuote      bool
	Encoding         string
	Header           bool
	HeaderRowCount   int
	LineTerminators  []string
	QuoteChar        string
	SkipBlankRows    bool
	SkipColumns      int
	SkipInitialSpace bool
	SkipRows         int
	// Trim is one of "true", "false", "start" or "end".
	Trim string
}

// DefaultDialect returns the CSVW default dialect.
func DefaultDialect() *Dialect {
	return &Dialect{
		CommentPrefix:   "#",
		Delimiter:       ",",
		DoubleQuote:     true,
		Encoding:        "utf-8",
		Header:          true,
		HeaderRowCount:  1,
		LineTerminators: []string{"\r\n", "\n"},
		QuoteChar:       `"`,
		Trim:            "true",
	}
}

// Column is one column of a table schema.
type Column struct {
	Inherited
	ID             string
	Name           string
	Titles         []string
	TitlesByLang   map[string][]string
	Virtual        bool
	SuppressOutput bool
	Common         map[string]any

	// Number is the 1-based position in the schema.
	Number int
	schema *Schema
}

// Schema describes the columns and keys of a table.
type Schema struct {
	Inherited
	ID          string
	Columns     []*Column
	PrimaryKey  []string
	RowTitles   []string
	ForeignKeys []ForeignKey
	Common      map[string]any

	table *Table
}

// ForeignKey links columns of one table to columns of another.
type ForeignKey struct {
	ColumnReference []string
	Reference       Reference
}

// Reference is the target of a foreign key. Exactly one of Resource and
// SchemaReference is set.
type Reference struct {
	Resource        string
	SchemaReference string
	ColumnReference []string
}

// Table describes one CSV file.
type Table struct {
	Inherited
	ID             string
	URL            string
	Schema         *Schema
	Dialect        *Dialect
	SuppressOutput bool
	TableDirection string
	Notes          []any
	Common         map[string]any

	group *TableGroup
}

// TableGroup is the root of a normalized descriptor.
type TableGroup struct {
	Inherited
	ID             string
	Tables         []*Table
	Dialect        *Dialect
	TableDirection string
	Notes          []any
	Common         map[string]any
	// Base is the IRI the descriptor was resolved against.
	Base string
	// Language is the default language from @context.
	Language string
}

// Props is the fully resolved set of inherited properties for a column.
type Props struct {
	AboutURL      string
	PropertyURL   string
	ValueURL      string
	Datatype      *Datatype
	Default       string
	Lang          string
	Null          []string
	Ordered       bool
	Required      bool
	Separator     string
	TextDirection string
}

// IsNull reports whether value is one of the null values.
func (p Props) IsNull(value string) bool {
	for _, n := range p.Null {
		if value == n {
			return true
		}
	}
	return false
}

// NullValue returns the representation written for a null cell.
func (p Props) NullValue() string {
	if len(p.Null) == 0 {
		return ""
	}
	return p.Null[0]
}

// Link sets the parent pointers of every table, schema and column. Normalize
// calls it; callers that build a TableGroup by hand must call it too.
func (g *TableGroup) Link() {
	for _, t := range g.Tables {
		t.group = g
		if t.Schema == nil {
			t.Schema = &Schema{}
		}
		t.Schema.table = t
		for i, c := range t.Schema.Columns {
			c.Number = i + 1
			c.schema = t.Schema
		}
	}
}

// Table returns the table with the given URL.
func (g *TableGroup) Table(url string) *Table {
	for _, t := range g.Tables {
		if t.URL == url {
			return t
		}
	}
	return nil
}

// Target returns the table a foreign key reference points at.
func (g *TableGroup) Target(ref Reference) *Table {
	if ref.Resource != "" {
		return g.Table(ref.Resource)
	}
	for _, t := range g.Tables {
		if t.Schema != nil && t.Schema.ID != "" && t.Schema.ID == ref.SchemaReference {
			return t
		}
	}
	return nil
}

// Group returns the table group that contains t.
func (t *Table) Group() *TableGroup {
	return t.group
}

// EffectiveDialect returns the table dialect, the group dialect, or the default.
func (t *Table) EffectiveDialect() *Dialect {
	if t.Dialect != nil {
		return t.Dialect
	}
	if t.group != nil && t.group.Dialect != nil {
		return t.group.Dialect
	}
	return DefaultDialect()
}

// Suppressed reports whether output for t is suppressed.
func (t *Table) Suppressed() bool {
	return t.SuppressOutput
}

// Column returns the column with the given name.
func (s *Schema) Column(name string) *Column {
	for _, c := range s.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Table returns the table that owns s.
func (s *Schema) Table() *Table {
	return s.table
}

// SourceColumns returns the non-virtual columns.
func (s *Schema) SourceColumns() []*Column {
	var out []*Column
	for _, c := range s.Columns {
		if !c.Virtual {
			out = append(out, c)
		}
	}
	return out
}

// Table returns the table that owns c.
func (c *Column) Table() *Table {
	if c.schema == nil {
		return nil
	}
	return c.schema.table
}

// Title returns the first title, or the name when the column has none.
func (c *Column) Title() string {
	if len(c.Titles) > 0 {
		return c.Titles[0]
	}
	return c.Name
}

// HasTitle reports whether title matches one of the column titles.
func (c *Column) HasTitle(title string) bool {
	for _, t := range c.Titles {
		if t == title {
			return true
		}
	}
	return false
}

// Props resolves the inherited properties of c: column, then schema, then
// table, then group, then the implicit defaults.
func (c *Column) Props() Props {
	levels := []*Inherited{&c.Inherited}
	if s := c.schema; s != nil {
		levels = append(levels, &s.Inherited)
		if t := s.table; t != nil {
			levels = append(levels, &t.Inherited)
			if g := t.group; g != nil {
				levels = append(levels, &g.Inherited)
			}
		}
	}

	p := Props{
		Null:          []string{""},
		Lang:          "und",
		TextDirection: "inherit",
	}
	pick := func(get func(*Inherited) *string) (string, bool) {
		for _, l := range levels {
			if v := get(l); v != nil {
				return *v, true
			}
		}
		return "", false
	}
	pickBool := func(get func(*Inherited) *bool) bool {
		for _, l := range levels {
			if v := get(l); v != nil {
				return *v
			}
		}
		return false
	}

	p.AboutURL, _ = pick(func(i *Inherited) *string { return i.AboutURL })
	p.PropertyURL, _ = pick(func(i *Inherited) *string { return i.PropertyURL })
	p.ValueURL, _ = pick(func(i *Inherited) *string { return i.ValueURL })
	p.Default, _ = pick(func(i *Inherited) *string { return i.Default })
	p.Separator, _ = pick(func(i *Inherited) *string { return i.Separator })
	if v, ok := pick(func(i *Inherited) *string { return i.Lang }); ok {
		p.Lang = v
	}
	if v, ok := pick(func(i *Inherited) *string { return i.TextDirection }); ok {
		p.TextDirection = v
	}
	p.Ordered = pickBool(func(i *Inherited) *bool { return i.Ordered })
	p.Required = pickBool(func(i *Inherited) *bool { return i.Required })
	for _, l := range levels {
		if l.Null != nil {
			p.Null = l.Null
			break
		}
	}
	for _, l := range levels {
		if l.Datatype != nil {
			p.Datatype = l.Datatype
			break
		}
	}
	if p.Datatype == nil {
		p.Datatype = &Datatype{Base: "string"}
	}
	return p
}

// DefaultColumnName derives a column name from its first title, or
// "_col.N" when it has none.
func DefaultColumnName(titles []string, number int) string {
	if len(titles) == 0 || titles[0] == "" {
		return fmt.Sprintf("_col.%d", number)
	}
	var b strings.Builder
	for _, ch := range []byte(titles[0]) {
		if isNameByte(ch) {
			b.WriteByte(ch)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", ch)
	}
	return b.String()
}

func isNameByte(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '.'
}

// ValidColumnName reports whether name matches the CSVW column name grammar.
func ValidColumnName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		if ch == '%' {
			if i+2 >= len(name) || !isHexByte(name[i+1]) || !isHexByte(name[i+2]) {
				return false
			}
			i += 2
			continue
		}
		if i == 0 && (ch == '_' || ch == '.') {
			return false
		}
		if !isNameByte(ch) {
			return false
		}
	}
	return true
}

func isHexByte(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
