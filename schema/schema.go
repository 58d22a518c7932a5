// Package schema is the editable table layout produced by schema inference.
// A TableGroupSchema can be changed through its methods until it is locked,
// after which it is turned into a descriptor.TableGroup for conversion.
package schema

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/geoknoesis/csvw-go/descriptor"
)

var (
	// ErrLocked is returned by every edit on a locked schema.
	ErrLocked          = errors.New("schema: locked")
	ErrDuplicateTable  = errors.New("schema: table already exists")
	ErrDuplicateColumn = errors.New("schema: column already exists")
	ErrUnknownTable    = errors.New("schema: unknown table")
	ErrUnknownColumn   = errors.New("schema: unknown column")
	// ErrInvalidColumnName is returned for names outside the column name
	// grammar.
	ErrInvalidColumnName = errors.New("schema: invalid column name")
	// ErrPrimaryKeyColumn is returned when removing a primary key column.
	ErrPrimaryKeyColumn = errors.New("schema: column is part of the primary key")
)

// Column is one column of a table.
type Column struct {
	Name   string
	Titles []string
	// Datatype is nil for plain strings.
	Datatype    *descriptor.Datatype
	AboutURL    string
	PropertyURL string
	ValueURL    string
	Lang        string
	// Separator, when set, splits the cell into a list.
	Separator      *string
	Required       bool
	Virtual        bool
	SuppressOutput bool
}

// ForeignKey says that Columns of the owning table hold values of
// References in Table.
type ForeignKey struct {
	Columns    []string
	Table      string
	References []string
}

// TableSchema describes one table.
type TableSchema struct {
	URL string
	// AboutURL is the subject template shared by the columns.
	AboutURL    string
	Columns     []*Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Column returns the named column or nil.
func (t *TableSchema) Column(name string) *Column {
	i := t.columnIndex(name)
	if i < 0 {
		return nil
	}
	return t.Columns[i]
}

func (t *TableSchema) columnIndex(name string) int {
	return slices.IndexFunc(t.Columns, func(c *Column) bool { return c.Name == name })
}

// ColumnNames returns the column names in order.
func (t *TableSchema) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// TableGroupSchema is an ordered set of tables. It is not safe for
// concurrent use.
type TableGroupSchema struct {
	Tables []*TableSchema
	locked bool
}

// New returns an empty schema.
func New() *TableGroupSchema {
	return &TableGroupSchema{}
}

// Lock freezes the schema. It is idempotent.
func (g *TableGroupSchema) Lock() { g.locked = true }

// Locked reports whether the schema is frozen.
func (g *TableGroupSchema) Locked() bool { return g.locked }

// Table returns the table with the given URL or nil.
func (g *TableGroupSchema) Table(url string) *TableSchema {
	i := g.tableIndex(url)
	if i < 0 {
		return nil
	}
	return g.Tables[i]
}

func (g *TableGroupSchema) tableIndex(url string) int {
	return slices.IndexFunc(g.Tables, func(t *TableSchema) bool { return t.URL == url })
}

func (g *TableGroupSchema) edit(url string) (*TableSchema, error) {
	if g.locked {
		return nil, ErrLocked
	}
	t := g.Table(url)
	if t == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, url)
	}
	return t, nil
}

// AddTable appends t. Its URL must be new.
func (g *TableGroupSchema) AddTable(t *TableSchema) error {
	if g.locked {
		return ErrLocked
	}
	if g.Table(t.URL) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateTable, t.URL)
	}
	g.Tables = append(g.Tables, t)
	return nil
}

// RemoveTable drops the table and every foreign key that points at it.
func (g *TableGroupSchema) RemoveTable(url string) error {
	if _, err := g.edit(url); err != nil {
		return err
	}
	g.Tables = slices.DeleteFunc(g.Tables, func(t *TableSchema) bool { return t.URL == url })
	for _, t := range g.Tables {
		t.ForeignKeys = slices.DeleteFunc(t.ForeignKeys, func(fk ForeignKey) bool { return fk.Table == url })
	}
	return nil
}

// RenameTable changes a table URL and updates foreign keys pointing at it.
func (g *TableGroupSchema) RenameTable(from, to string) error {
	t, err := g.edit(from)
	if err != nil {
		return err
	}
	if from == to {
		return nil
	}
	if g.Table(to) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateTable, to)
	}
	t.URL = to
	g.eachForeignKey(func(_ *TableSchema, fk *ForeignKey) {
		if fk.Table == from {
			fk.Table = to
		}
	})
	return nil
}

// MergeTables moves the columns and foreign keys of table from into table
// into and removes from. Columns whose names already exist in into are
// dropped. Foreign keys that pointed at from point at into afterwards.
func (g *TableGroupSchema) MergeTables(into, from string) error {
	dst, err := g.edit(into)
	if err != nil {
		return err
	}
	src, err := g.edit(from)
	if err != nil {
		return err
	}
	if dst == src {
		return nil
	}
	for _, c := range src.Columns {
		if dst.Column(c.Name) == nil {
			dst.Columns = append(dst.Columns, c)
		}
	}
	dst.ForeignKeys = append(dst.ForeignKeys, src.ForeignKeys...)
	g.Tables = slices.DeleteFunc(g.Tables, func(t *TableSchema) bool { return t == src })
	g.eachForeignKey(func(_ *TableSchema, fk *ForeignKey) {
		if fk.Table == from {
			fk.Table = into
		}
	})
	return nil
}

// AddColumn appends c to the table. Virtual columns stay last: a source
// column is inserted before the first virtual one.
func (g *TableGroupSchema) AddColumn(table string, c *Column) error {
	t, err := g.edit(table)
	if err != nil {
		return err
	}
	if !descriptor.ValidColumnName(c.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidColumnName, c.Name)
	}
	if t.Column(c.Name) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, c.Name)
	}
	at := len(t.Columns)
	if !c.Virtual {
		if i := slices.IndexFunc(t.Columns, func(c *Column) bool { return c.Virtual }); i >= 0 {
			at = i
		}
	}
	t.Columns = slices.Insert(t.Columns, at, c)
	return nil
}

// RemoveColumn drops a column that is not part of the primary key, along
// with the foreign keys that use it.
func (g *TableGroupSchema) RemoveColumn(table, name string) error {
	t, err := g.edit(table)
	if err != nil {
		return err
	}
	if t.Column(name) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	if slices.Contains(t.PrimaryKey, name) {
		return fmt.Errorf("%w: %s", ErrPrimaryKeyColumn, name)
	}
	t.Columns = slices.DeleteFunc(t.Columns, func(c *Column) bool { return c.Name == name })
	t.ForeignKeys = slices.DeleteFunc(t.ForeignKeys, func(fk ForeignKey) bool { return slices.Contains(fk.Columns, name) })
	for _, other := range g.Tables {
		other.ForeignKeys = slices.DeleteFunc(other.ForeignKeys, func(fk ForeignKey) bool {
			return fk.Table == table && slices.Contains(fk.References, name)
		})
	}
	return nil
}

// RenameColumn renames a column and every key that refers to it.
func (g *TableGroupSchema) RenameColumn(table, from, to string) error {
	t, err := g.edit(table)
	if err != nil {
		return err
	}
	c := t.Column(from)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, from)
	}
	if from == to {
		return nil
	}
	if !descriptor.ValidColumnName(to) {
		return fmt.Errorf("%w: %q", ErrInvalidColumnName, to)
	}
	if t.Column(to) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateColumn, to)
	}
	c.Name = to
	replace(t.PrimaryKey, from, to)
	t.AboutURL = renameVar(t.AboutURL, from, to)
	for _, col := range t.Columns {
		col.AboutURL = renameVar(col.AboutURL, from, to)
		col.PropertyURL = renameVar(col.PropertyURL, from, to)
		col.ValueURL = renameVar(col.ValueURL, from, to)
	}
	g.eachForeignKey(func(owner *TableSchema, fk *ForeignKey) {
		if owner == t {
			replace(fk.Columns, from, to)
		}
		if fk.Table == table {
			replace(fk.References, from, to)
		}
	})
	return nil
}

// MergeColumns folds column from into column into: titles are combined,
// keys that used from use into, and from is removed.
func (g *TableGroupSchema) MergeColumns(table, into, from string) error {
	t, err := g.edit(table)
	if err != nil {
		return err
	}
	dst, src := t.Column(into), t.Column(from)
	if dst == nil {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, into)
	}
	if src == nil {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, from)
	}
	if dst == src {
		return nil
	}
	for _, title := range src.Titles {
		if !slices.Contains(dst.Titles, title) {
			dst.Titles = append(dst.Titles, title)
		}
	}
	t.Columns = slices.DeleteFunc(t.Columns, func(c *Column) bool { return c == src })
	t.PrimaryKey = dedupe(replace(t.PrimaryKey, from, into))
	g.eachForeignKey(func(owner *TableSchema, fk *ForeignKey) {
		if owner == t {
			replace(fk.Columns, from, into)
		}
		if fk.Table == table {
			replace(fk.References, from, into)
		}
	})
	return nil
}

// SetPrimaryKey replaces the primary key. Every column must exist.
func (g *TableGroupSchema) SetPrimaryKey(table string, columns ...string) error {
	t, err := g.edit(table)
	if err != nil {
		return err
	}
	for _, name := range columns {
		if t.Column(name) == nil {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
	}
	t.PrimaryKey = slices.Clone(columns)
	return nil
}

// AddForeignKey adds fk to the table. Both column lists must name existing
// columns and have the same length.
func (g *TableGroupSchema) AddForeignKey(table string, fk ForeignKey) error {
	t, err := g.edit(table)
	if err != nil {
		return err
	}
	target := g.Table(fk.Table)
	if target == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTable, fk.Table)
	}
	if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.References) {
		return fmt.Errorf("schema: foreign key needs matching non-empty column lists, got %d and %d",
			len(fk.Columns), len(fk.References))
	}
	for _, name := range fk.Columns {
		if t.Column(name) == nil {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, name)
		}
	}
	for _, name := range fk.References {
		if target.Column(name) == nil {
			return fmt.Errorf("%w: %s in %s", ErrUnknownColumn, name, fk.Table)
		}
	}
	t.ForeignKeys = append(t.ForeignKeys, ForeignKey{
		Columns:    slices.Clone(fk.Columns),
		Table:      fk.Table,
		References: slices.Clone(fk.References),
	})
	return nil
}

func (g *TableGroupSchema) eachForeignKey(fn func(owner *TableSchema, fk *ForeignKey)) {
	for _, t := range g.Tables {
		for i := range t.ForeignKeys {
			fn(t, &t.ForeignKeys[i])
		}
	}
}

var expression = regexp.MustCompile(`\{([+#./;?&]?)([^}]*)\}`)

// renameVar renames a variable in the expressions of a URI template.
func renameVar(tmpl, from, to string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	return expression.ReplaceAllStringFunc(tmpl, func(expr string) string {
		m := expression.FindStringSubmatch(expr)
		vars := strings.Split(m[2], ",")
		for i, v := range vars {
			name, mod := v, ""
			if j := strings.IndexAny(v, ":*"); j >= 0 {
				name, mod = v[:j], v[j:]
			}
			if name == from {
				vars[i] = to + mod
			}
		}
		return "{" + m[1] + strings.Join(vars, ",") + "}"
	})
}

func replace(list []string, from, to string) []string {
	for i, v := range list {
		if v == from {
			list[i] = to
		}
	}
	return list
}

func dedupe(list []string) []string {
	var out []string
	for _, v := range list {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
