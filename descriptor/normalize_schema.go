package descriptor

import (
	"sort"

	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
)

func (n *normalizer) schema(raw any) (*Schema, error) {
	var obj map[string]any
	switch v := raw.(type) {
	case nil:
		return &Schema{}, nil
	case string:
		fetched, url, err := n.fetchObject(v, "tableSchema")
		if err != nil {
			return nil, err
		}
		obj = fetched
		if _, ok := obj["@id"]; !ok {
			obj["@id"] = url
		}
	case map[string]any:
		// A group schema is shared by every table, so each gets its own copy.
		obj = cloneObject(v)
	default:
		n.tr.Warnf("tableSchema must be an object or URL, got %v", raw)
		return &Schema{}, nil
	}

	s := &Schema{}
	if err := n.checkNode(obj, "Schema", &s.ID); err != nil {
		return nil, err
	}
	s.Common = n.filterKeys(obj, schemaKeys, "schema")
	n.inherited(obj, &s.Inherited)

	if raw, ok := obj["columns"]; ok {
		items, ok := raw.([]any)
		if !ok {
			n.tr.Warnf("columns must be an array, got %v", raw)
		}
		if err := n.columns(s, items); err != nil {
			return nil, err
		}
	}
	s.PrimaryKey = n.columnRefs(s, obj["primaryKey"], "primaryKey")
	s.RowTitles = n.columnRefs(s, obj["rowTitles"], "rowTitles")
	if raw, ok := obj["foreignKeys"]; ok {
		fks, err := n.foreignKeys(s, raw)
		if err != nil {
			return nil, err
		}
		s.ForeignKeys = fks
	}
	return s, nil
}

func (n *normalizer) columns(s *Schema, items []any) error {
	seen := map[string]bool{}
	virtualSeen := false
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			n.tr.Warnf("columns[%d] is not an object and was ignored", i)
			continue
		}
		number := len(s.Columns) + 1
		_ = n.tr.Update(issues.Update{Column: issues.Set(number)})

		c := &Column{}
		if err := n.checkNode(obj, "Column", &c.ID); err != nil {
			return err
		}
		c.Common = n.filterKeys(obj, columnKeys, "column")
		n.inherited(obj, &c.Inherited)
		c.Titles, c.TitlesByLang = n.titles(obj["titles"])
		for _, key := range []string{"virtual", "suppressOutput"} {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			b, ok := raw.(bool)
			if !ok {
				n.tr.Warnf("column %s must be a boolean, got %v", key, raw)
				continue
			}
			if key == "virtual" {
				c.Virtual = b
			} else {
				c.SuppressOutput = b
			}
		}

		if raw, ok := obj["name"]; ok {
			name, _ := raw.(string)
			if ValidColumnName(name) {
				c.Name = name
			} else {
				n.tr.Warnf("column name %v is not valid", raw)
			}
		}
		if c.Name == "" {
			c.Name = DefaultColumnName(c.Titles, number)
		}

		if seen[c.Name] {
			_ = n.tr.Errorf(true, "duplicate column name %q", c.Name)
			continue
		}
		if virtualSeen && !c.Virtual {
			_ = n.tr.Errorf(true, "column %q follows a virtual column but is not virtual", c.Name)
			c.Virtual = true
		}
		virtualSeen = virtualSeen || c.Virtual
		seen[c.Name] = true
		s.Columns = append(s.Columns, c)
	}
	n.tr.ClearColumn()
	return nil
}

// titles reads a natural language property: a string, an array of strings,
// or an object keyed by language tag.
func (n *normalizer) titles(raw any) ([]string, map[string][]string) {
	strs := func(v any) []string {
		switch t := v.(type) {
		case string:
			return []string{t}
		case []any:
			var out []string
			for _, item := range t {
				if s, ok := item.(string); ok {
					out = append(out, s)
				} else {
					n.tr.Warnf("title %v is not a string and was ignored", item)
				}
			}
			return out
		}
		n.tr.Warnf("titles value %v is not valid", v)
		return nil
	}
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		byLang := map[string][]string{}
		var all []string
		for _, tag := range sortedKeys(v) {
			if !validLang(tag) {
				n.tr.Warnf("titles language %q is not valid", tag)
				continue
			}
			list := strs(v[tag])
			byLang[tag] = list
			all = append(all, list...)
		}
		return all, byLang
	default:
		list := strs(v)
		lang := n.lang
		if lang == "" {
			lang = "und"
		}
		return list, map[string][]string{lang: list}
	}
}

// columnRefs resolves a column reference property. Unknown names are
// reported and the whole reference is dropped.
func (n *normalizer) columnRefs(s *Schema, raw any, key string) []string {
	names := stringList(raw)
	if raw != nil && names == nil {
		n.tr.Warnf("%s must be a string or array of strings", key)
		return nil
	}
	for _, name := range names {
		if s.Column(name) == nil {
			_ = n.tr.Errorf(true, "%s references unknown column %q", key, name)
			return nil
		}
	}
	return names
}

func (n *normalizer) foreignKeys(s *Schema, raw any) ([]ForeignKey, error) {
	items, ok := raw.([]any)
	if !ok {
		n.tr.Warnf("foreignKeys must be an array, got %v", raw)
		return nil, nil
	}
	var out []ForeignKey
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, n.tr.Errorf(false, "foreignKeys[%d] is not an object", i)
		}
		for k := range obj {
			if k != "columnReference" && k != "reference" {
				return nil, n.tr.Errorf(false, "foreignKeys[%d] has unexpected property %q", i, k)
			}
		}
		ref, ok := obj["reference"].(map[string]any)
		if !ok {
			return nil, n.tr.Errorf(false, "foreignKeys[%d] has no reference object", i)
		}
		fk := ForeignKey{
			ColumnReference: stringList(obj["columnReference"]),
			Reference: Reference{
				ColumnReference: stringList(ref["columnReference"]),
			},
		}
		if len(fk.ColumnReference) == 0 || len(fk.Reference.ColumnReference) == 0 {
			return nil, n.tr.Errorf(false, "foreignKeys[%d] needs columnReference on both sides", i)
		}
		if len(fk.ColumnReference) != len(fk.Reference.ColumnReference) {
			return nil, n.tr.Errorf(false, "foreignKeys[%d] column counts differ", i)
		}
		resource, hasResource := ref["resource"].(string)
		schemaRef, hasSchema := ref["schemaReference"].(string)
		if hasResource == hasSchema {
			return nil, n.tr.Errorf(false, "foreignKeys[%d] reference needs exactly one of resource or schemaReference", i)
		}
		if hasResource {
			fk.Reference.Resource = rdf.ResolveIRI(n.base, resource)
		} else {
			fk.Reference.SchemaReference = rdf.ResolveIRI(n.base, schemaRef)
		}

		dropped := false
		for _, name := range fk.ColumnReference {
			if s.Column(name) == nil {
				_ = n.tr.Errorf(true, "foreign key references unknown local column %q", name)
				dropped = true
				break
			}
		}
		if !dropped {
			out = append(out, fk)
		}
	}
	return out, nil
}

// checkKeys validates foreign key targets once every table is known.
func (n *normalizer) checkKeys(g *TableGroup) error {
	for _, t := range g.Tables {
		_ = n.tr.Update(issues.Update{Table: issues.Set(t.URL)})
		for _, fk := range t.Schema.ForeignKeys {
			target := g.Target(fk.Reference)
			if target == nil {
				return n.tr.Errorf(false, "foreign key target %s%s is not in the table group",
					fk.Reference.Resource, fk.Reference.SchemaReference)
			}
			for _, name := range fk.Reference.ColumnReference {
				if target.Schema.Column(name) == nil {
					return n.tr.Errorf(false, "foreign key references unknown column %q in %s", name, target.URL)
				}
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func stringList(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil
			}
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}

func cloneObject(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneObject(t)
		case []any:
			items := make([]any, len(t))
			for i, item := range t {
				if m, ok := item.(map[string]any); ok {
					items[i] = cloneObject(m)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}
