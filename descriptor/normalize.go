package descriptor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
)

// CSVWContext is the required @context value.
const CSVWContext = "http://www.w3.org/ns/csvw"

// Fetcher loads a referenced JSON document such as a tableSchema URL.
type Fetcher interface {
	ResolveJSONLD(ctx context.Context, url, base string) (any, error)
}

// Options configures Normalize.
type Options struct {
	// Base is the URL of the descriptor document.
	Base string
	// Fetcher loads schemas and dialects given by URL. Nil disables loading.
	Fetcher Fetcher
	// Tracker receives issues. Nil uses a fresh tracker.
	Tracker *issues.Tracker
}

type normalizer struct {
	ctx     context.Context
	tr      *issues.Tracker
	fetcher Fetcher
	base    string
	lang    string
}

// Normalize validates a CSVW metadata descriptor and returns it as a linked
// TableGroup. Input is JSON as []byte, string, json.RawMessage or io.Reader,
// or an already decoded map[string]any. Recoverable problems are recorded on
// the tracker; structural problems return an error of kind
// errs.KindStructural and resolution failures errs.KindResolution.
func Normalize(ctx context.Context, input any, opts Options) (*TableGroup, error) {
	tr := opts.Tracker
	if tr == nil {
		tr = issues.New()
	}
	obj, err := decodeObject(input)
	if err != nil {
		return nil, tr.Errorf(false, "descriptor is not a JSON object: %v", err)
	}
	obj = canonicalizeKeys(obj).(map[string]any)

	n := &normalizer{ctx: ctx, tr: tr, fetcher: opts.Fetcher, base: opts.Base}
	n.readContext(obj["@context"])
	delete(obj, "@context")
	defer tr.ClearTable()

	kind := typeName(obj["@type"])
	if kind == "" {
		kind = "Table"
		if _, ok := obj["tables"]; ok {
			kind = "TableGroup"
		}
	}

	var group *TableGroup
	switch kind {
	case "TableGroup":
		group, err = n.tableGroup(obj)
	case "Table":
		group = &TableGroup{}
		var table *Table
		table, err = n.table(obj, nil)
		if err == nil {
			group.Tables = []*Table{table}
		}
	default:
		return nil, tr.Errorf(false, "descriptor @type must be TableGroup or Table, got %q", kind)
	}
	if err != nil {
		return nil, err
	}
	group.Base = n.base
	group.Language = n.lang
	group.Link()
	if err := n.checkKeys(group); err != nil {
		return nil, err
	}
	return group, nil
}

func decodeObject(input any) (map[string]any, error) {
	var r io.Reader
	switch v := input.(type) {
	case map[string]any:
		return v, nil
	case []byte:
		r = bytes.NewReader(v)
	case json.RawMessage:
		r = bytes.NewReader(v)
	case string:
		r = strings.NewReader(v)
	case io.Reader:
		r = v
	default:
		return nil, fmt.Errorf("unsupported input type %T", input)
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	obj, ok := out.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top level is %T", out)
	}
	return obj, nil
}

// canonicalizeKeys strips the csvw: prefix and the full CSVW namespace from
// every object key, so later stages only see short property names.
func canonicalizeKeys(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[canonicalKey(k)] = canonicalizeKeys(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = canonicalizeKeys(item)
		}
		return val
	default:
		return v
	}
}

func canonicalKey(k string) string {
	if rest, ok := strings.CutPrefix(k, "csvw:"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(k, rdf.NSCSVW); ok {
		return rest
	}
	return k
}

func typeName(v any) string {
	s, _ := v.(string)
	return canonicalKey(s)
}

func (n *normalizer) readContext(raw any) {
	switch v := raw.(type) {
	case string:
		if v == CSVWContext {
			return
		}
	case []any:
		if len(v) == 2 {
			if s, ok := v[0].(string); ok && s == CSVWContext {
				if obj, ok := v[1].(map[string]any); ok {
					n.readContextObject(obj)
					return
				}
			}
		}
	case nil:
		n.tr.AddWarning("descriptor has no @context")
		return
	}
	n.tr.Warnf("@context must be %q or an array of it and an object", CSVWContext)
}

func (n *normalizer) readContextObject(obj map[string]any) {
	for k, v := range obj {
		switch k {
		case "@base":
			if s, ok := v.(string); ok {
				n.base = rdf.ResolveIRI(n.base, s)
			} else {
				n.tr.AddWarning("@base in @context must be a string")
			}
		case "@language":
			if s, ok := v.(string); ok && validLang(s) {
				n.lang = s
			} else {
				n.tr.Warnf("invalid @language %v in @context", v)
			}
		default:
			n.tr.Warnf("unexpected %q in @context", k)
		}
	}
}

func (n *normalizer) tableGroup(obj map[string]any) (*TableGroup, error) {
	g := &TableGroup{}
	if err := n.checkNode(obj, "TableGroup", &g.ID); err != nil {
		return nil, err
	}
	g.Common = n.filterKeys(obj, groupKeys, "table group")
	n.inherited(obj, &g.Inherited)
	g.Dialect = n.dialect(obj["dialect"])
	g.Notes = notes(obj["notes"])
	g.TableDirection = n.direction(obj["tableDirection"], "tableDirection", []string{"rtl", "ltr", "auto"})

	raw, ok := obj["tables"].([]any)
	if !ok || len(raw) == 0 {
		return nil, n.tr.AddError("table group must have a non-empty tables array", false)
	}
	for i, item := range raw {
		tobj, ok := item.(map[string]any)
		if !ok {
			n.tr.Warnf("tables[%d] is not an object and was ignored", i)
			continue
		}
		t, err := n.table(tobj, obj["tableSchema"])
		if err != nil {
			return nil, err
		}
		g.Tables = append(g.Tables, t)
	}
	if len(g.Tables) == 0 {
		return nil, n.tr.AddError("table group has no valid tables", false)
	}
	return g, nil
}

func (n *normalizer) table(obj map[string]any, groupSchema any) (*Table, error) {
	t := &Table{}
	rawURL, ok := obj["url"].(string)
	if !ok || rawURL == "" {
		return nil, n.tr.AddError("table must have a url", false)
	}
	t.URL = rdf.ResolveIRI(n.base, rawURL)
	_ = n.tr.Update(issues.Update{Table: issues.Set(t.URL)})

	if err := n.checkNode(obj, "Table", &t.ID); err != nil {
		return nil, err
	}
	t.Common = n.filterKeys(obj, tableKeys, "table")
	n.inherited(obj, &t.Inherited)
	t.Notes = notes(obj["notes"])
	t.TableDirection = n.direction(obj["tableDirection"], "tableDirection", []string{"rtl", "ltr", "auto"})
	if raw, ok := obj["dialect"]; ok {
		t.Dialect = n.dialect(raw)
	}
	if raw, ok := obj["suppressOutput"]; ok {
		if b, ok := raw.(bool); ok {
			t.SuppressOutput = b
		} else {
			n.tr.Warnf("suppressOutput must be a boolean, got %v", raw)
		}
	}

	rawSchema, ok := obj["tableSchema"]
	if !ok {
		rawSchema = groupSchema
	}
	schema, err := n.schema(rawSchema)
	if err != nil {
		return nil, err
	}
	t.Schema = schema
	return t, nil
}

func notes(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []any:
		return v
	default:
		return []any{v}
	}
}

// checkNode validates @id and @type for a node of the given kind.
func (n *normalizer) checkNode(obj map[string]any, kind string, id *string) error {
	if raw, ok := obj["@id"]; ok {
		s, ok := raw.(string)
		switch {
		case !ok:
			n.tr.Warnf("%s @id must be a string", kind)
		case strings.HasPrefix(s, "_:"):
			return n.tr.Errorf(false, "%s @id %q must not be a blank node", kind, s)
		default:
			*id = rdf.ResolveIRI(n.base, s)
		}
	}
	if raw, ok := obj["@type"]; ok {
		if got := typeName(raw); got != kind {
			return n.tr.Errorf(false, "@type %q does not match expected %s", got, kind)
		}
	}
	return nil
}

// filterKeys drops unknown keys with a warning and returns the common
// properties (prefixed names and absolute IRIs).
func (n *normalizer) filterKeys(obj map[string]any, allowed map[string]bool, level string) map[string]any {
	var common map[string]any
	for k, v := range obj {
		if allowed[k] {
			continue
		}
		if strings.Contains(k, ":") {
			if common == nil {
				common = map[string]any{}
			}
			common[k] = v
			continue
		}
		n.tr.Warnf("unknown property %q on %s was removed", k, level)
		delete(obj, k)
	}
	return common
}

// fetchObject loads a JSON object referenced by URL.
func (n *normalizer) fetchObject(ref, what string) (map[string]any, string, error) {
	url := rdf.ResolveIRI(n.base, ref)
	if n.fetcher == nil {
		return nil, "", errs.Newf(errs.KindResolution, "%s %s: no resolver configured", what, url)
	}
	doc, err := n.fetcher.ResolveJSONLD(n.ctx, url, n.base)
	if err != nil {
		return nil, "", errs.Wrap(errs.KindResolution, fmt.Sprintf("loading %s %s", what, url), err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, "", errs.Newf(errs.KindResolution, "%s %s is not a JSON object", what, url)
	}
	obj = canonicalizeKeys(obj).(map[string]any)
	delete(obj, "@context")
	return obj, url, nil
}

var (
	inheritedKeys = setOf("aboutUrl", "datatype", "default", "lang", "null", "ordered",
		"propertyUrl", "required", "separator", "textDirection", "valueUrl")
	groupKeys = withInherited("@id", "@type", "tables", "dialect", "notes", "tableDirection",
		"tableSchema", "transformations")
	tableKeys = withInherited("@id", "@type", "url", "dialect", "notes", "suppressOutput",
		"tableDirection", "tableSchema", "transformations")
	schemaKeys  = withInherited("@id", "@type", "columns", "foreignKeys", "primaryKey", "rowTitles")
	columnKeys  = withInherited("@id", "@type", "name", "suppressOutput", "titles", "virtual")
	dialectKeys = setOf("@id", "@type", "commentPrefix", "delimiter", "doubleQuote", "encoding",
		"header", "headerRowCount", "lineTerminators", "quoteChar", "skipBlankRows",
		"skipColumns", "skipInitialSpace", "skipRows", "trim")
	datatypeKeys = setOf("@id", "@type", "base", "format", "length", "minLength", "maxLength",
		"minimum", "maximum", "minInclusive", "maxInclusive", "minExclusive", "maxExclusive")
)

func withInherited(keys ...string) map[string]bool {
	m := setOf(keys...)
	for k := range inheritedKeys {
		m[k] = true
	}
	return m
}

func setOf(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}
