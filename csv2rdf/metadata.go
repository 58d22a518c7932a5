package csv2rdf

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/dialect"
	"github.com/geoknoesis/csvw-go/rdf"
)

const csvwNote = rdf.NSCSVW + "note"

func (o *output) groupMetadata(node rdf.Term, g *descriptor.TableGroup) error {
	if err := o.quad(node, rdf.RDFType, rdf.IRI{Value: rdf.CSVWTableGroup}); err != nil {
		return err
	}
	return o.annotations(node, g.Notes, g.Common, g.Language)
}

func (o *output) tableMetadata(groupNode, node rdf.Term, t *descriptor.Table) error {
	if groupNode != nil {
		if err := o.quad(groupNode, rdf.CSVWTableProp, node); err != nil {
			return err
		}
	}
	if err := o.quad(node, rdf.RDFType, rdf.IRI{Value: rdf.CSVWTable}); err != nil {
		return err
	}
	if err := o.quad(node, rdf.CSVWURL, rdf.IRI{Value: t.URL}); err != nil {
		return err
	}
	lang := ""
	if g := t.Group(); g != nil {
		lang = g.Language
	}
	return o.annotations(node, t.Notes, t.Common, lang)
}

func (o *output) rowMetadata(tableNode rdf.Term, t *descriptor.Table, row dialect.Row, subjects []rdf.Term) error {
	node := o.blanks.Next()
	quads := []rdf.Quad{
		{S: tableNode, P: rdf.IRI{Value: rdf.CSVWRowProp}, O: node},
		{S: node, P: rdf.IRI{Value: rdf.RDFType}, O: rdf.IRI{Value: rdf.CSVWRow}},
		{S: node, P: rdf.IRI{Value: rdf.CSVWRownum}, O: rdf.NewLiteral(strconv.Itoa(row.Number), rdf.NSXSD+"integer")},
		{S: node, P: rdf.IRI{Value: rdf.CSVWURL}, O: rdf.IRI{Value: t.URL + "#row=" + strconv.Itoa(row.SourceNumber)}},
	}
	for _, s := range subjects {
		quads = append(quads, rdf.Quad{S: node, P: rdf.IRI{Value: rdf.CSVWDescribes}, O: s})
	}
	for _, q := range quads {
		if err := o.put(q); err != nil {
			return err
		}
	}
	return nil
}

// annotations emits notes as csvw:note values and common properties under
// their expanded names.
func (o *output) annotations(node rdf.Term, notes []any, common map[string]any, lang string) error {
	for _, n := range notes {
		if err := o.jsonValue(node, csvwNote, n, lang); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(common))
	for k := range common {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := rdf.ExpandPrefixed(k)
		if !rdf.IsAbsoluteIRI(p) {
			continue
		}
		if err := o.jsonValue(node, p, common[k], lang); err != nil {
			return err
		}
	}
	return nil
}

// jsonValue emits a JSON-LD style value: strings become literals in the
// default language, {"@id"} becomes an IRI, {"@value"} a typed or tagged
// literal, and other objects blank nodes with their own properties.
func (o *output) jsonValue(s rdf.Term, p string, v any, lang string) error {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range x {
			if err := o.jsonValue(s, p, item, lang); err != nil {
				return err
			}
		}
		return nil
	case string:
		if lang != "" {
			return o.quad(s, p, rdf.NewLangLiteral(x, lang))
		}
		return o.quad(s, p, rdf.NewLiteral(x, ""))
	case bool:
		return o.quad(s, p, rdf.NewLiteral(strconv.FormatBool(x), rdf.NSXSD+"boolean"))
	case json.Number:
		return o.quad(s, p, numberLiteral(x.String()))
	case float64:
		return o.quad(s, p, numberLiteral(strconv.FormatFloat(x, 'f', -1, 64)))
	case map[string]any:
		return o.jsonObject(s, p, x, lang)
	}
	return nil
}

func (o *output) jsonObject(s rdf.Term, p string, obj map[string]any, lang string) error {
	if value, ok := obj["@value"]; ok {
		lexical := lexicalOf(value)
		switch {
		case obj["@type"] != nil:
			typ, _ := obj["@type"].(string)
			return o.quad(s, p, rdf.NewLiteral(lexical, rdf.ExpandPrefixed(typ)))
		case obj["@language"] != nil:
			tag, _ := obj["@language"].(string)
			return o.quad(s, p, rdf.NewLangLiteral(lexical, tag))
		}
		return o.jsonValue(s, p, value, lang)
	}

	var node rdf.Term
	if id, ok := obj["@id"].(string); ok {
		node = rdf.IRI{Value: rdf.ExpandPrefixed(id)}
	} else {
		node = o.blanks.Next()
	}
	if err := o.quad(s, p, node); err != nil {
		return err
	}
	if typ, ok := obj["@type"].(string); ok {
		if err := o.quad(node, rdf.RDFType, rdf.IRI{Value: rdf.ExpandPrefixed(typ)}); err != nil {
			return err
		}
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		if !strings.HasPrefix(k, "@") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		pred := rdf.ExpandPrefixed(k)
		if !rdf.IsAbsoluteIRI(pred) {
			continue
		}
		if err := o.jsonValue(node, pred, obj[k], lang); err != nil {
			return err
		}
	}
	return nil
}

func numberLiteral(text string) rdf.Literal {
	if _, err := strconv.ParseInt(text, 10, 64); err == nil {
		return rdf.NewLiteral(text, rdf.NSXSD+"integer")
	}
	return rdf.NewLiteral(text, rdf.NSXSD+"double")
}

func lexicalOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
