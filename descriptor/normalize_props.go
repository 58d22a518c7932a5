package descriptor

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/language"

	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/uritemplate"
)

func (n *normalizer) inherited(obj map[string]any, dst *Inherited) {
	for _, key := range []string{"aboutUrl", "propertyUrl", "valueUrl"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			n.tr.Warnf("%s must be a string, got %v", key, raw)
			continue
		}
		if _, err := uritemplate.Parse(s); err != nil {
			n.tr.Warnf("%s is not a valid URI template: %v", key, err)
			s = ""
		}
		switch key {
		case "aboutUrl":
			dst.AboutURL = &s
		case "propertyUrl":
			dst.PropertyURL = &s
		case "valueUrl":
			dst.ValueURL = &s
		}
	}

	if raw, ok := obj["default"]; ok {
		if s, ok := raw.(string); ok {
			dst.Default = &s
		} else {
			n.tr.Warnf("default must be a string, got %v", raw)
		}
	}
	if raw, ok := obj["lang"]; ok {
		if s, ok := raw.(string); ok && validLang(s) {
			dst.Lang = &s
		} else {
			n.tr.Warnf("lang %v is not a valid language tag", raw)
		}
	}
	if raw, ok := obj["null"]; ok {
		dst.Null = n.nullValues(raw)
	}
	for _, key := range []string{"ordered", "required"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		b, ok := raw.(bool)
		if !ok {
			n.tr.Warnf("%s must be a boolean, got %v", key, raw)
			continue
		}
		if key == "ordered" {
			dst.Ordered = &b
		} else {
			dst.Required = &b
		}
	}
	if raw, ok := obj["separator"]; ok {
		switch v := raw.(type) {
		case nil:
			empty := ""
			dst.Separator = &empty
		case string:
			dst.Separator = &v
		default:
			n.tr.Warnf("separator must be a string or null, got %v", raw)
		}
	}
	if _, ok := obj["textDirection"]; ok {
		if d := n.direction(obj["textDirection"], "textDirection", []string{"rtl", "ltr", "auto", "inherit"}); d != "" {
			dst.TextDirection = &d
		}
	}
	if raw, ok := obj["datatype"]; ok {
		dst.Datatype = n.datatype(raw)
	}
}

func (n *normalizer) nullValues(raw any) []string {
	switch v := raw.(type) {
	case string:
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				n.tr.Warnf("null value %v is not a string and was ignored", item)
			}
		}
		return out
	default:
		n.tr.Warnf("null must be a string or array of strings, got %v", raw)
		return nil
	}
}

func (n *normalizer) direction(raw any, key string, allowed []string) string {
	if raw == nil {
		return ""
	}
	s, ok := raw.(string)
	if !ok || !slices.Contains(allowed, s) {
		n.tr.Warnf("%s must be one of %s, got %v", key, strings.Join(allowed, ", "), raw)
		return ""
	}
	return s
}

func validLang(tag string) bool {
	if tag == "und" {
		return true
	}
	_, err := language.Parse(tag)
	return err == nil
}

func (n *normalizer) dialect(raw any) *Dialect {
	var obj map[string]any
	switch v := raw.(type) {
	case nil:
		return nil
	case map[string]any:
		obj = v
	case string:
		fetched, _, err := n.fetchObject(v, "dialect")
		if err != nil {
			n.tr.Warnf("dialect ignored: %v", err)
			return nil
		}
		obj = fetched
	default:
		n.tr.Warnf("dialect must be an object or URL, got %v", raw)
		return nil
	}

	d := DefaultDialect()
	n.filterKeys(obj, dialectKeys, "dialect")
	headerSet := false
	for key, v := range obj {
		switch key {
		case "commentPrefix", "delimiter", "quoteChar":
			s, ok := v.(string)
			if !ok && !(key == "quoteChar" && v == nil) {
				n.tr.Warnf("dialect %s must be a string, got %v", key, v)
				continue
			}
			switch key {
			case "commentPrefix":
				d.CommentPrefix = s
			case "delimiter":
				if s == "" {
					n.tr.AddWarning("dialect delimiter must not be empty")
					continue
				}
				d.Delimiter = s
			case "quoteChar":
				d.QuoteChar = s
			}
		case "encoding":
			s, _ := v.(string)
			if _, err := htmlindex.Get(s); err != nil {
				n.tr.Warnf("dialect encoding %v is not supported", v)
				continue
			}
			d.Encoding = strings.ToLower(s)
		case "doubleQuote", "header", "skipBlankRows", "skipInitialSpace":
			b, ok := v.(bool)
			if !ok {
				n.tr.Warnf("dialect %s must be a boolean, got %v", key, v)
				continue
			}
			switch key {
			case "doubleQuote":
				d.DoubleQuote = b
			case "header":
				d.Header = b
				headerSet = true
			case "skipBlankRows":
				d.SkipBlankRows = b
			case "skipInitialSpace":
				d.SkipInitialSpace = b
			}
		case "headerRowCount", "skipColumns", "skipRows":
			i, ok := intValue(v)
			if !ok || i < 0 {
				n.tr.Warnf("dialect %s must be a non-negative integer, got %v", key, v)
				continue
			}
			switch key {
			case "headerRowCount":
				d.HeaderRowCount = i
			case "skipColumns":
				d.SkipColumns = i
			case "skipRows":
				d.SkipRows = i
			}
		case "lineTerminators":
			d.LineTerminators = n.lineTerminators(v)
		case "trim":
			switch t := v.(type) {
			case bool:
				d.Trim = fmt.Sprint(t)
			case string:
				if slices.Contains([]string{"true", "false", "start", "end"}, t) {
					d.Trim = t
				} else {
					n.tr.Warnf("dialect trim %q is not valid", t)
				}
			default:
				n.tr.Warnf("dialect trim must be a boolean or string, got %v", v)
			}
		}
	}
	if headerSet && !d.Header {
		if _, ok := obj["headerRowCount"]; !ok {
			d.HeaderRowCount = 0
		}
	}
	if !d.Header && d.HeaderRowCount > 0 {
		d.HeaderRowCount = 0
	}
	if d.Header && d.HeaderRowCount == 0 {
		d.Header = false
	}
	return d
}

func (n *normalizer) lineTerminators(v any) []string {
	var raw []any
	switch t := v.(type) {
	case string:
		raw = []any{t}
	case []any:
		raw = t
	default:
		n.tr.Warnf("dialect lineTerminators must be a string or array, got %v", v)
		return DefaultDialect().LineTerminators
	}
	var out []string
	for _, item := range raw {
		s, ok := item.(string)
		if !ok || s == "" {
			n.tr.Warnf("line terminator %v ignored", item)
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return DefaultDialect().LineTerminators
	}
	return out
}

func (n *normalizer) datatype(raw any) *Datatype {
	var obj map[string]any
	switch v := raw.(type) {
	case string:
		name, ok := CanonicalDatatype(v)
		if !ok {
			n.tr.Warnf("unknown datatype %q, using string", v)
			name = "string"
		}
		return &Datatype{Base: name}
	case map[string]any:
		obj = v
	default:
		n.tr.Warnf("datatype must be a string or object, got %v", raw)
		return nil
	}

	n.filterKeys(obj, datatypeKeys, "datatype")
	d := &Datatype{Base: "string"}
	if id, ok := obj["@id"].(string); ok {
		if name, builtin := DatatypeName(id); builtin {
			n.tr.Warnf("datatype @id %q must not be a builtin datatype IRI", id)
			d.Base = name
		} else {
			d.ID = rdf.ResolveIRI(n.base, id)
		}
	}
	if raw, ok := obj["base"]; ok {
		s, _ := raw.(string)
		if name, ok := CanonicalDatatype(s); ok {
			d.Base = name
		} else {
			n.tr.Warnf("unknown datatype base %v, using string", raw)
		}
	}

	switch f := obj["format"].(type) {
	case nil:
	case string:
		d.Format = f
	case map[string]any:
		if p, ok := f["pattern"].(string); ok {
			d.Format = p
		}
		if s, ok := f["decimalChar"].(string); ok {
			d.DecimalChar = s
		}
		if s, ok := f["groupChar"].(string); ok {
			d.GroupChar = s
		}
	default:
		n.tr.Warnf("datatype format must be a string or object, got %v", f)
	}

	d.Length = n.datatypeLength(obj, "length")
	d.MinLength = n.datatypeLength(obj, "minLength")
	d.MaxLength = n.datatypeLength(obj, "maxLength")
	if d.Length != nil {
		if d.MinLength != nil && *d.MinLength > *d.Length {
			n.tr.AddWarning("datatype minLength exceeds length")
			d.MinLength = nil
		}
		if d.MaxLength != nil && *d.MaxLength < *d.Length {
			n.tr.AddWarning("datatype maxLength is less than length")
			d.MaxLength = nil
		}
	}
	if d.MinLength != nil && d.MaxLength != nil && *d.MinLength > *d.MaxLength {
		n.tr.AddWarning("datatype minLength exceeds maxLength")
		d.MinLength, d.MaxLength = nil, nil
	}

	d.MinInclusive = n.bound(obj, "minInclusive", "minimum")
	d.MaxInclusive = n.bound(obj, "maxInclusive", "maximum")
	d.MinExclusive = n.bound(obj, "minExclusive")
	d.MaxExclusive = n.bound(obj, "maxExclusive")
	if d.MinInclusive != nil && d.MinExclusive != nil {
		n.tr.AddWarning("datatype sets both minInclusive and minExclusive")
		d.MinExclusive = nil
	}
	if d.MaxInclusive != nil && d.MaxExclusive != nil {
		n.tr.AddWarning("datatype sets both maxInclusive and maxExclusive")
		d.MaxExclusive = nil
	}
	return d
}

func (n *normalizer) datatypeLength(obj map[string]any, key string) *int {
	raw, ok := obj[key]
	if !ok {
		return nil
	}
	i, ok := intValue(raw)
	if !ok || i < 0 {
		n.tr.Warnf("datatype %s must be a non-negative integer, got %v", key, raw)
		return nil
	}
	return &i
}

// bound reads the first present key as a lexical bound.
func (n *normalizer) bound(obj map[string]any, keys ...string) *string {
	for _, key := range keys {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case string:
			return &v
		case json.Number:
			s := v.String()
			return &s
		case float64:
			s := fmt.Sprint(v)
			return &s
		default:
			n.tr.Warnf("datatype %s must be a number or string, got %v", key, raw)
		}
	}
	return nil
}

func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case float64:
		if t != math.Trunc(t) {
			return 0, false
		}
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}
