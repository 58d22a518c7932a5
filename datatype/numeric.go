package datatype

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/issues"
)

// intRange bounds an integer-derived type. A nil bound is unbounded.
type intRange struct {
	min, max *decimal.Decimal
}

func bound(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

var integerTypes = map[string]intRange{
	"integer":            {},
	"long":               {bound("-9223372036854775808"), bound("9223372036854775807")},
	"int":                {bound("-2147483648"), bound("2147483647")},
	"short":              {bound("-32768"), bound("32767")},
	"byte":               {bound("-128"), bound("127")},
	"nonNegativeInteger": {bound("0"), nil},
	"positiveInteger":    {bound("1"), nil},
	"unsignedLong":       {bound("0"), bound("18446744073709551615")},
	"unsignedInt":        {bound("0"), bound("4294967295")},
	"unsignedShort":      {bound("0"), bound("65535")},
	"unsignedByte":       {bound("0"), bound("255")},
	"nonPositiveInteger": {nil, bound("0")},
	"negativeInteger":    {nil, bound("-1")},
}

// Numeric handles xsd:decimal, xsd:double, xsd:float and the integer types.
type Numeric struct{}

func (Numeric) Name() string { return "numeric" }

func (Numeric) Match(dt *descriptor.Datatype) bool {
	switch name := dt.BaseName(); name {
	case "decimal", "double", "float":
		return true
	default:
		_, ok := integerTypes[name]
		return ok
	}
}

func isFloating(name string) bool {
	return name == "double" || name == "float"
}

func (n Numeric) Parse(cell string, dt *descriptor.Datatype, tr *issues.Tracker) string {
	name := dt.BaseName()
	if isFloating(name) {
		if special, ok := floatSpecial(cell); ok {
			return special
		}
	}

	lexical := cell
	if dt.Format != "" {
		p, err := compileNumberPattern(dt.Format)
		if err != nil {
			warn(tr, "invalid number format %q: %v", dt.Format, err)
		} else {
			v, err := p.parse(cell, decimalChar(dt), groupChar(dt))
			if err != nil {
				warn(tr, "%q does not match number format %q: %v", cell, dt.Format, err)
				return cell
			}
			lexical = v.String()
		}
	} else if dt.DecimalChar != "" || dt.GroupChar != "" {
		lexical = normalizeSeparators(cell, decimalChar(dt), groupChar(dt))
	}

	if !n.check(lexical, dt, tr) {
		return cell
	}
	return lexical
}

func (n Numeric) Format(lexical string, dt *descriptor.Datatype, tr *issues.Tracker) string {
	if isFloating(dt.BaseName()) {
		if special, ok := floatSpecial(lexical); ok {
			return special
		}
	}
	if !n.check(lexical, dt, tr) {
		return lexical
	}
	if dt.Format != "" {
		p, err := compileNumberPattern(dt.Format)
		if err != nil {
			warn(tr, "invalid number format %q: %v", dt.Format, err)
			return lexical
		}
		v, err := decimal.NewFromString(lexical)
		if err != nil {
			return lexical
		}
		return p.format(v, decimalChar(dt), groupChar(dt))
	}
	if dt.DecimalChar != "" && dt.DecimalChar != "." {
		return strings.Replace(lexical, ".", dt.DecimalChar, 1)
	}
	return lexical
}

// check reports whether lexical is in the lexical space and range of the
// datatype. Declared bounds are checked too but only warn.
func (Numeric) check(lexical string, dt *descriptor.Datatype, tr *issues.Tracker) bool {
	name := dt.BaseName()
	if isFloating(name) {
		f, err := strconv.ParseFloat(lexical, 64)
		if err != nil {
			warn(tr, "%q is not a valid %s", lexical, name)
			return false
		}
		if name == "float" && math.Abs(f) > math.MaxFloat32 {
			warn(tr, "%q is out of range for float", lexical)
			return false
		}
		checkBounds(lexical, decimal.NewFromFloat(f), dt, tr)
		return true
	}

	if strings.ContainsAny(lexical, "eE") {
		warn(tr, "%q is not a valid %s", lexical, name)
		return false
	}
	v, err := decimal.NewFromString(lexical)
	if err != nil {
		warn(tr, "%q is not a valid %s", lexical, name)
		return false
	}
	if r, ok := integerTypes[name]; ok {
		if !v.IsInteger() || strings.Contains(lexical, ".") {
			warn(tr, "%q is not a valid %s", lexical, name)
			return false
		}
		if (r.min != nil && v.LessThan(*r.min)) || (r.max != nil && v.GreaterThan(*r.max)) {
			warn(tr, "%q is out of range for %s", lexical, name)
			return false
		}
	}
	checkBounds(lexical, v, dt, tr)
	return true
}

func checkBounds(lexical string, v decimal.Decimal, dt *descriptor.Datatype, tr *issues.Tracker) {
	type rule struct {
		limit *string
		ok    func(cmp int) bool
		what  string
	}
	rules := []rule{
		{dt.MinInclusive, func(c int) bool { return c >= 0 }, "less than minimum"},
		{dt.MaxInclusive, func(c int) bool { return c <= 0 }, "greater than maximum"},
		{dt.MinExclusive, func(c int) bool { return c > 0 }, "not greater than exclusive minimum"},
		{dt.MaxExclusive, func(c int) bool { return c < 0 }, "not less than exclusive maximum"},
	}
	for _, r := range rules {
		if r.limit == nil {
			continue
		}
		limit, err := decimal.NewFromString(*r.limit)
		if err != nil {
			warn(tr, "invalid numeric bound %q", *r.limit)
			continue
		}
		if !r.ok(v.Cmp(limit)) {
			warn(tr, "%s is %s %s", lexical, r.what, *r.limit)
		}
	}
}

func floatSpecial(s string) (string, bool) {
	switch s {
	case "NaN", "INF", "-INF":
		return s, true
	}
	return "", false
}

func decimalChar(dt *descriptor.Datatype) string {
	if dt.DecimalChar != "" {
		return dt.DecimalChar
	}
	return "."
}

func groupChar(dt *descriptor.Datatype) string {
	if dt.GroupChar != "" {
		return dt.GroupChar
	}
	if dt.DecimalChar == "," {
		return "."
	}
	return ","
}

func normalizeSeparators(cell, decimalSep, groupSep string) string {
	s := strings.ReplaceAll(cell, groupSep, "")
	if decimalSep != "." {
		s = strings.Replace(s, decimalSep, ".", 1)
	}
	return s
}
