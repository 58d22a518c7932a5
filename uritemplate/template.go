// Package uritemplate expands RFC 6570 URI templates from row values and
// recovers a column value from an expanded IRI.
package uritemplate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type operator struct {
	first   string
	sep     string
	named   bool
	ifEmpty string
	// reserved operators keep reserved characters and pct-encoded triplets.
	reserved bool
}

var operators = map[byte]operator{
	0:   {first: "", sep: ","},
	'+': {first: "", sep: ",", reserved: true},
	'#': {first: "#", sep: ",", reserved: true},
	'.': {first: ".", sep: "."},
	'/': {first: "/", sep: "/"},
	';': {first: ";", sep: ";", named: true},
	'?': {first: "?", sep: "&", named: true, ifEmpty: "="},
	'&': {first: "&", sep: "&", named: true, ifEmpty: "="},
}

type varSpec struct {
	name    string
	prefix  int
	explode bool
}

type expression struct {
	op   byte
	vars []varSpec
}

type part struct {
	literal string
	expr    *expression
}

// Template is a parsed URI template. It is immutable and safe to share.
type Template struct {
	raw   string
	parts []part

	pattern *regexp.Regexp
	groups  map[string][]string
}

// Parse parses a template.
func Parse(raw string) (*Template, error) {
	t := &Template{raw: raw}
	rest := raw
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return nil, fmt.Errorf("uritemplate: unmatched '}' in %q", raw)
			}
			t.parts = append(t.parts, part{literal: rest})
			break
		}
		if open > 0 {
			if strings.IndexByte(rest[:open], '}') >= 0 {
				return nil, fmt.Errorf("uritemplate: unmatched '}' in %q", raw)
			}
			t.parts = append(t.parts, part{literal: rest[:open]})
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("uritemplate: unclosed expression in %q", raw)
		}
		expr, err := parseExpression(rest[open+1 : open+end])
		if err != nil {
			return nil, fmt.Errorf("uritemplate: %w in %q", err, raw)
		}
		t.parts = append(t.parts, part{expr: expr})
		rest = rest[open+end+1:]
	}
	if err := t.compile(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustParse is Parse that panics on error. For constants in tests and
// package-level variables.
func MustParse(raw string) *Template {
	t, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func parseExpression(body string) (*expression, error) {
	if body == "" {
		return nil, fmt.Errorf("empty expression")
	}
	expr := &expression{}
	if _, ok := operators[body[0]]; ok && body[0] != 0 {
		expr.op = body[0]
		body = body[1:]
	} else if strings.ContainsRune("=,!@|", rune(body[0])) {
		return nil, fmt.Errorf("reserved operator %q", body[0])
	}
	for _, spec := range strings.Split(body, ",") {
		v := varSpec{name: spec}
		if name, ok := strings.CutSuffix(spec, "*"); ok {
			v.name = name
			v.explode = true
		} else if name, length, ok := strings.Cut(spec, ":"); ok {
			n, err := strconv.Atoi(length)
			if err != nil || n <= 0 || n >= 10000 {
				return nil, fmt.Errorf("invalid prefix length %q", length)
			}
			v.name = name
			v.prefix = n
		}
		if !validVarName(v.name) {
			return nil, fmt.Errorf("invalid variable name %q", v.name)
		}
		expr.vars = append(expr.vars, v)
	}
	return expr, nil
}

func validVarName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_', ch == '.':
		case ch == '%' && i+2 < len(name) && isHex(name[i+1]) && isHex(name[i+2]):
			i += 2
		default:
			return false
		}
	}
	return true
}

// String returns the template source.
func (t *Template) String() string {
	return t.raw
}

// Variables returns the variable names in order of first appearance.
func (t *Template) Variables() []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range t.parts {
		if p.expr == nil {
			continue
		}
		for _, v := range p.expr.vars {
			if !seen[v.name] {
				seen[v.name] = true
				out = append(out, v.name)
			}
		}
	}
	return out
}

// HasVariable reports whether name appears in the template.
func (t *Template) HasVariable(name string) bool {
	_, ok := t.groups[name]
	return ok
}

// IsLiteral reports whether the template has no expressions.
func (t *Template) IsLiteral() bool {
	for _, p := range t.parts {
		if p.expr != nil {
			return false
		}
	}
	return true
}
