package uritemplate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/geoknoesis/csvw-go/issues"
)

// Values binds variable names to a string, a []string, or nil for undefined.
type Values map[string]any

// Expand substitutes vars into the template. Variables that are absent or
// nil expand to nothing and are returned in missing.
func (t *Template) Expand(vars Values) (result string, missing []string) {
	var b strings.Builder
	for _, p := range t.parts {
		if p.expr == nil {
			b.WriteString(encodeLiteral(p.literal))
			continue
		}
		missing = append(missing, p.expr.expand(&b, vars)...)
	}
	return b.String(), missing
}

// Expand parses raw and expands it with vars. Parse failures and missing
// variables are reported as warnings; a template that fails to parse
// expands to the empty string.
func Expand(raw string, vars Values, tr *issues.Tracker) string {
	t, err := Parse(raw)
	if err != nil {
		warn(tr, "invalid URI template: %v", err)
		return ""
	}
	out, missing := t.Expand(vars)
	for _, name := range missing {
		warn(tr, "URI template %q: no value for variable %q", raw, name)
	}
	return out
}

func (e *expression) expand(b *strings.Builder, vars Values) (missing []string) {
	op := operators[e.op]
	first := true
	for _, v := range e.vars {
		values, defined := lookup(vars, v.name)
		if !defined {
			missing = append(missing, v.name)
			continue
		}
		if first {
			b.WriteString(op.first)
			first = false
		} else {
			b.WriteString(op.sep)
		}
		if v.explode && len(values) > 1 {
			for i, value := range values {
				if i > 0 {
					b.WriteString(op.sep)
				}
				writeNamed(b, op, v.name, encode(value, op.reserved))
			}
			continue
		}
		encoded := make([]string, len(values))
		for i, value := range values {
			if v.prefix > 0 {
				value = truncateRunes(value, v.prefix)
			}
			encoded[i] = encode(value, op.reserved)
		}
		writeNamed(b, op, v.name, strings.Join(encoded, ","))
	}
	return missing
}

func writeNamed(b *strings.Builder, op operator, name, value string) {
	if op.named {
		b.WriteString(name)
		if value == "" {
			b.WriteString(op.ifEmpty)
			return
		}
		b.WriteByte('=')
	}
	b.WriteString(value)
}

func lookup(vars Values, name string) ([]string, bool) {
	raw, ok := vars[name]
	if !ok || raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case string:
		return []string{v}, true
	case []string:
		if len(v) == 0 {
			return nil, false
		}
		return v, true
	case fmt.Stringer:
		return []string{v.String()}, true
	default:
		return []string{fmt.Sprint(v)}, true
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

const upperHex = "0123456789ABCDEF"

func isUnreserved(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '.' || ch == '_' || ch == '~'
}

func isReserved(ch byte) bool {
	return strings.IndexByte(":/?#[]@!$&'()*+,;=", ch) >= 0
}

func isHex(ch byte) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

// encode percent-encodes value. With reserved set, reserved characters and
// existing pct-encoded triplets pass through.
func encode(value string, reserved bool) string {
	var b strings.Builder
	for i := 0; i < len(value); i++ {
		ch := value[i]
		switch {
		case isUnreserved(ch):
			b.WriteByte(ch)
		case reserved && isReserved(ch):
			b.WriteByte(ch)
		case reserved && ch == '%' && i+2 < len(value) && isHex(value[i+1]) && isHex(value[i+2]):
			b.WriteString(value[i : i+3])
			i += 2
		default:
			b.WriteByte('%')
			b.WriteByte(upperHex[ch>>4])
			b.WriteByte(upperHex[ch&0x0f])
		}
	}
	return b.String()
}

// encodeLiteral copies template literals, escaping only characters that
// cannot appear in an IRI.
func encodeLiteral(s string) string {
	if !strings.ContainsAny(s, " \"<>\\^`{|}") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if strings.IndexByte(" \"<>\\^`{|}", ch) >= 0 {
			b.WriteByte('%')
			b.WriteByte(upperHex[ch>>4])
			b.WriteByte(upperHex[ch&0x0f])
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}

func warn(tr *issues.Tracker, format string, args ...any) {
	if tr != nil {
		tr.Warnf(format, args...)
	}
}
