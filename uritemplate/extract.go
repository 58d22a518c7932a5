package uritemplate

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/geoknoesis/csvw-go/issues"
)

// compile builds the inverse pattern: literal runs are quoted and every
// variable becomes an optional operator prefix plus a non-greedy capture.
func (t *Template) compile() error {
	var b strings.Builder
	b.WriteByte('^')
	t.groups = map[string][]string{}
	n := 0
	for _, p := range t.parts {
		if p.expr == nil {
			b.WriteString(regexp.QuoteMeta(encodeLiteral(p.literal)))
			continue
		}
		op := operators[p.expr.op]
		for i, v := range p.expr.vars {
			lead := op.sep
			if i == 0 {
				lead = op.first
			} else if op.first != op.sep {
				// "{#a,b}": later variables are preceded by the separator but
				// the first may have been undefined, in which case "#" leads.
				lead = "(?:" + regexp.QuoteMeta(op.first) + "|" + regexp.QuoteMeta(op.sep) + ")"
			}
			if !strings.HasPrefix(lead, "(?:") {
				lead = regexp.QuoteMeta(lead)
			}
			group := fmt.Sprintf("g%d", n)
			n++
			t.groups[v.name] = append(t.groups[v.name], group)

			capture := "(?P<" + group + ">.*?)"
			switch {
			case op.named && op.ifEmpty == "":
				b.WriteString("(?:" + lead + regexp.QuoteMeta(v.name) + "(?:=" + capture + ")?)?")
			case op.named:
				b.WriteString("(?:" + lead + regexp.QuoteMeta(v.name) + "=" + capture + ")?")
			default:
				b.WriteString("(?:" + lead + capture + ")?")
			}
		}
	}
	b.WriteByte('$')
	re, err := regexp.Compile(b.String())
	if err != nil {
		return fmt.Errorf("uritemplate: cannot invert %q: %w", t.raw, err)
	}
	t.pattern = re
	return nil
}

// Match returns the decoded value bound to column in iri. It reports false
// when column is not in the template, iri does not match, or the captured
// value is empty.
func (t *Template) Match(column, iri string) (string, bool) {
	groups, ok := t.groups[column]
	if !ok {
		return "", false
	}
	m := t.pattern.FindStringSubmatch(iri)
	if m == nil {
		return "", false
	}
	for _, group := range groups {
		captured := m[t.pattern.SubexpIndex(group)]
		if captured == "" {
			continue
		}
		decoded, err := url.PathUnescape(captured)
		if err != nil {
			return captured, true
		}
		return decoded, true
	}
	return "", false
}

// Extract recovers the value of column from iri using template raw. When
// the value cannot be recovered a warning is recorded and iri is returned
// unchanged.
func Extract(raw, column, iri string, tr *issues.Tracker) string {
	t, err := Parse(raw)
	if err != nil {
		warn(tr, "invalid URI template: %v", err)
		return iri
	}
	return t.Extract(column, iri, tr)
}

// Extract is the method form of the package-level Extract.
func (t *Template) Extract(column, iri string, tr *issues.Tracker) string {
	if !t.HasVariable(column) {
		warn(tr, "URI template %q does not reference column %q", t.raw, column)
		return iri
	}
	if v, ok := t.Match(column, iri); ok {
		return v
	}
	warn(tr, "cannot extract column %q from %q with template %q", column, iri, t.raw)
	return iri
}
