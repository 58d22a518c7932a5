package resolve

import (
	"strings"
)

// RelJSONLDContext is the link relation naming a JSON-LD context document.
const RelJSONLDContext = "http://www.w3.org/ns/json-ld#context"

// Link is one entry of an HTTP Link header.
type Link struct {
	Target string
	Rel    []string
	Type   string
}

// HasRel reports whether the link carries relation rel.
func (l Link) HasRel(rel string) bool {
	for _, r := range l.Rel {
		if r == rel {
			return true
		}
	}
	return false
}

// ParseLinks parses the values of one or more Link headers. Malformed
// entries are skipped.
func ParseLinks(headers []string) []Link {
	var links []Link
	for _, h := range headers {
		for _, raw := range splitOutside(h, ',') {
			if l, ok := parseLink(raw); ok {
				links = append(links, l)
			}
		}
	}
	return links
}

// lastLink returns the target of the last link carrying rel.
func lastLink(links []Link, rel string) (string, bool) {
	for i := len(links) - 1; i >= 0; i-- {
		if links[i].HasRel(rel) {
			return links[i].Target, true
		}
	}
	return "", false
}

func parseLink(raw string) (Link, bool) {
	parts := splitOutside(raw, ';')
	if len(parts) == 0 {
		return Link{}, false
	}
	target := strings.TrimSpace(parts[0])
	if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
		return Link{}, false
	}
	l := Link{Target: target[1 : len(target)-1]}
	for _, p := range parts[1:] {
		key, value, _ := strings.Cut(strings.TrimSpace(p), "=")
		value = strings.Trim(strings.TrimSpace(value), `"`)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "rel":
			l.Rel = strings.Fields(value)
		case "type":
			l.Type = value
		}
	}
	return l, true
}

// splitOutside splits s at sep, ignoring separators inside <...> or
// double quotes.
func splitOutside(s string, sep byte) []string {
	var (
		out     []string
		start   int
		inAngle bool
		inQuote bool
	)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '"' && !inAngle:
			inQuote = !inQuote
		case c == '<' && !inQuote:
			inAngle = true
		case c == '>' && !inQuote:
			inAngle = false
		case c == sep && !inAngle && !inQuote:
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, s[start:])
	}
	return out
}
