package rdf

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveIRI resolves a relative IRI against a base IRI according to RFC 3986.
// Absolute references and an empty base return relative unchanged.
func ResolveIRI(base, relative string) string {
	if base == "" {
		return relative
	}
	relURL, err := url.Parse(relative)
	if err != nil {
		return relative
	}
	if relURL.Scheme != "" {
		return relative
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		if strings.HasSuffix(base, "/") {
			return base + relative
		}
		if i := strings.LastIndex(base, "/"); i >= 0 {
			return base[:i+1] + relative
		}
		return relative
	}
	return baseURL.ResolveReference(relURL).String()
}

// IsAbsoluteIRI reports whether value has a scheme.
func IsAbsoluteIRI(value string) bool {
	u, err := url.Parse(value)
	return err == nil && u.Scheme != ""
}

// ValidateIRI checks that an IRI has no characters that must be escaped and,
// when it has a scheme, that the scheme is well formed.
func ValidateIRI(iri string) error {
	if iri == "" {
		return fmt.Errorf("empty IRI")
	}
	for i, r := range iri {
		if r < 0x20 {
			return fmt.Errorf("invalid control character at position %d in IRI: %s", i, iri)
		}
		switch r {
		case '<', '>', '"', ' ', '{', '}', '|', '\\', '^', '`':
			return fmt.Errorf("invalid character %q at position %d in IRI: %s", r, i, iri)
		}
	}
	scheme, _, ok := strings.Cut(iri, ":")
	if !ok || strings.ContainsAny(scheme, "/?#") {
		return nil
	}
	if scheme == "" || !isSchemeStart(scheme[0]) {
		return fmt.Errorf("invalid scheme in IRI: %s", iri)
	}
	for i := 1; i < len(scheme); i++ {
		ch := scheme[i]
		if !isSchemeStart(ch) && !(ch >= '0' && ch <= '9') && ch != '+' && ch != '-' && ch != '.' {
			return fmt.Errorf("invalid scheme in IRI: %s", iri)
		}
	}
	return nil
}

func isSchemeStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
