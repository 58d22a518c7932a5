package rdf

import (
	"path/filepath"
	"strings"
)

// Format identifies RDF serialization formats.
type Format string

const (
	// FormatAuto asks NewReader to sniff the input.
	FormatAuto     Format = ""
	FormatTurtle   Format = "turtle"
	FormatTriG     Format = "trig"
	FormatNTriples Format = "ntriples"
	FormatNQuads   Format = "nquads"
	FormatRDFXML   Format = "rdfxml"
	FormatJSONLD   Format = "jsonld"
)

// ParseFormat normalizes a format string.
func ParseFormat(value string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "turtle", "ttl":
		return FormatTurtle, true
	case "trig":
		return FormatTriG, true
	case "ntriples", "nt", "n-triples":
		return FormatNTriples, true
	case "nquads", "nq", "n-quads":
		return FormatNQuads, true
	case "rdfxml", "rdf", "xml":
		return FormatRDFXML, true
	case "jsonld", "json-ld":
		return FormatJSONLD, true
	default:
		return "", false
	}
}

// FormatFromPath infers the format from a filename extension.
func FormatFromPath(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ttl":
		return FormatTurtle, true
	case ".nt":
		return FormatNTriples, true
	case ".trig":
		return FormatTriG, true
	case ".nq":
		return FormatNQuads, true
	case ".rdf", ".owl":
		return FormatRDFXML, true
	case ".jsonld":
		return FormatJSONLD, true
	default:
		return "", false
	}
}

// FormatFromContentType infers the format from a media type.
func FormatFromContentType(contentType string) (Format, bool) {
	mediaType, _, _ := strings.Cut(contentType, ";")
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "text/turtle":
		return FormatTurtle, true
	case "application/n-triples":
		return FormatNTriples, true
	case "application/trig":
		return FormatTriG, true
	case "application/n-quads":
		return FormatNQuads, true
	case "application/rdf+xml":
		return FormatRDFXML, true
	case "application/ld+json":
		return FormatJSONLD, true
	default:
		return "", false
	}
}

// ContentType returns the media type for a format, used as an HTTP Accept value.
func (f Format) ContentType() string {
	switch f {
	case FormatTurtle:
		return "text/turtle"
	case FormatNTriples:
		return "application/n-triples"
	case FormatTriG:
		return "application/trig"
	case FormatNQuads:
		return "application/n-quads"
	case FormatRDFXML:
		return "application/rdf+xml"
	case FormatJSONLD:
		return "application/ld+json"
	default:
		return ""
	}
}

// Readable reports whether NewReader can decode f.
func (f Format) Readable() bool {
	switch f {
	case FormatNTriples, FormatNQuads, FormatTurtle, FormatTriG, FormatRDFXML, FormatJSONLD:
		return true
	default:
		return false
	}
}

// Writable reports whether NewWriter can encode f.
func (f Format) Writable() bool {
	switch f {
	case FormatNTriples, FormatNQuads, FormatJSONLD, FormatTurtle, FormatTriG:
		return true
	default:
		return false
	}
}
