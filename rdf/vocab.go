package rdf

import "strings"

// Namespaces used by the converters.
const (
	NSRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	NSXSD  = "http://www.w3.org/2001/XMLSchema#"
	NSCSVW = "http://www.w3.org/ns/csvw#"
	NSSKOS = "http://www.w3.org/2004/02/skos/core#"
	NSDC   = "http://purl.org/dc/terms/"
	NSOWL  = "http://www.w3.org/2002/07/owl#"
)

// Frequently used IRIs.
const (
	RDFType       = NSRDF + "type"
	RDFFirst      = NSRDF + "first"
	RDFRest       = NSRDF + "rest"
	RDFNil        = NSRDF + "nil"
	RDFLangString = NSRDF + "langString"
	RDFHTML       = NSRDF + "HTML"
	RDFXMLLiteral = NSRDF + "XMLLiteral"

	RDFSLabel     = NSRDFS + "label"
	SKOSPrefLabel = NSSKOS + "prefLabel"

	XSDString  = NSXSD + "string"
	XSDInteger = NSXSD + "integer"
	XSDDecimal = NSXSD + "decimal"
	XSDDouble  = NSXSD + "double"
	XSDBoolean = NSXSD + "boolean"

	CSVWTableGroup = NSCSVW + "TableGroup"
	CSVWTable      = NSCSVW + "Table"
	CSVWRow        = NSCSVW + "Row"
	CSVWTableProp  = NSCSVW + "table"
	CSVWURL        = NSCSVW + "url"
	CSVWRowProp    = NSCSVW + "row"
	CSVWRownum     = NSCSVW + "rownum"
	CSVWDescribes  = NSCSVW + "describes"
	CSVWTitle      = NSCSVW + "title"
	CSVWJSON       = NSCSVW + "JSON"
)

// DefaultPrefixes is the initial context used to expand prefixed names in
// templates and to abbreviate IRIs in Turtle output.
var DefaultPrefixes = map[string]string{
	"rdf":     NSRDF,
	"rdfs":    NSRDFS,
	"xsd":     NSXSD,
	"csvw":    NSCSVW,
	"skos":    NSSKOS,
	"dc":      NSDC,
	"dcterms": NSDC,
	"owl":     NSOWL,
	"schema":  "http://schema.org/",
	"foaf":    "http://xmlns.com/foaf/0.1/",
	"dcat":    "http://www.w3.org/ns/dcat#",
	"prov":    "http://www.w3.org/ns/prov#",
	"void":    "http://rdfs.org/ns/void#",
}

// ExpandPrefixed expands a prefixed name such as "schema:name" using
// DefaultPrefixes. Values without a known prefix are returned unchanged.
func ExpandPrefixed(value string) string {
	prefix, local, ok := strings.Cut(value, ":")
	if !ok || strings.HasPrefix(local, "//") {
		return value
	}
	if ns, found := DefaultPrefixes[prefix]; found {
		return ns + local
	}
	return value
}

// IsPrefixed reports whether value looks like a prefixed name with a known prefix.
func IsPrefixed(value string) bool {
	return ExpandPrefixed(value) != value
}
