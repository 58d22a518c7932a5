package descriptor

import "github.com/geoknoesis/csvw-go/rdf"

// builtinDatatypes maps every CSVW datatype name to its IRI.
var builtinDatatypes = map[string]string{
	"anyAtomicType":      rdf.NSXSD + "anyAtomicType",
	"anyURI":             rdf.NSXSD + "anyURI",
	"base64Binary":       rdf.NSXSD + "base64Binary",
	"boolean":            rdf.NSXSD + "boolean",
	"date":               rdf.NSXSD + "date",
	"dateTime":           rdf.NSXSD + "dateTime",
	"dateTimeStamp":      rdf.NSXSD + "dateTimeStamp",
	"decimal":            rdf.NSXSD + "decimal",
	"integer":            rdf.NSXSD + "integer",
	"long":               rdf.NSXSD + "long",
	"int":                rdf.NSXSD + "int",
	"short":              rdf.NSXSD + "short",
	"byte":               rdf.NSXSD + "byte",
	"nonNegativeInteger": rdf.NSXSD + "nonNegativeInteger",
	"positiveInteger":    rdf.NSXSD + "positiveInteger",
	"unsignedLong":       rdf.NSXSD + "unsignedLong",
	"unsignedInt":        rdf.NSXSD + "unsignedInt",
	"unsignedShort":      rdf.NSXSD + "unsignedShort",
	"unsignedByte":       rdf.NSXSD + "unsignedByte",
	"nonPositiveInteger": rdf.NSXSD + "nonPositiveInteger",
	"negativeInteger":    rdf.NSXSD + "negativeInteger",
	"double":             rdf.NSXSD + "double",
	"float":              rdf.NSXSD + "float",
	"duration":           rdf.NSXSD + "duration",
	"dayTimeDuration":    rdf.NSXSD + "dayTimeDuration",
	"yearMonthDuration":  rdf.NSXSD + "yearMonthDuration",
	"gDay":               rdf.NSXSD + "gDay",
	"gMonth":             rdf.NSXSD + "gMonth",
	"gMonthDay":          rdf.NSXSD + "gMonthDay",
	"gYear":              rdf.NSXSD + "gYear",
	"gYearMonth":         rdf.NSXSD + "gYearMonth",
	"hexBinary":          rdf.NSXSD + "hexBinary",
	"QName":              rdf.NSXSD + "QName",
	"string":             rdf.NSXSD + "string",
	"normalizedString":   rdf.NSXSD + "normalizedString",
	"token":              rdf.NSXSD + "token",
	"language":           rdf.NSXSD + "language",
	"Name":               rdf.NSXSD + "Name",
	"NMTOKEN":            rdf.NSXSD + "NMTOKEN",
	"time":               rdf.NSXSD + "time",
	"xml":                rdf.RDFXMLLiteral,
	"html":               rdf.RDFHTML,
	"json":               rdf.CSVWJSON,
}

// datatypeAliases are the CSVW shorthand names.
var datatypeAliases = map[string]string{
	"number":   "double",
	"binary":   "base64Binary",
	"datetime": "dateTime",
	"any":      "anyAtomicType",
}

// CanonicalDatatype returns the canonical builtin name for name, following
// aliases, and whether it is a builtin.
func CanonicalDatatype(name string) (string, bool) {
	if alias, ok := datatypeAliases[name]; ok {
		name = alias
	}
	_, ok := builtinDatatypes[name]
	return name, ok
}

// DatatypeIRI returns the IRI of a builtin datatype name.
func DatatypeIRI(name string) (string, bool) {
	name, ok := CanonicalDatatype(name)
	if !ok {
		return "", false
	}
	return builtinDatatypes[name], true
}

// DatatypeName returns the builtin name whose IRI is iri.
func DatatypeName(iri string) (string, bool) {
	for name, v := range builtinDatatypes {
		if v == iri {
			return name, true
		}
	}
	return "", false
}
