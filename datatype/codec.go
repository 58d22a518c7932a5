// Package datatype converts cell values to and from RDF literal lexical forms
// for each CSVW datatype family, reporting constraint violations as warnings.
package datatype

import (
	"fmt"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/issues"
)

// Codec is one datatype family. Parse turns a CSV cell into the lexical form
// of an RDF literal; Format turns a literal back into a cell. Both return
// their input unchanged, with a warning, when it does not fit the datatype.
type Codec interface {
	Name() string
	Match(dt *descriptor.Datatype) bool
	Parse(cell string, dt *descriptor.Datatype, tr *issues.Tracker) string
	Format(lexical string, dt *descriptor.Datatype, tr *issues.Tracker) string
}

var (
	booleanCodec  Codec = Boolean{}
	numericCodec  Codec = Numeric{}
	dateTimeCodec Codec = DateTime{}
	otherCodec    Codec = Other{}

	codecs = []Codec{booleanCodec, numericCodec, dateTimeCodec}
)

// For returns the codec for dt. Types outside the boolean, numeric and
// date/time families use Other.
func For(dt *descriptor.Datatype) Codec {
	for _, c := range codecs {
		if c.Match(dt) {
			return c
		}
	}
	return otherCodec
}

// IsBooleanColumn reports whether c has a boolean datatype.
func IsBooleanColumn(c *descriptor.Column) bool {
	return booleanCodec.Match(c.Props().Datatype)
}

// IsNumericColumn reports whether c has a numeric datatype.
func IsNumericColumn(c *descriptor.Column) bool {
	return numericCodec.Match(c.Props().Datatype)
}

// IsDateColumn reports whether c has a date, time or duration datatype.
func IsDateColumn(c *descriptor.Column) bool {
	return dateTimeCodec.Match(c.Props().Datatype)
}

// IsOtherColumn reports whether c falls in none of the other families.
func IsOtherColumn(c *descriptor.Column) bool {
	return For(c.Props().Datatype) == otherCodec
}

// IRI returns the datatype IRI for dt.
func IRI(dt *descriptor.Datatype) string {
	return dt.IRI()
}

// NameForIRI returns the CSVW datatype name for a literal datatype IRI,
// falling back to "string" for unknown IRIs.
func NameForIRI(iri string) string {
	if name, ok := descriptor.DatatypeName(iri); ok {
		return name
	}
	return "string"
}

func warn(tr *issues.Tracker, format string, args ...any) {
	if tr != nil {
		tr.AddWarning(fmt.Sprintf(format, args...))
	}
}
