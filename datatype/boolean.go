package datatype

import (
	"strings"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/issues"
)

// Boolean handles xsd:boolean. A format of the form "yes|no" names the true
// and false cell values.
type Boolean struct{}

func (Boolean) Name() string { return "boolean" }

func (Boolean) Match(dt *descriptor.Datatype) bool {
	return dt.BaseName() == "boolean"
}

func (Boolean) Parse(cell string, dt *descriptor.Datatype, tr *issues.Tracker) string {
	if t, f, ok := booleanFormat(dt); ok {
		switch cell {
		case t:
			return "true"
		case f:
			return "false"
		}
		warn(tr, "%q does not match boolean format %q", cell, dt.Format)
		return cell
	}
	switch cell {
	case "true", "1":
		return "true"
	case "false", "0":
		return "false"
	}
	warn(tr, "%q is not a valid boolean", cell)
	return cell
}

func (Boolean) Format(lexical string, dt *descriptor.Datatype, tr *issues.Tracker) string {
	var v bool
	switch lexical {
	case "true", "1":
		v = true
	case "false", "0":
	default:
		warn(tr, "%q is not a valid boolean literal", lexical)
		return lexical
	}
	if t, f, ok := booleanFormat(dt); ok {
		if v {
			return t
		}
		return f
	}
	if v {
		return "true"
	}
	return "false"
}

func booleanFormat(dt *descriptor.Datatype) (string, string, bool) {
	if dt == nil || dt.Format == "" {
		return "", "", false
	}
	t, f, ok := strings.Cut(dt.Format, "|")
	return t, f, ok
}
