package issues

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidLocation is returned when an inner location layer is set without
// the layers that enclose it.
var ErrInvalidLocation = errors.New("issues: row requires a table and column requires a row")

// Location is a partial position in the input: table, then row, then column.
// Nil fields are unset.
type Location struct {
	Table  *string
	Row    *int
	Column *int
}

// Update describes a change to the current location. Nil fields keep their
// current value unless an enclosing layer changes in the same update.
type Update struct {
	Table  *string
	Row    *int
	Column *int
}

// Set returns a pointer to v, for building an Update.
func Set[T any](v T) *T {
	return &v
}

// IsZero reports whether no layer is set.
func (l Location) IsZero() bool {
	return l.Table == nil && l.Row == nil && l.Column == nil
}

func (l Location) String() string {
	var parts []string
	if l.Table != nil {
		parts = append(parts, "table "+*l.Table)
	}
	if l.Row != nil {
		parts = append(parts, fmt.Sprintf("row %d", *l.Row))
	}
	if l.Column != nil {
		parts = append(parts, fmt.Sprintf("column %d", *l.Column))
	}
	return strings.Join(parts, ", ")
}

// snapshot deep-copies l so later updates do not leak into recorded issues.
func (l Location) snapshot() Location {
	var out Location
	if l.Table != nil {
		out.Table = Set(*l.Table)
	}
	if l.Row != nil {
		out.Row = Set(*l.Row)
	}
	if l.Column != nil {
		out.Column = Set(*l.Column)
	}
	return out
}

// apply returns the location produced by u, or ErrInvalidLocation.
func (l Location) apply(u Update) (Location, error) {
	next := l
	if u.Table != nil {
		next = Location{Table: Set(*u.Table)}
	}
	if u.Row != nil {
		next.Row = Set(*u.Row)
		next.Column = nil
	}
	if u.Column != nil {
		next.Column = Set(*u.Column)
	}
	if next.Row != nil && next.Table == nil {
		return l, ErrInvalidLocation
	}
	if next.Column != nil && next.Row == nil && next.Table == nil {
		return l, ErrInvalidLocation
	}
	return next, nil
}
