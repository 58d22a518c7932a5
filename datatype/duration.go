package datatype

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Duration is a decomposed xsd:duration. Every component carries the sign
// of the whole duration.
type Duration struct {
	Years   int
	Months  int
	Days    int
	Hours   int
	Minutes int
	Seconds float64
}

// ErrInvalidDuration is returned for text that is not an ISO 8601 duration.
var ErrInvalidDuration = errors.New("datatype: invalid duration")

var durationPattern = regexp.MustCompile(
	`^(-)?P(?:(\d+)Y)?(?:(\d+)M)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// ParseDuration parses an xsd:duration such as "P1Y2M" or "-PT1.5S".
func ParseDuration(s string) (Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "-P" || strings.HasSuffix(s, "T") {
		return Duration{}, fmt.Errorf("%w: %q", ErrInvalidDuration, s)
	}
	if m[2]+m[3]+m[4]+m[5]+m[6]+m[7] == "" {
		return Duration{}, fmt.Errorf("%w: %q has no components", ErrInvalidDuration, s)
	}
	var d Duration
	ints := []*int{&d.Years, &d.Months, &d.Days, &d.Hours, &d.Minutes}
	for i, dst := range ints {
		if m[i+2] == "" {
			continue
		}
		v, err := strconv.Atoi(m[i+2])
		if err != nil {
			return Duration{}, fmt.Errorf("%w: %v", ErrInvalidDuration, err)
		}
		*dst = v
	}
	if m[7] != "" {
		v, err := strconv.ParseFloat(m[7], 64)
		if err != nil {
			return Duration{}, fmt.Errorf("%w: %v", ErrInvalidDuration, err)
		}
		d.Seconds = v
	}
	if m[1] == "-" {
		d = d.Neg()
	}
	return d, nil
}

// Neg returns d with every component negated.
func (d Duration) Neg() Duration {
	return Duration{
		Years:   -d.Years,
		Months:  -d.Months,
		Days:    -d.Days,
		Hours:   -d.Hours,
		Minutes: -d.Minutes,
		Seconds: -d.Seconds,
	}
}

// IsZero reports whether every component is zero.
func (d Duration) IsZero() bool {
	return d == Duration{}
}

func (d Duration) negative() bool {
	return d.Years < 0 || d.Months < 0 || d.Days < 0 || d.Hours < 0 || d.Minutes < 0 || d.Seconds < 0
}

// String renders d in ISO 8601 form.
func (d Duration) String() string {
	if d.IsZero() {
		return "PT0S"
	}
	var b strings.Builder
	if d.negative() {
		b.WriteByte('-')
		d = d.Neg()
	}
	b.WriteByte('P')
	for _, c := range []struct {
		v    int
		unit byte
	}{{d.Years, 'Y'}, {d.Months, 'M'}, {d.Days, 'D'}} {
		if c.v != 0 {
			fmt.Fprintf(&b, "%d%c", c.v, c.unit)
		}
	}
	if d.Hours != 0 || d.Minutes != 0 || d.Seconds != 0 {
		b.WriteByte('T')
		if d.Hours != 0 {
			fmt.Fprintf(&b, "%dH", d.Hours)
		}
		if d.Minutes != 0 {
			fmt.Fprintf(&b, "%dM", d.Minutes)
		}
		if d.Seconds != 0 {
			b.WriteString(strconv.FormatFloat(d.Seconds, 'f', -1, 64))
			b.WriteByte('S')
		}
	}
	return b.String()
}
