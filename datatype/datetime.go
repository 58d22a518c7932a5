package datatype

import (
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/issues"
)

// DateTime handles the date, time, gregorian and duration types.
type DateTime struct{}

var isoLayouts = map[string]string{
	"date":          "2006-01-02",
	"dateTime":      "2006-01-02T15:04:05",
	"dateTimeStamp": "2006-01-02T15:04:05",
	"time":          "15:04:05",
}

const tzPattern = `(Z|[+-]\d{2}:\d{2})?`

var gregorianPatterns = map[string]*regexp.Regexp{
	"gYear":      regexp.MustCompile(`^-?\d{4,}` + tzPattern + `$`),
	"gYearMonth": regexp.MustCompile(`^-?\d{4,}-(0[1-9]|1[0-2])` + tzPattern + `$`),
	"gMonth":     regexp.MustCompile(`^--(0[1-9]|1[0-2])` + tzPattern + `$`),
	"gMonthDay":  regexp.MustCompile(`^--(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])` + tzPattern + `$`),
	"gDay":       regexp.MustCompile(`^---(0[1-9]|[12]\d|3[01])` + tzPattern + `$`),
}

func isDuration(name string) bool {
	return name == "duration" || name == "dayTimeDuration" || name == "yearMonthDuration"
}

func (DateTime) Name() string { return "datetime" }

func (DateTime) Match(dt *descriptor.Datatype) bool {
	name := dt.BaseName()
	_, iso := isoLayouts[name]
	_, greg := gregorianPatterns[name]
	return iso || greg || isDuration(name)
}

func (DateTime) Parse(cell string, dt *descriptor.Datatype, tr *issues.Tracker) string {
	name := dt.BaseName()
	switch {
	case isDuration(name):
		checkDuration(cell, name, tr)
		return cell
	case gregorianPatterns[name] != nil:
		if !gregorianPatterns[name].MatchString(cell) {
			warn(tr, "%q is not a valid %s", cell, name)
		}
		return cell
	}

	if dt.Format != "" {
		layout, zoned := dateLayout(dt.Format)
		t, err := time.Parse(layout, cell)
		if err != nil {
			warn(tr, "%q does not match date format %q", cell, dt.Format)
			return cell
		}
		lexical := isoLexical(t, name, zoned)
		checkTimeBounds(lexical, t, dt, tr)
		return lexical
	}

	t, zoned, err := parseISO(cell, name)
	if err == nil {
		if name == "dateTimeStamp" && !zoned {
			warn(tr, "%q has no timezone, required for dateTimeStamp", cell)
		}
		checkTimeBounds(cell, t, dt, tr)
		return cell
	}
	if name != "time" {
		if t, err := dateparse.ParseStrict(cell); err == nil {
			lexical := isoLexical(t, name, false)
			warn(tr, "%q is not an ISO 8601 %s, read as %s", cell, name, lexical)
			return lexical
		}
	}
	warn(tr, "%q is not a valid %s", cell, name)
	return cell
}

func (DateTime) Format(lexical string, dt *descriptor.Datatype, tr *issues.Tracker) string {
	name := dt.BaseName()
	if isDuration(name) || gregorianPatterns[name] != nil {
		return lexical
	}
	t, _, err := parseISO(lexical, name)
	if err != nil {
		warn(tr, "%q is not a valid %s literal", lexical, name)
		return lexical
	}
	if dt.Format == "" {
		return lexical
	}
	layout, _ := dateLayout(dt.Format)
	return t.Format(layout)
}

func checkDuration(s, name string, tr *issues.Tracker) {
	d, err := ParseDuration(s)
	if err != nil {
		warn(tr, "%q is not a valid %s", s, name)
		return
	}
	hasYM := d.Years != 0 || d.Months != 0
	hasDT := d.Days != 0 || d.Hours != 0 || d.Minutes != 0 || d.Seconds != 0
	if (name == "yearMonthDuration" && hasDT) || (name == "dayTimeDuration" && hasYM) {
		warn(tr, "%q is not a valid %s", s, name)
	}
}

// splitTimezone separates a trailing "Z" or "+hh:mm" offset from s.
func splitTimezone(s string) (string, string) {
	if strings.HasSuffix(s, "Z") {
		return s[:len(s)-1], "Z"
	}
	if n := len(s); n > 6 && (s[n-6] == '+' || s[n-6] == '-') && s[n-3] == ':' {
		return s[:n-6], s[n-6:]
	}
	return s, ""
}

func parseISO(s, name string) (time.Time, bool, error) {
	layout := isoLayouts[name]
	main, tz := splitTimezone(s)
	if tz == "" {
		t, err := time.Parse(layout, main)
		return t, false, err
	}
	t, err := time.Parse(layout+"Z07:00", main+tz)
	return t, true, err
}

func isoLexical(t time.Time, name string, zoned bool) string {
	var layout string
	switch name {
	case "date":
		layout = "2006-01-02"
	case "time":
		layout = "15:04:05.999999999"
	default:
		layout = "2006-01-02T15:04:05.999999999"
	}
	if zoned {
		layout += "Z07:00"
	}
	return t.Format(layout)
}

func checkTimeBounds(lexical string, t time.Time, dt *descriptor.Datatype, tr *issues.Tracker) {
	name := dt.BaseName()
	check := func(limit *string, ok func(cmp int) bool, what string) {
		if limit == nil {
			return
		}
		bound, _, err := parseISO(*limit, name)
		if err != nil {
			warn(tr, "invalid %s bound %q", name, *limit)
			return
		}
		if !ok(t.Compare(bound)) {
			warn(tr, "%s is %s %s", lexical, what, *limit)
		}
	}
	check(dt.MinInclusive, func(c int) bool { return c >= 0 }, "before minimum")
	check(dt.MaxInclusive, func(c int) bool { return c <= 0 }, "after maximum")
	check(dt.MinExclusive, func(c int) bool { return c > 0 }, "not after exclusive minimum")
	check(dt.MaxExclusive, func(c int) bool { return c < 0 }, "not before exclusive maximum")
}

// dateLayout translates a UAX35 date pattern into a Go time layout. It also
// reports whether the pattern carries a timezone.
func dateLayout(pattern string) (string, bool) {
	var b strings.Builder
	zoned := false
	for i := 0; i < len(pattern); {
		ch := pattern[i]
		if ch == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		j := i
		for j < len(pattern) && pattern[j] == ch {
			j++
		}
		n := j - i
		switch ch {
		case 'y':
			if n == 2 {
				b.WriteString("06")
			} else {
				b.WriteString("2006")
			}
		case 'M':
			b.WriteString(pick(n, "1", "01", "Jan", "January"))
		case 'd':
			b.WriteString(pick(n, "2", "02"))
		case 'H':
			b.WriteString("15")
		case 'h':
			b.WriteString(pick(n, "3", "03"))
		case 'm':
			b.WriteString(pick(n, "4", "04"))
		case 's':
			b.WriteString(pick(n, "5", "05"))
		case 'S':
			b.WriteString(strings.Repeat("0", n))
		case 'a':
			b.WriteString("PM")
		case 'E':
			b.WriteString(pick(n, "Mon", "Mon", "Mon", "Monday"))
		case 'X':
			zoned = true
			b.WriteString(pick(n, "Z07", "Z0700", "Z07:00"))
		case 'x':
			zoned = true
			b.WriteString(pick(n, "-07", "-0700", "-07:00"))
		default:
			b.WriteString(pattern[i:j])
		}
		i = j
	}
	return b.String(), zoned
}

// pick returns the option for a run of n pattern letters, saturating at the
// last option.
func pick(n int, options ...string) string {
	if n > len(options) {
		n = len(options)
	}
	return options[n-1]
}
