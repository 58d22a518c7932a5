package datatype

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"regexp"
	"sync"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/geoknoesis/csvw-go/descriptor"
	"github.com/geoknoesis/csvw-go/issues"
)

// Other handles the string family, binary types, anyURI, json, xml and
// html. Values are never transformed; length and regex format constraints
// are checked.
type Other struct{}

func (Other) Name() string { return "other" }

func (Other) Match(dt *descriptor.Datatype) bool {
	return !booleanCodec.Match(dt) && !numericCodec.Match(dt) && !dateTimeCodec.Match(dt)
}

func (o Other) Parse(cell string, dt *descriptor.Datatype, tr *issues.Tracker) string {
	o.check(cell, dt, tr)
	return cell
}

func (o Other) Format(lexical string, dt *descriptor.Datatype, tr *issues.Tracker) string {
	o.check(lexical, dt, tr)
	return lexical
}

func (Other) check(value string, dt *descriptor.Datatype, tr *issues.Tracker) {
	name := dt.BaseName()
	length := utf8.RuneCountInString(value)
	switch name {
	case "hexBinary":
		b, err := hex.DecodeString(value)
		if err != nil {
			warn(tr, "%q is not valid hexBinary", value)
		}
		length = len(b)
	case "base64Binary":
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			warn(tr, "%q is not valid base64Binary", value)
		}
		length = len(b)
	case "anyURI":
		if _, err := url.Parse(value); err != nil {
			warn(tr, "%q is not a valid anyURI", value)
		}
	case "json":
		if !json.Valid([]byte(value)) {
			warn(tr, "%q is not valid JSON", value)
		}
	case "language":
		if _, err := language.Parse(value); err != nil {
			warn(tr, "%q is not a valid language tag", value)
		}
	}

	if dt == nil {
		return
	}
	if dt.Length != nil && length != *dt.Length {
		warn(tr, "%q has length %d, expected %d", value, length, *dt.Length)
	}
	if dt.MinLength != nil && length < *dt.MinLength {
		warn(tr, "%q is shorter than minLength %d", value, *dt.MinLength)
	}
	if dt.MaxLength != nil && length > *dt.MaxLength {
		warn(tr, "%q is longer than maxLength %d", value, *dt.MaxLength)
	}
	if dt.Format != "" {
		re, err := formatRegexp(dt.Format)
		if err != nil {
			warn(tr, "invalid format pattern %q: %v", dt.Format, err)
		} else if !re.MatchString(value) {
			warn(tr, "%q does not match format %q", value, dt.Format)
		}
	}
}

var regexpCache sync.Map

func formatRegexp(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexpCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)$`)
	if err != nil {
		return nil, err
	}
	regexpCache.Store(pattern, re)
	return re, nil
}
