package resolve

import (
	"fmt"
	"regexp"
	"strings"
)

// PathOverride rewrites URLs starting with From to start with To instead.
// With Regex set, From is a regular expression that must match at offset 0.
type PathOverride struct {
	From  string `yaml:"from" json:"from"`
	To    string `yaml:"to" json:"to"`
	Regex bool   `yaml:"regex,omitempty" json:"regex,omitempty"`
}

// Overrides is a compiled list of path overrides.
type Overrides struct {
	rules []compiledOverride
}

type compiledOverride struct {
	PathOverride
	re *regexp.Regexp
}

// CompileOverrides validates the regex overrides.
func CompileOverrides(list []PathOverride) (*Overrides, error) {
	o := &Overrides{}
	for _, p := range list {
		c := compiledOverride{PathOverride: p}
		if p.Regex {
			re, err := regexp.Compile(p.From)
			if err != nil {
				return nil, fmt.Errorf("resolve: path override %q: %w", p.From, err)
			}
			c.re = re
		}
		o.rules = append(o.rules, c)
	}
	return o, nil
}

// Apply returns url rewritten by the override with the longest matched
// prefix, or url unchanged when none matches. Ties keep the first override.
// A matched prefix ending in "/" keeps that separator unless To already ends
// in one, so "/a/b/" -> "Y" rewrites "/a/b/c" to "Y/c".
func (o *Overrides) Apply(url string) string {
	if o == nil {
		return url
	}
	best, bestLen := -1, -1
	for i, r := range o.rules {
		n := r.match(url)
		if n > bestLen {
			best, bestLen = i, n
		}
	}
	if best < 0 {
		return url
	}
	to := o.rules[best].To
	if bestLen > 0 && url[bestLen-1] == '/' && !strings.HasSuffix(to, "/") {
		return to + url[bestLen-1:]
	}
	return to + url[bestLen:]
}

// match returns the length of the matched prefix, or -1.
func (r compiledOverride) match(url string) int {
	if r.re != nil {
		loc := r.re.FindStringIndex(url)
		if loc == nil || loc[0] != 0 {
			return -1
		}
		return loc[1]
	}
	if strings.HasPrefix(url, r.From) {
		return len(r.From)
	}
	return -1
}
