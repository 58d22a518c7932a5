package datatype

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// numberPattern is a compiled UAX35 number pattern such as "#,##0.00" or
// "0.0%". Exponent notation is not supported.
type numberPattern struct {
	prefix, suffix string
	minInt         int
	grouping       int
	hasDecimal     bool
	minFrac        int
	maxFrac        int
	scale          int64
}

var patternCache sync.Map

func compileNumberPattern(raw string) (*numberPattern, error) {
	if p, ok := patternCache.Load(raw); ok {
		return p.(*numberPattern), nil
	}
	start := strings.IndexAny(raw, "#0")
	if start < 0 {
		return nil, errors.New("pattern has no digits")
	}
	end := start
	for end < len(raw) && strings.IndexByte("#0,.", raw[end]) >= 0 {
		end++
	}
	p := &numberPattern{prefix: raw[:start], suffix: raw[end:], scale: 1}
	if strings.ContainsAny(p.prefix+p.suffix, "Ee") {
		return nil, errors.New("exponent patterns are not supported")
	}
	switch {
	case strings.Contains(p.prefix+p.suffix, "%"):
		p.scale = 100
	case strings.Contains(p.prefix+p.suffix, "‰"):
		p.scale = 1000
	}

	body := raw[start:end]
	intPat, fracPat, hasDecimal := strings.Cut(body, ".")
	if strings.Contains(fracPat, ".") || strings.Contains(fracPat, ",") {
		return nil, fmt.Errorf("malformed fraction in %q", body)
	}
	p.hasDecimal = hasDecimal
	if i := strings.LastIndexByte(intPat, ','); i >= 0 {
		p.grouping = len(intPat) - i - 1
		if p.grouping == 0 {
			return nil, errors.New("empty digit group")
		}
	}
	p.minInt = strings.Count(intPat, "0")
	p.minFrac = strings.Count(fracPat, "0")
	p.maxFrac = len(fracPat)

	patternCache.Store(raw, p)
	return p, nil
}

func (p *numberPattern) parse(cell, decimalSep, groupSep string) (decimal.Decimal, error) {
	s, ok := strings.CutPrefix(cell, p.prefix)
	if !ok {
		return decimal.Zero, fmt.Errorf("missing prefix %q", p.prefix)
	}
	if s, ok = strings.CutSuffix(s, p.suffix); !ok {
		return decimal.Zero, fmt.Errorf("missing suffix %q", p.suffix)
	}
	sign := ""
	if s != "" && (s[0] == '-' || s[0] == '+') {
		sign, s = s[:1], s[1:]
	}

	intPart, fracPart, hasDecimal := strings.Cut(s, decimalSep)
	if hasDecimal && !p.hasDecimal {
		return decimal.Zero, errors.New("unexpected decimal separator")
	}
	if strings.Contains(intPart, groupSep) {
		if p.grouping == 0 {
			return decimal.Zero, errors.New("unexpected group separator")
		}
		groups := strings.Split(intPart, groupSep)
		for i, g := range groups {
			if (i == 0 && (g == "" || len(g) > p.grouping)) || (i > 0 && len(g) != p.grouping) {
				return decimal.Zero, errors.New("misplaced group separator")
			}
		}
		intPart = strings.Join(groups, "")
	}
	if !allDigits(intPart) || !allDigits(fracPart) || intPart+fracPart == "" {
		return decimal.Zero, errors.New("not a number")
	}
	if len(intPart) < p.minInt {
		return decimal.Zero, fmt.Errorf("expected at least %d integer digits", p.minInt)
	}
	if len(fracPart) < p.minFrac || len(fracPart) > p.maxFrac {
		return decimal.Zero, fmt.Errorf("expected %d to %d fraction digits", p.minFrac, p.maxFrac)
	}
	if intPart == "" {
		intPart = "0"
	}
	text := sign + intPart
	if fracPart != "" {
		text += "." + fracPart
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, err
	}
	if p.scale != 1 {
		v = v.Div(decimal.NewFromInt(p.scale))
	}
	return v, nil
}

func (p *numberPattern) format(v decimal.Decimal, decimalSep, groupSep string) string {
	if p.scale != 1 {
		v = v.Mul(decimal.NewFromInt(p.scale))
	}
	neg := v.Sign() < 0
	text := v.Abs().StringFixed(int32(p.maxFrac))
	intPart, fracPart, _ := strings.Cut(text, ".")
	for len(fracPart) > p.minFrac && strings.HasSuffix(fracPart, "0") {
		fracPart = fracPart[:len(fracPart)-1]
	}
	if pad := p.minInt - len(intPart); pad > 0 {
		intPart = strings.Repeat("0", pad) + intPart
	}
	if p.grouping > 0 && len(intPart) > p.grouping {
		var b strings.Builder
		lead := len(intPart) % p.grouping
		if lead > 0 {
			b.WriteString(intPart[:lead])
		}
		for i := lead; i < len(intPart); i += p.grouping {
			if b.Len() > 0 {
				b.WriteString(groupSep)
			}
			b.WriteString(intPart[i : i+p.grouping])
		}
		intPart = b.String()
	}

	var b strings.Builder
	b.WriteString(p.prefix)
	if neg {
		b.WriteByte('-')
	}
	b.WriteString(intPart)
	if fracPart != "" {
		b.WriteString(decimalSep)
		b.WriteString(fracPart)
	}
	b.WriteString(p.suffix)
	return b.String()
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
