package rdf

import "strings"

// DetectFormat guesses the RDF format from the first bytes of a document.
func DetectFormat(sample []byte) (Format, bool) {
	text := strings.TrimSpace(string(sample))
	text = strings.TrimPrefix(text, "\ufeff")
	if text == "" {
		return "", false
	}

	if text[0] == '{' || text[0] == '[' {
		return FormatJSONLD, true
	}
	if strings.HasPrefix(text, "<?xml") || strings.HasPrefix(text, "<rdf:") {
		return FormatRDFXML, true
	}

	upper := strings.ToUpper(text)
	for _, directive := range []string{"@PREFIX", "PREFIX", "@BASE", "BASE"} {
		if strings.HasPrefix(upper, directive) {
			if strings.Contains(text, "{") {
				return FormatTriG, true
			}
			return FormatTurtle, true
		}
	}

	// N-Triples and N-Quads differ only by the optional graph term.
	sawStatement := false
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "<") && !strings.HasPrefix(line, "_:") {
			return FormatTurtle, true
		}
		if !strings.HasSuffix(line, ".") {
			// possibly truncated by the sample size
			continue
		}
		sawStatement = true
		q, err := parseNTLine(line, FormatNQuads)
		if err != nil {
			return FormatTurtle, true
		}
		if q.G != nil {
			return FormatNQuads, true
		}
	}
	if sawStatement {
		return FormatNTriples, true
	}
	return "", false
}
