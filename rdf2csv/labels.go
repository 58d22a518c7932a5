package rdf2csv

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/geoknoesis/csvw-go/issues"
	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/resolve"
)

// labeler looks up rdfs:label and skos:prefLabel of predicates in the
// vocabulary document they are defined in.
type labeler struct {
	resolver resolve.Resolver
	tr       *issues.Tracker
	log      zerolog.Logger

	mu   sync.Mutex
	docs map[string]map[string]string
}

func newLabeler(resolver resolve.Resolver, tr *issues.Tracker, log zerolog.Logger) *labeler {
	return &labeler{resolver: resolver, tr: tr, log: log, docs: make(map[string]map[string]string)}
}

// Label returns the label of iri. rdfs:label wins over skos:prefLabel.
func (l *labeler) Label(ctx context.Context, iri string) (string, bool) {
	doc, _, _ := strings.Cut(iri, "#")
	l.mu.Lock()
	defer l.mu.Unlock()
	labels, ok := l.docs[doc]
	if !ok {
		var err error
		labels, err = l.load(ctx, doc)
		if err != nil {
			l.tr.Warnf("cannot load vocabulary %s: %v", doc, err)
			l.log.Debug().Str("url", doc).Err(err).Msg("vocabulary metadata unavailable")
		}
		l.docs[doc] = labels
	}
	label, ok := labels[iri]
	return label, ok
}

func (l *labeler) load(ctx context.Context, doc string) (map[string]string, error) {
	text, err := l.resolver.ResolveText(ctx, doc, "")
	if err != nil {
		return nil, err
	}
	opts := []rdf.Option{rdf.OptContext(ctx), rdf.OptBase(doc)}
	if loader, ok := l.resolver.(rdf.DocumentLoader); ok {
		opts = append(opts, rdf.OptDocumentLoader(loader))
	}
	r, err := rdf.NewReader(strings.NewReader(text), rdf.FormatAuto, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	labels := make(map[string]string)
	preferred := make(map[string]bool)
	for {
		q, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return labels, nil
			}
			return labels, err
		}
		lit, ok := q.O.(rdf.Literal)
		if !ok {
			continue
		}
		s, ok := q.S.(rdf.IRI)
		if !ok {
			continue
		}
		switch q.P.Value {
		case rdf.RDFSLabel:
			if !preferred[s.Value] {
				labels[s.Value] = lit.Lexical
				preferred[s.Value] = true
			}
		case rdf.SKOSPrefLabel:
			if _, ok := labels[s.Value]; !ok {
				labels[s.Value] = lit.Lexical
			}
		}
	}
}
