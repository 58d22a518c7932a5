// Package store defines the quad store used by the RDF to tabular
// conversion: point insert and delete, pattern matching, basic graph
// pattern evaluation and a bounded FIFO window over an RDF stream.
package store

import (
	"context"
	"errors"

	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/stream"
)

// ErrNotFound is returned by Delete for a quad the store does not hold.
var ErrNotFound = errors.New("store: quad not found")

// Pattern selects quads. Nil fields match anything.
type Pattern struct {
	S rdf.Term
	P rdf.Term
	O rdf.Term
	G rdf.Term
}

// Matches reports whether q satisfies the pattern.
func (p Pattern) Matches(q rdf.Quad) bool {
	return matchTerm(p.S, q.S) && matchTerm(p.P, q.P) && matchTerm(p.O, q.O) && matchTerm(p.G, q.G)
}

func matchTerm(want, got rdf.Term) bool {
	return want == nil || rdf.Equal(want, got)
}

// Store holds quads as a multiset: putting a quad twice needs two deletes
// to remove it. Match returns each distinct quad once, in insertion order.
type Store interface {
	Put(ctx context.Context, q rdf.Quad) error
	Delete(ctx context.Context, q rdf.Quad) error
	PutStream(ctx context.Context, s *stream.Stream[rdf.Quad]) (int, error)
	Match(ctx context.Context, p Pattern) ([]rdf.Quad, error)
	// Len returns the number of distinct quads.
	Len(ctx context.Context) (int, error)
	Close() error
}

// PutAll drains s into st with one Put per quad. Backends without a bulk
// path use it to implement PutStream.
func PutAll(ctx context.Context, st Store, s *stream.Stream[rdf.Quad]) (int, error) {
	n := 0
	err := stream.ForEach(ctx, s, func(q rdf.Quad) error {
		if err := st.Put(ctx, q); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

// Subjects returns the distinct subjects of the quads matching p, in the
// order they were first inserted.
func Subjects(ctx context.Context, st Store, p Pattern) ([]rdf.Term, error) {
	quads, err := st.Match(ctx, p)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []rdf.Term
	for _, q := range quads {
		k := rdf.TermKey(q.S)
		if !seen[k] {
			seen[k] = true
			out = append(out, q.S)
		}
	}
	return out, nil
}
