package store

import (
	"context"

	"github.com/geoknoesis/csvw-go/rdf"
)

// Node is a pattern position: a fixed term or a named variable.
type Node struct {
	Term rdf.Term
	Var  string
}

// Bound returns a node fixed to t.
func Bound(t rdf.Term) Node { return Node{Term: t} }

// Variable returns a node that binds name.
func Variable(name string) Node { return Node{Var: name} }

// TriplePattern is one pattern of a basic graph pattern. Optional
// patterns extend solutions without removing those they fail to match.
type TriplePattern struct {
	S, P, O  Node
	Optional bool
}

// Binding maps variable names to terms.
type Binding map[string]rdf.Term

func (b Binding) clone() Binding {
	out := make(Binding, len(b)+1)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// Evaluate joins the patterns in order, starting from seed, and returns
// every solution. Required patterns are inner joins; optional patterns
// are left joins.
func Evaluate(ctx context.Context, st Store, patterns []TriplePattern, seed Binding) ([]Binding, error) {
	if seed == nil {
		seed = Binding{}
	}
	solutions := []Binding{seed}
	for _, tp := range patterns {
		var next []Binding
		for _, b := range solutions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			quads, err := st.Match(ctx, Pattern{S: b.resolve(tp.S), P: b.resolve(tp.P), O: b.resolve(tp.O)})
			if err != nil {
				return nil, err
			}
			matched := false
			for _, q := range quads {
				if ext, ok := b.extend(tp, q); ok {
					next = append(next, ext)
					matched = true
				}
			}
			if !matched && tp.Optional {
				next = append(next, b)
			}
		}
		solutions = next
		if len(solutions) == 0 {
			break
		}
	}
	return solutions, nil
}

func (b Binding) resolve(n Node) rdf.Term {
	if n.Var == "" {
		return n.Term
	}
	return b[n.Var]
}

// extend binds the variables of tp to q. A variable used twice in one
// pattern must bind to the same term.
func (b Binding) extend(tp TriplePattern, q rdf.Quad) (Binding, bool) {
	out := b.clone()
	for _, pair := range []struct {
		n Node
		t rdf.Term
	}{{tp.S, q.S}, {tp.P, q.P}, {tp.O, q.O}} {
		if pair.n.Var == "" {
			continue
		}
		if prev, ok := out[pair.n.Var]; ok {
			if !rdf.Equal(prev, pair.t) {
				return nil, false
			}
			continue
		}
		out[pair.n.Var] = pair.t
	}
	return out, true
}
