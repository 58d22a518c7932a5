// Package memory is an in-memory store.Store indexed by subject,
// predicate and object.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/geoknoesis/csvw-go/rdf"
	"github.com/geoknoesis/csvw-go/store"
	"github.com/geoknoesis/csvw-go/stream"
)

var errClosed = errors.New("memory: store is closed")

type entry struct {
	q     rdf.Quad
	count int
	seq   uint64
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	quads   map[string]*entry
	bySubj  index
	byPred  index
	byObj   index
	nextSeq uint64
	closed  bool
}

type index map[string]map[string]*entry

func (ix index) add(term string, key string, e *entry) {
	set, ok := ix[term]
	if !ok {
		set = make(map[string]*entry)
		ix[term] = set
	}
	set[key] = e
}

func (ix index) remove(term string, key string) {
	set := ix[term]
	delete(set, key)
	if len(set) == 0 {
		delete(ix, term)
	}
}

// New returns an empty store.
func New() *Store {
	return &Store{
		quads:  make(map[string]*entry),
		bySubj: make(index),
		byPred: make(index),
		byObj:  make(index),
	}
}

// Put adds one occurrence of q.
func (s *Store) Put(ctx context.Context, q rdf.Quad) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := q.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if e, ok := s.quads[key]; ok {
		e.count++
		return nil
	}
	s.nextSeq++
	e := &entry{q: q, count: 1, seq: s.nextSeq}
	s.quads[key] = e
	s.bySubj.add(rdf.TermKey(q.S), key, e)
	s.byPred.add(rdf.TermKey(q.P), key, e)
	s.byObj.add(rdf.TermKey(q.O), key, e)
	return nil
}

// Delete removes one occurrence of q.
func (s *Store) Delete(ctx context.Context, q rdf.Quad) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := q.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	e, ok := s.quads[key]
	if !ok {
		return store.ErrNotFound
	}
	e.count--
	if e.count > 0 {
		return nil
	}
	delete(s.quads, key)
	s.bySubj.remove(rdf.TermKey(q.S), key)
	s.byPred.remove(rdf.TermKey(q.P), key)
	s.byObj.remove(rdf.TermKey(q.O), key)
	return nil
}

// PutStream adds every quad of the stream.
func (s *Store) PutStream(ctx context.Context, in *stream.Stream[rdf.Quad]) (int, error) {
	return store.PutAll(ctx, s, in)
}

// Match returns the distinct quads matching p in insertion order.
func (s *Store) Match(ctx context.Context, p store.Pattern) ([]rdf.Quad, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}

	candidates := s.quads
	narrowed := false
	pick := func(ix index, t rdf.Term) {
		if t == nil {
			return
		}
		set := ix[rdf.TermKey(t)]
		if !narrowed || len(set) < len(candidates) {
			candidates, narrowed = set, true
		}
	}
	pick(s.bySubj, p.S)
	pick(s.byPred, p.P)
	pick(s.byObj, p.O)

	hits := make([]*entry, 0, len(candidates))
	for _, e := range candidates {
		if p.Matches(e.q) {
			hits = append(hits, e)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	out := make([]rdf.Quad, len(hits))
	for i, e := range hits {
		out[i] = e.q
	}
	return out, nil
}

// Len returns the number of distinct quads.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quads), nil
}

// Close releases the indexes. Later calls fail.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.quads, s.bySubj, s.byPred, s.byObj = nil, nil, nil, nil
	return nil
}

var _ store.Store = (*Store)(nil)
