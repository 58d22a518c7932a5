package store

import (
	"context"
	"errors"
	"io"

	"github.com/geoknoesis/csvw-go/errs"
	"github.com/geoknoesis/csvw-go/rdf"
)

// DefaultStep returns the step used for a window of size w: a tenth of the
// window, at least one quad.
func DefaultStep(w int) int {
	return max(w/10, 1)
}

// Window keeps the most recent quads of an RDF stream resident in a store.
// At most Size quads are resident; each Move reads up to Step more and
// evicts the oldest ones to make room. A Window is owned by one goroutine.
type Window struct {
	st   Store
	src  rdf.Reader
	size int
	step int

	fifo []rdf.Quad
	head int
	done bool

	// OnEvict, when set, is called with each quad about to be evicted while
	// it is still resident in the store.
	OnEvict func(ctx context.Context, q rdf.Quad) error
}

// NewWindow reads from src into st. A step of zero or less uses
// DefaultStep(size).
func NewWindow(st Store, src rdf.Reader, size, step int) (*Window, error) {
	if size <= 0 {
		return nil, errs.Newf(errs.KindStructural, "window size must be positive, got %d", size)
	}
	if step <= 0 {
		step = DefaultStep(size)
	}
	return &Window{st: st, src: src, size: size, step: step}, nil
}

// Size returns the maximum number of resident quads.
func (w *Window) Size() int { return w.size }

// Step returns the number of quads read per move.
func (w *Window) Step() int { return w.step }

// Len returns the number of resident quads.
func (w *Window) Len() int { return len(w.fifo) - w.head }

// Done reports whether the source is exhausted.
func (w *Window) Done() bool { return w.done }

// Store returns the backing store.
func (w *Window) Store() Store { return w.st }

// Resident returns the resident quads, oldest first.
func (w *Window) Resident() []rdf.Quad {
	return append([]rdf.Quad(nil), w.fifo[w.head:]...)
}

// Move reads up to Step quads, inserting each into the store and evicting
// the oldest resident quad whenever the window is full. It returns only the
// quads inserted by this move. After the source is exhausted Move returns
// no quads and Done reports true.
func (w *Window) Move(ctx context.Context) ([]rdf.Quad, error) {
	if w.done {
		return nil, nil
	}
	var added []rdf.Quad
	for len(added) < w.step {
		if err := ctx.Err(); err != nil {
			return added, err
		}
		q, err := w.src.Next()
		if errors.Is(err, io.EOF) {
			w.done = true
			break
		}
		if err != nil {
			return added, errs.Wrap(errs.KindParse, "reading RDF input", err)
		}
		if w.Len() == w.size {
			if err := w.evict(ctx); err != nil {
				return added, err
			}
		}
		if err := w.st.Put(ctx, q); err != nil {
			return added, errs.Wrap(errs.KindStore, "inserting quad", err)
		}
		w.fifo = append(w.fifo, q)
		added = append(added, q)
	}
	return added, nil
}

func (w *Window) evict(ctx context.Context) error {
	oldest := w.fifo[w.head]
	if w.OnEvict != nil {
		if err := w.OnEvict(ctx, oldest); err != nil {
			return err
		}
	}
	if err := w.st.Delete(ctx, oldest); err != nil {
		return errs.Wrap(errs.KindStore, "evicting quad", err)
	}
	w.fifo[w.head] = rdf.Quad{}
	w.head++
	// Compact once the dead prefix outgrows the live part.
	if w.head > w.size {
		w.fifo = append(w.fifo[:0], w.fifo[w.head:]...)
		w.head = 0
	}
	return nil
}

// Close closes the source and the store.
func (w *Window) Close() error {
	return errors.Join(w.src.Close(), w.st.Close())
}
