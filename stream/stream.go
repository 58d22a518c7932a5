// Package stream is the cancellable, backpressured producer/consumer pipe
// that every conversion returns. A producer goroutine emits values into a
// bounded channel; the consumer pulls them with Next until io.EOF or the
// first error.
package stream

import (
	"context"
	"errors"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultBuffer is the channel capacity used when Go is given zero.
const DefaultBuffer = 64

// Emit hands one value to the consumer. It blocks while the buffer is full
// and fails once the stream is cancelled.
type Emit[T any] func(T) error

// Producer generates the values of a stream.
type Producer[T any] func(ctx context.Context, emit Emit[T]) error

// Stream is a pull-style sequence of values produced by one goroutine.
type Stream[T any] struct {
	ch     chan T
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	err    error
	closed bool
}

// Go starts produce in its own goroutine and returns the consuming end.
func Go[T any](ctx context.Context, buffer int, produce Producer[T]) *Stream[T] {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream[T]{
		ch:     make(chan T, buffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(s.ch)
		return produce(gctx, func(v T) error {
			select {
			case s.ch <- v:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	go func() {
		err := g.Wait()
		cancel()
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	}()
	return s
}

// FromSlice returns a stream over a fixed set of values.
func FromSlice[T any](ctx context.Context, values []T) *Stream[T] {
	return Go(ctx, len(values), func(ctx context.Context, emit Emit[T]) error {
		for _, v := range values {
			if err := emit(v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Next returns the next value, io.EOF after the last one, or the error that
// stopped the producer.
func (s *Stream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case v, ok := <-s.ch:
		if ok {
			return v, nil
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	<-s.done
	if err := s.Err(); err != nil {
		return zero, err
	}
	return zero, io.EOF
}

// Err returns the producer's error once it has finished. Cancellation caused
// by Close is not reported.
func (s *Stream[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed && errors.Is(s.err, context.Canceled) {
		return nil
	}
	return s.err
}

// Done is closed when the producer has returned.
func (s *Stream[T]) Done() <-chan struct{} {
	return s.done
}

// Close cancels the producer, discards buffered values and waits for it to
// stop.
func (s *Stream[T]) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	for range s.ch {
	}
	<-s.done
	return s.Err()
}

// ForEach calls fn for every value until the stream ends.
func ForEach[T any](ctx context.Context, s *Stream[T], fn func(T) error) error {
	defer s.Close()
	for {
		v, err := s.Next(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

// Collect drains s into a slice. On error the values read so far are
// returned with it.
func Collect[T any](ctx context.Context, s *Stream[T]) ([]T, error) {
	var out []T
	err := ForEach(ctx, s, func(v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}
