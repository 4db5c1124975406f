// Package queue provides the unbounded FIFO used to hand work between the
// orchestration loops.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrClosed  = errors.New("queue closed")
	ErrTimeout = errors.New("queue get timed out")
)

// Queue is an unbounded FIFO. Put never blocks. Get blocks until an item is
// available, the context is done or the queue is closed and drained.
type Queue[T any] struct {
	mu           sync.Mutex
	items        []T
	closed       bool
	updateSignal chan struct{}
}

func New[T any]() *Queue[T] {
	return &Queue[T]{updateSignal: make(chan struct{}, 1)}
}

// Put appends the item. It reports false if the queue is already closed.
func (q *Queue[T]) Put(item T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.signalUpdate()
	return true
}

func (q *Queue[T]) Get(ctx context.Context) (T, error) {
	return q.get(ctx, nil)
}

// GetWithTimeout behaves like Get but gives up with ErrTimeout when nothing
// arrives for the given duration.
func (q *Queue[T]) GetWithTimeout(ctx context.Context, timeout time.Duration) (T, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	return q.get(ctx, timer.C)
}

func (q *Queue[T]) get(ctx context.Context, timeout <-chan time.Time) (T, error) {
	var zero T
	for {
		if item, ok := q.TryGet(); ok {
			return item, nil
		}

		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return zero, ErrClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timeout:
			return zero, ErrTimeout
		case <-q.updateSignal:
		}
	}
}

// TryGet pops the oldest item without blocking.
func (q *Queue[T]) TryGet() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}

	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return item, true
}

// Drain removes and returns everything currently queued.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := q.items
	q.items = nil
	return items
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting new items. Items already queued can still be read.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signalUpdate()
}

func (q *Queue[T]) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
