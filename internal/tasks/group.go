// Package tasks tracks detached goroutines so they can be bounded and joined
// on shutdown.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"golang.org/x/sync/semaphore"
)

const scopeName = "github.com/koscakluka/ema-vision/internal/tasks"

var logger = otelslog.NewLogger(scopeName)

var ErrClosed = errors.New("task group closed")

// Group is a registry of running tasks. At most limit tasks run at the same
// time; further tasks wait for a slot without blocking the caller of Go.
type Group struct {
	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	active  atomic.Int64
	onError func(name string, err error)
}

type Option func(*Group)

// WithErrorHandler replaces the default handler, which logs the failure.
func WithErrorHandler(handler func(name string, err error)) Option {
	return func(g *Group) {
		g.onError = handler
	}
}

// NewGroup creates a group. A limit below one means unbounded.
func NewGroup(limit int, opts ...Option) *Group {
	g := &Group{
		onError: func(name string, err error) {
			logger.Error("task failed", "task", name, "error", err)
		},
	}
	if limit > 0 {
		g.sem = semaphore.NewWeighted(int64(limit))
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Go starts run in its own goroutine. The context is handed to run and is
// also used while waiting for a free slot.
func (g *Group) Go(ctx context.Context, name string, run func(context.Context) error) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return ErrClosed
	}
	g.wg.Add(1)
	g.mu.Unlock()

	g.active.Add(1)
	go func() {
		defer g.wg.Done()
		defer g.active.Add(-1)

		if g.sem != nil {
			if err := g.sem.Acquire(ctx, 1); err != nil {
				g.onError(name, fmt.Errorf("%s task never started: %w", name, err))
				return
			}
			defer g.sem.Release(1)
		}

		if err := panicSafe(name, run)(ctx); err != nil {
			g.onError(name, err)
		}
	}()
	return nil
}

// Active reports the number of tasks that were started and have not yet
// returned, including those still waiting for a slot.
func (g *Group) Active() int {
	return int(g.active.Load())
}

// Wait blocks until every task started so far has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}

// Close rejects new tasks and waits for the running ones.
func (g *Group) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.wg.Wait()
}

func panicSafe(name string, run func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s task panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s task failed: %w", name, err)
		}

		return nil
	}
}
