package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueueKeepsFIFOOrder(t *testing.T) {
	q := New[int]()
	for i := range 5 {
		q.Put(i)
	}

	for want := range 5 {
		got, err := q.Get(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}
}

func TestGetBlocksUntilPut(t *testing.T) {
	q := New[string]()
	result := make(chan string, 1)
	go func() {
		item, err := q.Get(context.Background())
		if err != nil {
			result <- "error: " + err.Error()
			return
		}
		result <- item
	}()

	select {
	case <-result:
		t.Fatalf("expected get to block on an empty queue")
	case <-time.After(20 * time.Millisecond):
	}

	q.Put("hello")
	select {
	case got := <-result:
		if got != "hello" {
			t.Fatalf("expected hello, got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for get")
	}
}

func TestGetWithTimeoutReturnsErrTimeout(t *testing.T) {
	q := New[int]()

	start := time.Now()
	_, err := q.GetWithTimeout(context.Background(), 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected to wait for the timeout, waited %s", elapsed)
	}
}

func TestGetRespectsContextCancellation(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := q.Get(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDrainEmptiesQueue(t *testing.T) {
	q := New[string]()
	q.Put("a")
	q.Put("b")

	items := q.Drain()
	if len(items) != 2 || items[0] != "a" || items[1] != "b" {
		t.Fatalf("unexpected drained items: %v", items)
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after drain, got %d", q.Len())
	}
}

func TestClosedQueueRejectsPutsAndDrainsRemaining(t *testing.T) {
	q := New[int]()
	q.Put(1)
	q.Close()

	if q.Put(2) {
		t.Fatalf("expected put on closed queue to be rejected")
	}

	got, err := q.Get(context.Background())
	if err != nil || got != 1 {
		t.Fatalf("expected remaining item 1, got %d (err %v)", got, err)
	}
	if _, err := q.Get(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
