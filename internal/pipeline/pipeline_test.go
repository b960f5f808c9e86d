package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunPreservesOrder(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	var called int32
	got, err := Run(context.Background(), len(items), 3, func(_ context.Context, i int) (string, error) {
		atomic.AddInt32(&called, 1)
		return items[i] + items[i], nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called != int32(len(items)) {
		t.Fatalf("expected %d calls, got %d", len(items), called)
	}
	for i, v := range got {
		if v != items[i]+items[i] {
			t.Fatalf("result %d out of order: %q", i, v)
		}
	}
}

func TestRunStopsOnError(t *testing.T) {
	boom := errors.New("test error")
	_, err := Run(context.Background(), 10, 1, func(_ context.Context, i int) (int, error) {
		if i == 1 {
			return 0, boom
		}
		return i, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected test error, got %v", err)
	}
}

func TestRunSequentialWithOneWorker(t *testing.T) {
	var inFlight, peak int32
	_, err := Run(context.Background(), 20, 1, func(_ context.Context, i int) (int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		if n > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, n)
		}
		atomic.AddInt32(&inFlight, -1)
		return i, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak != 1 {
		t.Fatalf("expected sequential execution, peak concurrency %d", peak)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, 3, 1, func(context.Context, int) (int, error) { return 0, nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunEmpty(t *testing.T) {
	got, err := Run[int](context.Background(), 0, 1, nil)
	if err != nil || got != nil {
		t.Fatalf("expected nil result, got %v %v", got, err)
	}
}
