package pipeline

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Task computes the result for item i.
type Task[T any] func(ctx context.Context, i int) (T, error)

// Run executes fn for every index in [0, n) on at most workers goroutines
// and returns the results in index order. The first error cancels the
// remaining work. workers <= 0 means one worker per CPU.
func Run[T any](ctx context.Context, n, workers int, fn Task[T]) ([]T, error) {
	if n <= 0 || fn == nil {
		return nil, nil
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
	}

	out := make([]T, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			v, err := fn(gctx, i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
