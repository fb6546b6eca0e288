package concurrent

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Run starts every task in its own goroutine. The context handed to the tasks
// is cancelled as soon as one of them fails or ctx ends. It waits for all
// tasks and returns the first error encountered.
func Run(ctx context.Context, tasks ...func(context.Context) error) error {
	group, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		group.Go(func() error {
			return task(gctx)
		})
	}
	return group.Wait()
}

// Concurrent runs the action function for each element in a separate goroutine,
// with at most limit running at once (limit <= 0 means unbounded).
// It waits for all goroutines to finish and returns the first error encountered.
func Concurrent[T any](items []T, limit int, action func(T) error) error {
	group := errgroup.Group{}
	if limit > 0 {
		group.SetLimit(limit)
	}
	for _, value := range items {
		group.Go(func() error {
			return action(value)
		})
	}
	return group.Wait()
}

// Merge merges multiple channels of T into a single output channel, closed
// once every input is closed.
func Merge[T any](chs ...<-chan T) <-chan T {
	out := make(chan T)
	var wg sync.WaitGroup
	wg.Add(len(chs))
	for _, ch := range chs {
		go func(c <-chan T) {
			defer wg.Done()
			for v := range c {
				out <- v
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
