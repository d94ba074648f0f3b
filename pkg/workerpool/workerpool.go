// Package workerpool provides bounded concurrent processing.
package workerpool

import (
	"context"
	"iter"
	"sync"
)

// Process feeds items to workerCount workers, invoking process for each. The
// first error cancels the remaining work, calls onCancel once and is returned.
// Items are pulled lazily, so an unbounded sequence stops with the context.
func Process[T any](
	ctx context.Context,
	workerCount int,
	items iter.Seq[T],
	process func(context.Context, T) error,
	onCancel func(),
) error {
	if workerCount < 1 {
		workerCount = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		firstErr error
		failOnce sync.Once
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		failOnce.Do(func() {
			firstErr = err
			if onCancel != nil {
				onCancel()
			}
			cancel()
		})
	}

	tasks := make(chan T, workerCount)
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case item, ok := <-tasks:
					if !ok {
						return
					}
					if err := process(ctx, item); err != nil {
						fail(err)
						return
					}
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for item := range items {
			select {
			case <-ctx.Done():
				return
			case tasks <- item:
			}
		}
	}()

	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
