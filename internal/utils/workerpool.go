package utils

import (
	"context"
	"errors"
	"sync"
)

// ParallelForEach executes fn for each item using at most workers goroutines.
// The returned slice holds one error per item, in item order. Once ctx is
// done no new item starts; items that never ran get ctx.Err().
func ParallelForEach[T any](ctx context.Context, items []T, workers int, fn func(context.Context, T) error) []error {
	if workers <= 0 {
		workers = 1
	}
	if workers > len(items) {
		workers = len(items)
	}

	errs := make([]error, len(items))
	ran := make([]bool, len(items))
	taskChan := make(chan int, len(items))
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case idx, ok := <-taskChan:
					if !ok {
						return
					}
					if ctx.Err() != nil {
						return
					}
					// each index is written by exactly one worker
					ran[idx] = true
					errs[idx] = fn(ctx, items[idx])
				}
			}
		}()
	}

	for i := range items {
		taskChan <- i
	}
	close(taskChan)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := range errs {
			if !ran[i] {
				errs[i] = err
			}
		}
	}

	return errs
}

// FirstError returns the first non-nil error from a slice of errors
func FirstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// FirstCause returns the first error that is not a context cancellation,
// falling back to FirstError when every failure is one
func FirstCause(errs []error) error {
	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
	}
	return FirstError(errs)
}
