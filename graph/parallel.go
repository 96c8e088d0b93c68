package graph

import (
	"context"
	"fmt"
	"sync"
)

// FanOut runs fn over every input concurrently and returns the results in
// input order. This is the only sanctioned parallelism inside a turn:
// branches must be read-only with respect to turn state, each returning an
// independent result that the calling node combines afterwards.
//
// The first branch error (or panic) wins; remaining branches still run to
// completion so no goroutine is leaked.
func FanOut[T, R any](ctx context.Context, inputs []T, fn func(ctx context.Context, input T) (R, error)) ([]R, error) {
	results := make([]R, len(inputs))
	errs := make([]error, len(inputs))

	var wg sync.WaitGroup
	for i, input := range inputs {
		wg.Add(1)
		go func(idx int, in T) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					errs[idx] = fmt.Errorf("panic in fan-out branch %d: %v", idx, rec)
				}
			}()
			results[idx], errs[idx] = fn(ctx, in)
		}(i, input)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("fan-out failed: %w", err)
		}
	}
	return results, nil
}
