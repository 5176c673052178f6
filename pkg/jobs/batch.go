package jobs

import (
	"context"
	"sync"
)

// Result is the outcome of one item processed by RunBatches.
type Result[T any] struct {
	Item T
	Err  error
}

// RunBatches splits items into batches of batchSize and processes the
// batches on a pool of workers. fn is called once per item; a failing item
// never stops the others. Results are returned in input order.
func RunBatches[T any](ctx context.Context, items []T, batchSize, workers int, fn func(context.Context, T) error) []Result[T] {
	if batchSize <= 0 {
		batchSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result[T], len(items))
	batches := make(chan [2]int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for span := range batches {
				for i := span[0]; i < span[1]; i++ {
					results[i].Item = items[i]
					if err := ctx.Err(); err != nil {
						results[i].Err = err
						continue
					}
					results[i].Err = fn(ctx, items[i])
				}
			}
		}()
	}

	for start := 0; start < len(items); start += batchSize {
		batches <- [2]int{start, min(start+batchSize, len(items))}
	}
	close(batches)
	wg.Wait()
	return results
}
