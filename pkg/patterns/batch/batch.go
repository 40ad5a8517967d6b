package batch

import (
	"context"
	"sync"
)

// BatchItem is the outcome of one request: either a result or an error.
type BatchItem[TResult any] struct {
	Result TResult
	Error  error
}

// BatchResult holds one BatchItem per request, in request order.
type BatchResult[TResult any] struct {
	Items []BatchItem[TResult]
}

// BatchProcessor runs Process over a batch of requests with bounded concurrency.
// A failing request never stops the others.
type BatchProcessor[TRequest, TResult any] struct {
	MaxConcurrency int
	Process        func(context.Context, TRequest) (TResult, error)
}

// ProcessBatch processes every request and returns their outcomes in input order.
// Requests not yet started when ctx is done report ctx.Err().
func (bp *BatchProcessor[TRequest, TResult]) ProcessBatch(
	ctx context.Context,
	requests []TRequest,
) *BatchResult[TResult] {
	results := make([]BatchItem[TResult], len(requests))

	concurrency := bp.MaxConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	semaphore := make(chan struct{}, concurrency)

	var wg sync.WaitGroup
	for i, req := range requests {
		acquired := ctx.Err() == nil
		if acquired {
			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				acquired = false
			}
		}
		if !acquired {
			for j := i; j < len(requests); j++ {
				results[j] = BatchItem[TResult]{Error: ctx.Err()}
			}
			break
		}

		wg.Add(1)
		go func(index int, request TRequest) {
			defer wg.Done()
			defer func() { <-semaphore }()

			result, err := bp.Process(ctx, request)
			results[index] = BatchItem[TResult]{Result: result, Error: err}
		}(i, req)
	}

	wg.Wait()
	return &BatchResult[TResult]{Items: results}
}
