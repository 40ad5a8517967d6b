package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessBatch_PartialSuccessKeepsOrder(t *testing.T) {
	errOdd := errors.New("odd")
	bp := &BatchProcessor[int, int]{
		MaxConcurrency: 3,
		Process: func(ctx context.Context, n int) (int, error) {
			if n < 0 {
				return 0, errors.New("negative")
			}
			if n%2 == 1 {
				return 0, errOdd
			}
			return n * 10, nil
		},
	}

	res := bp.ProcessBatch(context.Background(), []int{2, 3, -1, 4})
	require.Len(t, res.Items, 4)
	assert.Equal(t, 20, res.Items[0].Result)
	assert.ErrorIs(t, res.Items[1].Error, errOdd)
	assert.EqualError(t, res.Items[2].Error, "negative")
	assert.Equal(t, 40, res.Items[3].Result)
}

func TestProcessBatch_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	bp := &BatchProcessor[int, struct{}]{
		MaxConcurrency: 2,
		Process: func(ctx context.Context, _ int) (struct{}, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return struct{}{}, nil
		},
	}

	bp.ProcessBatch(context.Background(), make([]int, 20))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestProcessBatch_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bp := &BatchProcessor[int, int]{
		MaxConcurrency: 1,
		Process: func(ctx context.Context, n int) (int, error) {
			return n, nil
		},
	}

	res := bp.ProcessBatch(ctx, []int{1, 2, 3})
	for _, item := range res.Items {
		assert.ErrorIs(t, item.Error, context.Canceled)
	}
}
