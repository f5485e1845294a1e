package batcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intKeys(n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = i
	}
	return keys
}

// echo returns each key doubled so results are attributable to their keys.
func echo(ctx context.Context, keys []int) ([]int, error) {
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = k * 2
	}
	return out, nil
}

func TestChunksPartitioning(t *testing.T) {
	parts := chunks(intKeys(310), 150)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 150)
	assert.Len(t, parts[1], 150)
	assert.Len(t, parts[2], 10)
}

func TestConcurrentPreservesOrder(t *testing.T) {
	var mu sync.Mutex
	var chunkSizes []int

	// delay the first chunk so the last one completes before it
	fn := func(ctx context.Context, keys []int) ([]int, error) {
		mu.Lock()
		chunkSizes = append(chunkSizes, len(keys))
		mu.Unlock()

		if keys[0] == 0 {
			time.Sleep(50 * time.Millisecond)
		}
		return echo(ctx, keys)
	}

	results, err := NewConcurrent[int, int](150).Execute(context.Background(), intKeys(310), fn)
	require.NoError(t, err)

	require.Len(t, results, 310)
	assert.Len(t, chunkSizes, 3)
	for i, r := range results {
		assert.Equal(t, i*2, r, "result %d must correspond to input key %d", i, i)
	}
}

func TestConcurrentFailsWholeBatch(t *testing.T) {
	boom := errors.New("rpc error")
	fn := func(ctx context.Context, keys []int) ([]int, error) {
		if keys[0] == 150 {
			return nil, boom
		}
		return echo(ctx, keys)
	}

	results, err := NewConcurrent[int, int](150).Execute(context.Background(), intKeys(310), fn)
	assert.Nil(t, results, "no partial-results mode")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestConcurrentRejectsMismatchedResultCount(t *testing.T) {
	fn := func(ctx context.Context, keys []int) ([]int, error) {
		return make([]int, len(keys)-1), nil
	}

	_, err := NewConcurrent[int, int](10).Execute(context.Background(), intKeys(10), fn)
	assert.Error(t, err)
}

func TestRotatingMatchesConcurrent(t *testing.T) {
	keys := intKeys(42)

	concurrent, err := NewConcurrent[int, int](10).Execute(context.Background(), keys, echo)
	require.NoError(t, err)

	rotating, err := NewRotating[int, int](10, time.Millisecond).Execute(context.Background(), keys, echo)
	require.NoError(t, err)

	assert.Equal(t, concurrent, rotating, "both strategies honor the same contract")
}

func TestRotatingStepsOnePerTick(t *testing.T) {
	var calls []time.Time
	fn := func(ctx context.Context, keys []int) ([]int, error) {
		calls = append(calls, time.Now())
		return echo(ctx, keys)
	}

	_, err := NewRotating[int, int](5, 30*time.Millisecond).Execute(context.Background(), intKeys(15), fn)
	require.NoError(t, err)
	require.Len(t, calls, 3)

	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), 20*time.Millisecond)
	}
}

func TestRotatingStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRotating[int, int](5, time.Hour).Execute(ctx, intKeys(15), echo)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptyKeys(t *testing.T) {
	results, err := NewConcurrent[int, int](150).Execute(context.Background(), nil, echo)
	require.NoError(t, err)
	assert.Empty(t, results)
}
