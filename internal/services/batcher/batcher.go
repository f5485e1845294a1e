// Package batcher splits large key sets into fixed-size chunks and executes
// one query per chunk, reassembling results in input order. Two interchangeable
// strategies exist behind the same contract: Concurrent fires every chunk at
// once, Rotating walks chunks one per timer tick.
package batcher

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the number of keys per chunk query.
const DefaultChunkSize = 150

// ChunkFunc executes one chunk query. Results must be positional: result[i]
// corresponds to keys[i].
type ChunkFunc[K, R any] func(ctx context.Context, keys []K) ([]R, error)

// Strategy executes a whole batch of keys through a ChunkFunc. The returned
// slice preserves input key order. Any chunk failure fails the batch; there is
// no partial-results mode.
type Strategy[K, R any] interface {
	Execute(ctx context.Context, keys []K, fn ChunkFunc[K, R]) ([]R, error)
}

// chunks partitions keys into contiguous slices of at most size elements.
func chunks[K any](keys []K, size int) [][]K {
	if size <= 0 {
		size = DefaultChunkSize
	}
	out := make([][]K, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}

// Concurrent issues every chunk query at once and waits for all of them.
// The first failure cancels the logical batch; in-flight chunk queries are
// not forcibly aborted, their results are simply dropped.
type Concurrent[K, R any] struct {
	chunkSize int
}

// NewConcurrent returns a concurrent strategy with the given chunk size.
func NewConcurrent[K, R any](chunkSize int) *Concurrent[K, R] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Concurrent[K, R]{chunkSize: chunkSize}
}

func (c *Concurrent[K, R]) Execute(ctx context.Context, keys []K, fn ChunkFunc[K, R]) ([]R, error) {
	parts := chunks(keys, c.chunkSize)
	results := make([][]R, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		g.Go(func() error {
			res, err := fn(gctx, part)
			if err != nil {
				return errors.Wrapf(err, "chunk %d of %d failed", i+1, len(parts))
			}
			if len(res) != len(part) {
				return errors.Errorf("chunk %d returned %d results for %d keys", i+1, len(res), len(part))
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return flatten(results, len(keys)), nil
}

// Rotating executes one chunk per tick of the given interval, trading latency
// for a smoother request rate. Order guarantees match Concurrent exactly.
type Rotating[K, R any] struct {
	chunkSize int
	interval  time.Duration
}

// NewRotating returns a rotating strategy stepping one chunk per interval.
func NewRotating[K, R any](chunkSize int, interval time.Duration) *Rotating[K, R] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Rotating[K, R]{chunkSize: chunkSize, interval: interval}
}

func (r *Rotating[K, R]) Execute(ctx context.Context, keys []K, fn ChunkFunc[K, R]) ([]R, error) {
	parts := chunks(keys, r.chunkSize)
	results := make([][]R, len(parts))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for i, part := range parts {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-ticker.C:
			}
		}

		res, err := fn(ctx, part)
		if err != nil {
			return nil, errors.Wrapf(err, "chunk %d of %d failed", i+1, len(parts))
		}
		if len(res) != len(part) {
			return nil, errors.Errorf("chunk %d returned %d results for %d keys", i+1, len(res), len(part))
		}
		results[i] = res
	}

	return flatten(results, len(parts)*r.chunkSize), nil
}

func flatten[R any](parts [][]R, sizeHint int) []R {
	out := make([]R, 0, sizeHint)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
