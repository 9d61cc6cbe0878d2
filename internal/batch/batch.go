// Package batch provides fixed-size chunking and a bounded-parallel chunk
// runner for fan-out over backend services.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Chunk partitions ids into runs of at most size, preserving order.
// It returns exactly ceil(len(ids)/size) chunks; a size below 1 is treated
// as 1.
func Chunk(ids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// Run executes fn once per chunk with at most parallelism workers in flight.
// Each worker processes its chunk fully sequentially; cancellation is
// cooperative, a worker already running is not interrupted. fn receives the
// chunk index so callers can collect partial results into pre-sized slots
// and merge them at a single point after Run returns.
func Run(parent context.Context, chunks [][]string, parallelism int, fn func(ctx context.Context, idx int, chunk []string) error) error {
	if parallelism < 1 {
		parallelism = 1
	}
	g, ctx := errgroup.WithContext(parent)
	g.SetLimit(parallelism)
	for idx, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		idx, chunk := idx, chunk
		g.Go(func() error {
			return fn(ctx, idx, chunk)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// Chunks may have been skipped when the caller's context was cancelled;
	// report that instead of returning a partial run as success.
	return parent.Err()
}
