package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/wb-product-ingest/internal/product"
)

// DefaultConcurrency bounds in-flight pipelines when no limit is configured.
const DefaultConcurrency = 10

// Runner acquires one record.
type Runner interface {
	Acquire(ctx context.Context, input any) (product.Record, error)
}

// Result pairs an input with the record produced for it.
type Result struct {
	Input  any
	Record product.Record
	Err    error
}

// Batch fans a Runner out over many inputs.
type Batch struct {
	runner Runner
	limit  int
}

// NewBatch creates a Batch admitting at most limit pipelines at once.
func NewBatch(runner Runner, limit int) *Batch {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	return &Batch{runner: runner, limit: limit}
}

// Limit reports the admission ceiling.
func (b *Batch) Limit() int { return b.limit }

// Collect runs every input and returns the results in input order.
func (b *Batch) Collect(ctx context.Context, inputs []any) []Result {
	results := make([]Result, len(inputs))
	var g errgroup.Group
	g.SetLimit(b.limit)
	for i, input := range inputs {
		g.Go(func() error {
			rec, err := b.runner.Acquire(ctx, input)
			results[i] = Result{Input: input, Record: rec, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Stream runs every input and emits results in completion order. The channel
// is closed after the last result; callers must drain it.
func (b *Batch) Stream(ctx context.Context, inputs []any) <-chan Result {
	out := make(chan Result, b.limit)
	go func() {
		defer close(out)
		var g errgroup.Group
		g.SetLimit(b.limit)
		for _, input := range inputs {
			g.Go(func() error {
				rec, err := b.runner.Acquire(ctx, input)
				out <- Result{Input: input, Record: rec, Err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()
	return out
}
