package compute

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

type CPUBackend struct {
	workers int
}

func NewCPUBackend(workers int) *CPUBackend {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &CPUBackend{
		workers: workers,
	}
}

func (c *CPUBackend) Name() string { return "cpu" }
func (c *CPUBackend) Workers() int { return c.workers }

// Range is a half-open index interval handled by one worker.
type Range struct {
	Lo, Hi int
}

// Chunks splits [0, n) into at most Workers contiguous ranges of equal size,
// the last one possibly shorter.
func (c *CPUBackend) Chunks(n int) []Range {
	if n <= 0 {
		return nil
	}
	workers := c.workers
	if n < workers {
		workers = n
	}
	chunkSize := (n + workers - 1) / workers

	ranges := make([]Range, 0, workers)
	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		ranges = append(ranges, Range{Lo: start, Hi: end})
	}
	return ranges
}

// ParallelFor runs fn over the chunks of [0, n) and waits for all of them.
// The first error cancels the remaining chunks and is returned.
func (c *CPUBackend) ParallelFor(ctx context.Context, n int, fn RangeFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	chunks := c.Chunks(n)
	if len(chunks) <= 1 {
		if n <= 0 {
			return nil
		}
		return fn(0, 0, n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for w, r := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(w, r.Lo, r.Hi)
		})
	}

	return g.Wait()
}

// NewPartials allocates one zeroed accumulator of the given size per worker.
func NewPartials(workers, size int) [][]float64 {
	p := make([][]float64, workers)
	for w := range p {
		p[w] = make([]float64, size)
	}
	return p
}

// Reduce adds the per-worker partials into dst in worker order, so the
// summation order is fixed for a given worker count.
func Reduce(dst []float64, partials [][]float64) {
	for _, p := range partials {
		floats.Add(dst, p)
	}
}

// Zero clears every partial for reuse in the next phase.
func Zero(partials [][]float64) {
	for _, p := range partials {
		clear(p)
	}
}
