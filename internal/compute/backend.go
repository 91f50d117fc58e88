package compute

import "context"

// RangeFunc processes the half-open index range [lo, hi) on behalf of worker.
type RangeFunc func(worker, lo, hi int) error

type Backend interface {
	Name() string
	Workers() int
	ParallelFor(ctx context.Context, n int, fn RangeFunc) error
}

// NewBackend returns the CPU backend with the given worker count. A
// non-positive count selects one worker per CPU.
func NewBackend(workers int) Backend {
	return NewCPUBackend(workers)
}
