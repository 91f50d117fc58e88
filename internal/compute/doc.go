// Package compute provides the worker pool that runs the data-parallel
// phases of a timestep.
//
// Every phase is a fork-join barrier: the index range is split into at most
// Workers contiguous chunks, each chunk runs on its own goroutine, and the
// call returns once all chunks finished or the first one failed.
//
//	backend := compute.NewCPUBackend(4)
//	err := backend.ParallelFor(ctx, len(particles), func(w, lo, hi int) error {
//		for i := lo; i < hi; i++ {
//			// particles[i] is owned by worker w for this phase
//		}
//		return nil
//	})
//
// Chunk boundaries depend only on n and the worker count, so a run with a
// fixed worker count is reproducible bit for bit.
package compute
