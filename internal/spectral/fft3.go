package spectral

import (
	"context"

	"github.com/mjibson/go-dsp/fft"
	"github.com/san-kum/swimsim/internal/compute"
)

// FFT3 transforms complex fields over the spatial grid in place, one axis at
// a time. Lines of an axis are independent and are spread over the workers;
// each line writes only its own elements.
type FFT3 struct {
	nx, ny, nz int
	backend    compute.Backend
}

func NewFFT3(nx, ny, nz int, backend compute.Backend) *FFT3 {
	return &FFT3{nx: nx, ny: ny, nz: nz, backend: backend}
}

func (f *FFT3) Len() int { return f.nx * f.ny * f.nz }

// Forward applies the unnormalized forward transform.
func (f *FFT3) Forward(ctx context.Context, data []complex128) error {
	return f.transform(ctx, data, fft.FFT)
}

// Inverse applies the inverse transform including the 1/N normalization.
func (f *FFT3) Inverse(ctx context.Context, data []complex128) error {
	return f.transform(ctx, data, fft.IFFT)
}

func (f *FFT3) transform(ctx context.Context, data []complex128, op func([]complex128) []complex128) error {
	nx, ny, nz := f.nx, f.ny, f.nz

	// z lines are contiguous
	if err := f.lines(ctx, data, nx*ny, nz, 1, func(l int) int { return l * nz }, op); err != nil {
		return err
	}
	// y lines: one per (x, z)
	if err := f.lines(ctx, data, nx*nz, ny, nz, func(l int) int { return (l/nz)*ny*nz + l%nz }, op); err != nil {
		return err
	}
	// x lines: one per (y, z)
	return f.lines(ctx, data, ny*nz, nx, ny*nz, func(l int) int { return l }, op)
}

func (f *FFT3) lines(ctx context.Context, data []complex128, count, n, stride int, start func(int) int, op func([]complex128) []complex128) error {
	if n == 1 {
		return nil
	}
	return f.backend.ParallelFor(ctx, count, func(_, lo, hi int) error {
		line := make([]complex128, n)
		for l := lo; l < hi; l++ {
			s := start(l)
			for i := 0; i < n; i++ {
				line[i] = data[s+i*stride]
			}
			out := op(line)
			for i := 0; i < n; i++ {
				data[s+i*stride] = out[i]
			}
		}
		return nil
	})
}
