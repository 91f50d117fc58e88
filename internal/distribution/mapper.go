package distribution

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/swimsim/internal/compute"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mapper bins an ensemble onto the grid. Each worker deposits into its own
// partial field; partials are summed in worker order after the barrier.
type Mapper struct {
	grid     *mesh.Grid
	backend  compute.Backend
	partials [][]float64
}

func NewMapper(g *mesh.Grid, backend compute.Backend) *Mapper {
	return &Mapper{
		grid:     g,
		backend:  backend,
		partials: compute.NewPartials(backend.Workers(), g.Size.Cells()),
	}
}

// Sample builds a fresh field from particles. The returned field is owned by
// the caller.
func (m *Mapper) Sample(ctx context.Context, particles []dynamo.Particle) (*Field, error) {
	compute.Zero(m.partials)

	err := m.backend.ParallelFor(ctx, len(particles), func(w, lo, hi int) error {
		dst := m.partials[w]
		for i := lo; i < hi; i++ {
			if !particles[i].IsFinite() {
				return fmt.Errorf("sample particle %d: %w", i, dynamo.ErrNonFinite)
			}
			m.grid.Deposit(dst, particles[i], 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	f := NewField(m.grid, len(particles))
	compute.Reduce(f.Data, m.partials)
	return f, nil
}

func direction(phi, theta float64) r3.Vec {
	sp, cp := math.Sincos(phi)
	st, ct := math.Sincos(theta)
	return r3.Vec{X: st * cp, Y: st * sp, Z: ct}
}
