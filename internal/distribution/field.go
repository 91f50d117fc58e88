// Package distribution maps the particle ensemble onto the five-axis grid.
package distribution

import (
	"github.com/san-kum/swimsim/internal/mesh"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Field is the particle mass per 5-D cell in grid order (x, y, z, φ, θ).
// It sums to the number of particles.
type Field struct {
	grid *mesh.Grid
	n    int
	Data []float64
}

func NewField(g *mesh.Grid, particles int) *Field {
	return &Field{
		grid: g,
		n:    particles,
		Data: make([]float64, g.Size.Cells()),
	}
}

func (f *Field) Grid() *mesh.Grid { return f.grid }

// Particles returns the ensemble size the field was sampled from.
func (f *Field) Particles() int { return f.n }

func (f *Field) Sum() float64 {
	return floats.Sum(f.Data)
}

// norm converts the mass of one spatial cell into a concentration relative
// to the mean number density, so a homogeneous ensemble has concentration 1.
func (f *Field) norm() float64 {
	if f.n == 0 {
		return 0
	}
	return f.grid.Box.Volume() / (float64(f.n) * f.grid.SpatialCellVolume())
}

// Density returns the field as a probability density over the 5-D grid,
// scaled so that integrating over orientation yields the concentration.
func (f *Field) Density() []float64 {
	d := make([]float64, len(f.Data))
	if f.n == 0 {
		return d
	}
	s := f.norm() / (f.grid.Width.Phi * f.grid.Width.Theta)
	floats.ScaleTo(d, s, f.Data)
	return d
}

// Weights returns the mass of every cell scaled by the concentration norm.
// Summing Weights over the orientation cells of a spatial cell gives its
// concentration; it is the quadrature weight for orientational averages.
func (f *Field) Weights() []float64 {
	w := make([]float64, len(f.Data))
	floats.ScaleTo(w, f.norm(), f.Data)
	return w
}

// Concentration integrates the density over orientation.
func (f *Field) Concentration() []float64 {
	na := f.grid.Size.Angular()
	c := make([]float64, f.grid.Size.Spatial())
	norm := f.norm()
	for s := range c {
		c[s] = floats.Sum(f.Data[s*na:(s+1)*na]) * norm
	}
	return c
}

// Polarization returns the three components of the concentration-weighted
// orientation, Σ_orientations c·n, per spatial cell.
func (f *Field) Polarization() [3][]float64 {
	dirs := Directions(f.grid)
	na := f.grid.Size.Angular()
	ns := f.grid.Size.Spatial()
	norm := f.norm()

	var p [3][]float64
	for i := range p {
		p[i] = make([]float64, ns)
	}
	for s := 0; s < ns; s++ {
		var m r3.Vec
		for a, d := range dirs {
			m = r3.Add(m, r3.Scale(f.Data[s*na+a], d))
		}
		p[0][s] = m.X * norm
		p[1][s] = m.Y * norm
		p[2][s] = m.Z * norm
	}
	return p
}

// Directions returns the unit orientation vector at the centre of every
// orientation cell, indexed by φ index * nθ + θ index.
func Directions(g *mesh.Grid) []r3.Vec {
	phis := g.Centers("phi")
	thetas := g.Centers("theta")
	dirs := make([]r3.Vec, 0, len(phis)*len(thetas))
	for _, phi := range phis {
		for _, theta := range thetas {
			dirs = append(dirs, direction(phi, theta))
		}
	}
	return dirs
}
