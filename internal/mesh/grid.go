// Package mesh holds the fixed five-axis grid (x, y, z, φ, θ), the
// cloud-in-cell kernel shared by deposit and gather, and the wavenumber
// sampling of the spatial axes.
package mesh

import (
	"fmt"
	"math"

	"github.com/san-kum/swimsim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// Width is the edge length of one grid cell along every axis.
type Width struct {
	X, Y, Z    float64
	Phi, Theta float64
}

// Grid is immutable after New and safe to share between workers.
type Grid struct {
	Size  dynamo.GridSize
	Box   dynamo.BoxSize
	Width Width
}

func New(gs dynamo.GridSize, bs dynamo.BoxSize) (*Grid, error) {
	for _, ax := range []struct {
		name string
		n    int
	}{{"x", gs.X}, {"y", gs.Y}, {"z", gs.Z}, {"phi", gs.Phi}, {"theta", gs.Theta}} {
		if ax.n < 1 {
			return nil, &dynamo.ConfigError{Field: "simulation.grid_size." + ax.name, Reason: fmt.Sprintf("must be at least 1, got %d", ax.n)}
		}
	}
	if bs.X <= 0 || bs.Y <= 0 || bs.Z <= 0 {
		return nil, &dynamo.ConfigError{Field: "simulation.box_size", Reason: fmt.Sprintf("must be positive, got %+v", bs)}
	}

	return &Grid{
		Size: gs,
		Box:  bs,
		Width: Width{
			X:     bs.X / float64(gs.X),
			Y:     bs.Y / float64(gs.Y),
			Z:     bs.Z / float64(gs.Z),
			Phi:   dynamo.TwoPi / float64(gs.Phi),
			Theta: math.Pi / float64(gs.Theta),
		},
	}, nil
}

// CellVolume is the volume of one 5-D cell.
func (g *Grid) CellVolume() float64 {
	return g.SpatialCellVolume() * g.Width.Phi * g.Width.Theta
}

func (g *Grid) SpatialCellVolume() float64 {
	return g.Width.X * g.Width.Y * g.Width.Z
}

// SpatialIndex returns the row-major index of spatial cell (ix, iy, iz).
func (g *Grid) SpatialIndex(ix, iy, iz int) int {
	return (ix*g.Size.Y+iy)*g.Size.Z + iz
}

// Index returns the row-major index of a 5-D cell.
func (g *Grid) Index(ix, iy, iz, ip, it int) int {
	return g.SpatialIndex(ix, iy, iz)*g.Size.Angular() + ip*g.Size.Theta + it
}

// Centers returns the cell-centred sample coordinates of one axis:
// "x", "y", "z", "phi" or "theta".
func (g *Grid) Centers(axis string) []float64 {
	var n int
	var w, extent float64
	switch axis {
	case "x":
		n, w, extent = g.Size.X, g.Width.X, g.Box.X
	case "y":
		n, w, extent = g.Size.Y, g.Width.Y, g.Box.Y
	case "z":
		n, w, extent = g.Size.Z, g.Width.Z, g.Box.Z
	case "phi":
		n, w, extent = g.Size.Phi, g.Width.Phi, dynamo.TwoPi
	case "theta":
		n, w, extent = g.Size.Theta, g.Width.Theta, math.Pi
	default:
		return nil
	}

	c := make([]float64, n)
	if n == 1 {
		c[0] = w / 2
		return c
	}
	return floats.Span(c, w/2, extent-w/2)
}
