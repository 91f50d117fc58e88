package dynamo

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Particle is one swimmer: a position in the periodic box and an orientation
// given as azimuth Phi and polar angle Theta. It serializes as the flat array
// [x, y, z, phi, theta].
type Particle struct {
	_ struct{} `cbor:",toarray"`

	X     float64
	Y     float64
	Z     float64
	Phi   float64
	Theta float64
}

// NewParticle returns a particle with periodic boundary conditions applied.
func NewParticle(x, y, z, phi, theta float64, bs BoxSize) Particle {
	p := Particle{X: x, Y: y, Z: z, Phi: phi, Theta: theta}
	p.PBC(bs)
	return p
}

// PBC wraps the position into the box and canonicalizes the angles.
func (p *Particle) PBC(bs BoxSize) {
	p.X = Modulo(p.X, bs.X)
	p.Y = Modulo(p.Y, bs.Y)
	p.Z = Modulo(p.Z, bs.Z)
	p.Phi, p.Theta = AngPBC(p.Phi, p.Theta)
}

// Position returns the spatial coordinates as a vector.
func (p Particle) Position() r3.Vec {
	return r3.Vec{X: p.X, Y: p.Y, Z: p.Z}
}

func (p *Particle) SetPosition(v r3.Vec) {
	p.X, p.Y, p.Z = v.X, v.Y, v.Z
}

// Direction returns the unit orientation vector.
func (p Particle) Direction() r3.Vec {
	sp, cp := math.Sincos(p.Phi)
	st, ct := math.Sincos(p.Theta)
	return r3.Vec{X: st * cp, Y: st * sp, Z: ct}
}

// SetDirection converts v back to spherical angles. v need not be normalized.
func (p *Particle) SetDirection(v r3.Vec) {
	rxy := math.Hypot(v.X, v.Y)
	p.Phi = math.Atan2(v.Y, v.X)
	p.Theta = math.Pi/2 - math.Atan2(v.Z, rxy)
}

// IsFinite reports whether every coordinate is a finite number.
func (p Particle) IsFinite() bool {
	for _, v := range [...]float64{p.X, p.Y, p.Z, p.Phi, p.Theta} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p Particle) MarshalJSON() ([]byte, error) {
	return json.Marshal([5]float64{p.X, p.Y, p.Z, p.Phi, p.Theta})
}

func (p *Particle) UnmarshalJSON(data []byte) error {
	var a []float64
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a) != 5 {
		return fmt.Errorf("%w: particle needs 5 coordinates, got %d", ErrDimensionMismatch, len(a))
	}
	p.X, p.Y, p.Z, p.Phi, p.Theta = a[0], a[1], a[2], a[3], a[4]
	return nil
}

// BoxSize is the edge length of the periodic simulation box.
type BoxSize struct {
	X float64 `mapstructure:"x" yaml:"x" json:"x"`
	Y float64 `mapstructure:"y" yaml:"y" json:"y"`
	Z float64 `mapstructure:"z" yaml:"z" json:"z"`
}

func (b BoxSize) Volume() float64 {
	return b.X * b.Y * b.Z
}

// GridSize is the number of cells along each of the five grid axes.
type GridSize struct {
	X     int `mapstructure:"x" yaml:"x" json:"x"`
	Y     int `mapstructure:"y" yaml:"y" json:"y"`
	Z     int `mapstructure:"z" yaml:"z" json:"z"`
	Phi   int `mapstructure:"phi" yaml:"phi" json:"phi"`
	Theta int `mapstructure:"theta" yaml:"theta" json:"theta"`
}

// Spatial returns the number of spatial cells.
func (g GridSize) Spatial() int {
	return g.X * g.Y * g.Z
}

// Angular returns the number of orientation cells per spatial cell.
func (g GridSize) Angular() int {
	return g.Phi * g.Theta
}

func (g GridSize) Cells() int {
	return g.Spatial() * g.Angular()
}

// Shape returns the sizes in axis order x, y, z, phi, theta.
func (g GridSize) Shape() []int {
	return []int{g.X, g.Y, g.Z, g.Phi, g.Theta}
}
