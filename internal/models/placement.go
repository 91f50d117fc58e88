package models

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/swimsim/internal/compute"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/noise"
	"gonum.org/v1/gonum/spatial/r3"
)

// Placement draws one particle from an initial distribution.
type Placement interface {
	Name() string
	Place(s *noise.Stream, bs dynamo.BoxSize) (dynamo.Particle, error)
}

// Isotropic is uniform in space and on the sphere of orientations.
type Isotropic struct{}

func (Isotropic) Name() string { return "Isotropic" }

func (Isotropic) Place(s *noise.Stream, bs dynamo.BoxSize) (dynamo.Particle, error) {
	return dynamo.NewParticle(
		bs.X*s.Float64(),
		bs.Y*s.Float64(),
		bs.Z*s.Float64(),
		dynamo.TwoPi*s.Float64(),
		math.Acos(1-2*s.Float64()),
		bs,
	), nil
}

// Homogeneous is uniform in space with orientations concentrated around
// the +y axis; Kappa sets the alignment strength.
type Homogeneous struct {
	Kappa float64
}

func (Homogeneous) Name() string { return "Homogeneous" }

func (h Homogeneous) Place(s *noise.Stream, bs dynamo.BoxSize) (dynamo.Particle, error) {
	x, y, z := bs.X*s.Float64(), bs.Y*s.Float64(), bs.Z*s.Float64()
	phi := dynamo.TwoPi * s.Float64()
	theta, err := alignedPolarAngle(h.Kappa, s.Float64())
	if err != nil {
		return dynamo.Particle{}, err
	}
	p := dynamo.NewParticle(x, y, z, phi, theta, bs)

	rot := r3.NewRotation(-math.Pi/2, r3.Vec{X: 1})
	p.SetDirection(rot.Rotate(p.Direction()))
	p.PBC(bs)
	return p, nil
}

// Bizonne is Homogeneous squeezed into a thin slab at the bottom of the
// box along y.
type Bizonne struct {
	Kappa float64
}

func (Bizonne) Name() string { return "Bizonne" }

func (b Bizonne) Place(s *noise.Stream, bs dynamo.BoxSize) (dynamo.Particle, error) {
	p, err := Homogeneous{Kappa: b.Kappa}.Place(s, bs)
	if err != nil {
		return p, err
	}
	p.X /= bs.X
	p.Y /= bs.Y * 5
	p.Z /= bs.Z
	p.PBC(bs)
	return p, nil
}

// alignedPolarAngle inverts the CDF of sinθ·exp(κ cosθ) at u.
func alignedPolarAngle(kappa, u float64) (float64, error) {
	if kappa == 0 {
		return 0, &dynamo.ConfigError{Field: "simulation.init_kappa", Reason: "zero alignment is the isotropic state"}
	}
	theta := math.Acos(math.Log(math.Exp(kappa)-2*u*math.Sinh(kappa)) / kappa)
	if math.IsNaN(theta) {
		return 0, &dynamo.ConfigError{Field: "simulation.init_kappa", Reason: fmt.Sprintf("alignment %v too high for float64 precision", kappa)}
	}
	return theta, nil
}

// NewPlacement resolves a distribution by its configuration name.
func NewPlacement(name string, kappa float64) (Placement, error) {
	switch name {
	case "Isotropic", "isotropic":
		return Isotropic{}, nil
	case "Homogeneous", "homogeneous":
		return Homogeneous{Kappa: kappa}, nil
	case "Bizonne", "bizonne":
		return Bizonne{Kappa: kappa}, nil
	}
	return nil, &dynamo.ConfigError{Field: "simulation.init_distribution", Reason: fmt.Sprintf("unknown distribution %q", name)}
}

// Populate draws n particles. Particle i always uses placement sub-stream i
// of seed, so the result does not depend on the worker count.
func Populate(ctx context.Context, backend compute.Backend, pl Placement, n int, seed uint64, bs dynamo.BoxSize) ([]dynamo.Particle, error) {
	particles := make([]dynamo.Particle, n)
	err := backend.ParallelFor(ctx, n, func(_, lo, hi int) error {
		s := noise.NewStream(seed)
		for i := lo; i < hi; i++ {
			s.ResetPlacement(uint64(i))
			p, err := pl.Place(s, bs)
			if err != nil {
				return err
			}
			particles[i] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return particles, nil
}
