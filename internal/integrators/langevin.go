// Package integrators advances the particle ensemble by one stochastic
// timestep.
package integrators

import (
	"context"
	"math"

	"github.com/san-kum/swimsim/internal/compute"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/mesh"
	"github.com/san-kum/swimsim/internal/models"
	"github.com/san-kum/swimsim/internal/noise"
	"github.com/san-kum/swimsim/internal/spectral"
	"gonum.org/v1/gonum/spatial/r3"
)

// Langevin is an Euler–Maruyama integrator for self-propelled particles with
// translational and rotational diffusion.
type Langevin struct {
	grid    *mesh.Grid
	backend compute.Backend
	law     *models.ForceLaw
	dt      float64

	// sqrt(2 D dt)
	trans, rot float64

	streams []*noise.Stream
}

func NewLangevin(g *mesh.Grid, backend compute.Backend, law *models.ForceLaw, dt, transDiffusion, rotDiffusion float64, seed uint64) *Langevin {
	streams := make([]*noise.Stream, backend.Workers())
	for i := range streams {
		streams[i] = noise.NewStream(seed)
	}
	return &Langevin{
		grid:    g,
		backend: backend,
		law:     law,
		dt:      dt,
		trans:   math.Sqrt(2 * transDiffusion * dt),
		rot:     math.Sqrt(2 * rotDiffusion * dt),
		streams: streams,
	}
}

func (l *Langevin) Timestep() float64 { return l.dt }

// Step advances particles in place to timestep, using the fields solved from
// their current distribution. The noise of particle i is read from sub-stream
// (i, timestep).
func (l *Langevin) Step(ctx context.Context, particles []dynamo.Particle, fields *spectral.Fields, timestep uint64) error {
	return l.backend.ParallelFor(ctx, len(particles), func(worker, lo, hi int) error {
		s := l.streams[worker]
		for i := lo; i < hi; i++ {
			if !particles[i].IsFinite() {
				return &dynamo.NumericalError{Stage: "integrate", Particle: i, Timestep: timestep}
			}
			s.Reset(uint64(i), timestep)
			rv := s.Kick(l.trans, l.rot)
			l.evolve(&particles[i], fields, rv)
			if !particles[i].IsFinite() {
				return &dynamo.NumericalError{Stage: "integrate", Particle: i, Timestep: timestep}
			}
		}
		return nil
	})
}

func (l *Langevin) evolve(p *dynamo.Particle, fields *spectral.Fields, rv noise.RandomVector) {
	c := l.grid.SpatialCorners(p.X, p.Y, p.Z)
	local := fields.At(&c)

	n := p.Direction()
	sinTheta := math.Sin(p.Theta)
	d := l.law.Drift(n, &local)

	pos := r3.Add(p.Position(), r3.Scale(l.dt, d.Position))
	pos = r3.Add(pos, r3.Vec{X: rv.X, Y: rv.Y, Z: rv.Z})
	p.SetPosition(pos)

	next := rotationalDiffusion(n, p.Phi, p.Theta, rv)
	next = r3.Add(next, r3.Scale(l.dt, d.Orientation))
	p.SetDirection(next)

	// relaxation toward the external field along +z
	p.Theta -= l.law.PolarRelaxation * sinTheta * l.dt

	p.PBC(l.grid.Box)
}

// rotationalDiffusion turns n by rv.RotateAngle about an axis perpendicular
// to n, chosen by rv.AxisAngle.
func rotationalDiffusion(n r3.Vec, phi, theta float64, rv noise.RandomVector) r3.Vec {
	if rv.RotateAngle == 0 {
		return n
	}
	sp, cp := math.Sincos(phi)
	st, ct := math.Sincos(theta)
	sa, ca := math.Sincos(rv.AxisAngle)
	axis := r3.Vec{
		X: cp*ct*sa - ca*sp,
		Y: ca*cp + ct*sa*sp,
		Z: -sa * st,
	}
	return r3.NewRotation(rv.RotateAngle, axis).Rotate(n)
}
