package integrators

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/swimsim/internal/compute"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/mesh"
	"github.com/san-kum/swimsim/internal/models"
	"github.com/san-kum/swimsim/internal/noise"
	"github.com/san-kum/swimsim/internal/spectral"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

func grid(t *testing.T, l float64) *mesh.Grid {
	t.Helper()
	g, err := mesh.New(dynamo.GridSize{X: 4, Y: 5, Z: 6, Phi: 4, Theta: 4}, dynamo.BoxSize{X: l, Y: l, Z: l})
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	return g
}

func populate(t *testing.T, g *mesh.Grid, n int) []dynamo.Particle {
	t.Helper()
	ps, err := models.Populate(context.Background(), compute.NewCPUBackend(2), models.Isotropic{}, n, 7, g.Box)
	if err != nil {
		t.Fatalf("populate: %v", err)
	}
	return ps
}

func TestStepKeepsParticlesCanonical(t *testing.T) {
	g := grid(t, 3)
	ps := populate(t, g, 500)
	law := models.NewForceLaw(models.Params{MagneticReorientation: 0.5, Shape: 0.3})
	integ := NewLangevin(g, compute.NewCPUBackend(4), law, 0.1, 1, 1, 1)

	fields := spectral.Zero(g)
	for i := range fields.Flow[0] {
		fields.Flow[0][i] = 4
		fields.Vorticity[2][i] = 1
	}

	for step := uint64(1); step <= 20; step++ {
		if err := integ.Step(context.Background(), ps, fields, step); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		for i, p := range ps {
			if p.X < 0 || p.X >= 3 || p.Y < 0 || p.Y >= 3 || p.Z < 0 || p.Z >= 3 {
				t.Fatalf("step %d: particle %d left the box: %+v", step, i, p)
			}
			if p.Phi < 0 || p.Phi >= 2*math.Pi || p.Theta < 0 || p.Theta > math.Pi {
				t.Fatalf("step %d: particle %d has non-canonical angles: %+v", step, i, p)
			}
		}
	}
}

func TestStepIsWorkerIndependent(t *testing.T) {
	g := grid(t, 5)
	law := models.NewForceLaw(models.Params{MagneticReorientation: 1})
	fields := spectral.Zero(g)

	a := populate(t, g, 300)
	b := append([]dynamo.Particle(nil), a...)
	ia := NewLangevin(g, compute.NewCPUBackend(1), law, 0.05, 0.3, 0.2, 9)
	ib := NewLangevin(g, compute.NewCPUBackend(4), law, 0.05, 0.3, 0.2, 9)

	for step := uint64(1); step <= 5; step++ {
		if err := ia.Step(context.Background(), a, fields, step); err != nil {
			t.Fatal(err)
		}
		if err := ib.Step(context.Background(), b, fields, step); err != nil {
			t.Fatal(err)
		}
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("particle %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestFreeDiffusion(t *testing.T) {
	const (
		n     = 4000
		dt    = 0.1
		steps = 20
		dt0   = 0.5
		dr0   = 0.1
	)
	g := grid(t, 1000)
	ps := make([]dynamo.Particle, n)
	start := make([]r3.Vec, n)
	s := noise.NewStream(3)
	for i := range ps {
		s.ResetPlacement(uint64(i))
		ps[i] = dynamo.NewParticle(500, 500, 500, 2*math.Pi*s.Float64(), math.Acos(1-2*s.Float64()), g.Box)
		start[i] = ps[i].Direction()
	}

	integ := NewLangevin(g, compute.NewCPUBackend(4), &models.ForceLaw{}, dt, dt0, dr0, 5)
	fields := spectral.Zero(g)
	for step := uint64(1); step <= steps; step++ {
		if err := integ.Step(context.Background(), ps, fields, step); err != nil {
			t.Fatal(err)
		}
	}

	dx := make([]float64, n)
	corr := make([]float64, n)
	for i, p := range ps {
		dx[i] = p.X - 500
		corr[i] = r3.Dot(start[i], p.Direction())
	}

	tt := steps * dt
	if msd := stat.Mean(sq(dx), nil); math.Abs(msd-2*dt0*tt) > 0.1*2*dt0*tt {
		t.Errorf("translational MSD %v, want %v", msd, 2*dt0*tt)
	}
	if c := stat.Mean(corr, nil); math.Abs(c-math.Exp(-2*dr0*tt)) > 0.03 {
		t.Errorf("orientation correlation %v, want %v", c, math.Exp(-2*dr0*tt))
	}
}

func TestPolarRelaxationAligns(t *testing.T) {
	g := grid(t, 5)
	ps := populate(t, g, 1000)
	integ := NewLangevin(g, compute.NewCPUBackend(2), &models.ForceLaw{PolarRelaxation: 2}, 0.05, 0, 0, 1)
	fields := spectral.Zero(g)

	for step := uint64(1); step <= 100; step++ {
		if err := integ.Step(context.Background(), ps, fields, step); err != nil {
			t.Fatal(err)
		}
	}
	nz := make([]float64, len(ps))
	for i, p := range ps {
		nz[i] = math.Cos(p.Theta)
	}
	if m := stat.Mean(nz, nil); m < 0.9 {
		t.Errorf("expected alignment with +z, mean n_z = %v", m)
	}
}

func TestStepRejectsNonFinite(t *testing.T) {
	g := grid(t, 5)
	ps := populate(t, g, 50)
	integ := NewLangevin(g, compute.NewCPUBackend(2), models.NewForceLaw(models.Params{}), 0.1, 0, 0, 1)

	fields := spectral.Zero(g)
	for i := range fields.Flow[1] {
		fields.Flow[1][i] = math.Inf(1)
	}

	err := integ.Step(context.Background(), ps, fields, 4)
	if !errors.Is(err, dynamo.ErrNonFinite) {
		t.Fatalf("expected non-finite error, got %v", err)
	}
	var ne *dynamo.NumericalError
	if !errors.As(err, &ne) || ne.Timestep != 4 || ne.Particle < 0 {
		t.Errorf("unexpected error detail %v", err)
	}
}

func TestRotationalDiffusionPreservesLength(t *testing.T) {
	p := dynamo.Particle{Phi: 0.7, Theta: 2.1}
	n := p.Direction()
	for _, a := range []float64{0, 1, 3, 5.5} {
		v := rotationalDiffusion(n, p.Phi, p.Theta, noise.RandomVector{AxisAngle: a, RotateAngle: 0.4})
		if math.Abs(r3.Norm(v)-1) > 1e-12 {
			t.Errorf("axis angle %v: |n| = %v", a, r3.Norm(v))
		}
		if got := math.Acos(r3.Dot(n, v)); math.Abs(got-0.4) > 1e-9 {
			t.Errorf("axis angle %v: rotated by %v, want 0.4", a, got)
		}
	}
}

func sq(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x * x
	}
	return out
}
