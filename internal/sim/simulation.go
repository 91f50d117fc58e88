// Package sim drives the Fokker-Planck swimmer simulation: it owns the
// ensemble and the per-step operators, and runs the output loop.
package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/swimsim/internal/compute"
	"github.com/san-kum/swimsim/internal/config"
	"github.com/san-kum/swimsim/internal/distribution"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/integrators"
	"github.com/san-kum/swimsim/internal/mesh"
	"github.com/san-kum/swimsim/internal/models"
	"github.com/san-kum/swimsim/internal/spectral"
	"github.com/san-kum/swimsim/internal/storage"
)

// Simulation advances one ensemble. After Init and after every Step the
// sampled distribution and the solved fields describe the current particles.
type Simulation struct {
	cfg     *config.Config
	grid    *mesh.Grid
	backend compute.Backend
	mapper  *distribution.Mapper
	solver  *spectral.Solver
	law     *models.ForceLaw

	integrator *integrators.Langevin

	state  State
	field  *distribution.Field
	fields *spectral.Fields
}

// New builds the grid and operators for cfg. The ensemble is empty until one
// of the Init methods is called.
func New(cfg *config.Config) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sc, pc := cfg.Simulation, cfg.Parameters

	g, err := mesh.New(sc.GridSize, sc.BoxSize)
	if err != nil {
		return nil, err
	}
	backend := compute.NewBackend(sc.Workers)

	s := &Simulation{
		cfg:     cfg,
		grid:    g,
		backend: backend,
		mapper:  distribution.NewMapper(g, backend),
		solver: spectral.NewSolver(g, backend, spectral.Params{
			Active:         pc.Stress.Active,
			Magnetic:       pc.Stress.Magnetic,
			HydroScreening: pc.HydroScreening,
		}),
		law: models.NewForceLaw(models.Params{
			MagneticReorientation: pc.MagneticReorientation,
			MagneticDipoleDipole:  pc.MagneticDipole.MagneticDipoleDipole,
			Drag:                  pc.Drag,
			VolumeExclusion:       pc.VolumeExclusion,
			Shape:                 pc.Shape,
		}),
	}
	s.setSeed(sc.Seed)
	return s, nil
}

func (s *Simulation) setSeed(seed uint64) {
	sc, pc := s.cfg.Simulation, s.cfg.Parameters
	s.state.Seed = seed
	s.integrator = integrators.NewLangevin(s.grid, s.backend, s.law, sc.Timestep,
		pc.Diffusion.Translational, pc.Diffusion.Rotational, seed)
}

// InitDistribution draws the ensemble from the configured placement.
func (s *Simulation) InitDistribution(ctx context.Context) error {
	sc := s.cfg.Simulation
	pl, err := models.NewPlacement(s.cfg.Distribution(), sc.InitKappa)
	if err != nil {
		return err
	}
	ps, err := models.Populate(ctx, s.backend, pl, sc.NumberOfParticles, sc.Seed, sc.BoxSize)
	if err != nil {
		return err
	}
	return s.Init(ctx, ps, 0)
}

// Init installs particles as the state at timestep. Positions are wrapped
// into the box and angles canonicalized.
func (s *Simulation) Init(ctx context.Context, particles []dynamo.Particle, timestep uint64) error {
	if n := s.cfg.Simulation.NumberOfParticles; len(particles) != n {
		return fmt.Errorf("%w: got %d particles, configured %d", dynamo.ErrDimensionMismatch, len(particles), n)
	}
	ps := make([]dynamo.Particle, len(particles))
	for i, p := range particles {
		if !p.IsFinite() {
			return &dynamo.NumericalError{Stage: "init", Particle: i, Timestep: timestep}
		}
		p.PBC(s.grid.Box)
		ps[i] = p
	}
	s.state.Particles = ps
	s.state.Timestep = timestep
	return s.refresh(ctx)
}

// Resume restores a snapshot, including its seed.
func (s *Simulation) Resume(ctx context.Context, path string, snap *storage.Snapshot) error {
	if n := s.cfg.Simulation.NumberOfParticles; len(snap.Particles) != n {
		return &dynamo.ResumeError{Path: path, Wrapped: fmt.Errorf("%w: snapshot has %d particles, configured %d",
			dynamo.ErrResumeIncompatible, len(snap.Particles), n)}
	}
	s.setSeed(snap.Seed)
	return s.Init(ctx, snap.Particles, snap.Timestep)
}

// Step advances the ensemble by one timestep.
func (s *Simulation) Step(ctx context.Context) error {
	next := s.state.Timestep + 1
	if err := s.integrator.Step(ctx, s.state.Particles, s.fields, next); err != nil {
		return err
	}
	s.state.Timestep = next
	return s.refresh(ctx)
}

func (s *Simulation) refresh(ctx context.Context) error {
	f, err := s.mapper.Sample(ctx, s.state.Particles)
	if err != nil {
		return err
	}
	fields, err := s.solver.Solve(ctx, f, s.state.Timestep)
	if err != nil {
		return err
	}
	s.field, s.fields = f, fields
	return nil
}

// Snapshot copies the current state for persistence.
func (s *Simulation) Snapshot() *storage.Snapshot {
	st := s.state.Clone()
	return &storage.Snapshot{
		Schema:    storage.SnapshotSchema,
		Version:   config.Version,
		Particles: st.Particles,
		Seed:      st.Seed,
		Timestep:  st.Timestep,
	}
}

// State returns a copy of the current state.
func (s *Simulation) State() State     { return s.state.Clone() }
func (s *Simulation) Timestep() uint64 { return s.state.Timestep }
func (s *Simulation) Time() float64    { return float64(s.state.Timestep) * s.cfg.Simulation.Timestep }
func (s *Simulation) Grid() *mesh.Grid { return s.grid }
func (s *Simulation) Workers() int     { return s.backend.Workers() }
func (s *Simulation) Terms() []string  { return s.law.Names() }

// Particles returns the live ensemble; callers must not keep it across Step.
func (s *Simulation) Particles() []dynamo.Particle {
	return s.state.Particles
}

// Distribution returns the sampled density of the current state.
func (s *Simulation) Distribution() *storage.Array {
	return &storage.Array{Shape: s.grid.Size.Shape(), Data: s.field.Density()}
}

func (s *Simulation) FlowField() *storage.Array {
	return s.vectorArray(s.fields.Flow)
}

func (s *Simulation) MagneticField() *storage.Array {
	return s.vectorArray(s.fields.Magnetic)
}

// vectorArray stacks the components into shape [3, x, y, z].
func (s *Simulation) vectorArray(v spectral.VectorField) *storage.Array {
	gs := s.grid.Size
	n := gs.Spatial()
	data := make([]float64, 0, 3*n)
	for i := 0; i < 3; i++ {
		data = append(data, v[i]...)
	}
	return &storage.Array{Shape: []int{3, gs.X, gs.Y, gs.Z}, Data: data}
}
