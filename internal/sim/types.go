package sim

import (
	"time"

	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/metrics"
	"github.com/san-kum/swimsim/internal/storage"
)

// InitType selects where the initial ensemble comes from.
type InitType int

const (
	// InitDistribution draws particles from simulation.init_distribution.
	InitDistribution InitType = iota
	// InitStdin reads a particle list in the output format from Options.Input.
	InitStdin
	// InitFile takes the particles of a snapshot and starts at timestep 0.
	InitFile
	// InitResume restores particles, seed and timestep from a snapshot.
	InitResume
)

func (t InitType) String() string {
	switch t {
	case InitDistribution:
		return "distribution"
	case InitStdin:
		return "stdin"
	case InitFile:
		return "file"
	case InitResume:
		return "resume"
	}
	return "unknown"
}

// State is the complete resumable state of a run.
type State struct {
	Particles []dynamo.Particle
	Timestep  uint64
	Seed      uint64
}

func (s State) Clone() State {
	c := s
	c.Particles = make([]dynamo.Particle, len(s.Particles))
	copy(c.Particles, s.Particles)
	return c
}

// Progress is reported after every completed timestep.
type Progress struct {
	Timestep uint64
	Total    uint64
	Elapsed  time.Duration
	Metrics  metrics.Row
	Queue    storage.Stats
	// Sample holds up to SampleSize particles from the latest particle record.
	Sample []dynamo.Particle
}

// SampleSize bounds Progress.Sample.
const SampleSize = 256

// Result summarizes a finished, interrupted or failed run.
type Result struct {
	Layout        storage.Layout
	Init          InitType
	FirstTimestep uint64
	FinalTimestep uint64
	Interrupted   bool
	Elapsed       time.Duration
	Stats         storage.Stats
	Metrics       metrics.Row
}

// StepsTaken is the number of timesteps computed by this run.
func (r *Result) StepsTaken() uint64 {
	return r.FinalTimestep - r.FirstTimestep
}
