// Package noise provides counter-based random streams: every (seed, particle,
// timestep) triple addresses its own independent PCG sub-stream, so the noise
// a particle sees never depends on which worker updates it or on how often
// the run was interrupted and resumed.
package noise

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// placementSalt separates the sub-streams used for initial conditions from
// those consumed by timesteps.
const placementSalt = 0x5851f42d4c957f2d

// splitmix64 finalizer
func mix(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Key derives the PCG seed pair of one sub-stream.
func Key(seed, index, timestep uint64) (uint64, uint64) {
	a := mix(seed ^ mix(index) ^ mix(timestep+0x632be59bd9b4e019))
	b := mix(a ^ index ^ (timestep << 32) ^ seed)
	return a, b
}

// RandomVector holds the noise one particle consumes in one timestep.
// X, Y, Z are already scaled by sqrt(2 Dt dt); RotateAngle is drawn from a
// Rayleigh distribution with sigma sqrt(2 Dr dt).
type RandomVector struct {
	X, Y, Z     float64
	AxisAngle   float64
	RotateAngle float64
}

// Stream is a reusable generator positioned on one sub-stream at a time. A
// Stream is not safe for concurrent use; each worker owns one.
type Stream struct {
	seed uint64
	src  *rand.PCG
	rng  *rand.Rand
}

func NewStream(seed uint64) *Stream {
	src := rand.NewPCG(0, 0)
	return &Stream{
		seed: seed,
		src:  src,
		rng:  rand.New(src),
	}
}

func (s *Stream) Seed() uint64 { return s.seed }

// Reset positions the stream on the sub-stream of particle index at timestep.
func (s *Stream) Reset(index, timestep uint64) {
	a, b := Key(s.seed, index, timestep)
	s.src.Seed(a, b)
}

// ResetPlacement positions the stream on the sub-stream used to place
// particle index in the initial condition.
func (s *Stream) ResetPlacement(index uint64) {
	a, b := Key(s.seed^placementSalt, index, 0)
	s.src.Seed(a, b)
}

// Float64 returns a uniform sample in [0, 1).
func (s *Stream) Float64() float64 {
	return s.rng.Float64()
}

func (s *Stream) Normal() float64 {
	return s.rng.NormFloat64()
}

// Rayleigh returns a sample of the Rayleigh distribution with scale sigma.
// It is the Weibull distribution with shape 2 and scale sigma*sqrt(2).
func (s *Stream) Rayleigh(sigma float64) float64 {
	if sigma == 0 {
		// keep the stream position independent of sigma
		s.rng.Float64()
		return 0
	}
	w := distuv.Weibull{K: 2, Lambda: sigma * math.Sqrt2}
	return w.Quantile(s.rng.Float64())
}

// Kick draws the noise of one particle for one timestep. transScale is
// sqrt(2 Dt dt), rotScale is sqrt(2 Dr dt).
func (s *Stream) Kick(transScale, rotScale float64) RandomVector {
	return RandomVector{
		X:           s.Normal() * transScale,
		Y:           s.Normal() * transScale,
		Z:           s.Normal() * transScale,
		AxisAngle:   2 * math.Pi * s.Float64(),
		RotateAngle: s.Rayleigh(rotScale),
	}
}
