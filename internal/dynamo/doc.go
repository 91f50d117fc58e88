// Package dynamo provides the core types shared by every stage of the
// microswimmer simulation.
//
// The package defines:
//
//   - [Particle]: position in the periodic box and orientation (φ, θ)
//   - [BoxSize] and [GridSize]: the fixed geometry of a run
//   - [ConfigError], [NumericalError], [ResumeError]: the error taxonomy
//   - [AngPBC] and [Modulo]: canonicalization of coordinates
//
// # Example
//
//	bs := dynamo.BoxSize{X: 10, Y: 10, Z: 10}
//	p := dynamo.NewParticle(12.5, -1, 3, 0.5, 4, bs)
//	// p.X == 2.5, p.Y == 9, θ folded back into [0, π]
//
// # Thread Safety
//
// Particles are plain values. The integrator hands each worker a disjoint
// slice of the ensemble, so no locking happens at this level.
package dynamo
