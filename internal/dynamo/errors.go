package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrConfig indicates a malformed or physically inconsistent parameter.
	ErrConfig = errors.New("swimsim: invalid configuration")

	// ErrNonFinite indicates a NaN or Inf produced while solving or integrating.
	ErrNonFinite = errors.New("swimsim: non-finite value (NaN or Inf detected)")

	// ErrIO indicates a record or snapshot could not be written.
	ErrIO = errors.New("swimsim: output failed")

	// ErrResumeMissing indicates the snapshot to resume from does not exist.
	ErrResumeMissing = errors.New("swimsim: snapshot missing")

	// ErrResumeCorrupt indicates the snapshot could not be decoded.
	ErrResumeCorrupt = errors.New("swimsim: snapshot corrupt")

	// ErrResumeIncompatible indicates a snapshot written with another schema
	// or for another ensemble size.
	ErrResumeIncompatible = errors.New("swimsim: snapshot incompatible")

	// ErrDimensionMismatch indicates mismatched particle or grid dimensions.
	ErrDimensionMismatch = errors.New("swimsim: dimension mismatch")
)

// ConfigError names the offending parameter.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("swimsim: invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfig
}

// NumericalError reports where a non-finite value appeared. Particle is -1
// when the value was produced by a field solve.
type NumericalError struct {
	Stage    string
	Particle int
	Timestep uint64
}

func (e *NumericalError) Error() string {
	if e.Particle < 0 {
		return fmt.Sprintf("timestep %d: %s: %v", e.Timestep, e.Stage, ErrNonFinite)
	}
	return fmt.Sprintf("timestep %d: %s: particle %d: %v", e.Timestep, e.Stage, e.Particle, ErrNonFinite)
}

func (e *NumericalError) Unwrap() error {
	return ErrNonFinite
}

// ResumeError wraps a failure to restore state from a snapshot.
type ResumeError struct {
	Path    string
	Wrapped error
}

func (e *ResumeError) Error() string {
	return fmt.Sprintf("resume from %q: %v", e.Path, e.Wrapped)
}

func (e *ResumeError) Unwrap() error {
	return e.Wrapped
}

// SimulationError wraps an error with the timestep it occurred in.
type SimulationError struct {
	Step    uint64
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
