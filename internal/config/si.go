package config

import (
	"fmt"
	"math"
	"os"

	"github.com/san-kum/swimsim/internal/dynamo"
)

// Boltzmann is the Boltzmann constant in J/K.
const Boltzmann = 1.38064852e-23

// ConfigSI is the parameter file schema in SI units. Box size and timestep
// are given in metres and seconds.
type ConfigSI struct {
	Simulation  Simulation   `mapstructure:"simulation" yaml:"simulation"`
	Parameters  ParametersSI `mapstructure:"parameters" yaml:"parameters"`
	Environment Environment  `mapstructure:"environment" yaml:"environment"`
}

type ParametersSI struct {
	HydroScreening  float64    `mapstructure:"hydro_screening" yaml:"hydro_screening"`
	VolumeExclusion float64    `mapstructure:"volume_exclusion" yaml:"volume_exclusion"`
	Viscosity       float64    `mapstructure:"viscosity" yaml:"viscosity"`
	Temperature     float64    `mapstructure:"temperature" yaml:"temperature"`
	VolumeFraction  float64    `mapstructure:"volume_fraction" yaml:"volume_fraction"`
	ExternalField   float64    `mapstructure:"external_field" yaml:"external_field"`
	Particle        ParticleSI `mapstructure:"particle" yaml:"particle"`
}

type ParticleSI struct {
	Radius               float64 `mapstructure:"radius" yaml:"radius"`
	Shape                float64 `mapstructure:"shape" yaml:"shape"`
	SelfPropulsionSpeed  float64 `mapstructure:"self_propulsion_speed" yaml:"self_propulsion_speed"`
	ForceDipole          float64 `mapstructure:"force_dipole" yaml:"force_dipole"`
	MagneticDipoleMoment float64 `mapstructure:"magnetic_dipole_moment" yaml:"magnetic_dipole_moment"`
	PersistanceTime      float64 `mapstructure:"persistance_time" yaml:"persistance_time"`
}

// LoadSI reads a parameter file in SI units and converts it to simulation
// units.
func LoadSI(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrConfig, err)
	}
	d := DefaultConfig()
	v, err := newViper(path, &ConfigSI{Simulation: d.Simulation, Environment: d.Environment})
	if err != nil {
		return nil, err
	}
	si := &ConfigSI{}
	if err := v.UnmarshalExact(si); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", dynamo.ErrConfig, path, err)
	}
	if err := si.validate(); err != nil {
		return nil, err
	}
	cfg := si.IntoConfig()
	cfg.Environment.Version = Version
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *ConfigSI) validate() error {
	p := s.Parameters
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"parameters.viscosity", p.Viscosity},
		{"parameters.volume_fraction", p.VolumeFraction},
		{"parameters.particle.radius", p.Particle.Radius},
		{"parameters.particle.self_propulsion_speed", p.Particle.SelfPropulsionSpeed},
		{"parameters.particle.persistance_time", p.Particle.PersistanceTime},
	} {
		if f.v <= 0 {
			return &dynamo.ConfigError{Field: f.name, Reason: fmt.Sprintf("must be positive, got %v", f.v)}
		}
	}
	if p.Temperature < 0 {
		return &dynamo.ConfigError{Field: "parameters.temperature", Reason: fmt.Sprintf("must not be negative, got %v", p.Temperature)}
	}
	return nil
}

// IntoConfig nondimensionalizes with the mean particle distance as length
// scale and the swimming speed as velocity scale.
func (s *ConfigSI) IntoConfig() *Config {
	p := s.Parameters
	pp := p.Particle

	n := p.VolumeFraction / (4.0 / 3.0 * math.Pi * math.Pow(pp.Radius, 3))
	xc := math.Pow(n, -1.0/3.0)
	uc := pp.SelfPropulsionSpeed
	tc := xc / uc

	stressf := math.Pow(n, 2.0/3.0) / uc / p.Viscosity

	rotFriction := 8 * math.Pi * p.Viscosity * math.Pow(pp.Radius, 3)
	transFriction := 6 * math.Pi * p.Viscosity * pp.Radius

	rotBrown := Boltzmann * p.Temperature / rotFriction
	rotActive := 1 / (2 * pp.PersistanceTime)
	transBrown := Boltzmann * p.Temperature / transFriction

	diff := Diffusion{
		Translational: math.Pow(n, 1.0/3.0) / uc * transBrown,
		Rotational:    math.Pow(n, -1.0/3.0) / uc * (rotBrown + rotActive),
	}
	alignment := pp.MagneticDipoleMoment * p.ExternalField / rotFriction / (rotBrown + rotActive)
	mu0m2 := 4e-7 * math.Pi * pp.MagneticDipoleMoment * pp.MagneticDipoleMoment

	sim := s.Simulation
	sim.BoxSize = dynamo.BoxSize{X: sim.BoxSize.X / xc, Y: sim.BoxSize.Y / xc, Z: sim.BoxSize.Z / xc}
	sim.Timestep /= tc

	return &Config{
		Simulation: sim,
		Parameters: Parameters{
			MagneticReorientation: alignment * diff.Rotational,
			Drag:                  n / uc / transFriction * mu0m2,
			VolumeExclusion:       p.VolumeExclusion,
			Shape:                 pp.Shape,
			HydroScreening:        p.HydroScreening,
			Diffusion:             diff,
			Stress: Stress{
				Active:   stressf * pp.ForceDipole,
				Magnetic: stressf * pp.MagneticDipoleMoment * p.ExternalField,
			},
			MagneticDipole: MagneticDipole{
				MagneticDipoleDipole: math.Pow(n, 2.0/3.0) / uc / rotFriction * mu0m2,
			},
		},
		Environment: s.Environment,
	}
}
