// Package config loads, validates and saves simulation settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Version is written into every output id and snapshot.
const Version = "0.9.0"

const (
	DefaultTimestep      = 0.1
	DefaultParticles     = 1000
	DefaultTimesteps     = 100
	DefaultIOQueueSize   = 10
	DefaultIORetries     = 3
	DefaultOutputFormat  = "Bincode"
	DefaultDistribution  = "Isotropic"
	DefaultKappa         = 1.0
	DefaultLogLevel      = "info"
	DefaultPrefix        = "simulation"
	DefaultDiffusion     = 0.5
	DefaultFinalSnapshot = true
)

// Formats are the accepted values of environment.output_format.
var Formats = []string{"Bincode", "Cbor", "Json"}

// Distributions are the accepted values of simulation.init_distribution.
var Distributions = []string{"Isotropic", "Homogeneous", "Bizonne"}

type Config struct {
	Simulation  Simulation  `mapstructure:"simulation" yaml:"simulation" json:"simulation"`
	Parameters  Parameters  `mapstructure:"parameters" yaml:"parameters" json:"parameters"`
	Environment Environment `mapstructure:"environment" yaml:"environment" json:"environment"`
}

type Environment struct {
	InitFile     string `mapstructure:"init_file" yaml:"init_file" json:"init_file"`
	IOQueueSize  int    `mapstructure:"io_queue_size" yaml:"io_queue_size" json:"io_queue_size"`
	IORetries    int    `mapstructure:"io_retries" yaml:"io_retries" json:"io_retries"`
	OutputFormat string `mapstructure:"output_format" yaml:"output_format" json:"output_format"`
	Prefix       string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Version      string `mapstructure:"version" yaml:"version" json:"version"`
}

type Simulation struct {
	BoxSize           dynamo.BoxSize  `mapstructure:"box_size" yaml:"box_size" json:"box_size"`
	GridSize          dynamo.GridSize `mapstructure:"grid_size" yaml:"grid_size" json:"grid_size"`
	InitDistribution  string          `mapstructure:"init_distribution" yaml:"init_distribution" json:"init_distribution"`
	InitKappa         float64         `mapstructure:"init_kappa" yaml:"init_kappa" json:"init_kappa"`
	NumberOfParticles int             `mapstructure:"number_of_particles" yaml:"number_of_particles" json:"number_of_particles"`
	NumberOfTimesteps int             `mapstructure:"number_of_timesteps" yaml:"number_of_timesteps" json:"number_of_timesteps"`
	Timestep          float64         `mapstructure:"timestep" yaml:"timestep" json:"timestep"`
	Seed              uint64          `mapstructure:"seed" yaml:"seed" json:"seed"`
	Workers           int             `mapstructure:"workers" yaml:"workers" json:"workers"`
	OutputAtTimestep  Output          `mapstructure:"output_at_timestep" yaml:"output_at_timestep" json:"output_at_timestep"`
}

// Output selects the timesteps at which each record kind is emitted. A
// stride of 0 disables the periodic output; the *At lists name extra
// timesteps explicitly.
type Output struct {
	Distribution     int   `mapstructure:"distribution" yaml:"distribution" json:"distribution"`
	DistributionAt   []int `mapstructure:"distribution_at" yaml:"distribution_at" json:"distribution_at"`
	Flowfield        int   `mapstructure:"flowfield" yaml:"flowfield" json:"flowfield"`
	FlowfieldAt      []int `mapstructure:"flowfield_at" yaml:"flowfield_at" json:"flowfield_at"`
	Magneticfield    int   `mapstructure:"magneticfield" yaml:"magneticfield" json:"magneticfield"`
	MagneticfieldAt  []int `mapstructure:"magneticfield_at" yaml:"magneticfield_at" json:"magneticfield_at"`
	Particles        int   `mapstructure:"particles" yaml:"particles" json:"particles"`
	ParticlesAt      []int `mapstructure:"particles_at" yaml:"particles_at" json:"particles_at"`
	ParticlesHead    int   `mapstructure:"particles_head" yaml:"particles_head" json:"particles_head"`
	Snapshot         int   `mapstructure:"snapshot" yaml:"snapshot" json:"snapshot"`
	InitialCondition bool  `mapstructure:"initial_condition" yaml:"initial_condition" json:"initial_condition"`
	FinalSnapshot    bool  `mapstructure:"final_snapshot" yaml:"final_snapshot" json:"final_snapshot"`
}

// Parameters are the physical coefficients in simulation units.
type Parameters struct {
	MagneticReorientation float64        `mapstructure:"magnetic_reorientation" yaml:"magnetic_reorientation" json:"magnetic_reorientation"`
	Drag                  float64        `mapstructure:"drag" yaml:"drag" json:"drag"`
	VolumeExclusion       float64        `mapstructure:"volume_exclusion" yaml:"volume_exclusion" json:"volume_exclusion"`
	Shape                 float64        `mapstructure:"shape" yaml:"shape" json:"shape"`
	HydroScreening        float64        `mapstructure:"hydro_screening" yaml:"hydro_screening" json:"hydro_screening"`
	Diffusion             Diffusion      `mapstructure:"diffusion" yaml:"diffusion" json:"diffusion"`
	Stress                Stress         `mapstructure:"stress" yaml:"stress" json:"stress"`
	MagneticDipole        MagneticDipole `mapstructure:"magnetic_dipole" yaml:"magnetic_dipole" json:"magnetic_dipole"`
}

type Diffusion struct {
	Translational float64 `mapstructure:"translational" yaml:"translational" json:"translational"`
	Rotational    float64 `mapstructure:"rotational" yaml:"rotational" json:"rotational"`
}

type Stress struct {
	Active   float64 `mapstructure:"active" yaml:"active" json:"active"`
	Magnetic float64 `mapstructure:"magnetic" yaml:"magnetic" json:"magnetic"`
}

type MagneticDipole struct {
	MagneticDipoleDipole float64 `mapstructure:"magnetic_dipole_dipole" yaml:"magnetic_dipole_dipole" json:"magnetic_dipole_dipole"`
}

func DefaultConfig() *Config {
	return &Config{
		Simulation: Simulation{
			BoxSize:           dynamo.BoxSize{X: 10, Y: 10, Z: 10},
			GridSize:          dynamo.GridSize{X: 16, Y: 16, Z: 16, Phi: 8, Theta: 8},
			InitDistribution:  DefaultDistribution,
			InitKappa:         DefaultKappa,
			NumberOfParticles: DefaultParticles,
			NumberOfTimesteps: DefaultTimesteps,
			Timestep:          DefaultTimestep,
			Seed:              1,
			OutputAtTimestep: Output{
				DistributionAt:  []int{},
				FlowfieldAt:     []int{},
				MagneticfieldAt: []int{},
				ParticlesAt:     []int{},
				FinalSnapshot:   DefaultFinalSnapshot,
			},
		},
		Parameters: Parameters{
			Diffusion: Diffusion{Translational: DefaultDiffusion, Rotational: DefaultDiffusion},
		},
		Environment: Environment{
			IOQueueSize:  DefaultIOQueueSize,
			IORetries:    DefaultIORetries,
			OutputFormat: DefaultOutputFormat,
			Prefix:       DefaultPrefix,
			LogLevel:     DefaultLogLevel,
			Version:      Version,
		},
	}
}

// newViper prepares a reader for path. Files without a known extension are
// parsed as TOML.
func newViper(path string, defaults any) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if !slices.Contains(viper.SupportedExts, ext) {
		v.SetConfigType("toml")
	}
	if err := setDefaults(v, defaults); err != nil {
		return nil, err
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", dynamo.ErrConfig, path, err)
	}
	return v, nil
}

// setDefaults registers every leaf of defaults under its dotted key.
func setDefaults(v *viper.Viper, defaults any) error {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, val := range m {
			key := prefix + k
			if sub, ok := val.(map[string]any); ok {
				walk(key+".", sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// Load reads a parameter file in simulation units.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrConfig, err)
	}
	v, err := newViper(path, DefaultConfig())
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := v.UnmarshalExact(cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", dynamo.ErrConfig, path, err)
	}
	cfg.Environment.Version = Version
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first invalid setting as a *dynamo.ConfigError.
func (c *Config) Validate() error {
	s := c.Simulation
	bad := func(field, format string, args ...any) error {
		return &dynamo.ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
	}

	gs := s.GridSize
	for _, ax := range []struct {
		name string
		n    int
	}{{"x", gs.X}, {"y", gs.Y}, {"z", gs.Z}, {"phi", gs.Phi}, {"theta", gs.Theta}} {
		if ax.n < 1 {
			return bad("simulation.grid_size."+ax.name, "must be at least 1, got %d", ax.n)
		}
	}
	bs := s.BoxSize
	if bs.X <= 0 || bs.Y <= 0 || bs.Z <= 0 {
		return bad("simulation.box_size", "must be positive, got %+v", bs)
	}
	if s.Timestep <= 0 {
		return bad("simulation.timestep", "must be positive, got %v", s.Timestep)
	}
	if s.NumberOfParticles <= 0 {
		return bad("simulation.number_of_particles", "must be positive, got %d", s.NumberOfParticles)
	}
	if s.NumberOfTimesteps < 0 {
		return bad("simulation.number_of_timesteps", "must not be negative, got %d", s.NumberOfTimesteps)
	}
	if s.Workers < 0 {
		return bad("simulation.workers", "must not be negative, got %d", s.Workers)
	}
	if !slices.Contains(Distributions, canonical(s.InitDistribution)) {
		return bad("simulation.init_distribution", "unknown distribution %q, want one of %v", s.InitDistribution, Distributions)
	}
	if canonical(s.InitDistribution) != "Isotropic" && s.InitKappa == 0 {
		return bad("simulation.init_kappa", "zero alignment is the isotropic state")
	}

	o := s.OutputAtTimestep
	for _, st := range []struct {
		name   string
		stride int
	}{
		{"distribution", o.Distribution}, {"flowfield", o.Flowfield}, {"magneticfield", o.Magneticfield},
		{"particles", o.Particles}, {"snapshot", o.Snapshot},
	} {
		if st.stride < 0 {
			return bad("simulation.output_at_timestep."+st.name, "stride must not be negative, got %d", st.stride)
		}
	}
	for _, list := range []struct {
		name string
		at   []int
	}{
		{"distribution_at", o.DistributionAt}, {"flowfield_at", o.FlowfieldAt},
		{"magneticfield_at", o.MagneticfieldAt}, {"particles_at", o.ParticlesAt},
	} {
		for _, t := range list.at {
			if t < 0 {
				return bad("simulation.output_at_timestep."+list.name, "timestep must not be negative, got %d", t)
			}
		}
	}
	if o.ParticlesHead < 0 || o.ParticlesHead > s.NumberOfParticles {
		return bad("simulation.output_at_timestep.particles_head",
			"must be between 0 and number_of_particles (%d), got %d", s.NumberOfParticles, o.ParticlesHead)
	}

	d := c.Parameters.Diffusion
	if d.Translational < 0 || d.Rotational < 0 {
		return bad("parameters.diffusion", "must not be negative, got %+v", d)
	}
	if c.Parameters.HydroScreening < 0 {
		return bad("parameters.hydro_screening", "must not be negative, got %v", c.Parameters.HydroScreening)
	}

	e := c.Environment
	if e.IOQueueSize < 0 {
		return bad("environment.io_queue_size", "must not be negative, got %d", e.IOQueueSize)
	}
	if e.IORetries < 0 {
		return bad("environment.io_retries", "must not be negative, got %d", e.IORetries)
	}
	if !slices.Contains(Formats, canonical(e.OutputFormat)) {
		return bad("environment.output_format", "unknown format %q, want one of %v", e.OutputFormat, Formats)
	}
	if _, err := logrus.ParseLevel(e.LogLevel); err != nil {
		return bad("environment.log_level", "%v", err)
	}
	return nil
}

// canonical capitalizes an enum value so "json" and "JSON" match "Json".
func canonical(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// Format returns the canonical output format name.
func (c *Config) Format() string { return canonical(c.Environment.OutputFormat) }

// Distribution returns the canonical initial distribution name.
func (c *Config) Distribution() string { return canonical(c.Simulation.InitDistribution) }
