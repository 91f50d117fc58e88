package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/swimsim/internal/dynamo"
)

const sampleTOML = `
[environment]
io_queue_size = 4
output_format = "Json"
prefix = "unit"

[simulation]
init_distribution = "Homogeneous"
init_kappa = 2.0
number_of_particles = 100
number_of_timesteps = 500
timestep = 0.1
seed = 1

[simulation.box_size]
x = 11.0
y = 12.0
z = 13.0

[simulation.grid_size]
x = 11
y = 12
z = 13
phi = 6
theta = 7

[simulation.output_at_timestep]
particles = 100
distribution_at = [12]
final_snapshot = true

[parameters]
magnetic_reorientation = 0.5
drag = 0.1
volume_exclusion = 0.2
shape = 0.3
hydro_screening = 0.0

[parameters.diffusion]
translational = 0.5
rotational = 0.25

[parameters.stress]
active = 1.0
magnetic = 2.0

[parameters.magnetic_dipole]
magnetic_dipole_dipole = 0.1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Environment.IORetries != 3 {
		t.Errorf("expected 3 io retries, got %d", cfg.Environment.IORetries)
	}
	if cfg.Format() != "Bincode" {
		t.Errorf("expected Bincode, got %s", cfg.Format())
	}
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeFile(t, "params.toml", sampleTOML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	s := cfg.Simulation
	if s.GridSize != (dynamo.GridSize{X: 11, Y: 12, Z: 13, Phi: 6, Theta: 7}) {
		t.Errorf("unexpected grid %+v", s.GridSize)
	}
	if s.BoxSize.Y != 12 || s.Timestep != 0.1 || s.Seed != 1 {
		t.Errorf("unexpected simulation settings %+v", s)
	}
	if len(s.OutputAtTimestep.DistributionAt) != 1 || s.OutputAtTimestep.DistributionAt[0] != 12 {
		t.Errorf("unexpected distribution_at %v", s.OutputAtTimestep.DistributionAt)
	}
	if cfg.Parameters.Diffusion.Rotational != 0.25 || cfg.Parameters.Stress.Magnetic != 2 {
		t.Errorf("unexpected parameters %+v", cfg.Parameters)
	}
	// defaults fill what the file leaves out
	if cfg.Environment.IORetries != DefaultIORetries || cfg.Environment.LogLevel != "info" {
		t.Errorf("defaults not applied: %+v", cfg.Environment)
	}
	if cfg.Environment.Version != Version {
		t.Errorf("version not stamped: %q", cfg.Environment.Version)
	}
}

func TestLoadUnknownExtensionIsTOML(t *testing.T) {
	if _, err := Load(writeFile(t, "params.in", sampleTOML)); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "params.toml", sampleTOML+"\n[extra]\nfoo = 1\n"))
	if !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("expected config error, got %v", err)
	}
}

func TestSaveAndReload(t *testing.T) {
	cfg, err := Load(writeFile(t, "params.toml", sampleTOML))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "saved.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Simulation.GridSize != cfg.Simulation.GridSize ||
		again.Parameters != cfg.Parameters ||
		again.Environment != cfg.Environment ||
		again.Simulation.OutputAtTimestep.DistributionAt[0] != 12 {
		t.Errorf("reloaded config differs:\n%+v\n%+v", again, cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero grid", func(c *Config) { c.Simulation.GridSize.Y = 0 }, "simulation.grid_size.y"},
		{"theta grid", func(c *Config) { c.Simulation.GridSize.Theta = 0 }, "simulation.grid_size.theta"},
		{"negative box", func(c *Config) { c.Simulation.BoxSize.Z = -1 }, "simulation.box_size"},
		{"zero timestep", func(c *Config) { c.Simulation.Timestep = 0 }, "simulation.timestep"},
		{"no particles", func(c *Config) { c.Simulation.NumberOfParticles = 0 }, "simulation.number_of_particles"},
		{"negative diffusion", func(c *Config) { c.Parameters.Diffusion.Rotational = -1 }, "parameters.diffusion"},
		{"head too large", func(c *Config) { c.Simulation.OutputAtTimestep.ParticlesHead = c.Simulation.NumberOfParticles + 1 }, "simulation.output_at_timestep.particles_head"},
		{"unknown format", func(c *Config) { c.Environment.OutputFormat = "msgpack" }, "environment.output_format"},
		{"unknown distribution", func(c *Config) { c.Simulation.InitDistribution = "Gaussian" }, "simulation.init_distribution"},
		{"zero kappa", func(c *Config) { c.Simulation.InitDistribution = "Bizonne"; c.Simulation.InitKappa = 0 }, "simulation.init_kappa"},
		{"negative queue", func(c *Config) { c.Environment.IOQueueSize = -1 }, "environment.io_queue_size"},
		{"negative stride", func(c *Config) { c.Simulation.OutputAtTimestep.Snapshot = -5 }, "simulation.output_at_timestep.snapshot"},
		{"negative at", func(c *Config) { c.Simulation.OutputAtTimestep.ParticlesAt = []int{3, -1} }, "simulation.output_at_timestep.particles_at"},
		{"log level", func(c *Config) { c.Environment.LogLevel = "loud" }, "environment.log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()

			var ce *dynamo.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("expected field %s, got %s (%v)", tt.field, ce.Field, err)
			}
		})
	}
}

func TestValidateReportsFirstInvalidOutputField(t *testing.T) {
	cfg := DefaultConfig()
	o := &cfg.Simulation.OutputAtTimestep
	o.Distribution = -1
	o.Particles = -2
	o.Snapshot = -3
	o.FlowfieldAt = []int{-1}
	o.ParticlesAt = []int{-1}

	for i := 0; i < 50; i++ {
		var ce *dynamo.ConfigError
		if err := cfg.Validate(); !errors.As(err, &ce) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if ce.Field != "simulation.output_at_timestep.distribution" {
			t.Fatalf("run %d: expected distribution stride to be reported first, got %s", i, ce.Field)
		}
	}

	o.Distribution, o.Particles, o.Snapshot = 0, 0, 0
	for i := 0; i < 50; i++ {
		var ce *dynamo.ConfigError
		if err := cfg.Validate(); !errors.As(err, &ce) {
			t.Fatalf("expected ConfigError, got %v", err)
		}
		if ce.Field != "simulation.output_at_timestep.flowfield_at" {
			t.Fatalf("run %d: expected flowfield_at to be reported first, got %s", i, ce.Field)
		}
	}
}

func TestCanonicalEnumNames(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Environment.OutputFormat = "json"
	cfg.Simulation.InitDistribution = "ISOTROPIC"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("case-insensitive names should validate: %v", err)
	}
	if cfg.Format() != "Json" || cfg.Distribution() != "Isotropic" {
		t.Errorf("got %s / %s", cfg.Format(), cfg.Distribution())
	}
}

func TestPresets(t *testing.T) {
	names := ListPresets()
	if len(names) == 0 || names[0] != "aligned" {
		t.Fatalf("expected sorted preset names, got %v", names)
	}
	for _, name := range names {
		if err := GetPreset(name).Validate(); err != nil {
			t.Errorf("preset %s invalid: %v", name, err)
		}
	}

	s := GetPreset("sample")
	if s.Simulation.NumberOfParticles != 100 || s.Simulation.NumberOfTimesteps != 500 || s.Simulation.Seed != 1 {
		t.Errorf("unexpected sample preset %+v", s.Simulation)
	}
	s.Simulation.OutputAtTimestep.DistributionAt[0] = 99
	if Presets["sample"].Simulation.OutputAtTimestep.DistributionAt[0] != 12 {
		t.Error("GetPreset must return a copy")
	}

	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for unknown preset")
	}
}

func TestSIConversion(t *testing.T) {
	const (
		radius = 1e-6
		eta    = 1e-3
		fd     = 3e-18
		moment = 2e-16
		field  = 5e-3
	)
	// unit number density makes the length scale 1
	si := &ConfigSI{
		Simulation: DefaultConfig().Simulation,
		Parameters: ParametersSI{
			HydroScreening:  0.3,
			VolumeExclusion: 0.4,
			Viscosity:       eta,
			Temperature:     0,
			VolumeFraction:  4.0 / 3.0 * math.Pi * radius * radius * radius,
			ExternalField:   field,
			Particle: ParticleSI{
				Radius:               radius,
				Shape:                0.6,
				SelfPropulsionSpeed:  2,
				ForceDipole:          fd,
				MagneticDipoleMoment: moment,
				PersistanceTime:      0.25,
			},
		},
		Environment: DefaultConfig().Environment,
	}
	si.Simulation.Timestep = 1
	si.Simulation.BoxSize = dynamo.BoxSize{X: 10, Y: 20, Z: 30}

	cfg := si.IntoConfig()
	near := func(name string, got, want float64) {
		t.Helper()
		if math.Abs(got-want) > 1e-9*math.Max(1, math.Abs(want)) {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}

	zetaR := 8 * math.Pi * eta * radius * radius * radius
	zetaT := 6 * math.Pi * eta * radius
	mu0m2 := 4e-7 * math.Pi * moment * moment

	near("timestep", cfg.Simulation.Timestep, 2)
	near("box.x", cfg.Simulation.BoxSize.X, 10)
	near("box.z", cfg.Simulation.BoxSize.Z, 30)
	near("translational", cfg.Parameters.Diffusion.Translational, 0)
	near("rotational", cfg.Parameters.Diffusion.Rotational, 1)
	near("active", cfg.Parameters.Stress.Active, fd/2/eta)
	near("magnetic", cfg.Parameters.Stress.Magnetic, moment*field/2/eta)
	near("magnetic_reorientation", cfg.Parameters.MagneticReorientation, moment*field/zetaR/2)
	near("magnetic_dipole_dipole", cfg.Parameters.MagneticDipole.MagneticDipoleDipole, mu0m2/2/zetaR)
	near("drag", cfg.Parameters.Drag, mu0m2/2/zetaT)
	near("volume_exclusion", cfg.Parameters.VolumeExclusion, 0.4)
	near("shape", cfg.Parameters.Shape, 0.6)
	near("hydro_screening", cfg.Parameters.HydroScreening, 0.3)
}

func TestLoadSI(t *testing.T) {
	const siTOML = `
[simulation]
number_of_particles = 10
number_of_timesteps = 5
timestep = 1e-3

[simulation.box_size]
x = 1e-4
y = 1e-4
z = 1e-4

[simulation.grid_size]
x = 4
y = 4
z = 4
phi = 3
theta = 3

[parameters]
hydro_screening = 0.0
volume_exclusion = 0.0
viscosity = 1e-3
temperature = 300.0
volume_fraction = 0.01
external_field = 1e-3

[parameters.particle]
radius = 1e-6
shape = 0.5
self_propulsion_speed = 1e-5
force_dipole = 1e-18
magnetic_dipole_moment = 1e-16
persistance_time = 1.0
`
	cfg, err := LoadSI(writeFile(t, "si.toml", siTOML))
	if err != nil {
		t.Fatalf("load si: %v", err)
	}
	if cfg.Parameters.Diffusion.Translational <= 0 || cfg.Parameters.Diffusion.Rotational <= 0 {
		t.Errorf("expected positive diffusion, got %+v", cfg.Parameters.Diffusion)
	}
	if cfg.Simulation.BoxSize.X <= 1 {
		t.Errorf("box should be in units of the particle distance, got %v", cfg.Simulation.BoxSize.X)
	}

	_, err = LoadSI(writeFile(t, "si.toml", siTOML+"\n[parameters.diffusion]\ntranslational = 1.0\n"))
	if !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("simulation-unit keys must be rejected in SI files, got %v", err)
	}
}
