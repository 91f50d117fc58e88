package config

import (
	"sort"

	"github.com/san-kum/swimsim/internal/dynamo"
)

// Presets are complete parameter sets in simulation units.
var Presets = map[string]*Config{
	// 100 particles on an 11×12×13×6×7 grid for 500 steps; particles are
	// recorded every 100 steps and the distribution once at step 12.
	"sample": {
		Simulation: Simulation{
			BoxSize:           dynamo.BoxSize{X: 11, Y: 12, Z: 13},
			GridSize:          dynamo.GridSize{X: 11, Y: 12, Z: 13, Phi: 6, Theta: 7},
			InitDistribution:  "Isotropic",
			InitKappa:         1,
			NumberOfParticles: 100,
			NumberOfTimesteps: 500,
			Timestep:          0.1,
			Seed:              1,
			OutputAtTimestep: Output{
				DistributionAt:  []int{12},
				FlowfieldAt:     []int{},
				MagneticfieldAt: []int{},
				Particles:       100,
				ParticlesAt:     []int{},
				FinalSnapshot:   true,
			},
		},
		Parameters: Parameters{
			MagneticReorientation: 0.5,
			Drag:                  0.1,
			VolumeExclusion:       0.1,
			Shape:                 0.3,
			HydroScreening:        0,
			Diffusion:             Diffusion{Translational: 0.5, Rotational: 0.5},
			Stress:                Stress{Active: 1, Magnetic: 1},
			MagneticDipole:        MagneticDipole{MagneticDipoleDipole: 0.1},
		},
		Environment: Environment{
			IOQueueSize:  10,
			IORetries:    3,
			OutputFormat: "Bincode",
			Prefix:       "sample",
			LogLevel:     "info",
			Version:      Version,
		},
	},
	// free swimmers without interactions
	"dilute": {
		Simulation: Simulation{
			BoxSize:           dynamo.BoxSize{X: 20, Y: 20, Z: 20},
			GridSize:          dynamo.GridSize{X: 8, Y: 8, Z: 8, Phi: 4, Theta: 4},
			InitDistribution:  "Isotropic",
			InitKappa:         1,
			NumberOfParticles: 1000,
			NumberOfTimesteps: 200,
			Timestep:          0.05,
			Seed:              1,
			OutputAtTimestep: Output{
				DistributionAt:  []int{},
				FlowfieldAt:     []int{},
				MagneticfieldAt: []int{},
				Particles:       50,
				ParticlesAt:     []int{},
				FinalSnapshot:   true,
			},
		},
		Parameters: Parameters{
			Diffusion: Diffusion{Translational: 0.1, Rotational: 0.2},
		},
		Environment: Environment{
			IOQueueSize:  10,
			IORetries:    3,
			OutputFormat: "Json",
			Prefix:       "dilute",
			LogLevel:     "info",
			Version:      Version,
		},
	},
	// magnetically aligned suspension starting from the Homogeneous state
	"aligned": {
		Simulation: Simulation{
			BoxSize:           dynamo.BoxSize{X: 16, Y: 16, Z: 16},
			GridSize:          dynamo.GridSize{X: 16, Y: 16, Z: 16, Phi: 8, Theta: 8},
			InitDistribution:  "Homogeneous",
			InitKappa:         2,
			NumberOfParticles: 10000,
			NumberOfTimesteps: 1000,
			Timestep:          0.01,
			Seed:              7,
			OutputAtTimestep: Output{
				Distribution:     100,
				DistributionAt:   []int{},
				Flowfield:        100,
				FlowfieldAt:      []int{},
				Magneticfield:    100,
				MagneticfieldAt:  []int{},
				Particles:        100,
				ParticlesAt:      []int{},
				ParticlesHead:    1000,
				Snapshot:         500,
				InitialCondition: true,
				FinalSnapshot:    true,
			},
		},
		Parameters: Parameters{
			MagneticReorientation: 2,
			Drag:                  0.5,
			VolumeExclusion:       0.2,
			Shape:                 0.5,
			HydroScreening:        0.1,
			Diffusion:             Diffusion{Translational: 0.1, Rotational: 0.1},
			Stress:                Stress{Active: -1, Magnetic: 2},
			MagneticDipole:        MagneticDipole{MagneticDipoleDipole: 0.5},
		},
		Environment: Environment{
			IOQueueSize:  20,
			IORetries:    3,
			OutputFormat: "Cbor",
			Prefix:       "aligned",
			LogLevel:     "info",
			Version:      Version,
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *p
	o := &c.Simulation.OutputAtTimestep
	o.DistributionAt = append([]int{}, o.DistributionAt...)
	o.FlowfieldAt = append([]int{}, o.FlowfieldAt...)
	o.MagneticfieldAt = append([]int{}, o.MagneticfieldAt...)
	o.ParticlesAt = append([]int{}, o.ParticlesAt...)
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
