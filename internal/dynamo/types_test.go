package dynamo

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestModulo(t *testing.T) {
	tests := []struct {
		f, m, want float64
	}{
		{0, 1, 0},
		{1, 1, 0},
		{1.5, 1, 0.5},
		{-0.25, 1, 0.75},
		{-3, 2, 1},
		{-1e-18, 1, 0},
	}

	for _, tt := range tests {
		got := Modulo(tt.f, tt.m)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Modulo(%v, %v) = %v, want %v", tt.f, tt.m, got, tt.want)
		}
		if got < 0 || got >= tt.m {
			t.Errorf("Modulo(%v, %v) = %v out of [0, %v)", tt.f, tt.m, got, tt.m)
		}
	}
}

func TestAngPBC(t *testing.T) {
	tests := []struct {
		name               string
		phi, theta         float64
		wantPhi, wantTheta float64
	}{
		{"canonical", 1, 1, 1, 1},
		{"phi wraps", TwoPi + 0.5, 1, 0.5, 1},
		{"negative phi", -0.5, 1, TwoPi - 0.5, 1},
		{"theta beyond pi", 0.25, math.Pi + 0.5, 0.25 + math.Pi, math.Pi - 0.5},
		{"negative theta", 0, -0.5, math.Pi, 0.5},
		{"theta at pi", 0, math.Pi, 0, math.Pi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phi, theta := AngPBC(tt.phi, tt.theta)
			if math.Abs(phi-tt.wantPhi) > 1e-12 || math.Abs(theta-tt.wantTheta) > 1e-12 {
				t.Errorf("AngPBC(%v, %v) = (%v, %v), want (%v, %v)",
					tt.phi, tt.theta, phi, theta, tt.wantPhi, tt.wantTheta)
			}
		})
	}
}

func TestAngPBCKeepsDirection(t *testing.T) {
	for _, in := range [][2]float64{{0.3, 4}, {-2, -1}, {7, 9}, {1, -3.5}} {
		raw := Particle{Phi: in[0], Theta: in[1]}
		p := raw
		p.Phi, p.Theta = AngPBC(p.Phi, p.Theta)

		a, b := raw.Direction(), p.Direction()
		if math.Abs(a.X-b.X) > 1e-12 || math.Abs(a.Y-b.Y) > 1e-12 || math.Abs(a.Z-b.Z) > 1e-12 {
			t.Errorf("direction changed for %v: %v != %v", in, a, b)
		}
	}
}

func TestNewParticleWrapsPosition(t *testing.T) {
	bs := BoxSize{X: 10, Y: 10, Z: 5}
	p := NewParticle(12.5, -1, 5, 0.5, 4, bs)

	if p.X != 2.5 || p.Y != 9 || p.Z != 0 {
		t.Errorf("unexpected position %v %v %v", p.X, p.Y, p.Z)
	}
	if p.Theta < 0 || p.Theta > math.Pi {
		t.Errorf("theta %v not canonical", p.Theta)
	}
}

func TestDirectionRoundTrip(t *testing.T) {
	p := Particle{Phi: 1.2, Theta: 0.7}
	q := p
	q.SetDirection(p.Direction())

	if math.Abs(q.Phi-p.Phi) > 1e-12 || math.Abs(q.Theta-p.Theta) > 1e-12 {
		t.Errorf("round trip changed angles: %+v -> %+v", p, q)
	}
}

func TestParticleJSON(t *testing.T) {
	p := Particle{X: 1, Y: 2, Z: 3, Phi: 4, Theta: 0.5}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != "[1,2,3,4,0.5]" {
		t.Errorf("unexpected encoding %s", data)
	}

	var q Particle
	if err := json.Unmarshal(data, &q); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if q != p {
		t.Errorf("expected %+v, got %+v", p, q)
	}

	if err := json.Unmarshal([]byte("[1,2]"), &q); !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}

func TestIsFinite(t *testing.T) {
	if !(Particle{X: 1}).IsFinite() {
		t.Error("finite particle reported non-finite")
	}
	if (Particle{Theta: math.NaN()}).IsFinite() {
		t.Error("NaN not detected")
	}
	if (Particle{Y: math.Inf(-1)}).IsFinite() {
		t.Error("Inf not detected")
	}
}

func TestErrorTaxonomy(t *testing.T) {
	var err error = &ConfigError{Field: "simulation.grid_size.x", Reason: "must be positive"}
	if !errors.Is(err, ErrConfig) {
		t.Error("config error should match ErrConfig")
	}

	err = &SimulationError{Step: 3, Wrapped: &NumericalError{Stage: "integrate", Particle: 7, Timestep: 3}}
	if !errors.Is(err, ErrNonFinite) {
		t.Error("numerical error should match ErrNonFinite")
	}
	var ne *NumericalError
	if !errors.As(err, &ne) || ne.Particle != 7 {
		t.Errorf("expected numerical error for particle 7, got %v", err)
	}

	err = &ResumeError{Path: "x", Wrapped: ErrResumeCorrupt}
	if !errors.Is(err, ErrResumeCorrupt) {
		t.Error("resume error should unwrap")
	}
}
