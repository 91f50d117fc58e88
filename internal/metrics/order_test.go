package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/gocarina/gocsv"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/noise"
)

func aligned(n int, theta float64) []dynamo.Particle {
	ps := make([]dynamo.Particle, n)
	for i := range ps {
		ps[i] = dynamo.Particle{X: float64(i), Phi: 1, Theta: theta}
	}
	return ps
}

func isotropic(n int) []dynamo.Particle {
	s := noise.NewStream(1)
	ps := make([]dynamo.Particle, n)
	for i := range ps {
		s.ResetPlacement(uint64(i))
		ps[i] = dynamo.Particle{Phi: 2 * math.Pi * s.Float64(), Theta: math.Acos(1 - 2*s.Float64())}
	}
	return ps
}

func TestAlignedEnsemble(t *testing.T) {
	ps := aligned(50, 0)
	for _, m := range []Metric{NewPolarOrder(), NewNematicOrder(), NewMeanAlignment()} {
		m.Observe(ps)
		if math.Abs(m.Value()-1) > 1e-9 {
			t.Errorf("%s = %v, want 1", m.Name(), m.Value())
		}
		m.Reset()
		if m.Value() != 0 {
			t.Errorf("%s not reset", m.Name())
		}
	}
}

func TestAntiparallelIsNematicNotPolar(t *testing.T) {
	ps := append(aligned(10, 0), aligned(10, math.Pi)...)

	p := NewPolarOrder()
	p.Observe(ps)
	if p.Value() > 1e-9 {
		t.Errorf("polar order %v, want 0", p.Value())
	}

	n := NewNematicOrder()
	n.Observe(ps)
	if math.Abs(n.Value()-1) > 1e-9 {
		t.Errorf("nematic order %v, want 1", n.Value())
	}
}

func TestIsotropicEnsemble(t *testing.T) {
	ps := isotropic(20000)
	for _, m := range []Metric{NewPolarOrder(), NewNematicOrder(), NewMeanAlignment()} {
		m.Observe(ps)
		if math.Abs(m.Value()) > 0.05 {
			t.Errorf("%s = %v, want about 0", m.Name(), m.Value())
		}
	}
}

func TestRecorderRows(t *testing.T) {
	r := NewRecorder()
	var rows []Row
	for ts := uint64(0); ts < 3; ts++ {
		rows = append(rows, r.Observe(aligned(5, 0.1*float64(ts)), ts, 0.5*float64(ts)))
	}
	if rows[2].Timestep != 2 || rows[2].Time != 1 {
		t.Errorf("unexpected row %+v", rows[2])
	}
	if math.Abs(rows[1].MeanAlignment-math.Cos(0.1)) > 1e-9 {
		t.Errorf("mean alignment %v", rows[1].MeanAlignment)
	}
	if math.Abs(rows[0].PolarOrder-1) > 1e-9 {
		t.Errorf("aligned ensemble should be fully polar, got %v", rows[0].PolarOrder)
	}

	out, err := gocsv.MarshalString(rows)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	header := out[:strings.Index(out, "\n")]
	if header != "timestep,time,polar_order,nematic_order,mean_alignment,mean_theta" {
		t.Errorf("unexpected header %q", header)
	}
}

func TestMeanPolarAngle(t *testing.T) {
	m := NewMeanPolarAngle()
	m.Observe(append(aligned(3, 0.5), aligned(1, 1.5)...))
	if math.Abs(m.Value()-0.75) > 1e-12 {
		t.Errorf("mean theta %v, want 0.75", m.Value())
	}

	m.Observe(isotropic(20000))
	if math.Abs(m.Value()-math.Pi/2) > 0.03 {
		t.Errorf("isotropic mean theta %v, want pi/2", m.Value())
	}
}
