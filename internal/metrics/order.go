// Package metrics computes ensemble observables of the swimmer orientation.
package metrics

import (
	"math"

	"github.com/san-kum/swimsim/internal/dynamo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Metric observes the ensemble once per output step.
type Metric interface {
	Name() string
	Observe(particles []dynamo.Particle)
	Value() float64
	Reset()
}

// PolarOrder is the length of the mean orientation vector: 1 when all
// swimmers point the same way, close to 0 for an isotropic ensemble.
type PolarOrder struct {
	value float64
}

func NewPolarOrder() *PolarOrder { return &PolarOrder{} }

func (p *PolarOrder) Name() string { return "polar_order" }

func (p *PolarOrder) Observe(particles []dynamo.Particle) {
	if len(particles) == 0 {
		p.value = 0
		return
	}
	var sum r3.Vec
	for _, q := range particles {
		sum = r3.Add(sum, q.Direction())
	}
	p.value = r3.Norm(sum) / float64(len(particles))
}

func (p *PolarOrder) Value() float64 { return p.value }
func (p *PolarOrder) Reset()         { p.value = 0 }

// NematicOrder is the largest eigenvalue of Q = <3/2 n n - 1/2 I>.
type NematicOrder struct {
	value float64
}

func NewNematicOrder() *NematicOrder { return &NematicOrder{} }

func (n *NematicOrder) Name() string { return "nematic_order" }

func (n *NematicOrder) Observe(particles []dynamo.Particle) {
	if len(particles) == 0 {
		n.value = 0
		return
	}
	q := mat.NewSymDense(3, nil)
	for _, p := range particles {
		d := p.Direction()
		v := [3]float64{d.X, d.Y, d.Z}
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				q.SetSym(i, j, q.At(i, j)+1.5*v[i]*v[j])
			}
		}
	}
	inv := 1 / float64(len(particles))
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			x := q.At(i, j) * inv
			if i == j {
				x -= 0.5
			}
			q.SetSym(i, j, x)
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(q, false) {
		n.value = math.NaN()
		return
	}
	vals := eig.Values(nil)
	n.value = vals[len(vals)-1]
}

func (n *NematicOrder) Value() float64 { return n.value }
func (n *NematicOrder) Reset()         { n.value = 0 }

// MeanAlignment is <cos θ>, the alignment with the external field.
type MeanAlignment struct {
	value float64
	buf   []float64
}

func NewMeanAlignment() *MeanAlignment { return &MeanAlignment{} }

func (m *MeanAlignment) Name() string { return "mean_alignment" }

func (m *MeanAlignment) Observe(particles []dynamo.Particle) {
	m.buf = m.buf[:0]
	for _, p := range particles {
		m.buf = append(m.buf, math.Cos(p.Theta))
	}
	if len(m.buf) == 0 {
		m.value = 0
		return
	}
	m.value = stat.Mean(m.buf, nil)
}

func (m *MeanAlignment) Value() float64 { return m.value }
func (m *MeanAlignment) Reset()         { m.value = 0 }

// MeanPolarAngle is the ensemble mean of θ in radians.
type MeanPolarAngle struct {
	value float64
	buf   []float64
}

func NewMeanPolarAngle() *MeanPolarAngle { return &MeanPolarAngle{} }

func (m *MeanPolarAngle) Name() string { return "mean_theta" }

func (m *MeanPolarAngle) Observe(particles []dynamo.Particle) {
	m.buf = m.buf[:0]
	for _, p := range particles {
		m.buf = append(m.buf, p.Theta)
	}
	if len(m.buf) == 0 {
		m.value = 0
		return
	}
	m.value = stat.Mean(m.buf, nil)
}

func (m *MeanPolarAngle) Value() float64 { return m.value }
func (m *MeanPolarAngle) Reset()         { m.value = 0 }
