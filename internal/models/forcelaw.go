// Package models holds the physics of a single swimmer: the deterministic
// drift terms acting on it and the initial placement distributions.
package models

import (
	"github.com/san-kum/swimsim/internal/spectral"
	"gonum.org/v1/gonum/spatial/r3"
)

// Params are the interaction coefficients in simulation units.
type Params struct {
	MagneticReorientation float64
	MagneticDipoleDipole  float64
	Drag                  float64
	VolumeExclusion       float64
	Shape                 float64
}

// Drift is the deterministic velocity of a particle and the rate of change
// of its orientation vector.
type Drift struct {
	Position    r3.Vec
	Orientation r3.Vec
}

// Term adds one physical contribution to d, given the orientation n and the
// fields sampled at the particle.
type Term struct {
	Name  string
	Apply func(n r3.Vec, l *spectral.Local, d *Drift)
}

// ForceLaw is the list of drift terms plus the relaxation toward the
// external field, which is applied to θ after the orientation update.
type ForceLaw struct {
	Terms           []Term
	PolarRelaxation float64
}

// NewForceLaw returns the full law for p. Self-propulsion and convection are
// always present; the remaining terms are added when their coefficient is
// non-zero.
func NewForceLaw(p Params) *ForceLaw {
	f := &ForceLaw{PolarRelaxation: p.MagneticReorientation}
	f.Terms = append(f.Terms, SelfPropulsion(), Convection(), Jeffery(p.Shape))
	if p.Drag != 0 {
		f.Terms = append(f.Terms, MagneticDrag(p.Drag))
	}
	if p.VolumeExclusion != 0 {
		f.Terms = append(f.Terms, VolumeExclusion(p.VolumeExclusion))
	}
	if p.MagneticDipoleDipole != 0 {
		f.Terms = append(f.Terms, DipoleRotation(p.MagneticDipoleDipole, p.MagneticReorientation))
	}
	return f
}

func (f *ForceLaw) Drift(n r3.Vec, l *spectral.Local) Drift {
	var d Drift
	for _, t := range f.Terms {
		t.Apply(n, l, &d)
	}
	return d
}

func (f *ForceLaw) Names() []string {
	names := make([]string, len(f.Terms))
	for i, t := range f.Terms {
		names[i] = t.Name
	}
	return names
}

func SelfPropulsion() Term {
	return Term{Name: "self_propulsion", Apply: func(n r3.Vec, _ *spectral.Local, d *Drift) {
		d.Position = r3.Add(d.Position, n)
	}}
}

func Convection() Term {
	return Term{Name: "convection", Apply: func(_ r3.Vec, l *spectral.Local, d *Drift) {
		d.Position = r3.Add(d.Position, l.Flow)
	}}
}

// MagneticDrag pulls a dipole up the field gradient: drag·(∇B)ᵀ·n.
func MagneticDrag(drag float64) Term {
	return Term{Name: "magnetic_drag", Apply: func(n r3.Vec, l *spectral.Local, d *Drift) {
		d.Position = r3.Add(d.Position, r3.Scale(drag, l.MagneticGradient.MulVecTrans(n)))
	}}
}

func VolumeExclusion(strength float64) Term {
	return Term{Name: "volume_exclusion", Apply: func(_ r3.Vec, l *spectral.Local, d *Drift) {
		d.Position = r3.Sub(d.Position, r3.Scale(strength, l.ConcentrationGradient))
	}}
}

// Jeffery rotates n with half the vorticity and aligns it with the strain
// according to the particle shape factor.
func Jeffery(shape float64) Term {
	return Term{Name: "jeffery", Apply: func(n r3.Vec, l *spectral.Local, d *Drift) {
		rot := r3.Scale(0.5, r3.Cross(l.Vorticity, n))
		if shape != 0 {
			en := l.Strain.MulVec(n)
			rot = r3.Add(rot, r3.Scale(shape, r3.Sub(en, r3.Scale(r3.Dot(n, en), n))))
		}
		d.Orientation = r3.Add(d.Orientation, rot)
	}}
}

// DipoleRotation turns n toward the local induced field b = reorientation·B,
// projected onto the plane perpendicular to n.
func DipoleRotation(dipoleDipole, reorientation float64) Term {
	return Term{Name: "magnetic_dipole_dipole", Apply: func(n r3.Vec, l *spectral.Local, d *Drift) {
		b := r3.Scale(reorientation, l.Magnetic)
		perp := r3.Sub(b, r3.Scale(r3.Dot(n, b), n))
		d.Orientation = r3.Add(d.Orientation, r3.Scale(dipoleDipole, perp))
	}}
}
