// Package spectral solves for the flow, magnetic and concentration-gradient
// fields induced by the swimmer distribution on the periodic box.
package spectral

import (
	"context"
	"math"

	"github.com/san-kum/swimsim/internal/compute"
	"github.com/san-kum/swimsim/internal/distribution"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/san-kum/swimsim/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Params are the coupling constants entering the stress and the Oseen
// operator, in simulation units.
type Params struct {
	Active         float64
	Magnetic       float64
	HydroScreening float64
}

// VectorField holds the x, y and z components over the spatial grid.
type VectorField [3][]float64

// TensorField holds component [i][j] over the spatial grid.
type TensorField [3][3][]float64

// Fields is everything the integrator needs from one solve. MagneticGradient
// is stored as [i][j] = ∂_j B_i.
type Fields struct {
	Flow                  VectorField
	Vorticity             VectorField
	Strain                TensorField
	Magnetic              VectorField
	MagneticGradient      TensorField
	ConcentrationGradient VectorField
}

// Spectra are the Fourier coefficients of the solved fields before the
// inverse transform.
type Spectra struct {
	Flow                  [3][]complex128
	Vorticity             [3][]complex128
	Strain                [3][3][]complex128
	Magnetic              [3][]complex128
	MagneticGradient      [3][3][]complex128
	ConcentrationGradient [3][]complex128
}

type Solver struct {
	grid    *mesh.Grid
	backend compute.Backend
	fft     *FFT3
	params  Params

	k      []r3.Vec
	k2     []float64
	stress [][3][3]float64
}

func NewSolver(g *mesh.Grid, backend compute.Backend, p Params) *Solver {
	s := &Solver{
		grid:    g,
		backend: backend,
		fft:     NewFFT3(g.Size.X, g.Size.Y, g.Size.Z, backend),
		params:  p,
	}

	km := g.KMesh()
	n := g.Size.Spatial()
	s.k = make([]r3.Vec, 0, n)
	s.k2 = make([]float64, 0, n)
	for _, kx := range km.X {
		for _, ky := range km.Y {
			for _, kz := range km.Z {
				k := r3.Vec{X: kx, Y: ky, Z: kz}
				s.k = append(s.k, k)
				s.k2 = append(s.k2, r3.Dot(k, k))
			}
		}
	}

	dirs := distribution.Directions(g)
	s.stress = make([][3][3]float64, len(dirs))
	for a, d := range dirs {
		s.stress[a] = stressKernel(d, p)
	}
	return s
}

// stressKernel is active·(n n − I/3) + ½·magnetic·(n ẑ − ẑ n).
func stressKernel(n r3.Vec, p Params) [3][3]float64 {
	nv := [3]float64{n.X, n.Y, n.Z}
	z := [3]float64{0, 0, 1}
	var s [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			v := nv[i] * nv[j]
			if i == j {
				v -= 1.0 / 3
			}
			s[i][j] = p.Active*v + 0.5*p.Magnetic*(nv[i]*z[j]-z[i]*nv[j])
		}
	}
	return s
}

func (s *Solver) Params() Params { return s.params }

// Solve computes the real-space fields induced by f. timestep is used only
// to label a numerical failure.
func (s *Solver) Solve(ctx context.Context, f *distribution.Field, timestep uint64) (*Fields, error) {
	sp, err := s.Spectra(ctx, f)
	if err != nil {
		return nil, err
	}

	out := &Fields{}
	inverse := func(dst *[]float64, src []complex128, stage string) error {
		if err := s.fft.Inverse(ctx, src); err != nil {
			return err
		}
		r := make([]float64, len(src))
		for i, v := range src {
			r[i] = real(v)
			if math.IsNaN(r[i]) || math.IsInf(r[i], 0) {
				return &dynamo.NumericalError{Stage: stage, Particle: -1, Timestep: timestep}
			}
		}
		*dst = r
		return nil
	}

	for i := 0; i < 3; i++ {
		if err := inverse(&out.Flow[i], sp.Flow[i], "flow"); err != nil {
			return nil, err
		}
		if err := inverse(&out.Vorticity[i], sp.Vorticity[i], "vorticity"); err != nil {
			return nil, err
		}
		if err := inverse(&out.Magnetic[i], sp.Magnetic[i], "magnetic"); err != nil {
			return nil, err
		}
		if err := inverse(&out.ConcentrationGradient[i], sp.ConcentrationGradient[i], "steric"); err != nil {
			return nil, err
		}
		for j := 0; j < 3; j++ {
			if err := inverse(&out.MagneticGradient[i][j], sp.MagneticGradient[i][j], "magnetic gradient"); err != nil {
				return nil, err
			}
			// strain is symmetric; transform the upper triangle only
			if j < i {
				out.Strain[i][j] = out.Strain[j][i]
				continue
			}
			if err := inverse(&out.Strain[i][j], sp.Strain[i][j], "strain"); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// Spectra runs the forward half of Solve: it builds the stress, dipole and
// concentration fields, transforms them, and applies the k-space operators.
// Every k = 0 coefficient of the result is exactly zero.
func (s *Solver) Spectra(ctx context.Context, f *distribution.Field) (*Spectra, error) {
	ns := s.grid.Size.Spatial()
	na := s.grid.Size.Angular()
	w := f.Weights()
	dirs := distribution.Directions(s.grid)

	var sigma [3][3][]complex128
	var dipole [3][]complex128
	conc := make([]complex128, ns)
	for i := 0; i < 3; i++ {
		dipole[i] = make([]complex128, ns)
		for j := 0; j < 3; j++ {
			sigma[i][j] = make([]complex128, ns)
		}
	}

	err := s.backend.ParallelFor(ctx, ns, func(_, lo, hi int) error {
		for c := lo; c < hi; c++ {
			var st [3][3]float64
			var m r3.Vec
			total := 0.0
			for a := 0; a < na; a++ {
				wa := w[c*na+a]
				if wa == 0 {
					continue
				}
				total += wa
				m = r3.Add(m, r3.Scale(wa, dirs[a]))
				for i := 0; i < 3; i++ {
					for j := 0; j < 3; j++ {
						st[i][j] += wa * s.stress[a][i][j]
					}
				}
			}
			conc[c] = complex(total, 0)
			dipole[0][c] = complex(m.X, 0)
			dipole[1][c] = complex(m.Y, 0)
			dipole[2][c] = complex(m.Z, 0)
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					sigma[i][j][c] = complex(st[i][j], 0)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := s.fft.Forward(ctx, conc); err != nil {
		return nil, err
	}
	for i := 0; i < 3; i++ {
		if err := s.fft.Forward(ctx, dipole[i]); err != nil {
			return nil, err
		}
		for j := 0; j < 3; j++ {
			if err := s.fft.Forward(ctx, sigma[i][j]); err != nil {
				return nil, err
			}
		}
	}

	sp := newSpectra(ns)
	screen2 := s.params.HydroScreening * s.params.HydroScreening

	err = s.backend.ParallelFor(ctx, ns, func(_, lo, hi int) error {
		for m := lo; m < hi; m++ {
			k2 := s.k2[m]
			if k2 == 0 {
				// newSpectra zero-initializes, so the mean mode stays 0
				continue
			}
			kv := [3]float64{s.k[m].X, s.k[m].Y, s.k[m].Z}
			ik := [3]complex128{complex(0, kv[0]), complex(0, kv[1]), complex(0, kv[2])}

			// body force from the stress divergence
			var force [3]complex128
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					force[i] += ik[j] * sigma[i][j][m]
				}
			}

			// transverse projection and screened Oseen response
			var kf complex128
			for j := 0; j < 3; j++ {
				kf += complex(kv[j], 0) * force[j]
			}
			denom := k2 + screen2
			var u [3]complex128
			for i := 0; i < 3; i++ {
				u[i] = (force[i] - complex(kv[i]/k2, 0)*kf) / complex(denom, 0)
				sp.Flow[i][m] = u[i]
			}

			sp.Vorticity[0][m] = ik[1]*u[2] - ik[2]*u[1]
			sp.Vorticity[1][m] = ik[2]*u[0] - ik[0]*u[2]
			sp.Vorticity[2][m] = ik[0]*u[1] - ik[1]*u[0]

			for i := 0; i < 3; i++ {
				for j := i; j < 3; j++ {
					sp.Strain[i][j][m] = 0.5 * (ik[i]*u[j] + ik[j]*u[i])
				}
			}

			var km complex128
			for j := 0; j < 3; j++ {
				km += complex(kv[j], 0) * dipole[j][m]
			}
			for i := 0; i < 3; i++ {
				b := -complex(kv[i]/k2, 0) * km
				sp.Magnetic[i][m] = b
				for j := 0; j < 3; j++ {
					sp.MagneticGradient[i][j][m] = ik[j] * b
				}
				sp.ConcentrationGradient[i][m] = ik[i] * conc[m]
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < 3; i++ {
		for j := 0; j < i; j++ {
			sp.Strain[i][j] = sp.Strain[j][i]
		}
	}
	return sp, nil
}

func newSpectra(n int) *Spectra {
	sp := &Spectra{}
	for i := 0; i < 3; i++ {
		sp.Flow[i] = make([]complex128, n)
		sp.Vorticity[i] = make([]complex128, n)
		sp.Magnetic[i] = make([]complex128, n)
		sp.ConcentrationGradient[i] = make([]complex128, n)
		for j := 0; j < 3; j++ {
			sp.MagneticGradient[i][j] = make([]complex128, n)
			if j >= i {
				sp.Strain[i][j] = make([]complex128, n)
			}
		}
	}
	return sp
}
