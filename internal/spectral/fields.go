package spectral

import (
	"github.com/san-kum/swimsim/internal/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// Tensor is a 3×3 matrix in row-major [i][j] order.
type Tensor [3][3]float64

// MulVec returns T·v.
func (t Tensor) MulVec(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0][0]*v.X + t[0][1]*v.Y + t[0][2]*v.Z,
		Y: t[1][0]*v.X + t[1][1]*v.Y + t[1][2]*v.Z,
		Z: t[2][0]*v.X + t[2][1]*v.Y + t[2][2]*v.Z,
	}
}

// MulVecTrans returns Tᵀ·v.
func (t Tensor) MulVecTrans(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: t[0][0]*v.X + t[1][0]*v.Y + t[2][0]*v.Z,
		Y: t[0][1]*v.X + t[1][1]*v.Y + t[2][1]*v.Z,
		Z: t[0][2]*v.X + t[1][2]*v.Y + t[2][2]*v.Z,
	}
}

// Local is the value of every solved field at one point.
type Local struct {
	Flow                  r3.Vec
	Vorticity             r3.Vec
	Strain                Tensor
	Magnetic              r3.Vec
	MagneticGradient      Tensor
	ConcentrationGradient r3.Vec
}

func (v VectorField) sample(c *mesh.Corners) r3.Vec {
	return r3.Vec{X: c.Sample(v[0]), Y: c.Sample(v[1]), Z: c.Sample(v[2])}
}

func (t TensorField) sample(c *mesh.Corners) Tensor {
	var out Tensor
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = c.Sample(t[i][j])
		}
	}
	return out
}

// At interpolates all fields at the point described by c, using the same
// weights the distribution was deposited with.
func (f *Fields) At(c *mesh.Corners) Local {
	return Local{
		Flow:                  f.Flow.sample(c),
		Vorticity:             f.Vorticity.sample(c),
		Strain:                f.Strain.sample(c),
		Magnetic:              f.Magnetic.sample(c),
		MagneticGradient:      f.MagneticGradient.sample(c),
		ConcentrationGradient: f.ConcentrationGradient.sample(c),
	}
}

// Zero returns fields of the right shape with every value 0.
func Zero(g *mesh.Grid) *Fields {
	n := g.Size.Spatial()
	f := &Fields{}
	for i := 0; i < 3; i++ {
		f.Flow[i] = make([]float64, n)
		f.Vorticity[i] = make([]float64, n)
		f.Magnetic[i] = make([]float64, n)
		f.ConcentrationGradient[i] = make([]float64, n)
		for j := 0; j < 3; j++ {
			f.MagneticGradient[i][j] = make([]float64, n)
			if j >= i {
				f.Strain[i][j] = make([]float64, n)
			} else {
				f.Strain[i][j] = f.Strain[j][i]
			}
		}
	}
	return f
}
