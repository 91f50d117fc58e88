package mesh

import (
	"math"

	"github.com/san-kum/swimsim/internal/dynamo"
)

// Cloud-in-cell weights along one axis. A coordinate between the centres of
// cells lo and hi puts weight 1-w on lo and w on hi.
func periodicStencil(x, width float64, n int) (lo, hi int, w float64) {
	u := x/width - 0.5
	f := math.Floor(u)
	w = u - f
	lo = int(f) % n
	if lo < 0 {
		lo += n
	}
	hi = (lo + 1) % n
	return lo, hi, w
}

// Beyond the outermost cell centres the whole weight stays in the boundary
// cell. Used for θ, where the poles are not periodic.
func clampedStencil(x, width float64, n int) (lo, hi int, w float64) {
	u := x/width - 0.5
	if u <= 0 {
		return 0, 0, 0
	}
	if u >= float64(n-1) {
		return n - 1, n - 1, 0
	}
	f := math.Floor(u)
	lo = int(f)
	return lo, lo + 1, u - f
}

// Corners are the eight spatial cells touched by one point and their weights.
type Corners struct {
	Index  [8]int
	Weight [8]float64
}

// SpatialCorners returns the trilinear stencil of a point in the box.
func (g *Grid) SpatialCorners(x, y, z float64) Corners {
	x0, x1, wx := periodicStencil(x, g.Width.X, g.Size.X)
	y0, y1, wy := periodicStencil(y, g.Width.Y, g.Size.Y)
	z0, z1, wz := periodicStencil(z, g.Width.Z, g.Size.Z)

	xs := [2]int{x0, x1}
	ys := [2]int{y0, y1}
	zs := [2]int{z0, z1}
	wxs := [2]float64{1 - wx, wx}
	wys := [2]float64{1 - wy, wy}
	wzs := [2]float64{1 - wz, wz}

	var c Corners
	n := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for k := 0; k < 2; k++ {
				c.Index[n] = g.SpatialIndex(xs[i], ys[j], zs[k])
				c.Weight[n] = wxs[i] * wys[j] * wzs[k]
				n++
			}
		}
	}
	return c
}

// Sample interpolates a spatial field with the stencil weights.
func (c *Corners) Sample(field []float64) float64 {
	v := 0.0
	for n := range c.Index {
		v += c.Weight[n] * field[c.Index[n]]
	}
	return v
}

// Deposit adds mass to dst, a 5-D field in grid order, spread over the 32
// cells surrounding p. The weights sum to one.
func (g *Grid) Deposit(dst []float64, p dynamo.Particle, mass float64) {
	c := g.SpatialCorners(p.X, p.Y, p.Z)
	p0, p1, wp := periodicStencil(p.Phi, g.Width.Phi, g.Size.Phi)
	t0, t1, wt := clampedStencil(p.Theta, g.Width.Theta, g.Size.Theta)

	nt := g.Size.Theta
	ang := [4]struct {
		offset int
		w      float64
	}{
		{p0*nt + t0, (1 - wp) * (1 - wt)},
		{p0*nt + t1, (1 - wp) * wt},
		{p1*nt + t0, wp * (1 - wt)},
		{p1*nt + t1, wp * wt},
	}

	na := g.Size.Angular()
	for n := range c.Index {
		base := c.Index[n] * na
		wc := mass * c.Weight[n]
		for _, a := range ang {
			dst[base+a.offset] += wc * a.w
		}
	}
}
