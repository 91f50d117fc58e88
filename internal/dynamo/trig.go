package dynamo

import "math"

const TwoPi = 2 * math.Pi

// Modulo returns the euclidean remainder of f / m, always in [0, m).
func Modulo(f, m float64) float64 {
	r := math.Mod(f, m)
	if r < 0 {
		r += m
	}
	// r + m rounds to m for tiny negative r
	if r >= m {
		r = 0
	}
	return r
}

// AngPBC maps (φ, θ) onto φ ∈ [0, 2π), θ ∈ [0, π]. A polar angle beyond π is
// reflected and the azimuth turned by π, which leaves the direction intact.
func AngPBC(phi, theta float64) (float64, float64) {
	theta = Modulo(theta, TwoPi)
	if theta > math.Pi {
		return Modulo(phi+math.Pi, TwoPi), TwoPi - theta
	}
	return Modulo(phi, TwoPi), theta
}
