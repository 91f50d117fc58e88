package mesh

import "math"

// Wavenumbers returns the k sampling of an axis with n cells and extent l in
// FFT order: [0, 1, ..., n/2 - 1 (or (n-1)/2), -n/2, ..., -1] * 2π/l. For
// even n the Nyquist mode is reported as negative.
func Wavenumbers(n int, l float64) []float64 {
	k := make([]float64, n)
	scale := 2 * math.Pi / l
	for i := 0; i < n; i++ {
		freq := float64(i)
		if i >= (n+1)/2 {
			freq = float64(i - n)
		}
		k[i] = freq * scale
	}
	return k
}

// KMesh holds the wavenumbers of the three spatial axes.
type KMesh struct {
	X, Y, Z []float64
}

func (g *Grid) KMesh() KMesh {
	return KMesh{
		X: Wavenumbers(g.Size.X, g.Box.X),
		Y: Wavenumbers(g.Size.Y, g.Box.Y),
		Z: Wavenumbers(g.Size.Z, g.Box.Z),
	}
}
