package models

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/san-kum/swimsim/internal/compute"
	"github.com/san-kum/swimsim/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

var box = dynamo.BoxSize{X: 5, Y: 6, Z: 7}

func TestPopulateIsWorkerIndependent(t *testing.T) {
	for _, pl := range []Placement{Isotropic{}, Homogeneous{Kappa: 1}, Bizonne{Kappa: 2}} {
		a, err := Populate(context.Background(), compute.NewCPUBackend(1), pl, 257, 11, box)
		require.NoError(t, err)
		b, err := Populate(context.Background(), compute.NewCPUBackend(4), pl, 257, 11, box)
		require.NoError(t, err)
		assert.Equal(t, a, b, pl.Name())
	}
}

func TestIsotropicPlacement(t *testing.T) {
	ps, err := Populate(context.Background(), compute.NewCPUBackend(2), Isotropic{}, 5000, 1, box)
	require.NoError(t, err)

	cos := make([]float64, len(ps))
	for i, p := range ps {
		if p.X < 0 || p.X >= box.X || p.Y < 0 || p.Y >= box.Y || p.Z < 0 || p.Z >= box.Z {
			t.Fatalf("particle %d outside the box: %+v", i, p)
		}
		cos[i] = math.Cos(p.Theta)
	}
	assert.InDelta(t, 0, stat.Mean(cos, nil), 0.03)
	// uniform on [-1, 1] has variance 1/3
	assert.InDelta(t, 1.0/3, stat.Variance(cos, nil), 0.02)
}

func TestHomogeneousPlacementAligns(t *testing.T) {
	kappa := 2.0
	ps, err := Populate(context.Background(), compute.NewCPUBackend(2), Homogeneous{Kappa: kappa}, 5000, 2, box)
	require.NoError(t, err)

	ny := make([]float64, len(ps))
	for i, p := range ps {
		ny[i] = p.Direction().Y
	}
	// mean alignment of the von Mises-Fisher distribution
	want := 1/math.Tanh(kappa) - 1/kappa
	assert.InDelta(t, want, stat.Mean(ny, nil), 0.03)
}

func TestBizonneSlab(t *testing.T) {
	ps, err := Populate(context.Background(), compute.NewCPUBackend(2), Bizonne{Kappa: 1}, 500, 3, box)
	require.NoError(t, err)
	for _, p := range ps {
		assert.Less(t, p.Y, 0.2)
		assert.Less(t, p.X, 1.0)
		assert.Less(t, p.Z, 1.0)
	}
}

func TestPlacementErrors(t *testing.T) {
	_, err := NewPlacement("Gaussian", 1)
	assert.True(t, errors.Is(err, dynamo.ErrConfig))

	_, err = Populate(context.Background(), compute.NewCPUBackend(2), Homogeneous{}, 10, 1, box)
	assert.True(t, errors.Is(err, dynamo.ErrConfig))

	_, err = Populate(context.Background(), compute.NewCPUBackend(2), Homogeneous{Kappa: 1e4}, 10, 1, box)
	assert.True(t, errors.Is(err, dynamo.ErrConfig))

	pl, err := NewPlacement("Homogeneous", 3)
	require.NoError(t, err)
	assert.Equal(t, Homogeneous{Kappa: 3}, pl)
}
