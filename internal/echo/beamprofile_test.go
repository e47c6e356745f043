package echo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGaussianBeamProfile_Sample(t *testing.T) {
	t.Parallel()

	p := NewGaussianBeamProfile(1e-3, 2e-3)
	require.Equal(t, BeamProfileGaussian, p.Kind)

	// on-axis sensitivity is 1 at any depth
	assert.Equal(t, 1.0, p.Sample(0, 0, 0))
	assert.Equal(t, 1.0, p.Sample(0.05, 0, 0))

	// one lateral sigma off axis
	want := math.Exp(-0.5)
	assert.InDelta(t, want, p.Sample(0, 1e-3, 0), 1e-12)

	// one elevational sigma off axis
	assert.InDelta(t, want, p.Sample(0, 0, 2e-3), 1e-12)

	// separability: combined offsets multiply
	assert.InDelta(t, want*want, p.Sample(0, 1e-3, 2e-3), 1e-12)
}

func TestLUTBeamProfile_InterpolatesNodesExactly(t *testing.T) {
	t.Parallel()

	// 2x2x2 grid with distinct corner values
	samples := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	p, err := NewLUTBeamProfile(2, 2, 2, samples, 0, 1, -1, 1, -1, 1)
	require.NoError(t, err)
	require.Equal(t, BeamProfileLUT, p.Kind)

	assert.InDelta(t, 1.0, p.Sample(0, -1, -1), 1e-12)
	assert.InDelta(t, 2.0, p.Sample(0, -1, 1), 1e-12)
	assert.InDelta(t, 3.0, p.Sample(0, 1, -1), 1e-12)
	assert.InDelta(t, 8.0, p.Sample(1, 1, 1), 1e-12)

	// center of the cube averages every corner
	assert.InDelta(t, 4.5, p.Sample(0.5, 0, 0), 1e-12)
}

func TestLUTBeamProfile_ClampsOutsideExtents(t *testing.T) {
	t.Parallel()

	samples := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	p, err := NewLUTBeamProfile(2, 2, 2, samples, 0, 1, -1, 1, -1, 1)
	require.NoError(t, err)

	assert.InDelta(t, p.Sample(0, -1, -1), p.Sample(-5, -9, -9), 1e-12)
	assert.InDelta(t, p.Sample(1, 1, 1), p.Sample(9, 9, 9), 1e-12)
}

func TestNewLUTBeamProfile_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewLUTBeamProfile(1, 2, 2, make([]float64, 4), 0, 1, 0, 1, 0, 1)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewLUTBeamProfile(2, 2, 2, make([]float64, 7), 0, 1, 0, 1, 0, 1)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewLUTBeamProfile(2, 2, 2, make([]float64, 8), 1, 1, 0, 1, 0, 1)
	assert.ErrorIs(t, err, ErrConfiguration)
}
