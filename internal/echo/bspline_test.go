package echo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clampedKnots returns a clamped knot vector for numCS control points of the
// given degree over [0, 1].
func clampedKnots(numCS, degree int) []float64 {
	knots := make([]float64, numCS+degree+1)
	interior := numCS - degree
	for i := range knots {
		switch {
		case i <= degree:
			knots[i] = 0
		case i >= numCS:
			knots[i] = 1
		default:
			knots[i] = float64(i-degree) / float64(interior)
		}
	}
	return knots
}

func TestBsplineBasis_PartitionOfUnity(t *testing.T) {
	t.Parallel()

	for _, degree := range []int{1, 2, 3} {
		numCS := 6
		knots := clampedKnots(numCS, degree)
		for _, tv := range []float64{0.0, 0.1, 0.25, 0.5, 0.731, 0.99} {
			sum := 0.0
			for i := 0; i < numCS; i++ {
				sum += bsplineBasis(i, degree, tv, knots)
			}
			assert.InDelta(t, 1.0, sum, 1e-12, "degree %d t=%v", degree, tv)
		}
	}
}

func TestSplineSupport_ContiguousNonzero(t *testing.T) {
	t.Parallel()

	for _, degree := range []int{1, 2, 3, 4} {
		numCS := degree + 4
		s := &SplineScatterers{
			ControlPoints: makeControlPoints(numCS, 1),
			Amplitudes:    []float64{1},
			KnotVector:    clampedKnots(numCS, degree),
			Degree:        degree,
		}
		for _, tv := range []float64{0.01, 0.3, 0.5, 0.77} {
			basis, start, end, err := evalBasisFunctions(s, tv)
			require.NoError(t, err, "degree %d t=%v", degree, tv)
			assert.Equal(t, degree+1, end-start+1)

			// every index outside the support carries a zero weight
			for i, b := range basis {
				if i < start || i > end {
					assert.Zero(t, b, "index %d outside [%d, %d]", i, start, end)
				}
			}
		}
	}
}

func TestSplineSupport_OutsideDomain(t *testing.T) {
	t.Parallel()

	knots := clampedKnots(5, 2)
	_, _, err := splineSupport(knots, 1.5, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)

	// t == 1.0 sits on the clamped right edge, which is outside the
	// half-open domain
	_, _, err = splineSupport(knots, 1.0, 2)
	assert.Error(t, err)
}

func TestBsplineBasis_LinearInterpolation(t *testing.T) {
	t.Parallel()

	// degree-1 splines reduce to piecewise linear interpolation of the
	// control values
	numCS := 3
	knots := clampedKnots(numCS, 1) // [0 0 0.5 1 1]
	values := []float64{2, 4, 8}

	eval := func(tv float64) float64 {
		sum := 0.0
		for i, v := range values {
			sum += v * bsplineBasis(i, 1, tv, knots)
		}
		return sum
	}

	assert.InDelta(t, 2.0, eval(0), 1e-12)
	assert.InDelta(t, 3.0, eval(0.25), 1e-12)
	assert.InDelta(t, 4.0, eval(0.5), 1e-12)
	assert.InDelta(t, 6.0, eval(0.75), 1e-12)
}

// makeControlPoints builds n identical straight-line control polygons of
// length numCS along the Z axis, one per scatterer.
func makeControlPoints(numCS, numScatterers int) [][]Vec3 {
	cps := make([][]Vec3, numScatterers)
	for i := range cps {
		cp := make([]Vec3, numCS)
		for j := range cp {
			cp[j] = Vec3{Z: float64(j) * 0.01}
		}
		cps[i] = cp
	}
	return cps
}

func TestSplineScatterers_Validate(t *testing.T) {
	t.Parallel()

	valid := func() *SplineScatterers {
		return &SplineScatterers{
			ControlPoints: makeControlPoints(5, 2),
			Amplitudes:    []float64{1, 1},
			KnotVector:    clampedKnots(5, 2),
			Degree:        2,
		}
	}

	require.NoError(t, valid().Validate())

	s := valid()
	s.ControlPoints[1] = s.ControlPoints[1][:4]
	assert.ErrorIs(t, s.Validate(), ErrConfiguration)

	s = valid()
	s.Amplitudes = s.Amplitudes[:1]
	assert.ErrorIs(t, s.Validate(), ErrConfiguration)

	s = valid()
	s.KnotVector = s.KnotVector[:len(s.KnotVector)-1]
	assert.ErrorIs(t, s.Validate(), ErrConfiguration)

	s = valid()
	s.Degree = MaxSplineDegree + 1
	assert.ErrorIs(t, s.Validate(), ErrConfiguration)

	s = valid()
	s.KnotVector[2], s.KnotVector[3] = s.KnotVector[3], math.SmallestNonzeroFloat64
	assert.ErrorIs(t, s.Validate(), ErrConfiguration)
}
