package echo

import "fmt"

// MaxSplineDegree is the highest supported B-spline degree for spline
// scatterer sets.
const MaxSplineDegree = 20

// bsplineBasis evaluates the i-th B-spline basis function of the given
// degree at parameter t over the knot vector, by the Cox-de Boor recursion.
//
// The convention matches the usual half-open support: basis i of degree 0 is
// 1 on [knots[i], knots[i+1]) and 0 elsewhere.
func bsplineBasis(i, degree int, t float64, knots []float64) float64 {
	if degree == 0 {
		if knots[i] <= t && t < knots[i+1] {
			return 1.0
		}
		return 0.0
	}
	var left, right float64
	if den := knots[i+degree] - knots[i]; den != 0 {
		left = (t - knots[i]) / den * bsplineBasis(i, degree-1, t, knots)
	}
	if den := knots[i+degree+1] - knots[i+1]; den != 0 {
		right = (knots[i+degree+1] - t) / den * bsplineBasis(i+1, degree-1, t, knots)
	}
	return left + right
}

// splineSupport returns the inclusive index range [start, end] of basis
// functions that are nonzero at parameter t. For a parameter inside the
// knot vector's interior domain the range always spans exactly degree+1
// indices.
func splineSupport(knots []float64, t float64, degree int) (start, end int, err error) {
	// locate mu with knots[mu] <= t < knots[mu+1]
	mu := -1
	for i := 0; i < len(knots)-1; i++ {
		if knots[i] <= t && t < knots[i+1] {
			mu = i
			break
		}
	}
	if mu < 0 {
		return 0, 0, fmt.Errorf("%w: timestamp %v outside spline knot domain [%v, %v)",
			ErrConfiguration, t, knots[0], knots[len(knots)-1])
	}
	return mu - degree, mu, nil
}

// evalBasisFunctions evaluates every basis function at t and returns the
// values plus the nonzero support interval. The caller indexes the returned
// slice by control-point index.
//
// Sanity invariant: the support must span exactly degree+1 indices and no
// basis value outside it may be nonzero. A violation means the knot vector
// bookkeeping is corrupt and is reported as ErrInvariant.
func evalBasisFunctions(s *SplineScatterers, t float64) (basis []float64, start, end int, err error) {
	numCS := s.NumControlPoints()
	basis = make([]float64, numCS)
	for i := 0; i < numCS; i++ {
		basis[i] = bsplineBasis(i, s.Degree, t, s.KnotVector)
	}
	start, end, err = splineSupport(s.KnotVector, t, s.Degree)
	if err != nil {
		return nil, 0, 0, err
	}
	if end-start+1 != s.Degree+1 {
		return nil, 0, 0, fmt.Errorf("%w: spline support [%d, %d] does not span degree+1 = %d basis functions",
			ErrInvariant, start, end, s.Degree+1)
	}
	if start < 0 || end >= numCS {
		return nil, 0, 0, fmt.Errorf("%w: spline support [%d, %d] outside control point range [0, %d)",
			ErrInvariant, start, end, numCS)
	}
	for i, b := range basis {
		if (i < start || i > end) && b != 0 {
			return nil, 0, 0, fmt.Errorf("%w: nonzero basis value %v at index %d outside support [%d, %d]",
				ErrInvariant, b, i, start, end)
		}
	}
	return basis, start, end, nil
}
