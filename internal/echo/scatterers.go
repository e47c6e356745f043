package echo

import "fmt"

// Scatterers is the tagged union of the two scatterer-set variants. The
// projection dispatch switches exhaustively on the concrete type; there is
// no behavior on the interface itself beyond sizing.
type Scatterers interface {
	// NumScatterers returns the number of scatterers in the set.
	NumScatterers() int
}

// FixedScatterer is a static point scatterer.
type FixedScatterer struct {
	Pos       Vec3
	Amplitude float64
}

// FixedScatterers is an ordered set of static scatterers. Uploading a set
// replaces any previously uploaded fixed set in its entirety; partial or
// additive updates are not supported.
type FixedScatterers struct {
	Scatterers []FixedScatterer
}

// NewFixedScatterers wraps the given scatterers in a set.
func NewFixedScatterers(scatterers []FixedScatterer) *FixedScatterers {
	return &FixedScatterers{Scatterers: scatterers}
}

// NumScatterers returns the number of scatterers in the set.
func (f *FixedScatterers) NumScatterers() int {
	if f == nil {
		return 0
	}
	return len(f.Scatterers)
}

// SplineScatterers is an ordered set of moving scatterers. Each scatterer is
// a B-spline curve over a shared knot vector and degree; its position at a
// scan line's timestamp is the control points weighted by the basis
// functions evaluated at that timestamp. Amplitudes are not time-varying.
//
// Every scatterer must have the same number of control points, and
// len(KnotVector) == control points + Degree + 1.
type SplineScatterers struct {
	// ControlPoints[i][j] is control point j of scatterer i.
	ControlPoints [][]Vec3
	Amplitudes    []float64
	KnotVector    []float64
	Degree        int
}

// NumScatterers returns the number of scatterers in the set.
func (s *SplineScatterers) NumScatterers() int {
	if s == nil {
		return 0
	}
	return len(s.ControlPoints)
}

// NumControlPoints returns the per-scatterer control point count, or zero
// for an empty set.
func (s *SplineScatterers) NumControlPoints() int {
	if s == nil || len(s.ControlPoints) == 0 {
		return 0
	}
	return len(s.ControlPoints[0])
}

// Validate checks the structural invariants of the set. It is called when
// the set is uploaded so that SimulateLines can assume a well-formed set.
func (s *SplineScatterers) Validate() error {
	if s.NumScatterers() == 0 {
		return fmt.Errorf("%w: spline scatterer set is empty", ErrConfiguration)
	}
	if s.Degree < 0 || s.Degree > MaxSplineDegree {
		return fmt.Errorf("%w: spline degree %d outside [0, %d]", ErrConfiguration, s.Degree, MaxSplineDegree)
	}
	numCS := s.NumControlPoints()
	if numCS == 0 {
		return fmt.Errorf("%w: scatterer 0 has no control points", ErrConfiguration)
	}
	for i, cp := range s.ControlPoints {
		if len(cp) != numCS {
			return fmt.Errorf("%w: scatterer %d has %d control points, want %d", ErrConfiguration, i, len(cp), numCS)
		}
	}
	if len(s.Amplitudes) != len(s.ControlPoints) {
		return fmt.Errorf("%w: %d amplitudes for %d scatterers", ErrConfiguration, len(s.Amplitudes), len(s.ControlPoints))
	}
	if want := numCS + s.Degree + 1; len(s.KnotVector) != want {
		return fmt.Errorf("%w: knot vector has %d knots, want %d (control points + degree + 1)", ErrConfiguration, len(s.KnotVector), want)
	}
	for i := 1; i < len(s.KnotVector); i++ {
		if s.KnotVector[i] < s.KnotVector[i-1] {
			return fmt.Errorf("%w: knot vector is not non-decreasing at index %d", ErrConfiguration, i)
		}
	}
	return nil
}
