package echo

import (
	"fmt"
	"math"
)

// BeamProfileKind tags the two beam-profile variants. The projection kernel
// picks a specialized code path per batch based on the tag rather than
// calling through an interface per scatterer.
type BeamProfileKind int

const (
	// BeamProfileNone means no profile has been configured yet.
	BeamProfileNone BeamProfileKind = iota
	// BeamProfileGaussian is the analytic separable Gaussian model.
	BeamProfileGaussian
	// BeamProfileLUT is a sampled 3D lookup table.
	BeamProfileLUT
)

// BeamProfile is the spatial sensitivity weighting applied to each
// scatterer's contribution. It is a tagged variant: exactly one of the
// payload fields is meaningful, selected by Kind.
type BeamProfile struct {
	Kind     BeamProfileKind
	Gaussian GaussianBeamProfile
	LUT      *LUTBeamProfile
}

// Sample returns the sensitivity weight at the given radial, lateral and
// elevational offsets from the beam axis.
func (b BeamProfile) Sample(radial, lateral, elevational float64) float64 {
	switch b.Kind {
	case BeamProfileGaussian:
		return b.Gaussian.Sample(radial, lateral, elevational)
	case BeamProfileLUT:
		return b.LUT.Sample(radial, lateral, elevational)
	default:
		return 0
	}
}

// GaussianBeamProfile is a separable Gaussian sensitivity function with
// independent lateral and elevational sigmas. It does not vary radially.
type GaussianBeamProfile struct {
	SigmaLateral     float64
	SigmaElevational float64
}

// NewGaussianBeamProfile returns a Gaussian beam profile wrapped in the
// tagged variant.
func NewGaussianBeamProfile(sigmaLateral, sigmaElevational float64) BeamProfile {
	return BeamProfile{
		Kind:     BeamProfileGaussian,
		Gaussian: GaussianBeamProfile{SigmaLateral: sigmaLateral, SigmaElevational: sigmaElevational},
	}
}

// Sample evaluates the separable Gaussian at the given offsets. The radial
// offset is accepted for interface symmetry but ignored.
func (g GaussianBeamProfile) Sample(_, lateral, elevational float64) float64 {
	return math.Exp(-(lateral*lateral/(2*g.SigmaLateral*g.SigmaLateral) +
		elevational*elevational/(2*g.SigmaElevational*g.SigmaElevational)))
}

// LUTBeamProfile is a 3D sampled sensitivity grid over (radial, lateral,
// elevational) offsets with stored extents per axis. Queries are mapped to
// normalized grid coordinates and trilinearly interpolated; queries outside
// the extents clamp to the boundary.
type LUTBeamProfile struct {
	samples    []float64
	numRadial  int
	numLateral int
	numElev    int

	RadialMin, RadialMax float64
	LateralMin, LateralMax float64
	ElevMin, ElevMax     float64
}

// NewLUTBeamProfile builds a lookup-table beam profile. samples must hold
// numRadial*numLateral*numElev values laid out radial-major: index =
// (ri*numLateral + li)*numElev + ei.
func NewLUTBeamProfile(numRadial, numLateral, numElev int, samples []float64,
	radialMin, radialMax, lateralMin, lateralMax, elevMin, elevMax float64) (BeamProfile, error) {

	if numRadial < 2 || numLateral < 2 || numElev < 2 {
		return BeamProfile{}, fmt.Errorf("%w: lookup table needs at least 2 samples per axis, got (%d, %d, %d)",
			ErrConfiguration, numRadial, numLateral, numElev)
	}
	if want := numRadial * numLateral * numElev; len(samples) != want {
		return BeamProfile{}, fmt.Errorf("%w: lookup table has %d samples, want %d", ErrConfiguration, len(samples), want)
	}
	if radialMax <= radialMin || lateralMax <= lateralMin || elevMax <= elevMin {
		return BeamProfile{}, fmt.Errorf("%w: lookup table extents must have positive span", ErrConfiguration)
	}
	lut := &LUTBeamProfile{
		samples:    samples,
		numRadial:  numRadial,
		numLateral: numLateral,
		numElev:    numElev,
		RadialMin:  radialMin, RadialMax: radialMax,
		LateralMin: lateralMin, LateralMax: lateralMax,
		ElevMin: elevMin, ElevMax: elevMax,
	}
	return BeamProfile{Kind: BeamProfileLUT, LUT: lut}, nil
}

func (p *LUTBeamProfile) at(ri, li, ei int) float64 {
	return p.samples[(ri*p.numLateral+li)*p.numElev+ei]
}

// Sample trilinearly interpolates the table at the given offsets, clamping
// coordinates outside the stored extents to the boundary.
func (p *LUTBeamProfile) Sample(radial, lateral, elevational float64) float64 {
	rf := normCoord(radial, p.RadialMin, p.RadialMax, p.numRadial)
	lf := normCoord(lateral, p.LateralMin, p.LateralMax, p.numLateral)
	ef := normCoord(elevational, p.ElevMin, p.ElevMax, p.numElev)

	r0, ra := splitCoord(rf, p.numRadial)
	l0, la := splitCoord(lf, p.numLateral)
	e0, ea := splitCoord(ef, p.numElev)
	r1, l1, e1 := r0+1, l0+1, e0+1

	c000 := p.at(r0, l0, e0)
	c001 := p.at(r0, l0, e1)
	c010 := p.at(r0, l1, e0)
	c011 := p.at(r0, l1, e1)
	c100 := p.at(r1, l0, e0)
	c101 := p.at(r1, l0, e1)
	c110 := p.at(r1, l1, e0)
	c111 := p.at(r1, l1, e1)

	c00 := c000*(1-ea) + c001*ea
	c01 := c010*(1-ea) + c011*ea
	c10 := c100*(1-ea) + c101*ea
	c11 := c110*(1-ea) + c111*ea

	c0 := c00*(1-la) + c01*la
	c1 := c10*(1-la) + c11*la

	return c0*(1-ra) + c1*ra
}

// normCoord maps value in [min, max] to a fractional grid coordinate in
// [0, n-1], clamped.
func normCoord(v, min, max float64, n int) float64 {
	f := (v - min) / (max - min) * float64(n-1)
	if f < 0 {
		return 0
	}
	if limit := float64(n - 1); f > limit {
		return limit
	}
	return f
}

// splitCoord splits a fractional grid coordinate into a base cell index and
// interpolation fraction, keeping the base cell one short of the last index
// so the +1 neighbor stays in range.
func splitCoord(f float64, n int) (int, float64) {
	i := int(f)
	if i > n-2 {
		i = n - 2
	}
	return i, f - float64(i)
}
