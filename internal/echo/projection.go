package echo

import (
	"fmt"
	"math"
)

// projectionKernel accumulates scatterer contributions for one scan line
// into a lane's time-projection buffer. The three feature flags (arc
// projection, phase delay, lookup-table profile) are resolved once per
// batch into composed function values, so the per-scatterer loop carries no
// flag branching. Combined with the fixed/spline scatterer kinds this gives
// the eight specialized code paths.
type projectionKernel struct {
	samplingFrequency float64
	soundSpeed        float64
	demodFrequency    float64

	// idxScale converts a propagation distance to a fractional sample
	// index: fs * 2 / c (two-way trip).
	idxScale float64

	distance distanceFunc
	weight   weightFunc
	deposit  depositFunc
}

// distanceFunc maps the origin-to-scatterer vector and its radial component
// to a propagation distance.
type distanceFunc func(d Vec3, radial float64) float64

// weightFunc returns the beam sensitivity at the given frame offsets.
type weightFunc func(radial, lateral, elevational float64) float64

// depositFunc adds one weighted contribution at (and, for the phase-delay
// variant, fractionally between) the computed sample index.
type depositFunc func(buf []complex128, idx int, trueIdx float64, w float64)

// newProjectionKernel composes the specialized kernel for the current flag
// tuple. The beam profile must be configured; dispatching on an unknown
// profile kind is an internal error because SimulateLines validates the
// profile before any lane work starts.
func newProjectionKernel(params SimParams, ex ExcitationSignal, profile BeamProfile) (*projectionKernel, error) {
	k := &projectionKernel{
		samplingFrequency: ex.SamplingFrequency,
		soundSpeed:        params.SoundSpeed,
		demodFrequency:    ex.DemodFrequency,
		idxScale:          ex.SamplingFrequency * 2.0 / params.SoundSpeed,
	}

	if params.UseArcProjection {
		// Arc projection: distance along the curved wavefront from the beam
		// origin, signed like the radial component.
		k.distance = func(d Vec3, radial float64) float64 {
			return math.Copysign(d.Norm(), radial)
		}
	} else {
		k.distance = func(_ Vec3, radial float64) float64 {
			return radial
		}
	}

	switch profile.Kind {
	case BeamProfileGaussian:
		g := profile.Gaussian
		k.weight = g.Sample
	case BeamProfileLUT:
		lut := profile.LUT
		k.weight = lut.Sample
	default:
		return nil, fmt.Errorf("%w: projection kernel dispatched with unconfigured beam profile", ErrInvariant)
	}

	if params.EnablePhaseDelay {
		omega := 2 * math.Pi * ex.DemodFrequency
		fs := ex.SamplingFrequency
		k.deposit = func(buf []complex128, idx int, trueIdx float64, w float64) {
			// sub-sample delay between the rounded index and the true
			// fractional index, expressed as a carrier phase rotation
			ssDelay := (float64(idx) - trueIdx) / fs
			phase := omega * ssDelay
			sin, cos := math.Sincos(phase)
			buf[idx] += complex(w*cos, w*sin)
		}
	} else {
		k.deposit = func(buf []complex128, idx int, _ float64, w float64) {
			buf[idx] += complex(w, 0)
		}
	}

	return k, nil
}

// projectFixed accumulates every fixed scatterer's contribution for the
// given line into buf. buf is exclusively owned by the calling lane.
func (k *projectionKernel) projectFixed(line ScanLine, set *FixedScatterers, buf []complex128) {
	n := len(buf)
	for i := range set.Scatterers {
		sc := &set.Scatterers[i]
		d := sc.Pos.Sub(line.Origin)
		radial := d.Dot(line.Dir)
		lateral := d.Dot(line.LateralDir)
		elevational := d.Dot(line.ElevationalDir)

		dist := k.distance(d, radial)
		w := sc.Amplitude * k.weight(radial, lateral, elevational)

		trueIdx := k.idxScale * dist
		idx := int(trueIdx + 0.5)
		if idx >= 0 && idx < n {
			k.deposit(buf, idx, trueIdx, w)
		}
	}
}

// projectSpline accumulates every spline scatterer's contribution for the
// given line into buf. The B-spline basis is evaluated once per line at the
// line's timestamp; each scatterer's position is then the weighted sum of
// its control points restricted to the nonzero support interval.
func (k *projectionKernel) projectSpline(line ScanLine, set *SplineScatterers, buf []complex128) error {
	basis, start, end, err := evalBasisFunctions(set, line.Timestamp)
	if err != nil {
		return err
	}

	n := len(buf)
	for i := range set.ControlPoints {
		var pos Vec3
		cp := set.ControlPoints[i]
		for j := start; j <= end; j++ {
			pos = pos.Add(cp[j].Scale(basis[j]))
		}

		d := pos.Sub(line.Origin)
		radial := d.Dot(line.Dir)
		lateral := d.Dot(line.LateralDir)
		elevational := d.Dot(line.ElevationalDir)

		dist := k.distance(d, radial)
		w := set.Amplitudes[i] * k.weight(radial, lateral, elevational)

		trueIdx := k.idxScale * dist
		idx := int(trueIdx + 0.5)
		if idx >= 0 && idx < n {
			k.deposit(buf, idx, trueIdx, w)
		}
	}
	return nil
}
