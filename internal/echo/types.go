// Package echo implements the ultrasound RF line synthesis engine: it
// projects point scatterers onto per-line time axes according to propagation
// delay and beam sensitivity, then convolves the projections with a
// precomputed excitation kernel in the frequency domain to produce
// band-limited, baseband-demodulated IQ lines.
//
// The package is the composition root for the simulation domain. Callers
// configure a Simulator with a scan sequence, scatterer set, excitation
// signal, beam profile and parameters, then call SimulateLines once per
// frame. Dataset loading, scan-geometry construction and rendering live
// outside this package.
package echo

import (
	"errors"
	"fmt"
	"math"
)

// Error taxonomy. All errors returned by this package wrap exactly one of
// these sentinels so callers can classify failures with errors.Is.
var (
	// ErrConfiguration indicates missing or invalid state before a
	// simulation: no scan lines, no beam profile, an out-of-range device
	// index, or a device-affecting parameter changed after allocation.
	ErrConfiguration = errors.New("echo: configuration error")

	// ErrCapacity indicates a required sample count or work-group count
	// exceeds a fixed or backend limit.
	ErrCapacity = errors.New("echo: capacity exceeded")

	// ErrInvariant indicates an internal sanity check failed. These are
	// bugs, never retried.
	ErrInvariant = errors.New("echo: internal invariant violated")
)

// Vec3 is a 3D point or direction in the scan coordinate frame (meters).
type Vec3 struct {
	X, Y, Z float64
}

// Add returns v + w.
func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v.X + w.X, v.Y + w.Y, v.Z + w.Z} }

// Sub returns v - w.
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v.X - w.X, v.Y - w.Y, v.Z - w.Z} }

// Scale returns v scaled by s.
func (v Vec3) Scale(s float64) Vec3 { return Vec3{v.X * s, v.Y * s, v.Z * s} }

// Dot returns the dot product of v and w.
func (v Vec3) Dot(w Vec3) float64 { return v.X*w.X + v.Y*w.Y + v.Z*w.Z }

// Norm returns the Euclidean length of v.
func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// ScanLine is one directed ray along which a single RF/IQ line is
// synthesized. The three direction vectors form an orthonormal frame:
// Dir points into the tissue (radial/depth), LateralDir and ElevationalDir
// span the transverse plane. Timestamp is the acquisition time used to
// evaluate time-varying (spline) scatterer positions.
//
// ScanLines are immutable once produced by the scan-sequence owner and are
// consumed read-only by the projection kernels.
type ScanLine struct {
	Origin         Vec3
	Dir            Vec3
	LateralDir     Vec3
	ElevationalDir Vec3
	Timestamp      float64
}

// ScanSequence is an ordered set of scan lines sharing one line length
// (meters of imaging depth per line).
type ScanSequence struct {
	LineLength float64
	Lines      []ScanLine
}

// NumLines returns the number of scan lines in the sequence.
func (s *ScanSequence) NumLines() int {
	if s == nil {
		return 0
	}
	return len(s.Lines)
}

// ExcitationSignal is the sampled transmit pulse. CenterIndex is the sample
// index of the pulse's temporal center; that many leading samples are
// discarded from every synthesized line as delay compensation.
// DemodFrequency is the baseband demodulation (center) frequency in Hz.
//
// Replacing the excitation triggers recomputation of the frequency-domain
// convolution kernel.
type ExcitationSignal struct {
	Samples           []float64
	SamplingFrequency float64
	CenterIndex       int
	DemodFrequency    float64
}

// OutputType selects the sample representation returned by SimulateLines.
type OutputType int

const (
	// OutputRF returns raw complex baseband time-domain samples.
	OutputRF OutputType = iota
	// OutputEnvelope returns envelope-detected (magnitude) samples, stored
	// in the real part of each returned sample.
	OutputEnvelope
)

// String returns the wire name of the output type ("rf" or "env").
func (o OutputType) String() string {
	switch o {
	case OutputRF:
		return "rf"
	case OutputEnvelope:
		return "env"
	default:
		return "unknown"
	}
}

// ParseOutputType parses "rf" or "env".
func ParseOutputType(s string) (OutputType, error) {
	switch s {
	case "rf":
		return OutputRF, nil
	case "env":
		return OutputEnvelope, nil
	default:
		return 0, fmt.Errorf("%w: unknown output type %q (want \"rf\" or \"env\")", ErrConfiguration, s)
	}
}

// SimParams holds the per-simulation physical and algorithmic parameters.
// Lane count and device selection freeze once the simulator has allocated
// lane resources; the remaining fields may change between batches.
type SimParams struct {
	// SoundSpeed is the propagation speed in m/s. Typical soft tissue: 1540.
	SoundSpeed float64

	// RadialDecimation keeps every Nth output sample. 1 keeps all samples.
	RadialDecimation int

	// NoiseAmplitude is the standard deviation of zero-mean Gaussian noise
	// added to the time projections before convolution. Zero disables.
	NoiseAmplitude float64

	// UseArcProjection selects the curved-wavefront propagation-distance
	// model instead of the planar straight-line projection.
	UseArcProjection bool

	// EnablePhaseDelay applies a sub-sample phase correction preserving each
	// scatterer's fractional delay instead of rounding to the nearest sample.
	EnablePhaseDelay bool

	// NumLanes is the number of parallel execution lanes. Fixed after the
	// first allocation.
	NumLanes int
}

// DefaultSimParams returns the parameter set used when the caller supplies
// nothing: soft-tissue sound speed, no decimation, no noise, straight-line
// projection, two lanes.
func DefaultSimParams() SimParams {
	return SimParams{
		SoundSpeed:       1540.0,
		RadialDecimation: 1,
		NumLanes:         2,
	}
}

// computeNumReturnSamples returns the number of RF samples covering a
// two-way trip over lineLength at the given sound speed and sampling rate.
func computeNumReturnSamples(soundSpeed, lineLength, samplingFrequency float64) int {
	return int(2.0*lineLength/soundSpeed*samplingFrequency + 0.5)
}
