package echo

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat/distuv"
)

// backendCaps models the execution backend's fixed limits. The CPU lane
// backend has a single device; the grid and work-group limits bound the
// number of work items a projection dispatch may require, mirroring the
// validation a device backend performs before launching.
type backendCaps struct {
	NumDevices       int
	MaxLanes         int
	MaxGridWidth     int
	MaxWorkGroupSize int
}

func defaultBackendCaps() backendCaps {
	return backendCaps{
		NumDevices:       1,
		MaxLanes:         32,
		MaxGridWidth:     65535,
		MaxWorkGroupSize: 1024,
	}
}

// Simulator synthesizes RF/IQ lines from the configured scan sequence,
// scatterer sets, excitation signal and beam profile. All configuration
// calls replace prior state wholesale.
//
// A Simulator is not safe for concurrent configuration: callers must not
// mutate configuration while a SimulateLines batch is running. The batch
// itself parallelizes internally across lanes.
type Simulator struct {
	params     SimParams
	scanSeq    *ScanSequence
	fixed      *FixedScatterers
	spline     *SplineScatterers
	excitation *ExcitationSignal
	excKernel  []complex128
	profile    BeamProfile
	output     OutputType

	caps               backendCaps
	deviceIndex        int
	workGroupSize      int
	storeKernelDetails bool
	verbose            bool

	timeSamples int
	pool        *lanePool
	planFFT     *fourier.CmplxFFT

	// bound flips once lane or buffer resources exist; device- and
	// lane-affecting parameters are immutable from then on.
	bound bool

	debugData map[string][]float64
}

// NewSimulator returns a simulator with default parameters and no scan
// sequence, scatterers, excitation or beam profile configured.
func NewSimulator() *Simulator {
	return &Simulator{
		params:        DefaultSimParams(),
		caps:          defaultBackendCaps(),
		workGroupSize: 128,
		timeSamples:   defaultTimeSamples,
	}
}

// NumTimeSamples returns the fixed per-line time-sample capacity.
func (s *Simulator) NumTimeSamples() int { return s.timeSamples }

// Params returns the current simulation parameters.
func (s *Simulator) Params() SimParams { return s.params }

// OutputType returns the currently selected output representation.
func (s *Simulator) OutputType() OutputType { return s.output }

// SetParameters replaces the simulation parameters. Changing the lane count
// after lanes have been allocated is a configuration error; every other
// field may change between batches.
func (s *Simulator) SetParameters(p SimParams) error {
	if p.SoundSpeed <= 0 {
		return fmt.Errorf("%w: sound speed %v must be positive", ErrConfiguration, p.SoundSpeed)
	}
	if p.RadialDecimation < 1 {
		return fmt.Errorf("%w: radial decimation %d must be >= 1", ErrConfiguration, p.RadialDecimation)
	}
	if p.NoiseAmplitude < 0 {
		return fmt.Errorf("%w: noise amplitude %v must not be negative", ErrConfiguration, p.NoiseAmplitude)
	}
	if p.NumLanes <= 0 || p.NumLanes > s.caps.MaxLanes {
		return fmt.Errorf("%w: lane count %d outside [1, %d]", ErrConfiguration, p.NumLanes, s.caps.MaxLanes)
	}
	if s.bound && s.pool != nil && p.NumLanes != s.pool.numLanes() {
		return fmt.Errorf("%w: cannot change lane count from %d to %d after lanes are allocated",
			ErrConfiguration, s.pool.numLanes(), p.NumLanes)
	}
	s.params = p
	return nil
}

// SetOutputType selects between raw complex RF samples and envelope-detected
// magnitudes.
func (s *Simulator) SetOutputType(t OutputType) {
	s.output = t
}

// SetScanSequence replaces the scan sequence and lazily grows the per-line
// host buffers if the new sequence has more lines than any previous one.
func (s *Simulator) SetScanSequence(seq *ScanSequence) error {
	if seq == nil || seq.NumLines() == 0 {
		return fmt.Errorf("%w: scan sequence has no lines", ErrConfiguration)
	}
	if seq.LineLength <= 0 {
		return fmt.Errorf("%w: scan line length %v must be positive", ErrConfiguration, seq.LineLength)
	}
	if s.excitation != nil {
		n := computeNumReturnSamples(s.params.SoundSpeed, seq.LineLength, s.excitation.SamplingFrequency)
		if n > s.timeSamples {
			return fmt.Errorf("%w: scan sequence needs %d return samples, capacity is %d", ErrCapacity, n, s.timeSamples)
		}
	}
	s.scanSeq = seq
	if err := s.ensureLanes(); err != nil {
		return err
	}
	s.pool.ensureHostLines(seq.NumLines())
	return nil
}

// SetExcitation replaces the excitation signal and recomputes the
// frequency-domain convolution kernel.
func (s *Simulator) SetExcitation(ex ExcitationSignal) error {
	if s.planFFT == nil {
		s.planFFT = fourier.NewCmplxFFT(s.timeSamples)
	}
	kernel, err := computeExcitationKernel(ex, s.timeSamples, s.planFFT)
	if err != nil {
		return err
	}
	diagf("excitation replaced: %d samples, fs=%v Hz, center=%d, demod=%v Hz",
		len(ex.Samples), ex.SamplingFrequency, ex.CenterIndex, ex.DemodFrequency)
	s.excitation = &ex
	s.excKernel = kernel
	s.bound = true
	return nil
}

// SetBeamProfile replaces the beam profile.
func (s *Simulator) SetBeamProfile(p BeamProfile) error {
	switch p.Kind {
	case BeamProfileGaussian:
		if p.Gaussian.SigmaLateral <= 0 || p.Gaussian.SigmaElevational <= 0 {
			return fmt.Errorf("%w: gaussian beam sigmas (%v, %v) must be positive",
				ErrConfiguration, p.Gaussian.SigmaLateral, p.Gaussian.SigmaElevational)
		}
	case BeamProfileLUT:
		if p.LUT == nil {
			return fmt.Errorf("%w: lookup-table beam profile has no table", ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: beam profile is not configured", ErrConfiguration)
	}
	s.profile = p
	return nil
}

// SetScatterers replaces the scatterer set of the matching kind (fixed or
// spline) in its entirety. The other kind, if previously uploaded, is kept;
// both kinds are projected into every line.
func (s *Simulator) SetScatterers(sc Scatterers) error {
	switch set := sc.(type) {
	case *FixedScatterers:
		if set == nil {
			return fmt.Errorf("%w: nil fixed scatterer set", ErrConfiguration)
		}
		s.fixed = set
		diagf("fixed scatterers replaced: %d scatterers", set.NumScatterers())
	case *SplineScatterers:
		if set == nil {
			return fmt.Errorf("%w: nil spline scatterer set", ErrConfiguration)
		}
		if err := set.Validate(); err != nil {
			return err
		}
		s.spline = set
		diagf("spline scatterers replaced: %d scatterers, %d control points, degree %d",
			set.NumScatterers(), set.NumControlPoints(), set.Degree)
	default:
		return fmt.Errorf("%w: unknown scatterer set kind %T", ErrConfiguration, sc)
	}
	s.bound = true
	return nil
}

// ClearFixedScatterers removes the fixed scatterer set.
func (s *Simulator) ClearFixedScatterers() { s.fixed = nil }

// ClearSplineScatterers removes the spline scatterer set.
func (s *Simulator) ClearSplineScatterers() { s.spline = nil }

// SetParameter sets a backend tuning parameter by key. Device- and
// lane-affecting keys fail once resources are allocated. Keys not handled
// here fall through to the base parameter handler; a key unrecognized there
// too is a configuration error.
func (s *Simulator) SetParameter(key, value string) error {
	switch key {
	case "compute_device":
		if s.bound {
			return fmt.Errorf("%w: cannot change compute device after resources are allocated", ErrConfiguration)
		}
		device, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: compute_device: %v", ErrConfiguration, err)
		}
		if device < 0 || device >= s.caps.NumDevices {
			return fmt.Errorf("%w: compute device %d outside [0, %d)", ErrConfiguration, device, s.caps.NumDevices)
		}
		s.deviceIndex = device
	case "num_lanes":
		if s.bound {
			return fmt.Errorf("%w: cannot change lane count after resources are allocated", ErrConfiguration)
		}
		lanes, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: num_lanes: %v", ErrConfiguration, err)
		}
		if lanes <= 0 || lanes > s.caps.MaxLanes {
			return fmt.Errorf("%w: lane count %d outside [1, %d]", ErrConfiguration, lanes, s.caps.MaxLanes)
		}
		s.params.NumLanes = lanes
	case "work_group_size":
		size, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: work_group_size: %v", ErrConfiguration, err)
		}
		if size <= 0 || size > s.caps.MaxWorkGroupSize {
			return fmt.Errorf("%w: work group size %d outside [1, %d]", ErrConfiguration, size, s.caps.MaxWorkGroupSize)
		}
		s.workGroupSize = size
	case "store_kernel_details":
		on, err := parseOnOff(value)
		if err != nil {
			return fmt.Errorf("%w: store_kernel_details: %v", ErrConfiguration, err)
		}
		s.storeKernelDetails = on
	default:
		return s.setBaseParameter(key, value)
	}
	return nil
}

// setBaseParameter handles the physics and post-processing keys shared by
// every algorithm variant.
func (s *Simulator) setBaseParameter(key, value string) error {
	switch key {
	case "sound_speed":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("%w: sound_speed %q must be a positive number", ErrConfiguration, value)
		}
		s.params.SoundSpeed = v
	case "radial_decimation":
		v, err := strconv.Atoi(value)
		if err != nil || v < 1 {
			return fmt.Errorf("%w: radial_decimation %q must be an integer >= 1", ErrConfiguration, value)
		}
		s.params.RadialDecimation = v
	case "noise_amplitude":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v < 0 {
			return fmt.Errorf("%w: noise_amplitude %q must be a non-negative number", ErrConfiguration, value)
		}
		s.params.NoiseAmplitude = v
	case "use_arc_projection":
		on, err := parseOnOff(value)
		if err != nil {
			return fmt.Errorf("%w: use_arc_projection: %v", ErrConfiguration, err)
		}
		s.params.UseArcProjection = on
	case "phase_delay":
		on, err := parseOnOff(value)
		if err != nil {
			return fmt.Errorf("%w: phase_delay: %v", ErrConfiguration, err)
		}
		s.params.EnablePhaseDelay = on
	case "output_type":
		t, err := ParseOutputType(value)
		if err != nil {
			return err
		}
		s.output = t
	case "verbose":
		on, err := parseOnOff(value)
		if err != nil {
			return fmt.Errorf("%w: verbose: %v", ErrConfiguration, err)
		}
		s.verbose = on
	default:
		return fmt.Errorf("%w: unknown parameter %q", ErrConfiguration, key)
	}
	return nil
}

func parseOnOff(value string) (bool, error) {
	switch value {
	case "on", "true":
		return true, nil
	case "off", "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q (want on/off/true/false)", value)
	}
}

// DebugData returns the per-line kernel timing telemetry collected during
// the most recent batch, or nil if store_kernel_details is off.
func (s *Simulator) DebugData() map[string][]float64 { return s.debugData }

// ensureLanes lazily allocates the lane pool on first use and freezes the
// lane-affecting parameters.
func (s *Simulator) ensureLanes() error {
	if s.pool != nil {
		return nil
	}
	pool, err := newLanePool(s.params.NumLanes, s.timeSamples)
	if err != nil {
		return err
	}
	diagf("allocated %d lanes of %d complex samples", s.params.NumLanes, s.timeSamples)
	s.pool = pool
	s.bound = true
	return nil
}

// SimulateLines runs the full per-line pipeline for every line in the scan
// sequence and returns one sample slice per line, in input order. The batch
// is atomic from the caller's point of view: validation happens before any
// lane is dispatched, and an error during lane execution leaves the output
// undefined but the simulator usable for a corrected call.
func (s *Simulator) SimulateLines() ([][]complex128, error) {
	if err := s.validateBatch(); err != nil {
		return nil, err
	}
	if err := s.ensureLanes(); err != nil {
		return nil, err
	}
	numLines := s.scanSeq.NumLines()
	s.pool.ensureHostLines(numLines)

	kernel, err := newProjectionKernel(s.params, *s.excitation, s.profile)
	if err != nil {
		return nil, err
	}

	var timings []lineTiming
	s.debugData = nil
	if s.storeKernelDetails {
		timings = make([]lineTiming, numLines)
	}

	numLanes := s.pool.numLanes()
	errs := make([]error, numLanes)
	var wg sync.WaitGroup
	for _, l := range s.pool.lanes {
		wg.Add(1)
		go func(l *lane) {
			defer wg.Done()
			// strict per-lane ordering: a lane's buffer is reused for its
			// next assigned line only after the previous line's copy-out
			for lineIdx := l.id; lineIdx < numLines; lineIdx += numLanes {
				if err := s.processLine(l, lineIdx, kernel, timings); err != nil {
					errs[l.id] = err
					return
				}
			}
		}(l)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	if s.storeKernelDetails {
		s.debugData = flattenTimings(timings)
	}
	return s.collectLines(numLines), nil
}

// validateBatch performs the full pre-dispatch validation pass. A rejected
// batch leaves all prior state untouched.
func (s *Simulator) validateBatch() error {
	if s.scanSeq == nil || s.scanSeq.NumLines() == 0 {
		return fmt.Errorf("%w: no scan lines in scan sequence", ErrConfiguration)
	}
	if s.profile.Kind == BeamProfileNone {
		return fmt.Errorf("%w: no beam profile is configured", ErrConfiguration)
	}
	if s.excitation == nil {
		return fmt.Errorf("%w: no excitation signal is configured", ErrConfiguration)
	}
	if s.fixed == nil && s.spline == nil {
		return fmt.Errorf("%w: no scatterer set is configured", ErrConfiguration)
	}
	if groups := groupCount(s.fixed.NumScatterers(), s.workGroupSize); groups > s.caps.MaxGridWidth {
		return fmt.Errorf("%w: fixed scatterers need %d work groups, backend limit is %d",
			ErrCapacity, groups, s.caps.MaxGridWidth)
	}
	if groups := groupCount(s.spline.NumScatterers(), s.workGroupSize); groups > s.caps.MaxGridWidth {
		return fmt.Errorf("%w: spline scatterers need %d work groups, backend limit is %d",
			ErrCapacity, groups, s.caps.MaxGridWidth)
	}
	numReturn := computeNumReturnSamples(s.params.SoundSpeed, s.scanSeq.LineLength, s.excitation.SamplingFrequency)
	if numReturn+s.excitation.CenterIndex > s.timeSamples {
		return fmt.Errorf("%w: %d return samples plus %d delay-compensation samples exceed capacity %d",
			ErrCapacity, numReturn, s.excitation.CenterIndex, s.timeSamples)
	}
	return nil
}

func groupCount(items, groupSize int) int {
	return (items + groupSize - 1) / groupSize
}

// processLine runs the per-line pipeline on the lane's buffer:
// clear -> project -> forward FFT -> spectral multiply -> inverse FFT ->
// demodulate -> copy to the line's host buffer.
func (s *Simulator) processLine(l *lane, lineIdx int, kernel *projectionKernel, timings []lineTiming) error {
	line := s.scanSeq.Lines[lineIdx]
	if s.verbose {
		diagf("line %d on lane %d (t=%v)", lineIdx, l.id, line.Timestamp)
	}

	var row *lineTiming
	var sw stopwatch
	if timings != nil {
		row = &timings[lineIdx]
		row.lane = l.id
		sw = newStopwatch()
	}

	l.clear()
	if row != nil {
		row.clear = sw.lapMs()
	}

	if s.fixed.NumScatterers() > 0 {
		kernel.projectFixed(line, s.fixed, l.buf)
		if row != nil {
			row.fixedProj = sw.lapMs()
		}
	}
	if s.spline.NumScatterers() > 0 {
		if err := kernel.projectSpline(line, s.spline, l.buf); err != nil {
			return err
		}
		if row != nil {
			row.splineProj = sw.lapMs()
		}
	}
	if s.params.NoiseAmplitude > 0 {
		addProjectionNoise(l.buf, s.params.NoiseAmplitude, lineIdx)
	}

	l.fft.Coefficients(l.buf, l.buf)
	if row != nil {
		row.forward = sw.lapMs()
	}

	for i := range l.buf {
		l.buf[i] *= s.excKernel[i]
	}
	if row != nil {
		row.multiply = sw.lapMs()
	}

	l.fft.Sequence(l.buf, l.buf)
	if row != nil {
		row.inverse = sw.lapMs()
	}

	// shift to baseband: multiply sample n by exp(-j*omega*n)
	omega := 2 * math.Pi * s.excitation.DemodFrequency / s.excitation.SamplingFrequency
	if omega != 0 {
		for n := range l.buf {
			l.buf[n] *= cmplx.Exp(complex(0, -omega*float64(n)))
		}
	}
	if row != nil {
		row.demodulate = sw.lapMs()
	}

	copy(s.pool.hostLines[lineIdx], l.buf)
	if row != nil {
		row.copyOut = sw.lapMs()
	}
	return nil
}

// collectLines runs the final pass over the host buffers: drop the leading
// delay-compensation samples, keep the return-sample window, decimate, and
// envelope-detect when the output type asks for it.
func (s *Simulator) collectLines(numLines int) [][]complex128 {
	delayComp := s.excitation.CenterIndex
	numReturn := computeNumReturnSamples(s.params.SoundSpeed, s.scanSeq.LineLength, s.excitation.SamplingFrequency)
	dec := s.params.RadialDecimation

	out := make([][]complex128, numLines)
	for lineNo := 0; lineNo < numLines; lineNo++ {
		host := s.pool.hostLines[lineNo]
		samples := make([]complex128, 0, numReturn/dec+1)
		for i := 0; i < numReturn; i += dec {
			samples = append(samples, host[i+delayComp])
		}
		if s.output == OutputEnvelope {
			for i, v := range samples {
				samples[i] = complex(cmplx.Abs(v), 0)
			}
		}
		out[lineNo] = samples
	}
	return out
}

// addProjectionNoise adds zero-mean Gaussian noise to a line's time
// projection. The generator is seeded by line index rather than by lane so
// results stay independent of the lane count.
func addProjectionNoise(buf []complex128, amplitude float64, lineIdx int) {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: amplitude,
		Src:   rand.NewPCG(0x65636873696d, uint64(lineIdx)),
	}
	for i := range buf {
		buf[i] += complex(dist.Rand(), dist.Rand())
	}
}

// stopwatch measures successive stage durations in milliseconds.
type stopwatch struct {
	last time.Time
}

func newStopwatch() stopwatch { return stopwatch{last: time.Now()} }

func (s *stopwatch) lapMs() float64 {
	now := time.Now()
	ms := float64(now.Sub(s.last)) / float64(time.Millisecond)
	s.last = now
	return ms
}
