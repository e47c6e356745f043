package echo

import (
	"io"
	"log"
)

var (
	opsLogger  *log.Logger
	diagLogger *log.Logger
)

// SetLogWriters configures the two logging streams for the echo package:
// ops for actionable warnings and errors, diag for day-to-day diagnostics
// such as allocation and dispatch decisions. Pass nil for a writer to
// disable that stream. Both streams are disabled by default.
func SetLogWriters(ops, diag io.Writer) {
	opsLogger = newLogger("[echo] ", ops)
	diagLogger = newLogger("[echo] ", diag)
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream.
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream.
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// stage names for per-line kernel timing telemetry. They key the DebugData
// map and the persisted timing JSON.
const (
	stageLane       = "lane_numbers"
	stageClear      = "kernel_clear_ms"
	stageFixedProj  = "fixed_projection_kernel_ms"
	stageSplineProj = "spline_projection_kernel_ms"
	stageForwardFFT = "kernel_forward_fft_ms"
	stageMultiply   = "kernel_multiply_fft_ms"
	stageInverseFFT = "kernel_inverse_fft_ms"
	stageDemodulate = "kernel_demodulate_ms"
	stageCopy       = "kernel_copy_ms"
)

// lineTiming records per-stage wall-clock milliseconds for one line. Lanes
// write into disjoint line slots, so no locking is needed; the flat
// DebugData view is assembled after the batch barrier.
type lineTiming struct {
	lane       int
	clear      float64
	fixedProj  float64
	splineProj float64
	forward    float64
	multiply   float64
	inverse    float64
	demodulate float64
	copyOut    float64
}

// flattenTimings converts per-line timing rows into the keyed map exposed
// by Simulator.DebugData, in original line order.
func flattenTimings(rows []lineTiming) map[string][]float64 {
	out := map[string][]float64{}
	for _, r := range rows {
		out[stageLane] = append(out[stageLane], float64(r.lane))
		out[stageClear] = append(out[stageClear], r.clear)
		out[stageFixedProj] = append(out[stageFixedProj], r.fixedProj)
		out[stageSplineProj] = append(out[stageSplineProj], r.splineProj)
		out[stageForwardFFT] = append(out[stageForwardFFT], r.forward)
		out[stageMultiply] = append(out[stageMultiply], r.multiply)
		out[stageInverseFFT] = append(out[stageInverseFFT], r.inverse)
		out[stageDemodulate] = append(out[stageDemodulate], r.demodulate)
		out[stageCopy] = append(out[stageCopy], r.copyOut)
	}
	return out
}
