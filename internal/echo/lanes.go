package echo

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// defaultTimeSamples is the fixed per-line time-sample capacity. Lane
// buffers, host line buffers, the transform plans and the excitation kernel
// are all sized to it; a scan sequence whose required return-sample count
// exceeds it is rejected with ErrCapacity.
const defaultTimeSamples = 8192

// lane is one parallel execution context. It owns a complex accumulation
// buffer and a transform plan, both reused across every scan line assigned
// to it. gonum FFT plans carry scratch state and are not safe for
// concurrent use, which is why each lane holds its own plan of the shared
// size rather than all lanes sharing one.
type lane struct {
	id  int
	buf []complex128
	fft *fourier.CmplxFFT
}

// clear zeroes the accumulation buffer before a new line's projection.
func (l *lane) clear() {
	for i := range l.buf {
		l.buf[i] = 0
	}
}

// lanePool owns the execution lanes and the per-line host result buffers.
// Lanes are created once, on first use, and reused for the lifetime of the
// simulator; host buffers grow monotonically with the largest line count
// seen so far and are never shrunk.
type lanePool struct {
	timeSamples int
	lanes       []*lane
	hostLines   [][]complex128
}

func newLanePool(numLanes, timeSamples int) (*lanePool, error) {
	if numLanes <= 0 {
		return nil, fmt.Errorf("%w: lane count %d must be positive", ErrConfiguration, numLanes)
	}
	p := &lanePool{timeSamples: timeSamples}
	for i := 0; i < numLanes; i++ {
		p.lanes = append(p.lanes, &lane{
			id:  i,
			buf: make([]complex128, timeSamples),
			fft: fourier.NewCmplxFFT(timeSamples),
		})
	}
	return p, nil
}

// numLanes returns the fixed lane count.
func (p *lanePool) numLanes() int { return len(p.lanes) }

// laneFor returns the lane deterministically assigned to a line index:
// round-robin by index, so a given line always lands on the same lane for a
// given lane count.
func (p *lanePool) laneFor(lineIdx int) *lane {
	return p.lanes[lineIdx%len(p.lanes)]
}

// ensureHostLines guarantees host result buffers for at least n lines,
// reusing any larger prior allocation.
func (p *lanePool) ensureHostLines(n int) {
	if n <= len(p.hostLines) {
		return
	}
	diagf("allocating host line buffers: had %d, need %d", len(p.hostLines), n)
	for i := len(p.hostLines); i < n; i++ {
		p.hostLines = append(p.hostLines, make([]complex128, p.timeSamples))
	}
}
