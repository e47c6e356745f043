package echo

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// computeExcitationKernel precomputes the frequency-domain convolution
// kernel for an excitation signal: the pulse is zero-padded to n samples,
// forward transformed, scaled by 1/n (forward-transform normalization) and
// multiplied by the discrete analytic-signal mask. The result is reused
// unchanged for every line until the excitation is replaced.
func computeExcitationKernel(ex ExcitationSignal, n int, fft *fourier.CmplxFFT) ([]complex128, error) {
	if len(ex.Samples) == 0 {
		return nil, fmt.Errorf("%w: excitation signal has no samples", ErrConfiguration)
	}
	if ex.SamplingFrequency <= 0 {
		return nil, fmt.Errorf("%w: excitation sampling frequency %v must be positive", ErrConfiguration, ex.SamplingFrequency)
	}
	if ex.CenterIndex < 0 || ex.CenterIndex >= len(ex.Samples) {
		return nil, fmt.Errorf("%w: excitation center index %d outside [0, %d)", ErrConfiguration, ex.CenterIndex, len(ex.Samples))
	}
	if len(ex.Samples) > n {
		return nil, fmt.Errorf("%w: excitation has %d samples but line capacity is %d", ErrCapacity, len(ex.Samples), n)
	}

	kernel := make([]complex128, n)
	for i, s := range ex.Samples {
		kernel[i] = complex(s, 0)
	}
	fft.Coefficients(kernel, kernel)

	mask := discreteHilbertMask(n)
	invN := 1.0 / float64(n)
	for i := range kernel {
		kernel[i] *= complex(mask[i]*invN, 0)
	}
	return kernel, nil
}
