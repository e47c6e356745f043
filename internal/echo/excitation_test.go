package echo

import (
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/dsp/fourier"
)

func TestComputeExcitationKernel_MatchesDirectComputation(t *testing.T) {
	t.Parallel()

	const n = 64
	ex := ExcitationSignal{
		Samples:           []float64{0.5, 1, 0.5, -0.25},
		SamplingFrequency: 50e6,
		CenterIndex:       1,
	}
	fft := fourier.NewCmplxFFT(n)
	kernel, err := computeExcitationKernel(ex, n, fft)
	require.NoError(t, err)
	require.Len(t, kernel, n)

	// direct: FFT of the zero-padded pulse, times mask, over n
	padded := make([]complex128, n)
	for i, s := range ex.Samples {
		padded[i] = complex(s, 0)
	}
	want := fourier.NewCmplxFFT(n).Coefficients(nil, padded)
	mask := discreteHilbertMask(n)
	for i := range want {
		want[i] *= complex(mask[i]/float64(n), 0)
	}
	for i := range kernel {
		assert.InDelta(t, 0, cmplx.Abs(kernel[i]-want[i]), 1e-12, "bin %d", i)
	}

	// negative-frequency half is zeroed by the analytic-signal mask
	for i := n/2 + 1; i < n; i++ {
		assert.Zero(t, kernel[i], "bin %d", i)
	}
}

func TestComputeExcitationKernel_Validation(t *testing.T) {
	t.Parallel()

	fft := fourier.NewCmplxFFT(16)

	_, err := computeExcitationKernel(ExcitationSignal{SamplingFrequency: 1e6}, 16, fft)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = computeExcitationKernel(ExcitationSignal{Samples: []float64{1}, SamplingFrequency: 0}, 16, fft)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = computeExcitationKernel(ExcitationSignal{
		Samples: []float64{1, 1}, SamplingFrequency: 1e6, CenterIndex: 2,
	}, 16, fft)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = computeExcitationKernel(ExcitationSignal{
		Samples: make([]float64, 32), SamplingFrequency: 1e6,
	}, 16, fft)
	assert.ErrorIs(t, err, ErrCapacity)
}
