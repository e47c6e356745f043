package echo

// discreteHilbertMask returns the length-n frequency-domain mask whose
// elementwise product with a real signal's spectrum yields the spectrum of
// the corresponding discrete analytic signal: DC and (for even n) Nyquist
// bins pass unchanged, positive frequencies are doubled, negative
// frequencies are zeroed.
func discreteHilbertMask(n int) []float64 {
	mask := make([]float64, n)
	if n == 0 {
		return mask
	}
	mask[0] = 1
	if n%2 == 0 {
		for i := 1; i < n/2; i++ {
			mask[i] = 2
		}
		mask[n/2] = 1
	} else {
		for i := 1; i <= (n-1)/2; i++ {
			mask[i] = 2
		}
	}
	return mask
}
