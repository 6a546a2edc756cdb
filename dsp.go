package wsa

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// KissFFTOffset is the fixed calibration offset applied in the
// capture loop's final dBm conversion (§4.6/§4.9). The name preserves
// the original implementation's identifier so the constant is
// recognizable against vendor documentation.
const KissFFTOffset = 20.0

// Normalize divides raw samples by a stream-dependent full-scale,
// producing a real-valued buffer in approximately [-1, +1].
func Normalize(samples []int32, fullScale float64, out []float64) {
	for i, s := range samples {
		out[i] = float64(s) / fullScale
	}
}

// HanningWindow applies an in-place Hann window: x[i] *= 0.5*(1-cos(2*pi*i/(N-1))).
func HanningWindow(x []float64) {
	n := len(x)
	if n < 2 {
		return
	}
	for i := range x {
		x[i] *= 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
}

// realFFT is a reusable gonum real-to-complex FFT plan, sized to N.
type realFFT struct {
	n    int
	plan *fourier.FFT
}

func newRealFFT(n int) *realFFT {
	return &realFFT{n: n, plan: fourier.NewFFT(n)}
}

// Transform runs the forward real FFT on x (length N), then FFT-shifts
// and discards the upper half (the image of a real signal), yielding
// an N/2-point positive-frequency spectrum (§4.6).
//
// gonum's fourier.FFT.Coefficients already returns only the
// non-negative-frequency half (N/2+1 complex bins) for real input, so
// the "FFT-shift then discard upper half" step of the spec collapses
// to simply taking the first N/2 of those bins — no physical shift is
// needed because there is no negative-frequency half to rotate past.
func (f *realFFT) Transform(x []float64) []complex128 {
	coeffs := f.plan.Coefficients(nil, x)
	half := f.n / 2
	if half > len(coeffs) {
		half = len(coeffs)
	}
	return coeffs[:half]
}

// ReverseInPlace reverses all of buf in place, compensating for
// spectral inversion signaled by the VRT trailer bit (§4.6).
func ReverseInPlace(buf []complex128) {
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
}

// Magnitude returns sqrt(re^2 + im^2).
func Magnitude(c complex128) float64 {
	re, im := real(c), imag(c)
	return math.Sqrt(re*re + im*im)
}

// LogPower returns 10*log10(p). Callers must guard p > 0 themselves;
// this mirrors the reference implementation's unguarded log10 call.
func LogPower(p float64) float64 {
	return 10 * math.Log10(p)
}

// CpxToPower returns the magnitude of a complex FFT bin. The capture
// loop (§4.9 step 7) divides this by the block length and takes
// 2*log10 of the result, equivalent to §4.6's "2*log10(mag/N)".
func CpxToPower(c complex128) float64 {
	return Magnitude(c)
}
