package dsp

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// nextPow2 returns the smallest power of two >= n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// spectrum computes the DFT of data in standard order (DC first, negative
// frequencies in the upper half).
func spectrum(data []complex128) []complex128 {
	fft := fourier.NewCmplxFFT(len(data))
	return fft.Coefficients(nil, data)
}

// fftFreq returns the frequency in Hz of every DFT bin for a transform of
// length n over samples spaced 1/rate apart.
func fftFreq(n int, rate float64) []float64 {
	freqs := make([]float64, n)
	half := (n + 1) / 2
	for i := 0; i < half; i++ {
		freqs[i] = float64(i) * rate / float64(n)
	}
	for i := half; i < n; i++ {
		freqs[i] = float64(i-n) * rate / float64(n)
	}
	return freqs
}

// fftConvolve computes the full linear convolution of a and b using
// zero-padded FFTs. The result has length len(a)+len(b)-1.
func fftConvolve(a, b []complex128) []complex128 {
	n := len(a) + len(b) - 1
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	size := nextPow2(n)
	fft := fourier.NewCmplxFFT(size)

	pa := make([]complex128, size)
	copy(pa, a)
	pb := make([]complex128, size)
	copy(pb, b)

	ca := fft.Coefficients(nil, pa)
	cb := fft.Coefficients(nil, pb)
	for i := range ca {
		ca[i] *= cb[i]
	}
	out := fft.Sequence(nil, ca)
	scale := complex(1/float64(size), 0)
	for i := range out {
		out[i] *= scale
	}
	return out[:n]
}

// convolveSame convolves data with kernel and returns the centered portion
// with the same length as data, matching numpy's "same" mode for
// len(data) >= len(kernel).
func convolveSame(data, kernel []complex128) []complex128 {
	full := fftConvolve(data, kernel)
	start := (len(kernel) - 1) / 2
	return full[start : start+len(data)]
}

// crossCorrelateValid computes c[m] = sum_j data[m+j]*ref[j] for every lag m
// at which ref fits entirely inside data. Inputs are real-valued magnitudes
// carried as complex for FFT reuse; the result is returned as real parts.
func crossCorrelateValid(data, ref []float64) []float64 {
	if len(data) < len(ref) || len(ref) == 0 {
		return nil
	}
	cd := make([]complex128, len(data))
	for i, v := range data {
		cd[i] = complex(v, 0)
	}
	// Convolving with the reversed reference turns convolution into
	// correlation.
	cr := make([]complex128, len(ref))
	for i, v := range ref {
		cr[len(ref)-1-i] = complex(v, 0)
	}
	full := fftConvolve(cd, cr)
	out := make([]float64, len(data)-len(ref)+1)
	for m := range out {
		out[m] = real(full[m+len(ref)-1])
	}
	return out
}

// magnitudes returns |data[i]| for every sample.
func magnitudes(data []complex128) []float64 {
	out := make([]float64, len(data))
	for i, v := range data {
		out[i] = cmplx.Abs(v)
	}
	return out
}

func argmaxFloat(data []float64) int {
	best := 0
	for i := 1; i < len(data); i++ {
		if data[i] > data[best] {
			best = i
		}
	}
	return best
}
