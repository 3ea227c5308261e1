package dsp

import (
	"math"
	"math/cmplx"
)

// coarseRatio divides the capture length to obtain the rolling-average
// window used for coarse burst localization.
const coarseRatio = 50

// ZadoffChu generates the constant-amplitude zero-autocorrelation sequence
// of the given root and length used for frame synchronization.
func ZadoffChu(root, length int) []complex128 {
	out := make([]complex128, length)
	cf := float64(length % 2)
	for n := range out {
		fn := float64(n)
		out[n] = cmplx.Exp(complex(0, -math.Pi*float64(root)*fn*(fn+cf)/float64(length)))
	}
	return out
}

// repeatSamples upsamples a sequence by integer sample repetition.
func repeatSamples(seq []complex128, times int) []complex128 {
	if times <= 1 {
		return seq
	}
	out := make([]complex128, 0, len(seq)*times)
	for _, v := range seq {
		for i := 0; i < times; i++ {
			out = append(out, v)
		}
	}
	return out
}

// coarseBurstLocation approximates the start of the synchronization burst as
// the argmax of a rolling average of the sample magnitudes, corrected by
// half the averaging window.
func coarseBurstLocation(data []complex128) int {
	w := len(data) / coarseRatio
	if w < 1 {
		w = 1
	}
	avg := movingAverage(magnitudes(data), w)
	return argmaxFloat(avg) - w/2
}

// Synchronize locates a Zadoff-Chu sequence of the given root and length
// inside data and returns its [begin, end) sample range. The resample factor
// repeats each reference sample to match the capture rate when the sequence
// was generated at a lower rate.
//
// The search is two-stage: a cheap rolling-average pass finds the energy
// burst, then a magnitude cross-correlation against the regenerated
// reference refines the offset inside a ±2 reference-length window.
// Magnitude correlation keeps the result independent of any residual
// carrier phase.
//
// A capture without a usable energy transient still produces a well-formed
// but meaningless range; callers validate downstream against the expected
// sequence energy.
func Synchronize(data []complex128, root, length int, resample float64) (begin, end int) {
	approx := coarseBurstLocation(data)
	ref := repeatSamples(ZadoffChu(root, length), int(math.Round(resample)))

	lo := approx - 2*len(ref)
	if lo < 0 {
		lo = 0
	}
	hi := approx + 2*len(ref)
	if hi > len(data) {
		hi = len(data)
	}
	window := magnitudes(data[lo:hi])
	refMag := magnitudes(ref)
	corr := crossCorrelateValid(window, refMag)
	if len(corr) == 0 {
		return approx, approx + len(ref)
	}
	begin = lo + argmaxFloat(corr)
	return begin, begin + len(ref)
}
