// Package dsp implements the receiver-side signal processing chain of a
// continuous-variable QKD link: sequence synchronization, pilot tracking,
// matched filtering, resampling, phase correction and the calibration path
// that keeps noise references comparable to the recovered symbols.
package dsp

import "math"

// roundHalfDown rounds to the nearest integer, breaking exact .5 ties
// towards negative infinity. Downsampling and subframe bookkeeping both rely
// on this rule; do not substitute round-half-to-even.
func roundHalfDown(x float64) int {
	return int(math.Ceil(x - 0.5))
}

// Downsample selects the samples nearest to start + k*factor for every k
// that stays inside data. Integral factors reduce to stride slicing.
func Downsample(data []complex128, start int, factor float64) []complex128 {
	if factor == math.Trunc(factor) {
		return downsampleInt(data, start, int(factor))
	}
	return downsampleFloat(data, start, factor)
}

func downsampleInt(data []complex128, start, factor int) []complex128 {
	if start >= len(data) {
		return nil
	}
	out := make([]complex128, 0, (len(data)-start+factor-1)/factor)
	for i := start; i < len(data); i += factor {
		out = append(out, data[i])
	}
	return out
}

func downsampleFloat(data []complex128, start int, factor float64) []complex128 {
	last := int(math.Floor((float64(len(data)) - 0.5 - float64(start)) / factor))
	if last < 0 {
		return nil
	}
	out := make([]complex128, 0, last+1)
	for k := 0; k <= last; k++ {
		out = append(out, data[roundHalfDown(float64(start)+factor*float64(k))])
	}
	return out
}

// downsampleIndices returns the sample indices Downsample would select. The
// pipeline uses it to advance subframe boundaries from the actual recovered
// symbol timing.
func downsampleIndices(length, start int, factor float64, limit int) []int {
	if factor == math.Trunc(factor) {
		f := int(factor)
		var out []int
		for i := start; i < length && (limit <= 0 || len(out) < limit); i += f {
			out = append(out, i)
		}
		return out
	}
	last := int(math.Floor((float64(length) - 0.5 - float64(start)) / factor))
	var out []int
	for k := 0; k <= last && (limit <= 0 || len(out) < limit); k++ {
		out = append(out, roundHalfDown(float64(start)+factor*float64(k)))
	}
	return out
}

// BestSamplingPoint returns the sampling phase in [0, ceil(sps)) whose
// downsampled sequence has maximal variance. After matched filtering, the
// maximum-energy phase is the symbol-centred one.
func BestSamplingPoint(data []complex128, sps float64) int {
	if sps == math.Trunc(sps) {
		return bestSamplingPointInt(data, int(sps))
	}
	return bestSamplingPointFloat(data, sps)
}

func bestSamplingPointInt(data []complex128, sps int) int {
	best, bestVar := 0, math.Inf(-1)
	for i := 0; i < sps; i++ {
		if v := complexVariance(downsampleInt(data, i, sps)); v > bestVar {
			best, bestVar = i, v
		}
	}
	return best
}

func bestSamplingPointFloat(data []complex128, sps float64) int {
	candidates := int(math.Ceil(sps))
	best, bestVar := 0, math.Inf(-1)
	for i := 0; i < candidates; i++ {
		if v := complexVariance(downsampleFloat(data, i, sps)); v > bestVar {
			best, bestVar = i, v
		}
	}
	return best
}

// complexVariance is the population variance mean(|x - mean(x)|²).
func complexVariance(data []complex128) float64 {
	if len(data) == 0 {
		return 0
	}
	var mean complex128
	for _, v := range data {
		mean += v
	}
	mean /= complex(float64(len(data)), 0)
	sum := 0.0
	for _, v := range data {
		d := v - mean
		sum += real(d)*real(d) + imag(d)*imag(d)
	}
	return sum / float64(len(data))
}
