package dsp

import (
	"math"
	"math/cmplx"
)

// lowPassFIR designs a linear-phase low-pass FIR filter of numTaps
// coefficients using the windowed-sinc method with a Hamming window. The
// cutoff is expressed as a fraction of the Nyquist frequency. Coefficients
// are normalized to unit DC gain.
func lowPassFIR(numTaps int, cutoff float64) []float64 {
	taps := make([]float64, numTaps)
	mid := float64(numTaps-1) / 2
	sum := 0.0
	for i := range taps {
		t := float64(i) - mid
		var s float64
		if t == 0 {
			s = cutoff
		} else {
			s = math.Sin(math.Pi*cutoff*t) / (math.Pi * t)
		}
		w := 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(numTaps-1))
		taps[i] = s * w
		sum += taps[i]
	}
	for i := range taps {
		taps[i] /= sum
	}
	return taps
}

// bandPassFIR modulates a low-pass prototype up to the given center
// frequency, yielding a complex band-pass filter selecting a single tone.
func bandPassFIR(numTaps int, cutoff, center, rate float64) []complex128 {
	proto := lowPassFIR(numTaps, cutoff/rate)
	taps := make([]complex128, numTaps)
	for i, h := range proto {
		taps[i] = complex(h, 0) * cmplx.Exp(complex(0, 2*math.Pi*float64(i)*center/rate))
	}
	return taps
}

// rootRaisedCosine returns the impulse response of a root-raised-cosine
// filter with numTaps coefficients, roll-off beta, symbol period ts and
// sample rate. The response is symmetric about the midpoint of the tap
// vector.
func rootRaisedCosine(numTaps int, beta, ts, rate float64) []float64 {
	taps := make([]float64, numTaps)
	mid := float64(numTaps-1) / 2
	for i := range taps {
		t := (float64(i) - mid) / rate
		switch {
		case t == 0:
			taps[i] = (1 + beta*(4/math.Pi-1)) / ts
		case beta != 0 && math.Abs(math.Abs(4*beta*t/ts)-1) < 1e-12:
			taps[i] = beta / (ts * math.Sqrt2) *
				((1+2/math.Pi)*math.Sin(math.Pi/(4*beta)) +
					(1-2/math.Pi)*math.Cos(math.Pi/(4*beta)))
		default:
			num := math.Sin(math.Pi*t/ts*(1-beta)) + 4*beta*t/ts*math.Cos(math.Pi*t/ts*(1+beta))
			den := math.Pi * t / ts * (1 - (4*beta*t/ts)*(4*beta*t/ts))
			taps[i] = num / (den * ts)
		}
	}
	return taps
}

// matchedFilter applies the root-raised-cosine matched filter for the given
// symbol rate, scaled by 1/sqrt(sps) so that cascaded shaping and matched
// filtering preserve symbol energy. The first tap of the even-length design
// is dropped to keep the response symmetric.
func matchedFilter(data []complex128, sps, rollOff, symbolRate, rate float64) []complex128 {
	numTaps := int(10*sps + 2)
	taps := rootRaisedCosine(numTaps, rollOff, 1/symbolRate, rate)[1:]
	kernel := make([]complex128, len(taps))
	scale := 1 / math.Sqrt(sps)
	for i, h := range taps {
		kernel[i] = complex(h*scale, 0)
	}
	return convolveSame(data, kernel)
}

// frequencyShift multiplies data by exp(-2πi·n·shift/rate), moving a band
// centered at shift down to baseband.
func frequencyShift(data []complex128, shift, rate float64) []complex128 {
	out := make([]complex128, len(data))
	step := -2 * math.Pi * shift / rate
	for i, v := range data {
		out[i] = v * cmplx.Exp(complex(0, step*float64(i)))
	}
	return out
}

// movingAverage computes a centered rolling mean of window w with reflected
// boundaries, matching scipy's uniform_filter1d defaults.
func movingAverage(data []float64, w int) []float64 {
	if w <= 1 || len(data) == 0 {
		out := make([]float64, len(data))
		copy(out, data)
		return out
	}
	n := len(data)
	at := func(i int) float64 {
		// Reflect: d c b a | a b c d | d c b a
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			} else {
				i = 2*n - i - 1
			}
		}
		return data[i]
	}
	lw := w / 2
	out := make([]float64, n)
	sum := 0.0
	for j := -lw; j < w-lw; j++ {
		sum += at(j)
	}
	out[0] = sum / float64(w)
	for i := 1; i < n; i++ {
		sum += at(i+w-lw-1) - at(i-lw-1)
		out[i] = sum / float64(w)
	}
	return out
}

// unwrap removes 2π discontinuities from a phase trajectory.
func unwrap(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}
	out[0] = phase[0]
	for i := 1; i < len(phase); i++ {
		out[i] = out[i-1] + wrapPhase(phase[i]-phase[i-1])
	}
	return out
}

// wrapPhase reduces an angle to (-π, π].
func wrapPhase(p float64) float64 {
	for p > math.Pi {
		p -= 2 * math.Pi
	}
	for p <= -math.Pi {
		p += 2 * math.Pi
	}
	return p
}
