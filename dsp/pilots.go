package dsp

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/stat"
)

// DefaultPilotGuard is the exclusion half-width around an already detected
// pilot when searching for a second one.
const DefaultPilotGuard = 5e6

// A FrequencyBand is a closed frequency interval in Hz, used to exclude
// regions of the spectrum from pilot searches.
type FrequencyBand struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

func (b FrequencyBand) contains(f float64) bool {
	return f >= b.Low && f <= b.High
}

// FindOnePilot returns the frequency of the strongest positive-frequency
// spectral peak, skipping any excluded bands.
func FindOnePilot(data []complex128, rate float64, excl []FrequencyBand) float64 {
	coeffs := spectrum(data)
	freqs := fftFreq(len(data), rate)

	best := -1
	bestMag := 0.0
	for i, f := range freqs {
		if f <= 0 || excluded(f, excl) {
			continue
		}
		if m := cmplx.Abs(coeffs[i]); best < 0 || m > bestMag {
			best, bestMag = i, m
		}
	}
	if best < 0 {
		return 0
	}
	return freqs[best]
}

// FindTwoPilots locates the two strongest positive-frequency peaks, with a
// guard band of ±guard Hz around the first peak excluded while searching for
// the second. The pair is returned in ascending order.
func FindTwoPilots(data []complex128, rate, guard float64, excl []FrequencyBand) (float64, float64) {
	coeffs := spectrum(data)
	freqs := fftFreq(len(data), rate)

	pick := func(extra []FrequencyBand) float64 {
		best := -1
		bestMag := 0.0
		for i, f := range freqs {
			if f <= 0 || excluded(f, excl) || excluded(f, extra) {
				continue
			}
			if m := cmplx.Abs(coeffs[i]); best < 0 || m > bestMag {
				best, bestMag = i, m
			}
		}
		if best < 0 {
			return 0
		}
		return freqs[best]
	}

	f1 := pick(nil)
	f2 := pick([]FrequencyBand{{Low: f1 - guard, High: f1 + guard}})
	if f1 > f2 {
		f1, f2 = f2, f1
	}
	return f1, f2
}

func excluded(f float64, bands []FrequencyBand) bool {
	for _, b := range bands {
		if b.contains(f) {
			return true
		}
	}
	return false
}

// RecoverTone isolates the complex waveform of a single tone by band-pass
// filtering data with a modulated low-pass FIR of firSize taps and the given
// cutoff in Hz.
func RecoverTone(data []complex128, frequency, rate float64, firSize int, cutoff float64) []complex128 {
	fir := bandPassFIR(firSize, cutoff, frequency, rate)
	return convolveSame(data, fir)
}

// phaseNoise returns the phase difference between the received tone and an
// ideal tone at the given frequency, sample for sample, unwrapped. The ideal
// phase grows without bound, so it is reduced with Mod rather than wrapPhase
// to keep the per-sample cost constant.
func phaseNoise(tone []complex128, frequency, rate float64) []float64 {
	diff := make([]float64, len(tone))
	step := 2 * math.Pi * frequency / rate
	for i, v := range tone {
		ideal := math.Mod(step*float64(i), 2*math.Pi)
		diff[i] = wrapPhase(cmplx.Phase(v) - ideal)
	}
	return unwrap(diff)
}

// EquivalentRate estimates the capture's effective sample rate from the
// drift of a single pilot: the tone is recovered, its phase compared against
// the ideal tone at the nominal frequency, and a linear fit of the unwrapped
// difference yields the residual Δf. The equivalent rate is
// rate·f/(f+Δf).
func EquivalentRate(data []complex128, frequency, rate float64, firSize int, cutoff float64) float64 {
	tone := RecoverTone(data, frequency, rate, firSize, cutoff)
	diff := phaseNoise(tone, frequency, rate)

	times := make([]float64, len(diff))
	for i := range times {
		times[i] = float64(i) / rate
	}
	_, slope := stat.LinearRegression(times, diff, nil, false)
	deltaF := slope / (2 * math.Pi)
	return rate * frequency / (frequency + deltaF)
}

// CorrectPhaseNoise removes the relative phase noise from downsampled
// symbols using a recovered pilot tone. The tone's unwrapped phase error is
// optionally smoothed with a moving average of filterSize samples, sampled
// at the symbol instants, and applied as exp(-i·phase).
func CorrectPhaseNoise(symbols []complex128, samplingPoint int, sps float64, tone []complex128, frequency, rate float64, filterSize int) []complex128 {
	diff := phaseNoise(tone, frequency, rate)
	if filterSize > 0 {
		diff = movingAverage(diff, filterSize)
	}
	cd := make([]complex128, len(diff))
	for i, p := range diff {
		cd[i] = complex(p, 0)
	}
	sampled := Downsample(cd, samplingPoint, sps)

	out := make([]complex128, len(symbols))
	for i := range symbols {
		if i < len(sampled) {
			out[i] = symbols[i] * cmplx.Exp(complex(0, -real(sampled[i])))
		} else {
			out[i] = symbols[i]
		}
	}
	return out
}
