package dsp

import (
	"math"
	"math/cmplx"
	"testing"
)

func tone(n int, freq, amp, rate float64) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(amp, 0) * cmplx.Exp(complex(0, 2*math.Pi*freq*float64(i)/rate))
	}
	return out
}

func addTo(dst, src []complex128) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func TestFindOnePilot(t *testing.T) {
	const rate = 1e8
	data := tone(10000, 20e6, 1, rate)
	addTo(data, tone(10000, 30e6, 0.5, rate))

	if got := FindOnePilot(data, rate, nil); got != 20e6 {
		t.Errorf("got %v Hz, want 20 MHz", got)
	}
	excl := []FrequencyBand{{Low: 19e6, High: 21e6}}
	if got := FindOnePilot(data, rate, excl); got != 30e6 {
		t.Errorf("with exclusion: got %v Hz, want 30 MHz", got)
	}
}

func TestFindTwoPilots(t *testing.T) {
	const rate = 1e8
	data := tone(10000, 20e6, 1, rate)
	// A strong spur inside the guard band must not be taken for the
	// second pilot.
	addTo(data, tone(10000, 21e6, 0.9, rate))
	addTo(data, tone(10000, 30e6, 0.8, rate))

	f1, f2 := FindTwoPilots(data, rate, DefaultPilotGuard, nil)
	if f1 != 20e6 || f2 != 30e6 {
		t.Errorf("got (%v, %v), want (20 MHz, 30 MHz)", f1, f2)
	}
}

func TestFindTwoPilotsOrdering(t *testing.T) {
	const rate = 1e8
	// Stronger pilot at the higher frequency; the pair still comes back
	// ascending.
	data := tone(10000, 35e6, 1, rate)
	addTo(data, tone(10000, 15e6, 0.6, rate))

	f1, f2 := FindTwoPilots(data, rate, DefaultPilotGuard, nil)
	if f1 != 15e6 || f2 != 35e6 {
		t.Errorf("got (%v, %v), want (15 MHz, 35 MHz)", f1, f2)
	}
}

func TestEquivalentRate(t *testing.T) {
	const (
		rate  = 1e8
		f0    = 25e6
		delta = 1e-4
	)
	// A pilot emitted at f0 by a transmitter whose clock runs a factor
	// 1+delta fast lands at f0*(1+delta).
	data := tone(50000, f0*(1+delta), 1, rate)
	got := EquivalentRate(data, f0, rate, 500, 3e6)
	want := rate * f0 / (f0 + f0*delta)
	if math.Abs(got-want) > 100 {
		t.Errorf("got %v Hz, want %v Hz (±100)", got, want)
	}
}

func TestPhaseNoiseFlatForIdealTone(t *testing.T) {
	const (
		rate = 1e8
		f    = 25e6
	)
	// A long capture: the ideal-tone phase reaches hundreds of thousands of
	// radians, so the reduction must stay exact (and cheap) far from zero.
	n := 200000
	data := tone(n, f, 1, rate)
	diff := phaseNoise(data, f, rate)
	for i, d := range diff {
		if math.Abs(d) > 1e-6 {
			t.Fatalf("sample %d: phase error %v rad, want ~0", i, d)
		}
	}
}

func TestCorrectPhaseNoiseConstantOffset(t *testing.T) {
	const (
		rate  = 1e8
		f     = 25e6
		theta = 0.8
		sps   = 10
	)
	n := 2000
	pilot := make([]complex128, n)
	for i := range pilot {
		pilot[i] = cmplx.Exp(complex(0, 2*math.Pi*f*float64(i)/rate+theta))
	}

	symbols := make([]complex128, n/sps)
	want := make([]complex128, len(symbols))
	for i := range symbols {
		want[i] = complex(float64(i%7)-3, float64(i%3)-1)
		symbols[i] = want[i] * cmplx.Exp(complex(0, theta))
	}

	got := CorrectPhaseNoise(symbols, 0, sps, pilot, f, rate, 0)
	for i := range got {
		if cmplx.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("symbol %d: got %v, want %v", i, got[i], want[i])
		}
	}
}
