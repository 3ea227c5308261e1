package dsp

import (
	"math"
	"math/cmplx"
	"math/rand"
	"testing"
)

func TestLowPassFIRUnitDCGain(t *testing.T) {
	for _, taps := range []int{51, 500} {
		fir := lowPassFIR(taps, 0.1)
		sum := 0.0
		for _, h := range fir {
			sum += h
		}
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("%d taps: DC gain %v, want 1", taps, sum)
		}
	}
}

func TestRootRaisedCosineSymmetric(t *testing.T) {
	taps := rootRaisedCosine(101, 0.3, 1e-7, 1e8)
	for i := 0; i < len(taps)/2; i++ {
		if math.Abs(taps[i]-taps[len(taps)-1-i]) > 1e-9 {
			t.Fatalf("taps %d and %d differ: %v vs %v", i, len(taps)-1-i, taps[i], taps[len(taps)-1-i])
		}
	}
}

func TestMatchedFilterPreservesLength(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	data := make([]complex128, 512)
	for i := range data {
		data[i] = complex(rng.NormFloat64(), rng.NormFloat64())
	}
	out := matchedFilter(data, 10, 0.3, 1e7, 1e8)
	if len(out) != len(data) {
		t.Fatalf("got %d samples, want %d", len(out), len(data))
	}
}

func TestFrequencyShiftMovesToneToBaseband(t *testing.T) {
	const (
		rate = 1e8
		f    = 2.3e7
	)
	data := make([]complex128, 1000)
	for n := range data {
		data[n] = cmplx.Exp(complex(0, 2*math.Pi*f*float64(n)/rate))
	}
	out := frequencyShift(data, f, rate)
	for n, v := range out {
		if cmplx.Abs(v-out[0]) > 1e-9 {
			t.Fatalf("sample %d not constant after shift: %v vs %v", n, v, out[0])
		}
	}
}

func TestMovingAverageMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	data := make([]float64, 40)
	for i := range data {
		data[i] = rng.NormFloat64()
	}

	reflect := func(i, n int) int {
		for i < 0 || i >= n {
			if i < 0 {
				i = -i - 1
			} else {
				i = 2*n - i - 1
			}
		}
		return i
	}
	for _, w := range []int{1, 4, 5, 13} {
		got := movingAverage(data, w)
		lw := w / 2
		for i := range data {
			sum := 0.0
			for j := -lw; j < w-lw; j++ {
				sum += data[reflect(i+j, len(data))]
			}
			want := sum / float64(w)
			if math.Abs(got[i]-want) > 1e-9 {
				t.Fatalf("w=%d, i=%d: got %v, want %v", w, i, got[i], want)
			}
		}
	}
}

func TestUnwrapRecoversRamp(t *testing.T) {
	const step = 0.9
	n := 100
	wrapped := make([]float64, n)
	for i := range wrapped {
		wrapped[i] = wrapPhase(step * float64(i))
	}
	out := unwrap(wrapped)
	for i := range out {
		if math.Abs(out[i]-step*float64(i)) > 1e-9 {
			t.Fatalf("sample %d: got %v, want %v", i, out[i], step*float64(i))
		}
	}
}

func TestWrapPhase(t *testing.T) {
	tcs := []struct{ in, want float64 }{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-5 * math.Pi / 2, -math.Pi / 2},
	}
	for _, tc := range tcs {
		if got := wrapPhase(tc.in); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("wrapPhase(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
