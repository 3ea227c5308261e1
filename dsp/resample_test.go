package dsp

import (
	"math"
	"testing"

	"pgregory.net/rapid"
)

func TestRoundHalfDown(t *testing.T) {
	tcs := []struct {
		x    float64
		want int
	}{
		{0, 0},
		{0.4, 0},
		{0.5, 0},
		{0.6, 1},
		{1.5, 1},
		{2.5, 2},
		{-0.5, -1},
		{-0.4, 0},
		{-1.5, -2},
		{10.49, 10},
	}
	for _, tc := range tcs {
		if got := roundHalfDown(tc.x); got != tc.want {
			t.Errorf("roundHalfDown(%v) = %d, want %d", tc.x, got, tc.want)
		}
	}
}

func TestRoundHalfDownProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		k := rapid.IntRange(-1000000, 1000000).Draw(t, "k")
		if got := roundHalfDown(float64(k)); got != k {
			t.Fatalf("roundHalfDown(%d) = %d", k, got)
		}
		// Exact .5 ties always break downward, never to even.
		if got := roundHalfDown(float64(k) + 0.5); got != k {
			t.Fatalf("roundHalfDown(%d.5) = %d, want %d", k, got, k)
		}
		x := rapid.Float64Range(-1e6, 1e6).Draw(t, "x")
		got := roundHalfDown(x)
		if float64(got) > x+0.5 || float64(got) < x-0.5 {
			t.Fatalf("roundHalfDown(%v) = %d is not the nearest integer", x, got)
		}
	})
}

func seq(n int) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(float64(i), 0)
	}
	return out
}

func TestDownsampleInt(t *testing.T) {
	got := Downsample(seq(10), 1, 3)
	want := []complex128{1, 4, 7}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownsampleFractional(t *testing.T) {
	// Indices 0, 2.5, 5, 7.5 with half-down rounding select 0, 2, 5, 7.
	got := Downsample(seq(10), 0, 2.5)
	want := []complex128{0, 2, 5, 7}
	if len(got) != len(want) {
		t.Fatalf("got %d samples, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestDownsampleIndicesLimit(t *testing.T) {
	idx := downsampleIndices(100, 3, 9.7, 4)
	if len(idx) != 4 {
		t.Fatalf("got %d indices, want 4", len(idx))
	}
	for k, i := range idx {
		want := roundHalfDown(3 + 9.7*float64(k))
		if i != want {
			t.Errorf("index %d: got %d, want %d", k, i, want)
		}
	}
}

func TestDownsampleIndicesMatchDownsample(t *testing.T) {
	data := seq(57)
	for _, factor := range []float64{3, 4.25, 9.7} {
		got := downsampleIndices(len(data), 2, factor, 0)
		samples := Downsample(data, 2, factor)
		if len(got) != len(samples) {
			t.Fatalf("factor %v: %d indices vs %d samples", factor, len(got), len(samples))
		}
		for k := range got {
			if data[got[k]] != samples[k] {
				t.Errorf("factor %v, k=%d: index %d does not match sample %v", factor, k, got[k], samples[k])
			}
		}
	}
}

func TestBestSamplingPoint(t *testing.T) {
	// Impulses at phase 3 of a period-10 grid: that phase has maximal
	// variance, every other phase is constant zero.
	data := make([]complex128, 200)
	for i := 3; i < len(data); i += 10 {
		data[i] = complex(math.Pow(-1, float64(i)), 0)
	}
	if got := BestSamplingPoint(data, 10); got != 3 {
		t.Errorf("integer sps: got phase %d, want 3", got)
	}

	// Same construction on a fractional grid.
	frac := make([]complex128, 200)
	for _, i := range downsampleIndices(len(frac), 3, 10.5, 0) {
		frac[i] = complex(math.Pow(-1, float64(i)), 0)
	}
	if got := BestSamplingPoint(frac, 10.5); got != 3 {
		t.Errorf("fractional sps: got phase %d, want 3", got)
	}
}

func TestComplexVariance(t *testing.T) {
	// Population convention: divide by N.
	data := []complex128{1, -1, 1i, -1i}
	if got := complexVariance(data); math.Abs(got-1) > 1e-12 {
		t.Errorf("got %v, want 1", got)
	}
	if got := complexVariance(nil); got != 0 {
		t.Errorf("empty: got %v, want 0", got)
	}
}
