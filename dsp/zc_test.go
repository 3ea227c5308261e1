package dsp

import (
	"math/cmplx"
	"math/rand"
	"testing"
)

func TestZadoffChuUnitModulus(t *testing.T) {
	for _, length := range []int{139, 1021} {
		seq := ZadoffChu(5, length)
		for i, v := range seq {
			if d := cmplx.Abs(v) - 1; d > 1e-12 || d < -1e-12 {
				t.Fatalf("length %d, chip %d: |zc| = %v", length, i, cmplx.Abs(v))
			}
		}
	}
}

func TestSynchronize(t *testing.T) {
	const (
		root   = 5
		length = 139
		offset = 3000
	)
	rng := rand.New(rand.NewSource(7))

	for _, resample := range []int{1, 2, 4} {
		ref := repeatSamples(ZadoffChu(root, length), resample)
		data := make([]complex128, 12000)
		for i := range data {
			data[i] = complex(0.2*rng.NormFloat64(), 0.2*rng.NormFloat64())
		}
		for i, v := range ref {
			data[offset+i] += complex(1.5, 0) * v
		}

		begin, end := Synchronize(data, root, length, float64(resample))
		if begin < offset-2 || begin > offset+2 {
			t.Errorf("resample %d: begin = %d, want %d (±2)", resample, begin, offset)
		}
		if end-begin != len(ref) {
			t.Errorf("resample %d: range length %d, want %d", resample, end-begin, len(ref))
		}
	}
}

func TestSynchronizeFractionalResample(t *testing.T) {
	// The reference length rounds to the nearest repetition count.
	ref := repeatSamples(ZadoffChu(5, 139), 4)
	data := make([]complex128, 8000)
	for i, v := range ref {
		data[2000+i] = complex(1.5, 0) * v
	}
	begin, end := Synchronize(data, 5, 139, 3.9998)
	if begin < 1998 || begin > 2002 {
		t.Errorf("begin = %d, want 2000 (±2)", begin)
	}
	if end-begin != len(ref) {
		t.Errorf("range length %d, want %d", end-begin, len(ref))
	}
}
