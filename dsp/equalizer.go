package dsp

import (
	"math"
	"math/cmplx"
)

// CMAEqualizer is a constant-modulus adaptive equalizer. Training slides a
// window over the symbol stream and descends the generalized CMA cost
// |(|y|^p - R)|^q; equalization then applies the converged taps to the whole
// stream. P = Q = 2 gives the classic Godard algorithm.
type CMAEqualizer struct {
	Length    int
	Step      float64
	P, Q      float64
	Radius    float64
	Threshold float64
}

// NewCMAEqualizer returns an equalizer with the classic quadratic cost.
func NewCMAEqualizer(length int, step, radius, threshold float64) *CMAEqualizer {
	return &CMAEqualizer{
		Length:    length,
		Step:      step,
		P:         2,
		Q:         2,
		Radius:    radius,
		Threshold: threshold,
	}
}

// Equalize trains the taps on symbols and returns the equalized stream of
// len(symbols)-Length+1 outputs. Inputs shorter than the tap vector are
// returned unchanged.
func (e *CMAEqualizer) Equalize(symbols []complex128) []complex128 {
	l := e.Length
	if l <= 1 || len(symbols) < l {
		out := make([]complex128, len(symbols))
		copy(out, symbols)
		return out
	}

	w := make([]complex128, l)
	w[l-1] = 1

	for i := l; i <= len(symbols); i++ {
		win := symbols[i-l : i]
		y := dotConj(w, win)
		mag := cmplx.Abs(y)
		scale := math.Pow(math.Pow(mag, e.P)-e.Radius, e.Q-1) * math.Pow(mag, e.P-2)
		err := complex(scale, 0) * cmplx.Conj(y)
		if cmplx.Abs(err) <= e.Threshold {
			break
		}
		step := complex(e.Step, 0)
		for j := range w {
			w[j] -= step * err * win[j]
		}
	}

	out := make([]complex128, len(symbols)-l+1)
	for k := range out {
		out[k] = dotConj(w, symbols[k:k+l])
	}
	return out
}

func dotConj(w, x []complex128) complex128 {
	var y complex128
	for i := range w {
		y += cmplx.Conj(w[i]) * x[i]
	}
	return y
}
