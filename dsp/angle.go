package dsp

import (
	"errors"
	"math"
	"math/cmplx"
)

// DefaultAnglePrecision is the angular step of the global phase search.
const DefaultAnglePrecision = 0.001

// ErrNoPositiveCovariance means no rotation produced a positive correlation
// between the revealed and recovered symbols. The frame is unusable and
// should be discarded rather than estimated with a spurious alignment.
var ErrNoPositiveCovariance = errors.New("dsp: no rotation yields positive covariance")

// FindGlobalAngle searches for the rotation that aligns the recovered
// symbols with the symbols the transmitter revealed, by exhaustive scan of
// [-π, π) with the given angular step. The objective at each angle is the
// real part of the complex covariance, the sum of the two per-quadrature
// covariances, so a perfectly correlated pair scores the full Var(sent).
// It returns the best angle and the covariance achieved there.
func FindGlobalAngle(received, sent []complex128, precision float64) (float64, float64, error) {
	if precision <= 0 {
		precision = DefaultAnglePrecision
	}
	n := len(received)
	if len(sent) < n {
		n = len(sent)
	}
	if n == 0 {
		return 0, 0, ErrNoPositiveCovariance
	}

	sentRe := make([]float64, n)
	sentIm := make([]float64, n)
	for i := 0; i < n; i++ {
		sentRe[i] = real(sent[i])
		sentIm[i] = imag(sent[i])
	}

	steps := int(math.Ceil(2 * math.Pi / precision))
	bestAngle := 0.0
	bestCov := math.Inf(-1)
	rotRe := make([]float64, n)
	rotIm := make([]float64, n)
	for k := 0; k < steps; k++ {
		angle := -math.Pi + float64(k)*2*math.Pi/float64(steps)
		r := cmplx.Exp(complex(0, angle))
		for i := 0; i < n; i++ {
			v := received[i] * r
			rotRe[i] = real(v)
			rotIm[i] = imag(v)
		}
		if c := covariance(rotRe, sentRe) + covariance(rotIm, sentIm); c > bestCov {
			bestAngle, bestCov = angle, c
		}
	}
	if bestCov <= 0 {
		return 0, 0, ErrNoPositiveCovariance
	}
	return bestAngle, bestCov, nil
}

// covariance is the population covariance of two equal-length series.
func covariance(x, y []float64) float64 {
	n := float64(len(x))
	var mx, my float64
	for i := range x {
		mx += x[i]
		my += y[i]
	}
	mx /= n
	my /= n
	sum := 0.0
	for i := range x {
		sum += (x[i] - mx) * (y[i] - my)
	}
	return sum / n
}
