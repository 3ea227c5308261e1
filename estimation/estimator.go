// Package estimation turns revealed symbol pairs and calibration captures
// into channel parameters: transmittance, excess noise and electronic noise,
// all expressed in shot-noise units. It also provides the asymptotic secret
// key rate of the Gaussian-modulated heterodyne protocol.
package estimation

import (
	"errors"
	"math"
)

var (
	ErrNoSymbols       = errors.New("estimation: no symbols to estimate from")
	ErrNonPositiveShot = errors.New("estimation: shot noise variance is not positive")
	ErrDegenerateAlice = errors.New("estimation: transmitted symbols have zero variance")
)

// Result holds the estimated channel parameters. Transmittance is the total
// transmittance, detector efficiency included. ExcessNoise is referred to
// the receiver side; ElectronicNoise is the variance of the detection
// electronics. Both noises are in shot-noise units.
type Result struct {
	Transmittance   float64
	ExcessNoise     float64
	ElectronicNoise float64
	ShotVariance    float64
}

// An Estimator computes channel parameters from the symbols the transmitter
// revealed, the matching recovered symbols and the two calibration captures
// processed through the same filters.
type Estimator interface {
	Estimate(alice, bob, electronic, electronicShot []complex128, photonNumber float64) (Result, error)
}

// Covariance is the default estimator: the channel gain comes from the
// covariance of the revealed and recovered quadratures, the noises from the
// variance of the residual after removing the correlated part.
type Covariance struct{}

// Estimate implements Estimator. Both quadratures of every complex symbol
// enter the statistics, so a stream of n symbols contributes 2n samples.
func (Covariance) Estimate(alice, bob, electronic, electronicShot []complex128, photonNumber float64) (Result, error) {
	n := len(alice)
	if len(bob) < n {
		n = len(bob)
	}
	if n == 0 || len(electronic) == 0 || len(electronicShot) == 0 {
		return Result{}, ErrNoSymbols
	}

	a := interleave(alice[:n])
	b := interleave(bob[:n])
	elec := interleave(electronic)
	elecShot := interleave(electronicShot)

	shot := variance(elecShot) - variance(elec)
	if shot <= 0 {
		return Result{}, ErrNonPositiveShot
	}
	vel := variance(elec) / shot

	// Normalize the received quadratures to shot-noise units.
	inv := 1 / math.Sqrt(shot)
	for i := range b {
		b[i] *= inv
	}

	varAlice := variance(a)
	if varAlice == 0 {
		return Result{}, ErrDegenerateAlice
	}
	factor := covariance(a, b) / varAlice

	residual := make([]float64, len(a))
	for i := range a {
		residual[i] = factor*a[i] - b[i]
	}
	excess := variance(residual) - 1 - vel

	// Squared conversion factor from the arbitrary units of the revealed
	// symbols to photon numbers.
	conversion := photonNumber / meanSquare(a)

	return Result{
		Transmittance:   factor * factor / conversion,
		ExcessNoise:     excess,
		ElectronicNoise: vel,
		ShotVariance:    shot,
	}, nil
}

// interleave flattens complex symbols into alternating real and imaginary
// parts.
func interleave(data []complex128) []float64 {
	out := make([]float64, 2*len(data))
	for i, v := range data {
		out[2*i] = real(v)
		out[2*i+1] = imag(v)
	}
	return out
}

// variance is the population variance, dividing by N. The calibration
// conventions depend on this; do not switch to the sample estimator.
func variance(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= float64(len(x))
	sum := 0.0
	for _, v := range x {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(x))
}

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

func meanSquare(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum / float64(len(x))
}
