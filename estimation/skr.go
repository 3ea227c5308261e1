package estimation

import (
	"errors"
	"math"
)

var ErrInvalidChannel = errors.New("estimation: channel parameters out of range")

// SecretKeyRate returns the asymptotic secret key fraction, in bits per
// symbol, of the Gaussian-modulated coherent-state protocol with heterodyne
// detection and reverse reconciliation.
//
// va is the modulation variance in shot-noise units, transmittance the
// channel transmittance (detector efficiency excluded), xi the excess noise
// at the channel output, eta the detector efficiency, vel the electronic
// noise and beta the reconciliation efficiency. A negative return value
// means no key can be extracted at these parameters.
func SecretKeyRate(va, transmittance, xi, eta, vel, beta float64) (float64, error) {
	if va <= 0 || transmittance <= 0 || transmittance > 1 || eta <= 0 || eta > 1 ||
		vel < 0 || xi < 0 || beta < 0 || beta > 1 {
		return 0, ErrInvalidChannel
	}

	t := transmittance
	v := va + 1
	chiLine := 1/t - 1 + xi
	chiHet := (1 + (1-eta) + 2*vel) / eta
	chiTot := chiLine + chiHet/t

	mutual := math.Log2((v + chiTot) / (1 + chiTot))

	a := v*v*(1-2*t) + 2*t + t*t*(v+chiLine)*(v+chiLine)
	b := t * t * (v*chiLine + 1) * (v*chiLine + 1)
	sq := math.Sqrt(a*a - 4*b)
	nu1 := math.Sqrt((a + sq) / 2)
	nu2 := math.Sqrt((a - sq) / 2)

	c := (a*chiHet + v*math.Sqrt(b) + t*(v+chiLine)) / (t * (v + chiTot))
	d := math.Sqrt(b) * (v + math.Sqrt(b)*chiHet) / (t * (v + chiTot))
	sq2 := math.Sqrt(c*c - 4*d)
	nu3 := math.Sqrt((c + sq2) / 2)
	nu4 := math.Sqrt((c - sq2) / 2)

	holevo := g(nu1) + g(nu2) - g(nu3) - g(nu4)
	return beta*mutual - holevo, nil
}

// g is the von Neumann entropy of a thermal state with symplectic
// eigenvalue x. Values numerically below one are treated as vacuum.
func g(x float64) float64 {
	if x <= 1 {
		return 0
	}
	return (x+1)/2*math.Log2((x+1)/2) - (x-1)/2*math.Log2((x-1)/2)
}
