package estimation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaussianSymbols(rng *rand.Rand, n int, sigma float64) []complex128 {
	out := make([]complex128, n)
	for i := range out {
		out[i] = complex(sigma*rng.NormFloat64(), sigma*rng.NormFloat64())
	}
	return out
}

func TestCovarianceEstimate(t *testing.T) {
	const (
		n            = 200000
		photonNumber = 5.0
		shotVar      = 1.0
		velTrue      = 0.1
		xiTrue       = 0.05
		tTrue        = 0.45
	)
	rng := rand.New(rand.NewSource(51))

	// Alice's symbols have unit quadrature variance in arbitrary units;
	// the photon number fixes the conversion to shot-noise units.
	alice := gaussianSymbols(rng, n, 1)
	gain := math.Sqrt(photonNumber * tTrue)

	// Bob measures the attenuated symbols plus shot, electronic and
	// excess noise, all in units where the shot variance is shotVar.
	noiseSigma := math.Sqrt(shotVar * (1 + velTrue + xiTrue))
	bob := make([]complex128, n)
	for i := range bob {
		noise := complex(noiseSigma*rng.NormFloat64(), noiseSigma*rng.NormFloat64())
		bob[i] = complex(gain*math.Sqrt(shotVar), 0)*alice[i] + noise
	}

	elec := gaussianSymbols(rng, n, math.Sqrt(velTrue*shotVar))
	elecShot := gaussianSymbols(rng, n, math.Sqrt((1+velTrue)*shotVar))

	res, err := Covariance{}.Estimate(alice, bob, elec, elecShot, photonNumber)
	require.NoError(t, err)

	assert.InDelta(t, tTrue, res.Transmittance, 0.02)
	assert.InDelta(t, xiTrue, res.ExcessNoise, 0.03)
	assert.InDelta(t, velTrue, res.ElectronicNoise, 0.01)
	assert.InDelta(t, shotVar, res.ShotVariance, 0.02)
}

func TestCovarianceEstimateErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(52))
	sym := gaussianSymbols(rng, 100, 1)

	_, err := Covariance{}.Estimate(nil, sym, sym, sym, 1)
	assert.ErrorIs(t, err, ErrNoSymbols)

	// Electronic noise larger than the combined capture means the shot
	// variance estimate is negative.
	big := gaussianSymbols(rng, 1000, 2)
	small := gaussianSymbols(rng, 1000, 0.5)
	_, err = Covariance{}.Estimate(sym, sym, big, small, 1)
	assert.ErrorIs(t, err, ErrNonPositiveShot)

	flat := make([]complex128, 100)
	_, err = Covariance{}.Estimate(flat, sym, small, big, 1)
	assert.ErrorIs(t, err, ErrDegenerateAlice)
}

func TestCovarianceEstimateTruncatesToShortest(t *testing.T) {
	rng := rand.New(rand.NewSource(53))
	alice := gaussianSymbols(rng, 5000, 1)
	bob := gaussianSymbols(rng, 4000, 1)
	elec := gaussianSymbols(rng, 1000, 0.3)
	elecShot := gaussianSymbols(rng, 1000, 1)

	_, err := Covariance{}.Estimate(alice, bob, elec, elecShot, 2)
	require.NoError(t, err)
}
