package dsp

import (
	"fmt"
)

// ProcessCalibration applies the symbol-recovery chain to a calibration
// capture (electronic noise or electronic plus shot noise) using the exact
// parameter snapshot of a previous signal run. Synchronization, clock
// recovery, sampling-phase search and phase correction are skipped:
// calibration captures carry no frame structure, only noise whose variance
// must be measured through the same filters as the signal, so downsampling
// always starts at offset zero.
func ProcessCalibration(data []complex128, sp SpecialParams) ([]complex128, error) {
	if sp.Schema != SinglePolarisationRFHeterodyne {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedSchema, sp.Schema)
	}
	if len(data) == 0 {
		return nil, ErrEmptyCapture
	}
	sps := sp.Rate / sp.SymbolRate
	base := frequencyShift(data, sp.FrequencyShift, sp.Rate)
	filtered := matchedFilter(base, sps, sp.RollOff, sp.SymbolRate, sp.Rate)
	return Downsample(filtered, 0, sps), nil
}
