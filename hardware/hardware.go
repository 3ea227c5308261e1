// Package hardware abstracts the receiver's devices. The orchestrator only
// sees these interfaces; real drivers live outside this repository and the
// simulated implementations below stand in for them in tests and dry runs.
package hardware

// An ADC captures a block of complex baseband samples per acquisition. The
// expected cycle is Arm, Trigger, Data, Stop; Data is only valid between
// Trigger and Stop.
type ADC interface {
	// Arm prepares the next acquisition.
	Arm() error
	// Trigger starts the armed acquisition.
	Trigger() error
	// Data returns the samples of the current acquisition.
	Data() ([]complex128, error)
	// Stop ends the current acquisition.
	Stop() error
}

// A Laser is the receiver's local oscillator source.
type Laser interface {
	On() error
	Off() error
}

// A Switch routes the optical input between the signal path and the
// calibration (vacuum) path.
type Switch interface {
	SetState(state int) error
}

// A PowerMeter reads the optical power on the monitoring tap, in watts.
type PowerMeter interface {
	Read() (float64, error)
}

// A PolarisationController rotates the input polarisation; positions are in
// radians.
type PolarisationController interface {
	SetPosition(position float64) error
	Position() (float64, error)
}
