// Package bob implements the receiver-side session orchestrator: it owns
// the hardware handles, the control channel to the transmitter and the
// calibration captures, and drives acquisition, signal recovery and
// parameter estimation frame by frame.
package bob

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"cvqkd/comm"
	"cvqkd/config"
	"cvqkd/hardware"
)

// Version is announced during identification; the server may refuse
// incompatible clients.
const Version = "0.1.0"

var (
	ErrIdentificationRefused = errors.New("bob: identification refused")
	ErrInitializationRefused = errors.New("bob: initialization refused")
	ErrMissingCalibration    = errors.New("bob: calibration captures missing")
	ErrEstimationRefused     = errors.New("bob: parameter estimation refused by peer")
	ErrTooManyFailures       = errors.New("bob: too many consecutive failed rounds")
)

// maxConsecutiveErrors aborts a multi-round session when this many rounds
// fail back to back.
const maxConsecutiveErrors = 5

// Devices bundles the hardware handles the orchestrator drives. Laser,
// Switch, PowerMeter and Polarisation may be nil when the corresponding
// feature is disabled in the configuration.
type Devices struct {
	ADC          hardware.ADC
	Laser        hardware.Laser
	Switch       hardware.Switch
	PowerMeter   hardware.PowerMeter
	Polarisation hardware.PolarisationController
}

// Results are the outputs of one completed frame. Transmittance includes
// the detector efficiency; TransmittanceChannel does not. Excess noise is
// given both referred to the receiver and to the transmitter.
type Results struct {
	FrameUUID            string
	PhotonNumber         float64
	Transmittance        float64
	TransmittanceChannel float64
	ExcessNoiseBob       float64
	ExcessNoiseAlice     float64
	ElectronicNoise      float64
	ShotVariance         float64
	SecretKeyRate        float64
}

// Bob is the receiver client. It is not safe for concurrent use; a session
// is a single sequential protocol conversation.
type Bob struct {
	cfg    *config.Config
	client *comm.Client
	dev    Devices
	logger *log.Logger
	rng    *rand.Rand

	// AcquisitionDelay is how long emission runs before the acquisition
	// is read back.
	AcquisitionDelay time.Duration

	frameUUID string

	electronicNoise     []complex128
	electronicShotNoise []complex128
	signal              []complex128

	symbols         []complex128
	aliceSymbols    []complex128
	indices         []int
	elecSymbols     []complex128
	elecShotSymbols []complex128
	photonNumber    float64
}

// New assembles an orchestrator from its collaborators. The configuration
// must already be validated.
func New(cfg *config.Config, client *comm.Client, dev Devices, logger *log.Logger) *Bob {
	if logger == nil {
		logger = log.Default()
	}
	return &Bob{
		cfg:              cfg,
		client:           client,
		dev:              dev,
		logger:           logger.WithPrefix("bob"),
		rng:              rand.New(rand.NewSource(time.Now().UnixNano())),
		AcquisitionDelay: time.Second,
	}
}

// OpenHardware powers the local oscillator up.
func (b *Bob) OpenHardware() error {
	if b.dev.Laser == nil {
		return nil
	}
	if err := b.dev.Laser.On(); err != nil {
		return fmt.Errorf("bob: enabling laser: %w", err)
	}
	return nil
}

// Close releases the hardware and the control channel.
func (b *Bob) Close() error {
	var errs []error
	if b.dev.Laser != nil {
		if err := b.dev.Laser.Off(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.client != nil {
		if err := b.client.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Identify announces the client to the server.
func (b *Bob) Identify() error {
	err := b.client.Expect(comm.IdentificationRequest,
		comm.IdentificationData{SerialNumber: b.cfg.SerialNumber, Version: Version},
		comm.IdentificationResponse, nil)
	if errors.Is(err, comm.ErrUnexpectedResponse) {
		return fmt.Errorf("%w: %v", ErrIdentificationRefused, err)
	}
	return err
}

// Initialize opens a new frame under a fresh UUID.
func (b *Bob) Initialize() error {
	b.frameUUID = uuid.NewString()
	b.logger.Info("initializing frame", "uuid", b.frameUUID)
	err := b.client.Expect(comm.InitializationRequest,
		comm.InitializationData{FrameUUID: b.frameUUID},
		comm.InitializationAccepted, nil)
	if errors.Is(err, comm.ErrUnexpectedResponse) {
		return fmt.Errorf("%w: %v", ErrInitializationRefused, err)
	}
	return err
}

// SetElectronicNoise installs a pre-recorded electronic noise capture
// (detector output with the local oscillator off).
func (b *Bob) SetElectronicNoise(data []complex128) {
	b.electronicNoise = data
}

// SetElectronicShotNoise installs a pre-recorded electronic plus shot noise
// capture (local oscillator on, signal input blocked).
func (b *Bob) SetElectronicShotNoise(data []complex128) {
	b.electronicShotNoise = data
}

// RequestParameterChange asks the transmitter to change one parameter
// between frames and mirrors the change locally when the receiver shares
// it.
func (b *Bob) RequestParameterChange(name string, value float64) error {
	err := b.client.Expect(comm.ChangeParameterRequest,
		comm.ParameterChangeData{Parameter: name, Value: value},
		comm.ParameterChanged, nil)
	if err != nil {
		return err
	}
	switch name {
	case "frequency_shift":
		b.cfg.Frame.Quantum.FrequencyShift = value
	case "roll_off":
		b.cfg.Frame.Quantum.RollOff = value
	case "subframe_length":
		b.cfg.Bob.DSP.SubframeLength = int(value)
	default:
		b.logger.Debug("parameter has no local mirror", "parameter", name)
	}
	return nil
}

// Results of the last processed frame that are useful between calls.
func (b *Bob) Symbols() []complex128 { return b.symbols }
