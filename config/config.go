// Package config loads and validates the receiver configuration from YAML
// and bridges it to the signal-processing parameter set.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cvqkd/dsp"
)

var ErrInvalid = errors.New("config: invalid configuration")

// Config is the complete receiver configuration.
type Config struct {
	SerialNumber string      `yaml:"serial_number"`
	Address      string      `yaml:"address"`
	Frame        FrameConfig `yaml:"frame"`
	Bob          BobConfig   `yaml:"bob"`
}

// FrameConfig describes what the transmitter emits each frame.
type FrameConfig struct {
	Quantum  QuantumConfig  `yaml:"quantum"`
	Pilots   PilotsConfig   `yaml:"pilots"`
	Sequence SequenceConfig `yaml:"sequence"`
}

type QuantumConfig struct {
	SymbolRate     float64 `yaml:"symbol_rate"`
	NumSymbols     int     `yaml:"num_symbols"`
	FrequencyShift float64 `yaml:"frequency_shift"`
	RollOff        float64 `yaml:"roll_off"`
}

type PilotsConfig struct {
	Frequencies []float64 `yaml:"frequencies"`
}

// SequenceConfig is the synchronization sequence descriptor. A zero rate
// defaults to the transmitter DAC rate.
type SequenceConfig struct {
	Root   int     `yaml:"root"`
	Length int     `yaml:"length"`
	Rate   float64 `yaml:"rate"`
}

// BobConfig gathers everything specific to the receiver station.
type BobConfig struct {
	ADCRate                       float64                    `yaml:"adc_rate"`
	DACRate                       float64                    `yaml:"dac_rate"`
	Eta                           float64                    `yaml:"eta"`
	ClockSharing                  bool                       `yaml:"clock_sharing"`
	LOSharing                     bool                       `yaml:"lo_sharing"`
	AutomaticShotNoiseCalibration bool                       `yaml:"automatic_shot_noise_calibration"`
	DSP                           DSPConfig                  `yaml:"dsp"`
	Switch                        SwitchConfig               `yaml:"switch"`
	PolarisationRecovery          PolarisationRecoveryConfig `yaml:"polarisation_recovery"`
	ParametersEstimation          EstimationConfig           `yaml:"parameters_estimation"`
}

type DSPConfig struct {
	ProcessSubframes      bool                `yaml:"process_subframes"`
	SubframeLength        int                 `yaml:"subframe_length"`
	FIRSize               int                 `yaml:"fir_size"`
	ToneCutoff            float64             `yaml:"tone_filtering_cutoff"`
	AbortClockRecovery    float64             `yaml:"abort_clock_recovery_threshold"`
	ExclusionZones        []dsp.FrequencyBand `yaml:"exclusion_zones"`
	PhaseFilterSize       int                 `yaml:"pilot_phase_filter_size"`
	BeatEstimationSamples int                 `yaml:"beat_estimation_sample_count"`
	AnglePrecision        float64             `yaml:"angle_precision"`
	Schema                string              `yaml:"schema"`
	Debug                 bool                `yaml:"debug"`
}

// SwitchConfig controls the optical switch used for automatic shot-noise
// calibration. A zero switching time disables it.
type SwitchConfig struct {
	SwitchingTime    float64 `yaml:"switching_time"`
	SignalState      int     `yaml:"signal_state"`
	CalibrationState int     `yaml:"calibration_state"`
}

type PolarisationRecoveryConfig struct {
	Use bool `yaml:"use"`
}

type EstimationConfig struct {
	Ratio float64 `yaml:"ratio"`
	Beta  float64 `yaml:"beta"`
}

const schemaSingle = "single_polarisation_rf_heterodyne"

// Load reads, defaults and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills the optional fields a configuration may omit.
func (c *Config) ApplyDefaults() {
	if c.Bob.DSP.FIRSize == 0 {
		c.Bob.DSP.FIRSize = dsp.DefaultFIRSize
	}
	if c.Bob.DSP.ToneCutoff == 0 {
		c.Bob.DSP.ToneCutoff = dsp.DefaultToneCutoff
	}
	if c.Bob.DSP.BeatEstimationSamples == 0 {
		c.Bob.DSP.BeatEstimationSamples = dsp.DefaultBeatSamples
	}
	if c.Bob.DSP.AnglePrecision == 0 {
		c.Bob.DSP.AnglePrecision = dsp.DefaultAnglePrecision
	}
	if c.Bob.DSP.Schema == "" {
		c.Bob.DSP.Schema = schemaSingle
	}
	if c.Frame.Sequence.Rate == 0 {
		c.Frame.Sequence.Rate = c.Bob.DACRate
	}
	if c.Bob.Eta == 0 {
		c.Bob.Eta = 1
	}
	if c.Bob.ParametersEstimation.Ratio == 0 {
		c.Bob.ParametersEstimation.Ratio = 0.5
	}
	if c.Bob.ParametersEstimation.Beta == 0 {
		c.Bob.ParametersEstimation.Beta = 0.95
	}
}

// Validate checks the cross-field consistency of the configuration.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}
	if c.Frame.Quantum.SymbolRate <= 0 {
		return fail("symbol rate must be positive, got %v", c.Frame.Quantum.SymbolRate)
	}
	if c.Bob.ADCRate <= 0 {
		return fail("ADC rate must be positive, got %v", c.Bob.ADCRate)
	}
	if c.Bob.DACRate <= 0 {
		return fail("DAC rate must be positive, got %v", c.Bob.DACRate)
	}
	if c.Frame.Quantum.NumSymbols <= 0 {
		return fail("number of symbols must be positive, got %d", c.Frame.Quantum.NumSymbols)
	}
	if r := c.Frame.Quantum.RollOff; r < 0 || r >= 1 {
		return fail("roll-off must be in [0, 1), got %v", r)
	}
	if c.Frame.Sequence.Length <= 0 {
		return fail("sequence length must be positive, got %d", c.Frame.Sequence.Length)
	}
	need := 1
	if !c.Bob.ClockSharing && !c.Bob.LOSharing {
		need = 2
	}
	if len(c.Frame.Pilots.Frequencies) < need {
		return fail("need at least %d pilot(s), got %d", need, len(c.Frame.Pilots.Frequencies))
	}
	for _, f := range c.Frame.Pilots.Frequencies {
		if f <= 0 || f >= c.Bob.ADCRate/2 {
			return fail("pilot frequency %v outside (0, Nyquist)", f)
		}
	}
	if c.Bob.Eta <= 0 || c.Bob.Eta > 1 {
		return fail("eta must be in (0, 1], got %v", c.Bob.Eta)
	}
	if r := c.Bob.ParametersEstimation.Ratio; r <= 0 || r > 1 {
		return fail("estimation ratio must be in (0, 1], got %v", r)
	}
	if b := c.Bob.ParametersEstimation.Beta; b <= 0 || b > 1 {
		return fail("reconciliation efficiency must be in (0, 1], got %v", b)
	}
	if c.Bob.DSP.ProcessSubframes && c.Bob.DSP.SubframeLength <= 0 {
		return fail("subframe processing enabled with subframe length %d", c.Bob.DSP.SubframeLength)
	}
	if c.Bob.DSP.Schema != schemaSingle {
		return fail("unsupported detection schema %q", c.Bob.DSP.Schema)
	}
	return nil
}

// PipelineParams assembles the signal-processing parameter set from the
// configuration.
func (c *Config) PipelineParams() dsp.Params {
	return dsp.Params{
		SymbolRate:            c.Frame.Quantum.SymbolRate,
		DACRate:               c.Bob.DACRate,
		ADCRate:               c.Bob.ADCRate,
		NumSymbols:            c.Frame.Quantum.NumSymbols,
		RollOff:               c.Frame.Quantum.RollOff,
		FrequencyShift:        c.Frame.Quantum.FrequencyShift,
		NumPilots:             len(c.Frame.Pilots.Frequencies),
		PilotFrequencies:      c.Frame.Pilots.Frequencies,
		SequenceRoot:          c.Frame.Sequence.Root,
		SequenceLength:        c.Frame.Sequence.Length,
		SequenceRate:          c.Frame.Sequence.Rate,
		ClockShared:           c.Bob.ClockSharing,
		LOShared:              c.Bob.LOSharing,
		ProcessSubframes:      c.Bob.DSP.ProcessSubframes,
		SubframeLength:        c.Bob.DSP.SubframeLength,
		FIRSize:               c.Bob.DSP.FIRSize,
		ToneCutoff:            c.Bob.DSP.ToneCutoff,
		AbortClockRecovery:    c.Bob.DSP.AbortClockRecovery,
		PilotExclusions:       c.Bob.DSP.ExclusionZones,
		PhaseFilterSize:       c.Bob.DSP.PhaseFilterSize,
		BeatEstimationSamples: c.Bob.DSP.BeatEstimationSamples,
		Schema:                dsp.SinglePolarisationRFHeterodyne,
		Debug:                 c.Bob.DSP.Debug,
	}
}
