package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cvqkd/dsp"
)

const validYAML = `
serial_number: bob-001
address: ws://localhost:8181
frame:
  quantum:
    symbol_rate: 100.0e6
    num_symbols: 1000000
    frequency_shift: 100.0e6
    roll_off: 0.5
  pilots:
    frequencies: [200.0e6, 220.0e6]
  sequence:
    root: 5
    length: 3989
bob:
  adc_rate: 2500.0e6
  dac_rate: 500.0e6
  eta: 0.8
  dsp:
    process_subframes: true
    subframe_length: 1000
    abort_clock_recovery_threshold: 0.001
    exclusion_zones:
      - low: 0
        high: 10.0e6
  parameters_estimation:
    ratio: 0.3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bob.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bob.DSP.FIRSize != dsp.DefaultFIRSize {
		t.Errorf("fir size %d, want %d", cfg.Bob.DSP.FIRSize, dsp.DefaultFIRSize)
	}
	if cfg.Bob.DSP.ToneCutoff != dsp.DefaultToneCutoff {
		t.Errorf("tone cutoff %v, want %v", cfg.Bob.DSP.ToneCutoff, dsp.DefaultToneCutoff)
	}
	if cfg.Bob.DSP.BeatEstimationSamples != dsp.DefaultBeatSamples {
		t.Errorf("beat samples %d, want %d", cfg.Bob.DSP.BeatEstimationSamples, dsp.DefaultBeatSamples)
	}
	if cfg.Frame.Sequence.Rate != cfg.Bob.DACRate {
		t.Errorf("sequence rate %v, want DAC rate %v", cfg.Frame.Sequence.Rate, cfg.Bob.DACRate)
	}
	if cfg.Bob.ParametersEstimation.Beta != 0.95 {
		t.Errorf("beta %v, want 0.95", cfg.Bob.ParametersEstimation.Beta)
	}
	if cfg.Bob.ParametersEstimation.Ratio != 0.3 {
		t.Errorf("ratio %v, want 0.3 from file", cfg.Bob.ParametersEstimation.Ratio)
	}
}

func TestPipelineParams(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	p := cfg.PipelineParams()
	if p.SymbolRate != 100e6 || p.ADCRate != 2500e6 || p.NumSymbols != 1000000 {
		t.Errorf("rates not carried over: %+v", p)
	}
	if p.NumPilots != 2 || len(p.PilotFrequencies) != 2 {
		t.Errorf("pilots not carried over: %+v", p)
	}
	if p.ClockShared || p.LOShared {
		t.Errorf("sharing flags should default to false")
	}
	if len(p.PilotExclusions) != 1 || p.PilotExclusions[0].High != 10e6 {
		t.Errorf("exclusion zones not carried over: %+v", p.PilotExclusions)
	}
	if p.Schema != dsp.SinglePolarisationRFHeterodyne {
		t.Errorf("schema %v", p.Schema)
	}
}

func TestValidateRejections(t *testing.T) {
	tcs := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero symbol rate", func(c *Config) { c.Frame.Quantum.SymbolRate = 0 }},
		{"negative adc rate", func(c *Config) { c.Bob.ADCRate = -1 }},
		{"roll-off at one", func(c *Config) { c.Frame.Quantum.RollOff = 1 }},
		{"no pilots", func(c *Config) { c.Frame.Pilots.Frequencies = nil }},
		{"one pilot in general mode", func(c *Config) {
			c.Frame.Pilots.Frequencies = c.Frame.Pilots.Frequencies[:1]
			c.Bob.ClockSharing = false
			c.Bob.LOSharing = false
		}},
		{"pilot above nyquist", func(c *Config) {
			c.Frame.Pilots.Frequencies = []float64{c.Bob.ADCRate}
			c.Bob.ClockSharing = true
			c.Bob.LOSharing = true
		}},
		{"eta above one", func(c *Config) { c.Bob.Eta = 1.5 }},
		{"subframes without length", func(c *Config) { c.Bob.DSP.SubframeLength = 0 }},
		{"unknown schema", func(c *Config) { c.Bob.DSP.Schema = "dual_polarisation" }},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, validYAML))
			if err != nil {
				t.Fatal(err)
			}
			tc.mod(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Fatalf("got %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
