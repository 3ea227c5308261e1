// main.go runs the receiver against a control server for one or more frames
// and outputs a CSV line of channel estimates per frame. Acquisitions are
// replayed from capture files, recorded as interleaved little-endian float64
// quadrature pairs, so the same binary serves bench replays and hardware
// captures alike.
package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/charmbracelet/log"
	flag "github.com/spf13/pflag"

	"cvqkd/bob"
	"cvqkd/comm"
	"cvqkd/config"
	"cvqkd/hardware"
	"cvqkd/optimize"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to the receiver configuration.")
	captures   = flag.StringSlice("capture", nil,
		"Capture file to replay, one per frame, in acquisition order.")
	elecPath = flag.String("electronic-noise", "",
		"Capture of the detector with the local oscillator off.")
	elecShotPath = flag.String("electronic-shot-noise", "",
		"Capture of the detector with the signal input blocked. Unused when the switch calibrates shot noise automatically.")
	sweepParameter = flag.String("sweep", "",
		"Parameter to change between frames, e.g. frequency_shift.")
	sweepValues = flag.Float64Slice("sweep-values", nil,
		"Values of the swept parameter, one frame each.")
	repeats = flag.Int("repeat", 0,
		"Number of identical frames to run when not sweeping. Defaults to one per capture.")
	acquisitionDelay = flag.Duration("acquisition-delay", time.Second,
		"How long emission runs before the acquisition is read back.")
	verbose = flag.BoolP("verbose", "v", false, "Enable debug logging.")
)

func main() {
	flag.Parse()
	logger := log.Default()
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("loading configuration", "err", err)
	}
	if len(*captures) == 0 {
		logger.Fatal("at least one --capture file is required")
	}

	updater, err := schedule(len(*captures))
	if err != nil {
		logger.Fatal("building schedule", "err", err)
	}

	frames := make([][]complex128, 0, len(*captures))
	for _, path := range *captures {
		data, err := readComplexFile(path)
		if err != nil {
			logger.Fatal("reading capture", "path", path, "err", err)
		}
		frames = append(frames, data)
	}

	client, err := comm.Dial(cfg.Address, logger)
	if err != nil {
		logger.Fatal("connecting to control server", "err", err)
	}

	b := bob.New(cfg, client, bob.Devices{
		ADC:    hardware.NewSimulatedADC(frames...),
		Laser:  &hardware.SimulatedLaser{},
		Switch: &hardware.SimulatedSwitch{},
	}, logger)
	defer b.Close()
	b.AcquisitionDelay = *acquisitionDelay

	if *elecPath == "" {
		logger.Fatal("--electronic-noise is required")
	}
	elec, err := readComplexFile(*elecPath)
	if err != nil {
		logger.Fatal("reading electronic noise", "err", err)
	}
	b.SetElectronicNoise(elec)
	if *elecShotPath != "" {
		elecShot, err := readComplexFile(*elecShotPath)
		if err != nil {
			logger.Fatal("reading electronic and shot noise", "err", err)
		}
		b.SetElectronicShotNoise(elecShot)
	}

	if err := b.OpenHardware(); err != nil {
		logger.Fatal("opening hardware", "err", err)
	}
	if err := b.Identify(); err != nil {
		logger.Fatal("identification", "err", err)
	}

	results, err := b.Run(updater)
	if err != nil {
		logger.Error("session ended early", "err", err)
	}

	fmt.Println("FrameUUID, PhotonNumber, Transmittance, ExcessNoise, ElectronicNoise, ShotVariance, KeyRate")
	for _, r := range results {
		fmt.Printf("%s, %g, %g, %g, %g, %g, %g\n",
			r.FrameUUID, r.PhotonNumber, r.TransmittanceChannel, r.ExcessNoiseAlice,
			r.ElectronicNoise, r.ShotVariance, r.SecretKeyRate)
	}
	if err != nil {
		os.Exit(1)
	}
}

// schedule builds the frame schedule from the sweep flags, defaulting to a
// plain repetition.
func schedule(numCaptures int) (optimize.Updater, error) {
	if *sweepParameter != "" {
		if len(*sweepValues) == 0 {
			return nil, fmt.Errorf("--sweep %s needs --sweep-values", *sweepParameter)
		}
		if len(*sweepValues) > numCaptures {
			return nil, fmt.Errorf("%d sweep values but only %d captures",
				len(*sweepValues), numCaptures)
		}
		return optimize.NewSweep(*sweepParameter, *sweepValues), nil
	}
	rounds := *repeats
	if rounds == 0 {
		rounds = numCaptures
	}
	return optimize.NewRepeat(rounds), nil
}

// readComplexFile reads interleaved little-endian float64 quadrature pairs.
func readComplexFile(path string) ([]complex128, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw)%16 != 0 {
		return nil, fmt.Errorf("%s: size %d is not a whole number of complex samples", path, len(raw))
	}
	out := make([]complex128, len(raw)/16)
	for i := range out {
		re := math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i+8:]))
		out[i] = complex(re, im)
	}
	return out, nil
}
