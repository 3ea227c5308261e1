package bob

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"time"

	"cvqkd/comm"
	"cvqkd/dsp"
	"cvqkd/estimation"
	"cvqkd/optimize"
)

// polarisationScanPoints is the resolution of the polarisation recovery
// sweep over a half turn of the controller.
const polarisationScanPoints = 100

// RecoverPolarisation asks the transmitter for a constant calibration tone,
// sweeps the polarisation controller to maximize the measured power and
// leaves it at the best position.
func (b *Bob) RecoverPolarisation() error {
	if b.dev.Polarisation == nil || b.dev.PowerMeter == nil {
		return errors.New("bob: polarisation recovery needs a controller and a power meter")
	}
	if err := b.client.Expect(comm.RequestPolarisationRecovery, nil,
		comm.PolarisationRecoveryAck, nil); err != nil {
		return err
	}

	best, bestPower := 0.0, math.Inf(-1)
	for _, position := range optimize.Linspace(0, math.Pi, polarisationScanPoints) {
		if err := b.dev.Polarisation.SetPosition(position); err != nil {
			return fmt.Errorf("bob: moving polarisation controller: %w", err)
		}
		power, err := b.dev.PowerMeter.Read()
		if err != nil {
			return fmt.Errorf("bob: reading power meter: %w", err)
		}
		if power > bestPower {
			best, bestPower = position, power
		}
	}
	if err := b.dev.Polarisation.SetPosition(best); err != nil {
		return fmt.Errorf("bob: moving polarisation controller: %w", err)
	}
	b.logger.Info("polarisation recovered", "position", best, "power", bestPower)

	return b.client.Expect(comm.EndPolarisationRecovery, nil,
		comm.PolarisationRecoveryEnded, nil)
}

// shotNoiseSamples is how many leading samples of the capture belong to the
// shot-noise calibration window when the optical switch is in use.
func (b *Bob) shotNoiseSamples() int {
	sw := b.cfg.Bob.Switch
	if !b.cfg.Bob.AutomaticShotNoiseCalibration || sw.SwitchingTime <= 0 {
		return 0
	}
	return int(sw.SwitchingTime * b.cfg.Bob.ADCRate)
}

// ExchangeQuantumInformation runs one acquisition: it coordinates the
// emission with the transmitter and captures the frame, carving off the
// shot-noise calibration window when the optical switch is in use.
func (b *Bob) ExchangeQuantumInformation() error {
	if b.cfg.Bob.PolarisationRecovery.Use {
		if err := b.RecoverPolarisation(); err != nil {
			return err
		}
	}

	if err := b.client.Expect(comm.QIERequest, nil, comm.QIEReady, nil); err != nil {
		return err
	}

	split := b.shotNoiseSamples()
	if split > 0 {
		if b.dev.Switch == nil {
			return errors.New("bob: shot-noise calibration needs an optical switch")
		}
		if err := b.dev.Switch.SetState(b.cfg.Bob.Switch.CalibrationState); err != nil {
			return fmt.Errorf("bob: routing switch to calibration: %w", err)
		}
	}

	if err := b.dev.ADC.Arm(); err != nil {
		return fmt.Errorf("bob: arming acquisition: %w", err)
	}
	if err := b.dev.ADC.Trigger(); err != nil {
		return fmt.Errorf("bob: triggering acquisition: %w", err)
	}
	if err := b.client.Expect(comm.QIETrigger, nil, comm.QIEEmissionStarted, nil); err != nil {
		return err
	}

	time.Sleep(b.AcquisitionDelay)

	if err := b.client.Expect(comm.QIEAcquisitionEnded, nil, comm.QIEEnded, nil); err != nil {
		return err
	}
	capture, err := b.dev.ADC.Data()
	if err != nil {
		return fmt.Errorf("bob: reading acquisition: %w", err)
	}
	if err := b.dev.ADC.Stop(); err != nil {
		return fmt.Errorf("bob: stopping acquisition: %w", err)
	}

	if split > 0 {
		if err := b.dev.Switch.SetState(b.cfg.Bob.Switch.SignalState); err != nil {
			return fmt.Errorf("bob: routing switch to signal: %w", err)
		}
		if split >= len(capture) {
			return fmt.Errorf("bob: capture of %d samples shorter than calibration window %d", len(capture), split)
		}
		b.electronicShotNoise = capture[:split]
		capture = capture[split:]
	}
	b.signal = capture
	b.logger.Info("acquisition complete", "samples", len(b.signal))
	return nil
}

// ProcessSignal recovers the symbols from the last acquisition. For each
// subframe it asks the transmitter to reveal a random fraction of the sent
// symbols, aligns the global phase against them and keeps the revealed
// index set for estimation. It also processes both calibration captures
// with the recovered frame parameters.
func (b *Bob) ProcessSignal() error {
	if b.electronicNoise == nil || b.electronicShotNoise == nil {
		return ErrMissingCalibration
	}

	params := b.cfg.PipelineParams()
	frames, sp, dbg, err := dsp.Process(b.signal, params)
	if err != nil {
		return fmt.Errorf("bob: recovering symbols: %w", err)
	}
	if dbg != nil {
		b.logger.Debug("pipeline diagnostics",
			"beat", dbg.BeatFrequency, "rate", dbg.EquivalentRate,
			"sequence", dbg.BeginSequence)
	}

	ratio := b.cfg.Bob.ParametersEstimation.Ratio
	precision := b.cfg.Bob.DSP.AnglePrecision

	b.symbols = b.symbols[:0]
	b.aliceSymbols = b.aliceSymbols[:0]
	b.indices = b.indices[:0]

	base := 0
	for i, frame := range frames {
		count := int(ratio * float64(len(frame)))
		if count == 0 {
			return fmt.Errorf("bob: subframe %d too short to reveal symbols", i)
		}
		local := b.rng.Perm(len(frame))[:count]
		absolute := make([]int, count)
		for j, l := range local {
			absolute[j] = base + l
		}

		var resp comm.SymbolsResponseData
		if err := b.client.Expect(comm.PESymbolsRequest,
			comm.SymbolsRequestData{Indices: absolute},
			comm.PESymbolsResponse, &resp); err != nil {
			return err
		}
		sent := resp.Symbols()
		if len(sent) != count {
			return fmt.Errorf("bob: peer revealed %d symbols, want %d", len(sent), count)
		}

		revealed := make([]complex128, count)
		for j, l := range local {
			revealed[j] = frame[l]
		}
		angle, cov, err := dsp.FindGlobalAngle(revealed, sent, precision)
		if err != nil {
			return fmt.Errorf("bob: aligning subframe %d: %w", i, err)
		}
		rotation := cmplx.Exp(complex(0, angle))
		for j := range frame {
			frame[j] *= rotation
		}
		b.logger.Debug("subframe aligned", "subframe", i, "angle", angle, "covariance", cov)

		b.symbols = append(b.symbols, frame...)
		b.aliceSymbols = append(b.aliceSymbols, sent...)
		b.indices = append(b.indices, absolute...)
		base += len(frame)
	}
	b.logger.Info("signal processed", "symbols", len(b.symbols), "revealed", len(b.indices))

	b.elecSymbols, err = dsp.ProcessCalibration(b.electronicNoise, sp)
	if err != nil {
		return fmt.Errorf("bob: processing electronic noise: %w", err)
	}
	b.elecShotSymbols, err = dsp.ProcessCalibration(b.electronicShotNoise, sp)
	if err != nil {
		return fmt.Errorf("bob: processing electronic and shot noise: %w", err)
	}
	return nil
}

// EstimateParameters estimates the channel from the revealed symbols,
// derives the secret key rate and reports both to the transmitter. The key
// rate is -1 when the channel parameters do not permit a key.
func (b *Bob) EstimateParameters() (Results, error) {
	if len(b.indices) == 0 {
		return Results{}, errors.New("bob: no revealed symbols, process the signal first")
	}

	var photon comm.PhotonNumberData
	if err := b.client.Expect(comm.PENPhotonRequest, nil,
		comm.PENPhotonResponse, &photon); err != nil {
		return Results{}, err
	}
	b.photonNumber = photon.PhotonNumber

	revealed := make([]complex128, len(b.indices))
	for i, idx := range b.indices {
		revealed[i] = b.symbols[idx]
	}
	est, err := (estimation.Covariance{}).Estimate(
		b.aliceSymbols, revealed, b.elecSymbols, b.elecShotSymbols, b.photonNumber)
	if err != nil {
		return Results{}, fmt.Errorf("bob: estimating channel: %w", err)
	}

	eta := b.cfg.Bob.Eta
	res := Results{
		FrameUUID:            b.frameUUID,
		PhotonNumber:         b.photonNumber,
		Transmittance:        est.Transmittance,
		TransmittanceChannel: est.Transmittance / eta,
		ExcessNoiseBob:       est.ExcessNoise,
		ExcessNoiseAlice:     est.ExcessNoise / est.Transmittance,
		ElectronicNoise:      est.ElectronicNoise,
		ShotVariance:         est.ShotVariance,
	}

	perSymbol, err := estimation.SecretKeyRate(
		2*b.photonNumber, res.TransmittanceChannel, res.ExcessNoiseAlice,
		eta, res.ElectronicNoise, b.cfg.Bob.ParametersEstimation.Beta)
	if err != nil {
		b.logger.Warn("channel does not permit a key", "err", err)
		res.SecretKeyRate = -1
	} else {
		res.SecretKeyRate = perSymbol * b.cfg.Frame.Quantum.SymbolRate
	}

	report := comm.EstimationReportData{
		PhotonNumber:    res.PhotonNumber,
		Transmittance:   res.TransmittanceChannel,
		ExcessNoise:     res.ExcessNoiseAlice,
		Eta:             eta,
		KeyRate:         res.SecretKeyRate,
		ElectronicNoise: res.ElectronicNoise,
	}
	err = b.client.Expect(comm.PEFinished, report, comm.PEApproved, nil)
	if errors.Is(err, comm.ErrUnexpectedResponse) {
		return res, fmt.Errorf("%w: %v", ErrEstimationRefused, err)
	}
	if err != nil {
		return res, err
	}

	b.logger.Info("frame estimated",
		"transmittance", res.TransmittanceChannel,
		"excess_noise", res.ExcessNoiseAlice,
		"key_rate", res.SecretKeyRate)
	return res, nil
}

// RunFrame runs one complete frame: initialization, acquisition, symbol
// recovery and parameter estimation.
func (b *Bob) RunFrame() (Results, error) {
	if err := b.Initialize(); err != nil {
		return Results{}, err
	}
	if err := b.ExchangeQuantumInformation(); err != nil {
		return Results{}, err
	}
	if err := b.ProcessSignal(); err != nil {
		return Results{}, err
	}
	return b.EstimateParameters()
}

// Run executes frames until the updater's schedule is exhausted, applying
// each scheduled parameter change before its frame. A failed frame is
// retried with the same step; the session aborts after maxConsecutiveErrors
// failures in a row or when the control channel is lost.
func (b *Bob) Run(updater optimize.Updater) ([]Results, error) {
	var results []Results
	failures := 0
	for {
		step, ok := updater.Next()
		if !ok {
			return results, nil
		}
		for {
			if step.Parameter != "" {
				if err := b.RequestParameterChange(step.Parameter, step.Value); err != nil {
					return results, err
				}
			}
			res, err := b.RunFrame()
			if err == nil {
				results = append(results, res)
				failures = 0
				break
			}
			failures++
			b.logger.Warn("frame failed", "err", err, "consecutive", failures)
			if errors.Is(err, comm.ErrClosed) {
				return results, err
			}
			if failures >= maxConsecutiveErrors {
				return results, fmt.Errorf("%w: last error: %v", ErrTooManyFailures, err)
			}
		}
	}
}
