package dsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"
)

var logger = log.WithPrefix("dsp")

// Detection schemas. Only single-polarisation RF heterodyne detection is
// supported by this receiver chain.
type DetectionSchema int

const (
	SinglePolarisationRFHeterodyne DetectionSchema = iota
	DualPolarisationRFHeterodyne
)

func (s DetectionSchema) String() string {
	switch s {
	case SinglePolarisationRFHeterodyne:
		return "single_polarisation_rf_heterodyne"
	case DualPolarisationRFHeterodyne:
		return "dual_polarisation_rf_heterodyne"
	}
	return fmt.Sprintf("DetectionSchema(%d)", int(s))
}

// Configuration errors are fatal for the whole session: they indicate a
// mismatch between transmitter and receiver setup, not a transient fault.
var (
	ErrUnsupportedSchema = errors.New("dsp: unsupported detection schema")
	ErrPilotCount        = errors.New("dsp: insufficient pilot count")
	ErrEmptyCapture      = errors.New("dsp: empty capture")
)

// Defaults for the optional pipeline parameters.
const (
	DefaultFIRSize        = 500
	DefaultToneCutoff     = 10e6
	DefaultBeatSamples    = 100000
	clockEstimationWindow = 10000000
)

// Params bundles every parameter of a receiver DSP run. The zero value is
// not usable; at minimum the rates, symbol count, pilots and sequence
// descriptor must be set.
type Params struct {
	SymbolRate     float64
	DACRate        float64
	ADCRate        float64
	NumSymbols     int
	RollOff        float64
	FrequencyShift float64

	NumPilots        int
	PilotFrequencies []float64

	SequenceRoot   int
	SequenceLength int
	SequenceRate   float64

	ClockShared bool
	LOShared    bool

	ProcessSubframes bool
	SubframeLength   int

	FIRSize               int
	ToneCutoff            float64
	AbortClockRecovery    float64
	PilotExclusions       []FrequencyBand
	PhaseFilterSize       int
	BeatEstimationSamples int

	Schema DetectionSchema
	Debug  bool
}

func (p *Params) applyDefaults() {
	if p.FIRSize == 0 {
		p.FIRSize = DefaultFIRSize
	}
	if p.ToneCutoff == 0 {
		p.ToneCutoff = DefaultToneCutoff
	}
	if p.BeatEstimationSamples == 0 {
		p.BeatEstimationSamples = DefaultBeatSamples
	}
	if p.SequenceRate == 0 {
		p.SequenceRate = p.DACRate
	}
}

// SpecialParams is the snapshot of the parameters the pipeline actually
// used, to be replayed verbatim on calibration captures so that noise
// references are processed identically to the signal.
type SpecialParams struct {
	SymbolRate     float64
	Rate           float64
	RollOff        float64
	FrequencyShift float64
	Schema         DetectionSchema
}

// Debug is the optional diagnostic bundle populated during a pipeline run.
// It is purely observational and never feeds back into the pipeline.
type Debug struct {
	BeginSequence int
	EndSequence   int
	BeginData     int
	EndData       int

	Tones              [][]complex128
	UncorrectedSymbols [][]complex128
	PilotFrequencies   []float64
	BeatFrequency      float64
	PilotSpacingRatio  float64
	EquivalentRate     float64
}

// Process runs the receiver DSP on a raw capture and returns the recovered
// symbols, one slice per subframe, together with the parameter snapshot for
// the calibration path and the optional debug record.
//
// The pipeline stages are selected by the clock/LO sharing flags: beat
// estimation runs whenever the local oscillator is not shared, clock-ratio
// recovery whenever the clock is not shared, and the fully unshared case
// adds a second beat-estimation and synchronization pass. The recovered
// symbols still carry a global phase per subframe; see FindGlobalAngle.
func Process(data []complex128, p Params) ([][]complex128, SpecialParams, *Debug, error) {
	p.applyDefaults()
	if len(data) == 0 {
		return nil, SpecialParams{}, nil, ErrEmptyCapture
	}
	if p.Schema != SinglePolarisationRFHeterodyne {
		logger.Error("aborting: detection schema not supported", "schema", p.Schema)
		return nil, SpecialParams{}, nil, fmt.Errorf("%w: %v", ErrUnsupportedSchema, p.Schema)
	}
	need := 1
	if !p.ClockShared && !p.LOShared {
		need = 2
	}
	if p.NumPilots < need || len(p.PilotFrequencies) < need {
		logger.Error("aborting: not enough pilots", "have", p.NumPilots, "need", need)
		return nil, SpecialParams{}, nil, fmt.Errorf("%w: have %d, need %d", ErrPilotCount, p.NumPilots, need)
	}
	if p.NumPilots > need {
		logger.Warn("more pilots than necessary, using the first ones", "have", p.NumPilots, "need", need)
	}

	var dbg *Debug
	if p.Debug {
		logger.Info("debug record enabled")
		dbg = &Debug{}
	}

	switch {
	case p.ClockShared && p.LOShared:
		logger.Info("starting DSP", "variant", "shared clock, shared LO")
		return processSharedClockSharedLO(data, p, dbg)
	case p.ClockShared:
		logger.Info("starting DSP", "variant", "shared clock, unshared LO")
		return processSharedClockUnsharedLO(data, p, dbg)
	case p.LOShared:
		logger.Info("starting DSP", "variant", "unshared clock, shared LO")
		return processUnsharedClockSharedLO(data, p, dbg)
	}
	logger.Info("starting DSP", "variant", "general")
	return processGeneral(data, p, dbg)
}

// usefulWindow slices the capture between the end of the synchronization
// sequence and the end of the quantum data, clamped to the capture.
func usefulWindow(data []complex128, begin, end int) []complex128 {
	if begin < 0 {
		begin = 0
	}
	if begin > len(data) {
		begin = len(data)
	}
	if end > len(data) {
		end = len(data)
	}
	return data[begin:end]
}

func recordWindow(dbg *Debug, beginSeq, endSeq, beginData, endData int) {
	if dbg == nil {
		return
	}
	dbg.BeginSequence = beginSeq
	dbg.EndSequence = endSeq
	dbg.BeginData = beginData
	dbg.EndData = endData
}

// subframeStep is one pass of the common per-subframe chain: recover the
// tracking tone, move the quantum band to baseband, matched-filter, pick the
// best sampling phase, downsample and correct the relative phase noise.
func subframeStep(sub []complex128, p Params, shift, toneFreq, rate, sps float64, limit int, dbg *Debug) []complex128 {
	tone := RecoverTone(sub, toneFreq, rate, p.FIRSize, p.ToneCutoff)
	if dbg != nil {
		dbg.Tones = append(dbg.Tones, tone)
	}

	base := frequencyShift(sub, shift, rate)
	filtered := matchedFilter(base, sps, p.RollOff, p.SymbolRate, rate)
	maxT := BestSamplingPoint(filtered, sps)
	symbols := Downsample(filtered, maxT, sps)
	if limit > 0 && len(symbols) > limit {
		symbols = symbols[:limit]
	}
	if dbg != nil {
		dbg.UncorrectedSymbols = append(dbg.UncorrectedSymbols, symbols)
	}
	return CorrectPhaseNoise(symbols, maxT, sps, tone, toneFreq, rate, p.PhaseFilterSize)
}

// processSharedClockSharedLO handles the simplest topology: no clock
// difference and no beat frequency. Subframe boundaries sit exactly on the
// nominal symbol grid.
func processSharedClockSharedLO(data []complex128, p Params, dbg *Debug) ([][]complex128, SpecialParams, *Debug, error) {
	sps := int(p.ADCRate / p.SymbolRate)
	f0 := p.PilotFrequencies[0]

	beginSeq, endSeq := Synchronize(data, p.SequenceRoot, p.SequenceLength, p.ADCRate/p.SequenceRate)
	beginData := endSeq
	endData := beginData + p.NumSymbols*sps
	useful := usefulWindow(data, beginData, endData)
	recordWindow(dbg, beginSeq, endSeq, beginData, endData)
	if dbg != nil {
		dbg.PilotFrequencies = []float64{f0}
	}

	var result [][]complex128
	recovered := 0
	for sub := 0; recovered < p.NumSymbols; sub++ {
		begin, end, limit := gridSubframe(sub, p, float64(sps), len(useful), recovered)
		if begin >= end {
			break
		}
		corrected := subframeStep(useful[begin:end], p, p.FrequencyShift, f0, p.ADCRate, float64(sps), limit, dbg)
		result = append(result, corrected)
		recovered += len(corrected)
		if !p.ProcessSubframes {
			break
		}
	}

	sp := SpecialParams{
		SymbolRate:     p.SymbolRate,
		Rate:           p.ADCRate,
		RollOff:        p.RollOff,
		FrequencyShift: p.FrequencyShift,
		Schema:         p.Schema,
	}
	return result, sp, dbg, nil
}

// processSharedClockUnsharedLO adds beat estimation: the observed pilot
// frequency fixes the LO beat once for synchronization and is then
// re-estimated per subframe to track slow drift.
func processSharedClockUnsharedLO(data []complex128, p Params, dbg *Debug) ([][]complex128, SpecialParams, *Debug, error) {
	sps := p.ADCRate / p.SymbolRate
	f0 := p.PilotFrequencies[0]

	observed := FindOnePilot(data, p.ADCRate, p.PilotExclusions)
	fBeat := observed - f0
	logger.Info("beat estimated from capture", "pilot_hz", observed, "beat_hz", fBeat)
	if dbg != nil {
		dbg.PilotFrequencies = []float64{observed}
		dbg.BeatFrequency = fBeat
	}

	shifted := frequencyShift(data, fBeat, p.ADCRate)
	beginSeq, endSeq := Synchronize(shifted, p.SequenceRoot, p.SequenceLength, p.ADCRate/p.SequenceRate)
	beginData := endSeq
	endData := beginData + int(float64(p.NumSymbols)*sps)
	useful := usefulWindow(data, beginData, endData)
	recordWindow(dbg, beginSeq, endSeq, beginData, endData)

	var result [][]complex128
	recovered := 0
	sumShift := 0.0
	numSub := 0
	for sub := 0; recovered < p.NumSymbols; sub++ {
		begin, end, limit := gridSubframe(sub, p, sps, len(useful), recovered)
		if begin >= end {
			break
		}
		frame := useful[begin:end]
		obs := FindOnePilot(frame, p.ADCRate, p.PilotExclusions)
		shift := p.FrequencyShift + (obs - f0)
		corrected := subframeStep(frame, p, shift, obs, p.ADCRate, sps, limit, dbg)
		result = append(result, corrected)
		recovered += len(corrected)
		sumShift += shift
		numSub++
		if !p.ProcessSubframes {
			break
		}
	}

	sp := SpecialParams{
		SymbolRate:     p.SymbolRate,
		Rate:           p.ADCRate,
		RollOff:        p.RollOff,
		FrequencyShift: meanOr(sumShift, numSub, p.FrequencyShift),
		Schema:         p.Schema,
	}
	return result, sp, dbg, nil
}

// processUnsharedClockSharedLO recovers the clock per subframe from the
// phase drift of the single pilot, then runs the chain at the equivalent
// rate.
func processUnsharedClockSharedLO(data []complex128, p Params, dbg *Debug) ([][]complex128, SpecialParams, *Debug, error) {
	spsNominal := p.ADCRate / p.SymbolRate
	f0 := p.PilotFrequencies[0]

	beginSeq, endSeq := Synchronize(data, p.SequenceRoot, p.SequenceLength, p.ADCRate/p.SequenceRate)
	beginData := endSeq
	// A bit more than needed, to be sure all symbols are inside.
	endData := beginData + p.NumSymbols*int(math.Ceil(spsNominal+1))
	useful := usefulWindow(data, beginData, endData)
	recordWindow(dbg, beginSeq, endSeq, beginData, endData)
	if dbg != nil {
		dbg.PilotFrequencies = []float64{f0}
	}

	var result [][]complex128
	recovered := 0
	sumRate := 0.0
	numSub := 0
	for sub := 0; recovered < p.NumSymbols; sub++ {
		begin, end, limit := gridSubframe(sub, p, spsNominal, len(useful), recovered)
		if begin >= end {
			break
		}
		frame := useful[begin:end]
		equiRate := EquivalentRate(frame, f0, p.ADCRate, p.FIRSize, p.ToneCutoff)
		sps := equiRate / p.SymbolRate
		logger.Debug("clock recovered for subframe", "subframe", numSub, "equivalent_rate_hz", equiRate)
		corrected := subframeStep(frame, p, p.FrequencyShift, f0, equiRate, sps, limit, dbg)
		result = append(result, corrected)
		recovered += len(corrected)
		sumRate += equiRate
		numSub++
		if !p.ProcessSubframes {
			break
		}
	}

	sp := SpecialParams{
		SymbolRate:     p.SymbolRate,
		Rate:           meanOr(sumRate, numSub, p.ADCRate),
		RollOff:        p.RollOff,
		FrequencyShift: p.FrequencyShift,
		Schema:         p.Schema,
	}
	if dbg != nil {
		dbg.EquivalentRate = sp.Rate
	}
	return result, sp, dbg, nil
}

// processGeneral handles the fully unshared topology. The clock ratio comes
// from the spacing of the two pilots, the beat from the first pilot's
// offset, both refined after a first synchronization pass. Subframe
// boundaries advance from the actual recovered symbol timing so that no
// drift accumulates across subframes.
func processGeneral(data []complex128, p Params, dbg *Debug) ([][]complex128, SpecialParams, *Debug, error) {
	f1Nominal := p.PilotFrequencies[0]
	f2Nominal := p.PilotFrequencies[1]

	// Clock-ratio estimation on a window past the synchronization burst.
	spsApprox := int(p.ADCRate / p.SequenceRate)
	approx := coarseBurstLocation(data)
	winStart := approx + 2*p.SequenceLength*spsApprox
	if winStart < 0 {
		winStart = 0
	}
	if winStart >= len(data) {
		winStart = 0
	}
	winEnd := winStart + clockEstimationWindow
	if winEnd > len(data) {
		winEnd = len(data)
	}
	f1, f2 := FindTwoPilots(data[winStart:winEnd], p.ADCRate, DefaultPilotGuard, p.PilotExclusions)
	logger.Info("pilots found", "f1_hz", f1, "f2_hz", f2)

	ratio := (f2 - f1) / (f2Nominal - f1Nominal)
	logger.Info("clock mismatch estimated", "ratio", ratio)
	rate := p.ADCRate / ratio
	if p.AbortClockRecovery != 0 && math.Abs(1-ratio) > p.AbortClockRecovery {
		logger.Warn("clock recovery aborted, falling back to nominal rate",
			"mismatch", math.Abs(1-ratio), "threshold", p.AbortClockRecovery)
		rate = p.ADCRate
	}
	sps := rate / p.SymbolRate
	logger.Info("equivalent rate", "rate_hz", rate, "sps", sps)

	// Re-detect at the corrected rate, then synchronize.
	f1, f2 = FindTwoPilots(data, rate, DefaultPilotGuard, p.PilotExclusions)
	fBeat := f1 - f1Nominal
	beginSeq, endSeq := Synchronize(
		frequencyShift(data, fBeat, rate),
		p.SequenceRoot, p.SequenceLength, rate/p.SequenceRate)

	// The first pass used a coarse beat estimate; refine it on a window just
	// after the sequence and synchronize again.
	seqSamples := int(math.Ceil(float64(p.SequenceLength) * rate / p.DACRate))
	refStart := endSeq + seqSamples
	if refStart < 0 || refStart >= len(data) {
		refStart = endSeq
	}
	refEnd := refStart + p.BeatEstimationSamples
	if refEnd > len(data) {
		refEnd = len(data)
	}
	if refStart < refEnd {
		f1, _ = FindTwoPilots(data[refStart:refEnd], rate, DefaultPilotGuard, p.PilotExclusions)
		fBeat = f1 - f1Nominal
		beginSeq, endSeq = Synchronize(
			frequencyShift(data, fBeat, rate),
			p.SequenceRoot, p.SequenceLength, rate/p.SequenceRate)
	}
	logger.Info("sequence synchronized", "begin", beginSeq, "end", endSeq, "beat_hz", fBeat)

	beginData := endSeq
	endData := beginData + p.NumSymbols*int(math.Ceil(sps+1))
	useful := usefulWindow(data, beginData, endData)
	recordWindow(dbg, beginSeq, endSeq, beginData, endData)
	if dbg != nil {
		dbg.PilotFrequencies = []float64{f1, f2}
		dbg.BeatFrequency = fBeat
		dbg.PilotSpacingRatio = ratio
		dbg.EquivalentRate = rate
	}

	subLen := p.SubframeLength
	if !p.ProcessSubframes || subLen <= 0 {
		subLen = p.NumSymbols
	}

	var result [][]complex128
	recovered := 0
	beginSub := 0
	sumShift := 0.0
	numSub := 0
	for recovered < p.NumSymbols && beginSub < len(useful) {
		endSub := beginSub + int(math.Ceil(float64(subLen)*(sps+1)-0.5))
		if endSub > len(useful) {
			endSub = len(useful)
		}
		frame := useful[beginSub:endSub]
		if len(frame) == 0 {
			break
		}

		obs := FindOnePilot(frame, rate, p.PilotExclusions)
		logger.Debug("subframe pilot", "subframe", numSub, "pilot_hz", obs)
		shift := p.FrequencyShift + (obs - f1Nominal)

		tone := RecoverTone(frame, obs, rate, p.FIRSize, p.ToneCutoff)
		if dbg != nil {
			dbg.Tones = append(dbg.Tones, tone)
		}
		base := frequencyShift(frame, shift, rate)
		filtered := matchedFilter(base, sps, p.RollOff, p.SymbolRate, rate)
		maxT := BestSamplingPoint(filtered, sps)

		limit := subLen
		if rest := p.NumSymbols - recovered; rest < limit {
			limit = rest
		}
		indices := downsampleIndices(len(filtered), maxT, sps, limit)
		if len(indices) == 0 {
			break
		}
		symbols := make([]complex128, len(indices))
		for i, idx := range indices {
			symbols[i] = filtered[idx]
		}
		if dbg != nil {
			dbg.UncorrectedSymbols = append(dbg.UncorrectedSymbols, symbols)
		}
		corrected := CorrectPhaseNoise(symbols, maxT, sps, tone, obs, rate, p.PhaseFilterSize)
		result = append(result, corrected)
		recovered += len(corrected)
		sumShift += shift
		numSub++

		// Next subframe begins half a symbol after the last sampled point.
		lastIndex := beginSub + indices[len(indices)-1]
		beginSub = roundHalfDown(float64(lastIndex) + sps/2)
	}

	sp := SpecialParams{
		SymbolRate:     p.SymbolRate,
		Rate:           rate,
		RollOff:        p.RollOff,
		FrequencyShift: meanOr(sumShift, numSub, p.FrequencyShift),
		Schema:         p.Schema,
	}
	return result, sp, dbg, nil
}

// gridSubframe returns the [begin, end) sample window of the sub-th
// subframe on the nominal symbol grid, plus the maximum number of symbols to
// keep from it. A disabled subframe mode yields one window covering
// everything.
func gridSubframe(sub int, p Params, sps float64, avail, recovered int) (begin, end, limit int) {
	if !p.ProcessSubframes || p.SubframeLength <= 0 {
		return 0, avail, p.NumSymbols
	}
	begin = roundHalfDown(float64(sub*p.SubframeLength) * sps)
	// One extra symbol of margin so a late sampling phase still yields a
	// full subframe.
	end = roundHalfDown(float64((sub+1)*p.SubframeLength+1) * sps)
	if end > avail {
		end = avail
	}
	if begin > avail {
		begin = avail
	}
	limit = p.SubframeLength
	if rest := p.NumSymbols - recovered; rest < limit {
		limit = rest
	}
	return begin, end, limit
}

func meanOr(sum float64, n int, fallback float64) float64 {
	if n == 0 {
		return fallback
	}
	return sum / float64(n)
}
