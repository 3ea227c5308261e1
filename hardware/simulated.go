package hardware

import (
	"errors"
	"math"
	"sync"
)

var (
	ErrNotArmed     = errors.New("hardware: acquisition not armed")
	ErrNotTriggered = errors.New("hardware: acquisition not triggered")
	ErrNoCapture    = errors.New("hardware: no capture left to serve")
)

// SimulatedADC serves pre-rendered captures, one per acquisition cycle, in
// the order they were given. It enforces the Arm/Trigger/Data/Stop protocol
// so orchestration bugs surface in tests.
type SimulatedADC struct {
	mu        sync.Mutex
	captures  [][]complex128
	next      int
	armed     bool
	triggered bool
}

func NewSimulatedADC(captures ...[]complex128) *SimulatedADC {
	return &SimulatedADC{captures: captures}
}

func (a *SimulatedADC) Arm() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed = true
	return nil
}

func (a *SimulatedADC) Trigger() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.armed {
		return ErrNotArmed
	}
	a.triggered = true
	return nil
}

func (a *SimulatedADC) Data() ([]complex128, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.triggered {
		return nil, ErrNotTriggered
	}
	if a.next >= len(a.captures) {
		return nil, ErrNoCapture
	}
	data := a.captures[a.next]
	a.next++
	return data, nil
}

func (a *SimulatedADC) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armed = false
	a.triggered = false
	return nil
}

// SimulatedLaser tracks its emission state.
type SimulatedLaser struct {
	mu       sync.Mutex
	Emitting bool
}

func (l *SimulatedLaser) On() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Emitting = true
	return nil
}

func (l *SimulatedLaser) Off() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Emitting = false
	return nil
}

// SimulatedSwitch records the last routed state.
type SimulatedSwitch struct {
	mu    sync.Mutex
	State int
}

func (s *SimulatedSwitch) SetState(state int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	return nil
}

// SimulatedPolarisation couples a polarisation controller with a power
// meter: the measured power follows Malus's law around the optimum position,
// on top of a constant floor.
type SimulatedPolarisation struct {
	mu       sync.Mutex
	position float64

	Optimum     float64
	SignalPower float64
	Floor       float64
}

func NewSimulatedPolarisation(optimum, signalPower, floor float64) *SimulatedPolarisation {
	return &SimulatedPolarisation{Optimum: optimum, SignalPower: signalPower, Floor: floor}
}

func (p *SimulatedPolarisation) SetPosition(position float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = position
	return nil
}

func (p *SimulatedPolarisation) Position() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, nil
}

func (p *SimulatedPolarisation) Read() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c := math.Cos(p.position - p.Optimum)
	return p.Floor + p.SignalPower*c*c, nil
}
