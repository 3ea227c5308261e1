// Package optimize provides parameter schedules for multi-round
// experiments: each round, an updater yields the next value of the parameter
// under study, to be applied locally and requested from the transmitter.
package optimize

// A Step is one scheduled parameter assignment.
type Step struct {
	Parameter string
	Value     float64
}

// An Updater is a finite schedule of parameter values, advanced one step per
// experiment round.
type Updater interface {
	// Name identifies the schedule, for logging and result labeling.
	Name() string
	// Rounds is the total number of steps in the schedule.
	Rounds() int
	// Next returns the next step, or ok=false once exhausted.
	Next() (step Step, ok bool)
	// Reset rewinds the schedule to its first step.
	Reset()
}

// Sweep walks one parameter through a fixed list of values.
type Sweep struct {
	parameter string
	values    []float64
	next      int
}

func NewSweep(parameter string, values []float64) *Sweep {
	return &Sweep{parameter: parameter, values: values}
}

func (s *Sweep) Name() string { return s.parameter + "_sweep" }

func (s *Sweep) Rounds() int { return len(s.values) }

func (s *Sweep) Next() (Step, bool) {
	if s.next >= len(s.values) {
		return Step{}, false
	}
	step := Step{Parameter: s.parameter, Value: s.values[s.next]}
	s.next++
	return step, true
}

func (s *Sweep) Reset() { s.next = 0 }

// Linspace returns n evenly spaced values from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

// Repeat runs the same settings for a fixed number of rounds, for
// statistical repetitions of one operating point.
type Repeat struct {
	rounds int
	next   int
}

func NewRepeat(rounds int) *Repeat { return &Repeat{rounds: rounds} }

func (r *Repeat) Name() string { return "repeat" }

func (r *Repeat) Rounds() int { return r.rounds }

func (r *Repeat) Next() (Step, bool) {
	if r.next >= r.rounds {
		return Step{}, false
	}
	r.next++
	return Step{}, true
}

func (r *Repeat) Reset() { r.next = 0 }
