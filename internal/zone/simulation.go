package zone

import (
	"fmt"
	"log/slog"
	"time"
)

// Output is the recorded result of a run, one entry per timestep.
type Output struct {
	AirTemperature []float64   // K
	Power          []float64   // net heating (+) / cooling (-) power, W
	HeaterPower    [][]float64 // [t][stage], W
	CoolerPower    [][]float64 // [t][stage], W
	InnerWallFlow  []float64   // W
	OuterWallFlow  []float64   // W
	Unmet          int         // timesteps where staged capacity fell short
}

func newOutput(n int) *Output {
	return &Output{
		AirTemperature: make([]float64, 0, n),
		Power:          make([]float64, 0, n),
		HeaterPower:    make([][]float64, 0, n),
		CoolerPower:    make([][]float64, 0, n),
		InnerWallFlow:  make([]float64, 0, n),
		OuterWallFlow:  make([]float64, 0, n),
	}
}

func (o *Output) Len() int {
	return len(o.AirTemperature)
}

func (o *Output) record(s State, f Flows, d Decision) {
	o.AirTemperature = append(o.AirTemperature, s.Air)
	o.Power = append(o.Power, d.Power)
	o.HeaterPower = append(o.HeaterPower, d.Heaters)
	o.CoolerPower = append(o.CoolerPower, d.Coolers)
	o.InnerWallFlow = append(o.InnerWallFlow, f.InnerWall)
	o.OuterWallFlow = append(o.OuterWallFlow, f.OuterWall)
	if d.Unmet {
		o.Unmet++
	}
}

type Option func(*Simulation)

func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.log = l
		}
	}
}

// Simulation is a validated zone model with its network variant selected.
// It keeps no state between runs and may be shared by concurrent Run calls.
type Simulation struct {
	params  BuildingParameters
	dt      time.Duration
	network Network
	log     *slog.Logger
}

func New(params BuildingParameters, dt time.Duration, opts ...Option) (*Simulation, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrTimestep, dt)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	params.Ao = append(Segments(nil), params.Ao...)
	params.At = append(Segments(nil), params.At...)

	s := &Simulation{params: params, dt: dt, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.network = NewNetwork(&s.params, dt)
	return s, nil
}

func (s *Simulation) Timestep() time.Duration { return s.dt }

func (s *Simulation) Network() Network { return s.network }

// Run folds the model over every timestep starting from initial. All input
// checks happen before the first step.
func (s *Simulation) Run(driving DrivingSeries, control ControlInputs, initial State) (*Output, error) {
	if err := driving.validate(len(s.params.At)); err != nil {
		return nil, err
	}
	n := driving.Len()
	if err := control.validate(n); err != nil {
		return nil, err
	}

	ctrl := NewController(&control)
	out := newOutput(n)
	state := initial
	start := time.Now()

	for t := range n {
		r, err := s.network.Respond(state, driving.at(t, &s.params))
		if err != nil {
			return nil, &StepError{Step: t, Err: err}
		}
		d := ctrl.Decide(t, r)
		next, flows := r.Apply(d.Power)
		if !finite(next.Air) || !finite(d.Power) {
			return nil, &StepError{Step: t, Err: ErrNonFinite}
		}
		out.record(next, flows, d)
		state = next
	}

	if out.Unmet > 0 {
		s.log.Warn("staged capacity fell short", "timesteps", out.Unmet, "of", n)
	}
	s.log.Debug("zone run finished",
		"timesteps", n,
		"dt", s.dt,
		"nodes", s.network.Nodes(),
		"elapsed", time.Since(start))
	return out, nil
}

// Run builds a Simulation and runs it once.
func Run(params BuildingParameters, driving DrivingSeries, control ControlInputs, initial State, dt time.Duration) (*Output, error) {
	sim, err := New(params, dt)
	if err != nil {
		return nil, err
	}
	return sim.Run(driving, control, initial)
}
