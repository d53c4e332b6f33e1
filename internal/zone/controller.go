package zone

import "math"

// Stages is a bank of heaters or coolers dispatched in a fixed order.
type Stages struct {
	Limits [][]float64 // [t][stage], W
	Order  []int       // stage indices, first served first
	// Magnitude reads limits as absolute values (coolers may be given as
	// negative powers). Otherwise negative limits count as zero.
	Magnitude bool
}

func (s Stages) capacity(t, stage int) float64 {
	l := s.Limits[t][stage]
	if s.Magnitude {
		return math.Abs(l)
	}
	return math.Max(l, 0)
}

// Dispatch draws demand (W, >= 0) from the stages at timestep t. It returns
// the delivered total, the per-stage split indexed by stage, and whether
// demand was left over.
func (s Stages) Dispatch(t int, demand float64) (float64, []float64, bool) {
	split := make([]float64, len(s.Order))
	remaining := demand
	delivered := 0.0
	for _, stage := range s.Order {
		if remaining <= 0 {
			break
		}
		take := math.Min(remaining, s.capacity(t, stage))
		split[stage] = take
		delivered += take
		remaining -= take
	}
	return delivered, split, remaining > 0
}

// Decision is the controller's output for one timestep.
type Decision struct {
	Power   float64   // net power into the air node, W (cooling < 0)
	Heaters []float64 // per-stage heating power, W
	Coolers []float64 // per-stage cooling power, W (<= 0)
	Unmet   bool      // demand exceeded staged capacity
}

// Controller keeps air temperature within [heating, cooling] setpoints using
// staged capacity.
type Controller struct {
	heating, cooling []float64
	heaters, coolers Stages
}

func NewController(c *ControlInputs) *Controller {
	return &Controller{
		heating: c.HeatingSetpoint,
		cooling: c.CoolingSetpoint,
		heaters: Stages{Limits: c.HeaterLimits, Order: c.HeaterOrder},
		coolers: Stages{Limits: c.CoolerLimits, Order: c.CoolerOrder, Magnitude: true},
	}
}

// Decide picks the injected power for timestep t from the network's
// zero-power response. The demand comes from the same linear response the
// integrator applies, so no iteration is needed.
func (c *Controller) Decide(t int, r Response) Decision {
	d := Decision{
		Heaters: make([]float64, len(c.heaters.Order)),
		Coolers: make([]float64, len(c.coolers.Order)),
	}
	free := r.FreeAir()
	switch {
	case free < c.heating[t]:
		demand := r.PowerFor(c.heating[t])
		d.Power, d.Heaters, d.Unmet = c.heaters.Dispatch(t, demand)
	case free > c.cooling[t]:
		demand := -r.PowerFor(c.cooling[t])
		got, split, unmet := c.coolers.Dispatch(t, demand)
		for i := range split {
			split[i] = -split[i]
		}
		d.Power, d.Coolers, d.Unmet = -got, split, unmet
	}
	return d
}
