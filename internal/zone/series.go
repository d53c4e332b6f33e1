package zone

import "fmt"

// DrivingSeries are the per-timestep boundary conditions of a run. All series
// share one length, the number of timesteps.
type DrivingSeries struct {
	Outdoor       []float64   // dry-bulb outdoor temperature, K
	SolarWindows  [][]float64 // [t][window segment] radiation on windows, W/m2
	EquivalentAir []float64   // equivalent outdoor temperature, K
	AlphaRad      []float64   // radiative exchange coefficient between inner surfaces, W/(m2 K)
	VentRate      []float64   // air changes per hour
	Convective    []float64   // internal convective gain, W
	Radiative     []float64   // internal radiative gain, W
}

func (d *DrivingSeries) Len() int {
	return len(d.Outdoor)
}

func (d *DrivingSeries) validate(segments int) error {
	n := d.Len()
	if n == 0 {
		return fmt.Errorf("%w: empty driving series", ErrSeriesLength)
	}
	lengths := []struct {
		name string
		l    int
	}{
		{"solar", len(d.SolarWindows)},
		{"equivalent", len(d.EquivalentAir)},
		{"alphaRad", len(d.AlphaRad)},
		{"ventRate", len(d.VentRate)},
		{"convective", len(d.Convective)},
		{"radiative", len(d.Radiative)},
	}
	for _, s := range lengths {
		if s.l != n {
			return fmt.Errorf("%w: %s has %d values, outdoor has %d", ErrSeriesLength, s.name, s.l, n)
		}
	}
	for t, row := range d.SolarWindows {
		if len(row) != segments {
			return fmt.Errorf("%w: solar row %d has %d segments, want %d", ErrSegments, t, len(row), segments)
		}
		for _, v := range row {
			if !finite(v) {
				return fmt.Errorf("%w: solar row %d is %v", ErrDrivingValue, t, row)
			}
		}
	}

	series := []struct {
		name        string
		v           []float64
		nonNegative bool
	}{
		{"outdoor", d.Outdoor, false},
		{"equivalent", d.EquivalentAir, false},
		{"alphaRad", d.AlphaRad, true},
		{"ventRate", d.VentRate, true},
		{"convective", d.Convective, false},
		{"radiative", d.Radiative, false},
	}
	for _, s := range series {
		for t, v := range s.v {
			if !finite(v) || (s.nonNegative && v < 0) {
				return fmt.Errorf("%w: %s = %v at timestep %d", ErrDrivingValue, s.name, v, t)
			}
		}
	}
	return nil
}

// Drive is one timestep of DrivingSeries with the window radiation already
// reduced to transmitted power.
type Drive struct {
	Outdoor       float64
	EquivalentAir float64
	AlphaRad      float64
	VentRate      float64
	Convective    float64
	Radiative     float64
	Solar         float64 // transmitted solar power, W
}

func (d *DrivingSeries) at(t int, p *BuildingParameters) Drive {
	return Drive{
		Outdoor:       d.Outdoor[t],
		EquivalentAir: d.EquivalentAir[t],
		AlphaRad:      d.AlphaRad[t],
		VentRate:      d.VentRate[t],
		Convective:    d.Convective[t],
		Radiative:     d.Radiative[t],
		Solar:         p.G * p.At.Weighted(d.SolarWindows[t]),
	}
}

// ControlInputs bound the heating/cooling controller. Limit matrices are
// indexed [t][stage]; orders list stage indices in dispatch sequence.
type ControlInputs struct {
	HeatingSetpoint []float64
	CoolingSetpoint []float64
	HeaterLimits    [][]float64
	CoolerLimits    [][]float64
	HeaterOrder     []int // 0-based stage indices, unlike the 1-based arrays of VDI 6007 tooling
	CoolerOrder     []int // 0-based stage indices
}

func (c *ControlInputs) validate(n int) error {
	if len(c.HeatingSetpoint) != n || len(c.CoolingSetpoint) != n {
		return fmt.Errorf("%w: setpoints have %d/%d values, want %d",
			ErrSeriesLength, len(c.HeatingSetpoint), len(c.CoolingSetpoint), n)
	}
	for t := range n {
		if !finite(c.HeatingSetpoint[t]) || !finite(c.CoolingSetpoint[t]) ||
			c.CoolingSetpoint[t] < c.HeatingSetpoint[t] {
			return fmt.Errorf("%w: timestep %d (heating %v, cooling %v)",
				ErrSetpointOrder, t, c.HeatingSetpoint[t], c.CoolingSetpoint[t])
		}
	}
	if err := validateStages("heater", c.HeaterLimits, c.HeaterOrder, n); err != nil {
		return err
	}
	return validateStages("cooler", c.CoolerLimits, c.CoolerOrder, n)
}

func validateStages(kind string, limits [][]float64, order []int, n int) error {
	if len(limits) != n {
		return fmt.Errorf("%w: %s limits have %d rows, want %d", ErrStageMatrix, kind, len(limits), n)
	}
	for t, row := range limits {
		if len(row) != len(order) {
			return fmt.Errorf("%w: %s limits row %d has %d stages, order has %d",
				ErrStageMatrix, kind, t, len(row), len(order))
		}
	}
	seen := make([]bool, len(order))
	for _, s := range order {
		if s < 0 || s >= len(order) || seen[s] {
			return fmt.Errorf("%w: %s order %v", ErrStageOrder, kind, order)
		}
		seen[s] = true
	}
	return nil
}
