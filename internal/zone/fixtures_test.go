package zone

import (
	"math"
)

const kelvin = 273.15

func testParams() BuildingParameters {
	return BuildingParameters{
		R1i:            0.000779671554640369,
		C1i:            12333949.4129606,
		Ai:             58,
		RRest:          0.011638548,
		R1o:            0.00171957697767797,
		C1o:            4338751.41,
		Ao:             Segments{28},
		At:             Segments{7},
		Vair:           52.5,
		RhoAir:         1.19,
		CAir:           1007,
		SplitFac:       0.09,
		G:              1,
		AlphaIWI:       2.12,
		AlphaOWI:       2.398,
		AlphaWall:      28 * 9.75,
		WithInnerWalls: true,
	}
}

func constant(n int, v float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func column(n int, v float64) [][]float64 {
	s := make([][]float64, n)
	for i := range s {
		s[i] = []float64{v}
	}
	return s
}

func matrix(n, stages int, v float64) [][]float64 {
	s := make([][]float64, n)
	for i := range s {
		s[i] = constant(stages, v)
	}
	return s
}

// dailyDriving swings outdoor and equivalent temperatures around 20 degC
// with a daily period and adds office-hour gains.
func dailyDriving(n int, dt float64) DrivingSeries {
	d := DrivingSeries{
		Outdoor:       make([]float64, n),
		SolarWindows:  make([][]float64, n),
		EquivalentAir: make([]float64, n),
		AlphaRad:      constant(n, 5),
		VentRate:      constant(n, 0.5),
		Convective:    make([]float64, n),
		Radiative:     make([]float64, n),
	}
	for t := range n {
		hour := math.Mod(float64(t)*dt/3600, 24)
		phase := 2 * math.Pi * (hour - 9) / 24
		d.Outdoor[t] = kelvin + 20 + 15*math.Sin(phase)
		d.EquivalentAir[t] = kelvin + 22 + 18*math.Sin(phase)
		d.SolarWindows[t] = []float64{math.Max(0, 500*math.Sin(2*math.Pi*(hour-6)/24))}
		if hour >= 7 && hour < 17 {
			d.Convective[t] = 200
			d.Radiative[t] = 80
		}
	}
	return d
}

func freeFloating(n, stages int) ControlInputs {
	order := make([]int, stages)
	for i := range order {
		order[i] = i
	}
	return ControlInputs{
		HeatingSetpoint: constant(n, 0),
		CoolingSetpoint: constant(n, 600),
		HeaterLimits:    matrix(n, stages, 1e10),
		CoolerLimits:    matrix(n, stages, -1e10),
		HeaterOrder:     order,
		CoolerOrder:     append([]int(nil), order...),
	}
}

func initialState(temp float64) State {
	return State{Air: temp, InnerWall: temp, OuterWall: temp}
}

// seasonDriving is a cold spell followed by a heat wave, each half of n steps.
func seasonDriving(n int, dt float64) DrivingSeries {
	d := dailyDriving(n, dt)
	for t := range n {
		temp := kelvin
		if t >= n/2 {
			temp = kelvin + 40
		}
		d.Outdoor[t] = temp
		d.EquivalentAir[t] = temp
	}
	return d
}
