package verification

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Agrid-Dev/vdizone/internal/eqairtemp"
	"github.com/Agrid-Dev/vdizone/internal/zone"
)

// Scenario is a complete, ready-to-run zone simulation.
type Scenario struct {
	Name         string
	Params       zone.BuildingParameters
	Driving      zone.DrivingSeries
	Control      zone.ControlInputs
	Initial      zone.State
	TicksPerHour int
	Days         int

	ReferencePath string  // hourly reference, optional
	Threshold     float64 // max allowed absolute deviation, K
}

func (s Scenario) Timestep() time.Duration {
	return time.Hour / time.Duration(s.TicksPerHour)
}

// ErrOptions reports case options that cannot build a scenario.
var ErrOptions = errors.New("invalid case options")

// Options adjust a case before it is built. Zero values select the case
// defaults.
type Options struct {
	Days         int
	TicksPerHour int
	Building     *zone.BuildingParameters

	SolarFile     string // hourly window irradiance, second column
	OutdoorFile   string // half-hourly dry bulb in K, second column
	ReferenceFile string

	Date      time.Time
	Latitude  float64
	Longitude float64
}

func (o Options) withDefaults() Options {
	if o.Days <= 0 {
		o.Days = 60
	}
	if o.TicksPerHour <= 0 {
		o.TicksPerHour = 60
	}
	if o.Date.IsZero() {
		o.Date = time.Date(2015, time.July, 15, 0, 0, 0, 0, time.UTC)
	}
	if o.Latitude == 0 && o.Longitude == 0 {
		o.Latitude, o.Longitude = 50.78, 6.08
	}
	return o
}

// validate requires a whole-nanosecond timestep so that every hour holds
// exactly TicksPerHour steps.
func (o Options) validate() error {
	if time.Hour%time.Duration(o.TicksPerHour) != 0 {
		return fmt.Errorf("%w: %d ticks per hour do not divide the hour evenly", ErrOptions, o.TicksPerHour)
	}
	return nil
}

// Builder turns options into a scenario.
type Builder func(Options) (Scenario, error)

var registry = map[string]Builder{
	"case10":        Case10,
	"case10-staged": Case10Staged,
}

// Lookup returns the builder registered under name.
func Lookup(name string) (Builder, bool) {
	b, ok := registry[name]
	return b, ok
}

// Names lists the registered cases in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Case10Building is the envelope of VDI 6007 test case 10. The air heat
// capacity is zero, so the air node carries no storage.
func Case10Building() zone.BuildingParameters {
	return zone.BuildingParameters{
		R1i:            0.000779671554640369,
		C1i:            12333949.4129606,
		Ai:             58,
		RRest:          0.011638548,
		R1o:            0.00171957697767797,
		C1o:            4338751.41,
		Ao:             zone.Segments{28},
		At:             zone.Segments{7},
		Vair:           52.5,
		RhoAir:         1.19,
		CAir:           0,
		SplitFac:       0.09,
		G:              1,
		AlphaIWI:       2.12,
		AlphaOWI:       2.398,
		AlphaWall:      28 * 9.75,
		WithInnerWalls: true,
	}
}

func case10Weighting() eqairtemp.Params {
	return eqairtemp.Params{
		AExt:         0.7,
		EExt:         0.9,
		WfWall:       []float64{0.04646093176283288},
		WfWin:        []float64{0.32441554918476245},
		WfGround:     0.6291235190524047,
		TGround:      kelvin + 15,
		AlphaWallOut: 20,
		AlphaRadWall: 5,
	}
}

func dailyInputs(o Options) (solar, outdoor []float64, err error) {
	if o.SolarFile != "" {
		raw, err := LoadTable(o.SolarFile, 1)
		if err != nil {
			return nil, nil, err
		}
		if len(raw) < hoursPerDay {
			return nil, nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrTable, o.SolarFile, len(raw), hoursPerDay)
		}
		solar = raw[:hoursPerDay]
	} else {
		solar = SolarProfile(o.Date, o.Latitude, o.Longitude, 600)
	}

	if o.OutdoorFile != "" {
		raw, err := LoadTable(o.OutdoorFile, 1)
		if err != nil {
			return nil, nil, err
		}
		if len(raw) < 2*hoursPerDay {
			return nil, nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrTable, o.OutdoorFile, len(raw), 2*hoursPerDay)
		}
		outdoor = make([]float64, hoursPerDay)
		for h := range outdoor {
			outdoor[h] = raw[2*h]
		}
	} else {
		outdoor = OutdoorProfile(22, 5)
	}
	return shade(solar, 100, 0.15), outdoor, nil
}

// Case10 is VDI 6007 test case 10: a free-floating zone with internal gains
// during office hours and a repeating daily weather profile.
func Case10(o Options) (Scenario, error) {
	o = o.withDefaults()
	if err := o.validate(); err != nil {
		return Scenario{}, err
	}
	n := o.Days * hoursPerDay * o.TicksPerHour

	solarDay, outdoorDay, err := dailyInputs(o)
	if err != nil {
		return Scenario{}, err
	}
	solar := tile(repeatEach(solarDay, o.TicksPerHour), o.Days)
	outdoor := tile(repeatEach(outdoorDay, o.TicksPerHour), o.Days)

	zeros := columns(filled(n, 0))
	equivalent, err := eqairtemp.Compute(zeros, filled(n, kelvin), outdoor, zeros, case10Weighting())
	if err != nil {
		return Scenario{}, fmt.Errorf("case10 equivalent temperature: %w", err)
	}

	office := tile(officeHours(o.TicksPerHour), o.Days)
	const krad = 1.0

	params := Case10Building()
	if o.Building != nil {
		params = *o.Building
	}
	initial := kelvin + 17.6

	return Scenario{
		Name:   "case10",
		Params: params,
		Driving: zone.DrivingSeries{
			Outdoor:       outdoor,
			SolarWindows:  columns(solar),
			EquivalentAir: equivalent,
			AlphaRad:      filled(n, 5),
			VentRate:      filled(n, 0),
			Convective:    scale(office, 200+80),
			Radiative:     scale(office, 80*krad),
		},
		Control:       stagedControl(n, 0, 600, []float64{1e10, 1e10, 1e10}, []float64{-1e10, -1e10, -1e10}, []int{0, 1, 2}, []int{0, 1, 2}),
		Initial:       zone.State{Air: initial, InnerWall: initial, OuterWall: initial},
		TicksPerHour:  o.TicksPerHour,
		Days:          o.Days,
		ReferencePath: o.ReferenceFile,
		Threshold:     0.1,
	}, nil
}

// Case10Staged drives the case 10 zone with a 20..26 degC comfort band served
// by three small heaters and three coolers dispatched largest first.
func Case10Staged(o Options) (Scenario, error) {
	s, err := Case10(o)
	if err != nil {
		return Scenario{}, err
	}
	n := s.Driving.Len()
	s.Name = "case10-staged"
	s.Control = stagedControl(n, kelvin+20, kelvin+26,
		[]float64{150, 150, 300}, []float64{-200, -200, -400},
		[]int{0, 1, 2}, []int{2, 1, 0})
	s.ReferencePath = ""
	return s, nil
}

func stagedControl(n int, heat, cool float64, heaters, coolers []float64, heaterOrder, coolerOrder []int) zone.ControlInputs {
	c := zone.ControlInputs{
		HeatingSetpoint: filled(n, heat),
		CoolingSetpoint: filled(n, cool),
		HeaterLimits:    make([][]float64, n),
		CoolerLimits:    make([][]float64, n),
		HeaterOrder:     heaterOrder,
		CoolerOrder:     coolerOrder,
	}
	for t := range n {
		c.HeaterLimits[t] = heaters
		c.CoolerLimits[t] = coolers
	}
	return c
}
