// Package eqairtemp combines solar radiation, sky and dry-bulb temperatures
// into the single equivalent outdoor temperature that drives a VDI 6007
// zone's outer wall.
package eqairtemp

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

var (
	ErrLength  = errors.New("eqairtemp: series length mismatch")
	ErrWeights = errors.New("eqairtemp: weight count does not match columns")
	ErrParams  = errors.New("eqairtemp: invalid parameters")
)

type Params struct {
	AExt float64 `yaml:"a_ext"` // short-wave absorption of outer walls
	EExt float64 `yaml:"e_ext"` // long-wave emissivity of outer walls

	WfWall   []float64 `yaml:"wf_wall"`   // weight of each wall orientation
	WfWin    []float64 `yaml:"wf_win"`    // weight of each window orientation
	WfGround float64   `yaml:"wf_ground"` // weight of the ground-coupled surface
	TGround  float64   `yaml:"t_ground"`  // K

	AlphaWallOut float64 `yaml:"alpha_wall_out"` // outside convective coefficient, W/(m2 K)
	AlphaRadWall float64 `yaml:"alpha_rad_wall"` // outside radiative coefficient, W/(m2 K)

	WithLongwave bool `yaml:"with_longwave"`
}

func (p *Params) Validate() error {
	if !(p.AlphaWallOut+p.AlphaRadWall > 0) {
		return fmt.Errorf("%w: alpha_wall_out + alpha_rad_wall must be positive", ErrParams)
	}
	if p.AExt < 0 || p.EExt < 0 {
		return fmt.Errorf("%w: negative absorption or emissivity", ErrParams)
	}
	return nil
}

// Compute returns the equivalent air temperature per timestep.
//
// solarWalls is [t][wall orientation] in W/m2, sunblind is [t][window
// orientation] as closed fraction 0..1. The long-wave correction only applies
// when WithLongwave is set; windows then lose it in proportion to the open
// sunblind fraction.
func Compute(solarWalls [][]float64, skyTemp, dryBulb []float64, sunblind [][]float64, p Params) ([]float64, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := len(dryBulb)
	if len(solarWalls) != n || len(skyTemp) != n || len(sunblind) != n {
		return nil, fmt.Errorf("%w: solar %d, sky %d, dry bulb %d, sunblind %d",
			ErrLength, len(solarWalls), len(skyTemp), n, len(sunblind))
	}

	alpha := p.AlphaWallOut + p.AlphaRadWall
	out := make([]float64, n)
	wall := make([]float64, len(p.WfWall))
	win := make([]float64, len(p.WfWin))

	for t := range n {
		if len(solarWalls[t]) != len(p.WfWall) {
			return nil, fmt.Errorf("%w: %d wall columns at %d, %d weights", ErrWeights, len(solarWalls[t]), t, len(p.WfWall))
		}
		if len(sunblind[t]) != len(p.WfWin) {
			return nil, fmt.Errorf("%w: %d window columns at %d, %d weights", ErrWeights, len(sunblind[t]), t, len(p.WfWin))
		}

		var longwave float64
		if p.WithLongwave {
			longwave = (skyTemp[t] - dryBulb[t]) * p.EExt * p.AlphaRadWall / alpha
		}
		for i, h := range solarWalls[t] {
			wall[i] = dryBulb[t] + longwave + h*p.AExt/alpha
		}
		for i, closed := range sunblind[t] {
			win[i] = dryBulb[t] + longwave*(1-closed)
		}
		out[t] = floats.Dot(wall, p.WfWall) + floats.Dot(win, p.WfWin) + p.TGround*p.WfGround
	}
	return out, nil
}
