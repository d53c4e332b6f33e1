package zone

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Segments is a per-wall-segment quantity. Every use reduces it by summation.
type Segments []float64

func (s Segments) Sum() float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Sum(s)
}

// Weighted returns sum_k s[k]*v[k]. v must have len(s) entries.
func (s Segments) Weighted(v []float64) float64 {
	return floats.Dot(s, v)
}

// BuildingParameters describe one zone's envelope. Temperatures are in K,
// resistances in K/W, capacitances in J/K, areas in m2.
type BuildingParameters struct {
	R1i   float64 `yaml:"r1i" json:"r1i"`
	C1i   float64 `yaml:"c1i" json:"c1i"`
	Ai    float64 `yaml:"ai" json:"ai"`
	RRest float64 `yaml:"r_rest" json:"r_rest"`
	R1o   float64 `yaml:"r1o" json:"r1o"`
	C1o   float64 `yaml:"c1o" json:"c1o"`

	Ao Segments `yaml:"ao" json:"ao"` // outer wall area per segment
	At Segments `yaml:"at" json:"at"` // transparent area per window segment

	Vair   float64 `yaml:"v_air" json:"v_air"`
	RhoAir float64 `yaml:"rho_air" json:"rho_air"`
	CAir   float64 `yaml:"c_air" json:"c_air"`

	SplitFac float64 `yaml:"splitfac" json:"splitfac"` // convective fraction of transmitted solar
	G        float64 `yaml:"g" json:"g"`

	AlphaIWI  float64 `yaml:"alpha_iwi" json:"alpha_iwi"`
	AlphaOWI  float64 `yaml:"alpha_owi" json:"alpha_owi"`
	AlphaWall float64 `yaml:"alpha_wall" json:"alpha_wall"` // W/K, outer surface to equivalent temperature

	WithInnerWalls bool `yaml:"with_inner_walls" json:"with_inner_walls"`
}

func (p *BuildingParameters) Validate() error {
	type field struct {
		name string
		v    float64
	}
	positive := []field{
		{"RRest", p.RRest},
		{"R1o", p.R1o},
		{"C1o", p.C1o},
		{"R1i", p.R1i},
		{"C1i", p.C1i},
	}
	for _, f := range positive {
		if !(f.v > 0) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s = %v", ErrNonPositive, f.name, f.v)
		}
	}
	if !(p.AlphaWall > 0) {
		return fmt.Errorf("%w: alphaWall = %v", ErrInvalidParameter, p.AlphaWall)
	}

	if len(p.Ao) == 0 || len(p.Ao) != len(p.At) {
		return fmt.Errorf("%w: len(Ao) = %d, len(At) = %d", ErrSegments, len(p.Ao), len(p.At))
	}
	for i := range p.Ao {
		if p.Ao[i] < 0 || p.At[i] < 0 {
			return fmt.Errorf("%w: negative area in segment %d", ErrInvalidParameter, i)
		}
	}
	if !(p.Ao.Sum() > 0) {
		return fmt.Errorf("%w: outer wall area must be positive", ErrInvalidParameter)
	}

	nonNegative := []field{
		{"Ai", p.Ai},
		{"Vair", p.Vair},
		{"rhoair", p.RhoAir},
		{"cair", p.CAir},
		{"g", p.G},
		{"alphaiwi", p.AlphaIWI},
		{"alphaowi", p.AlphaOWI},
	}
	for _, f := range nonNegative {
		if f.v < 0 || math.IsNaN(f.v) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidParameter, f.name, f.v)
		}
	}
	if p.SplitFac < 0 || p.SplitFac > 1 {
		return fmt.Errorf("%w: splitfac = %v not in [0, 1]", ErrInvalidParameter, p.SplitFac)
	}
	return nil
}

// AirCapacity is the heat capacity of the zone air, J/K.
func (p *BuildingParameters) AirCapacity() float64 {
	return p.Vair * p.RhoAir * p.CAir
}

// outerShare is the fraction of radiative gains landing on the outer wall
// surface. The remainder goes to the inner wall surface.
func (p *BuildingParameters) outerShare() float64 {
	ao := p.Ao.Sum()
	return ao / (ao + p.Ai)
}
