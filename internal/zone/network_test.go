package zone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sunnyDrive() Drive {
	return Drive{
		Outdoor:       kelvin + 30,
		EquivalentAir: kelvin + 35,
		AlphaRad:      5,
		VentRate:      2,
		Convective:    200,
		Radiative:     80,
		Solar:         700,
	}
}

func TestResponseIsLinearInPower(t *testing.T) {
	p := testParams()
	r := respond(t, p, initialState(kelvin+22), sunnyDrive())

	s0, f0 := r.Apply(0)
	s1, f1 := r.Apply(500)
	s2, f2 := r.Apply(1000)
	assert.InDelta(t, r.FreeAir(), s0.Air, 1e-12)
	assert.Greater(t, s1.Air, s0.Air)
	assert.InDelta(t, s2.Air-s1.Air, s1.Air-s0.Air, 1e-9)
	assert.InDelta(t, s2.OuterWall-s1.OuterWall, s1.OuterWall-s0.OuterWall, 1e-9)
	assert.InDelta(t, f2.InnerWall-f1.InnerWall, f1.InnerWall-f0.InnerWall, 1e-9)
	assert.InDelta(t, f2.OuterWall-f1.OuterWall, f1.OuterWall-f0.OuterWall, 1e-9)
}

func TestPowerForHitsTarget(t *testing.T) {
	for _, inner := range []bool{true, false} {
		p := testParams()
		p.WithInnerWalls = inner
		r := respond(t, p, initialState(kelvin+22), sunnyDrive())
		for _, target := range []float64{kelvin + 18, kelvin + 22, kelvin + 26} {
			s, _ := r.Apply(r.PowerFor(target))
			assert.InDelta(t, target, s.Air, 1e-9, "inner walls %v, target %v", inner, target)
		}
	}
}

// The air node's implicit balance: storage equals the sum of flows into it.
func TestAirNodeEnergyBalance(t *testing.T) {
	const dt = 10 * time.Minute
	d := sunnyDrive()
	for _, inner := range []bool{true, false} {
		p := testParams()
		p.WithInnerWalls = inner
		prev := State{Air: kelvin + 21, InnerWall: kelvin + 20, OuterWall: kelvin + 23}
		r := respond(t, p, prev, d)
		const q = 350.0
		s, f := r.Apply(q)

		stored := p.AirCapacity() / dt.Seconds() * (s.Air - prev.Air)
		vent := d.VentRate * p.AirCapacity() / 3600 * (d.Outdoor - s.Air)
		gains := d.Convective + p.SplitFac*d.Solar + q
		if !inner {
			rad := d.Radiative + (1-p.SplitFac)*d.Solar
			gains += (1 - p.outerShare()) * rad
		}
		assert.InDelta(t, stored, f.InnerWall+f.OuterWall+vent+gains, 1e-6, "inner walls %v", inner)
	}
}

func TestTwoNodeKeepsInnerWallState(t *testing.T) {
	p := testParams()
	p.WithInnerWalls = false
	prev := State{Air: kelvin + 21, InnerWall: kelvin + 5, OuterWall: kelvin + 23}
	r := respond(t, p, prev, sunnyDrive())
	s, f := r.Apply(0)
	assert.Equal(t, prev.InnerWall, s.InnerWall)
	assert.Zero(t, f.InnerWall)
}

func TestZeroAirCapacityIsSolvable(t *testing.T) {
	p := testParams()
	p.CAir = 0
	require.NoError(t, p.Validate())
	r, err := NewNetwork(&p, time.Minute).Respond(initialState(kelvin+20), sunnyDrive())
	require.NoError(t, err)
	assert.Positive(t, r.PowerFor(kelvin+40))
}
