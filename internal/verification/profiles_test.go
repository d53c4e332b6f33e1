package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRepeatAndTile(t *testing.T) {
	assert.Equal(t, []float64{1, 1, 2, 2}, repeatEach([]float64{1, 2}, 2))
	assert.Equal(t, []float64{1, 2, 1, 2, 1, 2}, tile([]float64{1, 2}, 3))
	assert.Equal(t, [][]float64{{3}, {4}}, columns([]float64{3, 4}))
}

func TestShade(t *testing.T) {
	got := shade([]float64{50, 100, 200}, 100, 0.15)
	assert.Equal(t, []float64{50, 100, 30}, got)
}

func TestSolarProfile(t *testing.T) {
	summer := SolarProfile(time.Date(2015, time.July, 15, 0, 0, 0, 0, time.UTC), 50.78, 6.08, 600)
	assert.Len(t, summer, 24)
	assert.Zero(t, summer[0], "midnight")
	assert.Greater(t, summer[11], 400.0, "noon")
	for _, v := range summer {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 600.0)
	}

	winter := SolarProfile(time.Date(2015, time.January, 15, 0, 0, 0, 0, time.UTC), 50.78, 6.08, 600)
	assert.Less(t, winter[11], summer[11])
}

func TestOutdoorProfile(t *testing.T) {
	p := OutdoorProfile(22, 5)
	assert.InDelta(t, kelvin+27, p[15], 1e-9)
	assert.InDelta(t, kelvin+17, p[3], 1e-9)
}

func TestOfficeHours(t *testing.T) {
	day := officeHours(2)
	assert.Len(t, day, 48)
	assert.Zero(t, day[13])
	assert.Equal(t, 1.0, day[14])
	assert.Equal(t, 1.0, day[33])
	assert.Zero(t, day[34])
}
