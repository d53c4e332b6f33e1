package verification

import (
	"math"
	"time"

	"github.com/sixdouglas/suncalc"
)

const (
	hoursPerDay = 24
	kelvin      = 273.15
)

// repeatEach holds every value for k consecutive steps.
func repeatEach(values []float64, k int) []float64 {
	out := make([]float64, 0, len(values)*k)
	for _, v := range values {
		for range k {
			out = append(out, v)
		}
	}
	return out
}

// tile concatenates times copies of values.
func tile(values []float64, times int) []float64 {
	out := make([]float64, 0, len(values)*times)
	for range times {
		out = append(out, values...)
	}
	return out
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func columns(values []float64) [][]float64 {
	out := make([][]float64, len(values))
	for i, v := range values {
		out[i] = []float64{v}
	}
	return out
}

// SolarProfile is a clear-sky hourly irradiance on a window, W/m2, scaled by
// the sine of the sun altitude at mid-hour (UTC) for the given day and place.
func SolarProfile(day time.Time, lat, lon, peak float64) []float64 {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 30, 0, 0, time.UTC)
	out := make([]float64, hoursPerDay)
	for h := range out {
		pos := suncalc.GetPosition(start.Add(time.Duration(h)*time.Hour), lat, lon)
		out[h] = peak * math.Max(0, math.Sin(pos.Altitude))
	}
	return out
}

// shade applies an external sunblind: irradiance above threshold is reduced
// to factor of its value.
func shade(values []float64, threshold, factor float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if v > threshold {
			v *= factor
		}
		out[i] = v
	}
	return out
}

// OutdoorProfile is a sinusoidal daily dry-bulb profile in K with its
// maximum at 15:00.
func OutdoorProfile(meanC, amplitude float64) []float64 {
	out := make([]float64, hoursPerDay)
	for h := range out {
		out[h] = kelvin + meanC + amplitude*math.Sin(2*math.Pi*(float64(h)-9)/hoursPerDay)
	}
	return out
}

// officeHours is 1 between 07:00 and 17:00 and 0 otherwise, one value per
// step over one day.
func officeHours(ticksPerHour int) []float64 {
	day := make([]float64, hoursPerDay*ticksPerHour)
	for i := 7 * ticksPerHour; i < 17*ticksPerHour; i++ {
		day[i] = 1
	}
	return day
}

func scale(values []float64, k float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * k
	}
	return out
}
