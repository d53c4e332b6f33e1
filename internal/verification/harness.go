package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Agrid-Dev/vdizone/internal/zone"
)

var ErrUnknownCase = errors.New("unknown case")

// checkedDays are the days compared against a reference, 1-based.
var checkedDays = []int{1, 10, 60}

// daysWithin returns the checked days a run of the given length reaches.
func daysWithin(days int) []int {
	var out []int
	for _, d := range checkedDays {
		if d <= days {
			out = append(out, d)
		}
	}
	return out
}

// Result summarises one scenario run.
type Result struct {
	Case       string
	Timesteps  int
	Output     *zone.Output
	Hourly     []float64       // hourly mean air temperature, degC
	Deviations map[int]float64 // day -> max abs hourly deviation, K
	Passed     bool
	Elapsed    time.Duration
}

// HourlyMeans averages a per-step temperature series in K over each hour and
// returns degC.
func HourlyMeans(temps []float64, ticksPerHour int) []float64 {
	hours := len(temps) / ticksPerHour
	out := make([]float64, hours)
	for h := range out {
		out[h] = stat.Mean(temps[h*ticksPerHour:(h+1)*ticksPerHour], nil) - kelvin
	}
	return out
}

// Day returns the 24 hourly values of the 1-based day, or nil when the series
// is too short.
func Day(hourly []float64, day int) []float64 {
	lo, hi := (day-1)*hoursPerDay, day*hoursPerDay
	if day < 1 || hi > len(hourly) {
		return nil
	}
	return hourly[lo:hi]
}

// MaxAbsDeviation is the largest absolute elementwise difference.
func MaxAbsDeviation(a, b []float64) float64 {
	return floats.Distance(a, b, math.Inf(1))
}

// RunScenario simulates s and, when it names a reference file, compares
// days 1, 10 and 60 against it. The scenario must then cover all of them.
func RunScenario(s Scenario, log *slog.Logger) (*Result, error) {
	if log == nil {
		log = slog.Default()
	}
	var ref map[int][]float64
	if s.ReferencePath != "" {
		if last := checkedDays[len(checkedDays)-1]; s.Days < last {
			return nil, fmt.Errorf("%w: %s runs %d days, reference checks day %d", ErrReference, s.Name, s.Days, last)
		}
		day1, day10, day60, err := LoadReference(s.ReferencePath)
		if err != nil {
			return nil, err
		}
		ref = map[int][]float64{1: day1, 10: day10, 60: day60}
	}

	start := time.Now()
	sim, err := zone.New(s.Params, s.Timestep(), zone.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	out, err := sim.Run(s.Driving, s.Control, s.Initial)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	res := &Result{
		Case:       s.Name,
		Timesteps:  out.Len(),
		Output:     out,
		Hourly:     HourlyMeans(out.AirTemperature, s.TicksPerHour),
		Deviations: map[int]float64{},
		Passed:     true,
		Elapsed:    time.Since(start),
	}

	if ref != nil {
		res.compare(checkedDays, func(day int) []float64 { return ref[day] }, s.Threshold, log)
	}

	log.Info("case finished",
		"case", res.Case,
		"timesteps", res.Timesteps,
		"unmet", out.Unmet,
		"passed", res.Passed,
		"elapsed", res.Elapsed)
	return res, nil
}

// compare checks each of days against reference. A day that cannot be
// compared fails the result.
func (r *Result) compare(days []int, reference func(day int) []float64, threshold float64, log *slog.Logger) {
	for _, day := range days {
		got, want := Day(r.Hourly, day), reference(day)
		if got == nil || len(want) != len(got) {
			log.Warn("day not compared", "case", r.Case, "day", day, "hours", len(got), "reference_hours", len(want))
			r.Passed = false
			continue
		}
		dev := MaxAbsDeviation(got, want)
		r.Deviations[day] = dev
		if dev > threshold {
			r.Passed = false
		}
	}
}

// Verify builds the named case and checks it. Without a reference file the
// case is compared against itself at half the timestep, on the checked days
// the run reaches.
func Verify(name string, o Options, log *slog.Logger) (*Result, error) {
	build, ok := Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCase, name)
	}
	s, err := build(o)
	if err != nil {
		return nil, err
	}
	if s.ReferencePath != "" {
		return RunScenario(s, log)
	}

	fine := o
	fine.TicksPerHour = 2 * s.TicksPerHour
	refScenario, err := build(fine)
	if err != nil {
		return nil, err
	}
	ref, err := RunScenario(refScenario, log)
	if err != nil {
		return nil, fmt.Errorf("refined reference: %w", err)
	}
	res, err := RunScenario(s, log)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	res.compare(daysWithin(s.Days), func(day int) []float64 { return Day(ref.Hourly, day) }, s.Threshold, log)
	return res, nil
}

// RunAll runs scenarios concurrently, at most limit at a time. Results keep
// the order of scenarios.
func RunAll(ctx context.Context, scenarios []Scenario, limit int, log *slog.Logger) ([]*Result, error) {
	results := make([]*Result, len(scenarios))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, s := range scenarios {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := RunScenario(s, log)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
