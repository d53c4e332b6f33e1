package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/stat"

	"github.com/Agrid-Dev/vdizone/internal/verification"
)

type hourRow struct {
	Day            int     `csv:"day"`
	Hour           int     `csv:"hour"`
	AirTemperature float64 `csv:"air_temperature_c"`
	Power          float64 `csv:"power_w"`
	InnerWallFlow  float64 `csv:"inner_wall_flow_w"`
	OuterWallFlow  float64 `csv:"outer_wall_flow_w"`
}

func hourlyMean(values []float64, ticksPerHour, hour int) float64 {
	return stat.Mean(values[hour*ticksPerHour:(hour+1)*ticksPerHour], nil)
}

// ExportCase writes the hourly means of one result to path.
func ExportCase(res *verification.Result, ticksPerHour int, path string) error {
	out := res.Output
	rows := make([]*hourRow, len(res.Hourly))
	for h, temp := range res.Hourly {
		rows[h] = &hourRow{
			Day:            h/24 + 1,
			Hour:           h%24 + 1,
			AirTemperature: temp,
			Power:          hourlyMean(out.Power, ticksPerHour, h),
			InnerWallFlow:  hourlyMean(out.InnerWallFlow, ticksPerHour, h),
			OuterWallFlow:  hourlyMean(out.OuterWallFlow, ticksPerHour, h),
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write CSV: %v", err)
	}
	return nil
}

func main() {
	var (
		cases    string
		days     int
		ticks    int
		outDir   string
		parallel int
	)
	flag.StringVar(&cases, "cases", strings.Join(verification.Names(), ","), "comma separated case names")
	flag.IntVar(&days, "days", 60, "simulated days")
	flag.IntVar(&ticks, "ticks", 60, "timesteps per hour")
	flag.StringVar(&outDir, "out", ".", "output directory")
	flag.IntVar(&parallel, "parallel", 2, "cases run at once")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	opts := verification.Options{Days: days, TicksPerHour: ticks}

	var scenarios []verification.Scenario
	for _, name := range strings.Split(cases, ",") {
		build, ok := verification.Lookup(strings.TrimSpace(name))
		if !ok {
			log.Error("unknown case", "case", name)
			os.Exit(2)
		}
		s, err := build(opts)
		if err != nil {
			log.Error("build case", "case", name, "err", err)
			os.Exit(1)
		}
		scenarios = append(scenarios, s)
	}

	results, err := verification.RunAll(context.Background(), scenarios, parallel, log)
	if err != nil {
		log.Error("run cases", "err", err)
		os.Exit(1)
	}
	for i, res := range results {
		path := filepath.Join(outDir, res.Case+".csv")
		if err := ExportCase(res, scenarios[i].TicksPerHour, path); err != nil {
			log.Error("export", "case", res.Case, "err", err)
			os.Exit(1)
		}
		log.Info("exported", "case", res.Case, "path", path, "unmet", res.Output.Unmet)
	}
}
