package verification

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"

	"github.com/Agrid-Dev/vdizone/internal/zone"
)

var (
	ErrReference = errors.New("malformed reference table")
	ErrTable     = errors.New("malformed numeric table")
)

// referenceRow is one hour of a reference result file with header
// hour,day1,day10,day60. Temperatures are in degC.
type referenceRow struct {
	Hour  int     `csv:"hour"`
	Day1  float64 `csv:"day1"`
	Day10 float64 `csv:"day10"`
	Day60 float64 `csv:"day60"`
}

// LoadReference reads hourly reference air temperatures for days 1, 10 and 60.
func LoadReference(path string) (day1, day10, day60 []float64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open reference: %w", err)
	}
	defer f.Close()

	var rows []*referenceRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, nil, nil, fmt.Errorf("parse reference %s: %w", path, err)
	}
	if len(rows) != hoursPerDay {
		return nil, nil, nil, fmt.Errorf("%w: %s has %d rows, want %d", ErrReference, path, len(rows), hoursPerDay)
	}
	for _, r := range rows {
		day1 = append(day1, r.Day1)
		day10 = append(day10, r.Day10)
		day60 = append(day60, r.Day60)
	}
	return day1, day10, day60, nil
}

// LoadTable reads one column of a plain numeric table. Rows may be comma or
// whitespace separated; blank lines and lines starting with '#' are skipped.
func LoadTable(path string, column int) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open table: %w", err)
	}
	defer f.Close()

	var values []float64
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var fields []string
		if strings.Contains(text, ",") {
			fields = strings.Split(text, ",")
		} else {
			fields = strings.Fields(text)
		}
		if column < 0 || column >= len(fields) {
			return nil, fmt.Errorf("%w: %s:%d has %d columns, want column %d", ErrTable, path, line, len(fields), column)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[column]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %v", ErrTable, path, line, err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read table: %w", err)
	}
	return values, nil
}

// LoadBuilding reads envelope parameters from a YAML document.
func LoadBuilding(path string) (zone.BuildingParameters, error) {
	var p zone.BuildingParameters
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("read building: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse building yaml: %w", err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("building %s: %w", path, err)
	}
	return p, nil
}
