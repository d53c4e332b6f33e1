// Package simulator holds the long-lived simulation service behind the
// transports: the case registry, the selected case and the last run summary.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Agrid-Dev/vdizone/internal/verification"
)

var ErrUnknownCase = verification.ErrUnknownCase

const kelvin = 273.15

// Summary is the transport-facing digest of one run. Temperatures are degC.
type Summary struct {
	Case        string          `json:"case"`
	Timesteps   int             `json:"timesteps"`
	FinalAir    float64         `json:"final_air_temperature"`
	MinAir      float64         `json:"min_air_temperature"`
	MaxAir      float64         `json:"max_air_temperature"`
	MeanPower   float64         `json:"mean_power"`
	Unmet       int             `json:"unmet_steps"`
	Passed      bool            `json:"passed"`
	Deviations  map[int]float64 `json:"deviations,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	ElapsedSecs float64         `json:"elapsed_seconds"`
}

// Summarize digests a verification result.
func Summarize(r *verification.Result, started time.Time) Summary {
	out := r.Output
	s := Summary{
		Case:        r.Case,
		Timesteps:   r.Timesteps,
		Unmet:       out.Unmet,
		Passed:      r.Passed,
		Deviations:  r.Deviations,
		StartedAt:   started,
		ElapsedSecs: r.Elapsed.Seconds(),
	}
	if n := len(out.AirTemperature); n > 0 {
		s.FinalAir = out.AirTemperature[n-1] - kelvin
		s.MinAir = floats.Min(out.AirTemperature) - kelvin
		s.MaxAir = floats.Max(out.AirTemperature) - kelvin
		s.MeanPower = stat.Mean(out.Power, nil)
	}
	return s
}

type Snapshot struct {
	Cases    []string `json:"cases"`
	Selected string   `json:"selected"`
	Running  int      `json:"running"`
	Runs     int      `json:"runs"`
	Last     *Summary `json:"last,omitempty"`
}

// Runner runs a named case. verification.Verify is the production runner.
type Runner func(name string, o verification.Options, log *slog.Logger) (*verification.Result, error)

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, s Summary) error
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithRunner(r Runner) Option {
	return func(s *Service) {
		if r != nil {
			s.run = r
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.rec = r }
}

type Service struct {
	mu   sync.RWMutex
	s    Snapshot
	opts verification.Options
	run  Runner
	rec  Recorder
	log  *slog.Logger
	wg   sync.WaitGroup
}

// New builds a service over the registered cases. selected may be empty, in
// which case the first registered case is selected.
func New(selected string, o verification.Options, opts ...Option) (*Service, error) {
	cases := verification.Names()
	if selected == "" {
		selected = cases[0]
	}
	if _, ok := verification.Lookup(selected); !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCase, selected)
	}
	s := &Service{
		s:    Snapshot{Cases: cases, Selected: selected},
		opts: o,
		run:  verification.Verify,
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "simulator")
	return s, nil
}

func (s *Service) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.s
	snap.Cases = append([]string(nil), s.s.Cases...)
	if s.s.Last != nil {
		last := *s.s.Last
		snap.Last = &last
	}
	return snap
}

func (s *Service) Cases() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.s.Cases...)
}

func (s *Service) Select(name string) error {
	if _, ok := verification.Lookup(name); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownCase, name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.s.Selected = name
	return nil
}

// RunCase runs the named case to completion and records its summary. An
// empty name runs the selected case.
func (s *Service) RunCase(ctx context.Context, name string) (Summary, error) {
	name, err := s.resolve(name)
	if err != nil {
		return Summary{}, err
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}

	s.mu.Lock()
	s.s.Running++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.s.Running--
		s.mu.Unlock()
	}()

	started := time.Now()
	s.log.Info("run started", "case", name)
	res, err := s.run(name, s.opts, s.log)
	if err != nil {
		s.log.Error("run failed", "case", name, "err", err)
		return Summary{}, fmt.Errorf("run %s: %w", name, err)
	}
	sum := Summarize(res, started)

	s.mu.Lock()
	s.s.Runs++
	s.s.Last = &sum
	s.mu.Unlock()

	if s.rec != nil {
		if err := s.rec.Record(ctx, sum); err != nil {
			s.log.Warn("run not recorded", "case", name, "err", err)
		}
	}
	return sum, nil
}

// Start runs the named case in the background. Errors other than an unknown
// case are only logged.
func (s *Service) Start(ctx context.Context, name string) error {
	name, err := s.resolve(name)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.RunCase(ctx, name); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Debug("background run ended with error", "case", name, "err", err)
		}
	}()
	return nil
}

// Wait blocks until every background run has returned.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) resolve(name string) (string, error) {
	if name == "" {
		s.mu.RLock()
		name = s.s.Selected
		s.mu.RUnlock()
	}
	if _, ok := verification.Lookup(name); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCase, name)
	}
	return name, nil
}
