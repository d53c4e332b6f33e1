package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/Agrid-Dev/vdizone/internal/simulator"
)

// FakeSimulationService is a reusable fake implementing ports.SimulationService.
// Put ONLY what multiple test packages need here.
type FakeSimulationService struct {
	mu sync.Mutex
	S  simulator.Snapshot

	SelectCalled bool
	SelectArg    string
	SelectErr    error

	RunCaseCalled bool
	RunCaseArg    string
	RunCaseResult simulator.Summary
	RunCaseErr    error

	StartCalled bool
	StartArg    string
	StartErr    error
}

func NewFakeSimulationService() *FakeSimulationService {
	return &FakeSimulationService{
		S: simulator.Snapshot{
			Cases:    []string{"case10", "case10-staged"},
			Selected: "case10",
		},
		RunCaseResult: simulator.Summary{
			Case:      "case10",
			Timesteps: 86400,
			FinalAir:  21.5,
			MinAir:    17.6,
			MaxAir:    29.25,
			Passed:    true,
		},
	}
}

func (f *FakeSimulationService) Get() simulator.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.S
}

func (f *FakeSimulationService) Cases() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.S.Cases...)
}

func (f *FakeSimulationService) Select(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SelectCalled = true
	f.SelectArg = name
	if f.SelectErr != nil {
		return f.SelectErr
	}
	if !slices.Contains(f.S.Cases, name) {
		return simulator.ErrUnknownCase
	}
	f.S.Selected = name
	return nil
}

func (f *FakeSimulationService) RunCase(_ context.Context, name string) (simulator.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RunCaseCalled = true
	f.RunCaseArg = name
	if f.RunCaseErr != nil {
		return simulator.Summary{}, f.RunCaseErr
	}
	sum := f.RunCaseResult
	if name != "" {
		sum.Case = name
	}
	f.S.Runs++
	f.S.Last = &sum
	return sum, nil
}

func (f *FakeSimulationService) Start(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StartCalled = true
	f.StartArg = name
	if f.StartErr != nil {
		return f.StartErr
	}
	if name == "" {
		name = f.S.Selected
	}
	sum := f.RunCaseResult
	sum.Case = name
	f.S.Runs++
	f.S.Last = &sum
	return nil
}

