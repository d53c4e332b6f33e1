package zone

import (
	"errors"
	"fmt"
)

var (
	ErrNonPositive      = errors.New("resistance and capacitance must be strictly positive")
	ErrInvalidParameter = errors.New("invalid building parameter")
	ErrSegments         = errors.New("segment counts do not match")
	ErrTimestep         = errors.New("timestep must be positive")
	ErrSeriesLength     = errors.New("series length mismatch")
	ErrDrivingValue     = errors.New("invalid driving value")
	ErrSetpointOrder    = errors.New("setpoints not finite or cooling below heating")
	ErrStageMatrix      = errors.New("malformed stage limit matrix")
	ErrStageOrder       = errors.New("stage order is not a permutation of stage indices")

	ErrSingular  = errors.New("network matrix is not positive definite")
	ErrNonFinite = errors.New("non-finite value in network solution")
)

// StepError reports a numeric failure at a given timestep. No partial output
// accompanies it.
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("timestep %d: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
