package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange reports a forcing value outside its module's validated range.
	ErrOutOfRange = errors.New("forcing out of range")
	// ErrInvalidScenario reports a malformed scenario descriptor.
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrDuplicateScenario reports two scenarios with the same key in one module.
	ErrDuplicateScenario = errors.New("duplicate scenario")
	// ErrInvalidGrid reports a grid domain that violates its construction invariants.
	ErrInvalidGrid = errors.New("invalid grid domain")
	// ErrGridTooLarge reports a grid domain above MaxCells.
	ErrGridTooLarge = errors.New("grid domain too large")
	// ErrUnstable reports a non-finite or invariant-violating value mid-run.
	ErrUnstable = errors.New("numerical instability")
	// ErrMissingWindField reports a thermal run without a usable wind field.
	ErrMissingWindField = errors.New("missing wind field")
)

// ValidationError describes a single forcing value rejected by range validation.
type ValidationError struct {
	Field string
	Value float64
	Range Range
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s = %g outside [%g, %g] %s", e.Field, e.Value, e.Range.Min, e.Range.Max, e.Range.Unit)
}

func (e *ValidationError) Unwrap() error { return ErrOutOfRange }

// InstabilityError records where a solver detected a non-finite value.
type InstabilityError struct {
	Step     int
	Cell     int
	X, Y     int
	Quantity string
	Value    float64
}

func (e *InstabilityError) Error() string {
	return fmt.Sprintf("%s non-finite (%g) at step %d, cell %d (x=%d, y=%d)",
		e.Quantity, e.Value, e.Step, e.Cell, e.X, e.Y)
}

func (e *InstabilityError) Unwrap() error { return ErrUnstable }

// IsRejection reports whether err means the scenario was refused before any
// solver work started (bad input or a missing cross-module dependency).
func IsRejection(err error) bool {
	return errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrInvalidScenario) ||
		errors.Is(err, ErrMissingWindField)
}
