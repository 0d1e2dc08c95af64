package run

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine, coordinator and gateway.
// Callers detect conditions via errors.Is/As rather than string matching.

var (
	// ErrValidation indicates a malformed or incomplete action request,
	// rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownRun is returned when the referenced run does not exist.
	ErrUnknownRun = errors.New("unknown run")

	// ErrUnknownPhase is returned when the referenced phase is absent from
	// the run.
	ErrUnknownPhase = errors.New("unknown phase")

	// ErrSelectorNotFound indicates a refinement locator absent from the
	// current finalized output.
	ErrSelectorNotFound = errors.New("selector not found")

	// ErrAllBranchesFailed indicates that every branch of a fan-out failed.
	ErrAllBranchesFailed = errors.New("all branches failed")
)

// Validationf wraps ErrValidation with a human-readable message.
func Validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// AllBranchesFailedf wraps ErrAllBranchesFailed with the branch count.
func AllBranchesFailedf(failed int) error {
	return fmt.Errorf("%w: %d branch(es)", ErrAllBranchesFailed, failed)
}
