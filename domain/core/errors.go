package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrUnknownEdition = fmt.Errorf("%w: edition", ErrNotFound)

	// Validation errors
	ErrInvalidThreshold   = errors.New("threshold must be within [0, 1]")
	ErrInvalidCorrection  = errors.New("unknown multiple test correction")
	ErrInvalidMetric      = errors.New("unknown similarity metric")
	ErrInvalidMode        = errors.New("unknown comparison mode")
	ErrInvalidContingency = errors.New("invalid contingency table")
	ErrInvalidTopN        = errors.New("top N must be positive")
	ErrInvalidBounds      = errors.New("invalid population bounds")
	ErrReferenceRequired  = errors.New("reference edition required for fixed reference comparison")
	ErrSampleTooLarge     = errors.New("sample exceeds maximum size")
	ErrEmptySample        = errors.New("sample is empty")

	// Degenerate runs
	ErrNoTestableLabels = errors.New("all labels rejected before testing")
)

// Error constructors with context
func NewThresholdError(threshold float64) error {
	return fmt.Errorf("%w: got %g", ErrInvalidThreshold, threshold)
}

func NewContingencyError(r, m, k, t int) error {
	return fmt.Errorf("%w: r=%d m=%d k=%d t=%d", ErrInvalidContingency, r, m, k, t)
}

func NewUnknownEditionError(edition int) error {
	return fmt.Errorf("%w %d", ErrUnknownEdition, edition)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidThreshold) ||
		errors.Is(err, ErrInvalidCorrection) ||
		errors.Is(err, ErrInvalidMetric) ||
		errors.Is(err, ErrInvalidMode) ||
		errors.Is(err, ErrInvalidContingency) ||
		errors.Is(err, ErrInvalidTopN) ||
		errors.Is(err, ErrInvalidBounds) ||
		errors.Is(err, ErrReferenceRequired) ||
		errors.Is(err, ErrSampleTooLarge) ||
		errors.Is(err, ErrEmptySample)
}

// IsDegenerate reports whether err signals a run that produced no results.
func IsDegenerate(err error) bool {
	return errors.Is(err, ErrNoTestableLabels)
}
