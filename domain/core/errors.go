package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound        = errors.New("resource not found")
	ErrCountryNotFound = fmt.Errorf("%w: country", ErrNotFound)
	ErrRunNotFound     = fmt.Errorf("%w: run", ErrNotFound)

	// Input errors
	ErrEmptyInput       = errors.New("empty input")
	ErrLengthMismatch   = errors.New("length mismatch")
	ErrInsufficientData = errors.New("insufficient data for analysis")
	ErrMissingColumn    = errors.New("missing required column")

	// Model errors
	ErrEstimatorFailed = errors.New("estimator failed")
	ErrNotFitted       = errors.New("estimator not fitted")
	ErrNoCandidate     = errors.New("no candidate order could be fitted")
)

// NewLengthMismatchError reports two sequences that must be aligned but are not
func NewLengthMismatchError(a, b int) error {
	return fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, a, b)
}

// NewInsufficientDataError reports a series shorter than an algorithm needs
func NewInsufficientDataError(have, need int) error {
	return fmt.Errorf("%w: have %d observations, need %d", ErrInsufficientData, have, need)
}

// NewEstimatorError wraps a fit/predict failure of a named estimator
func NewEstimatorError(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrEstimatorFailed, name, err)
}

// IsNotFoundError reports whether err is any not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}
