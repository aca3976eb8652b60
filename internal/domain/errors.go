package domain

import "errors"

// Validation and data-integrity failures. None of them are retryable; callers
// match with errors.Is.
var (
	ErrInvalidUnit                = errors.New("invalid unit")
	ErrMissingFilterContext       = errors.New("missing filter context")
	ErrMissingConfidenceThreshold = errors.New("missing confidence threshold")
	ErrUndefinedUseCase           = errors.New("undefined use case")
	ErrUnknownField               = errors.New("unknown filter field")
	ErrInvalidRequest             = errors.New("invalid request")
)
