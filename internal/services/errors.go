package services

import "errors"

// Sentinel errors returned by the detection and forecast services. Handlers
// map these onto HTTP statuses, so wrap them rather than re-wording them.
var (
	// ErrInsufficientData means the historical window holds fewer points
	// than a computation needs.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrModelNotTrained means Predict was called before Train succeeded.
	ErrModelNotTrained = errors.New("model not trained")

	// ErrInvalidInput means a record or parameter failed validation.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable means the weather integration could not be
	// reached; callers degrade to weather-independent behavior.
	ErrUpstreamUnavailable = errors.New("upstream weather service unavailable")

	// ErrInvalidTransition means an alert status change was requested from
	// a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
)
