package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle transition is not allowed
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrGuardFailed is returned when every candidate transition's guard rejects
	ErrGuardFailed = errors.New("guard condition failed")
)
