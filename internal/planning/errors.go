package planning

import "errors"

var (
	// ErrInvalidInput marks caller errors: a malformed base date, a negative
	// delay, a schedule that breaks its own invariants or an unknown timezone.
	ErrInvalidInput = errors.New("invalid planning input")

	// ErrScheduleNotFound is returned when a survey references a schedule
	// that does not exist.
	ErrScheduleNotFound = errors.New("schedule not found")
)
