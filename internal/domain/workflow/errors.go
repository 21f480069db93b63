package workflow

import "errors"

var (
	// ErrNotFound is returned when a request id does not resolve to a request
	ErrNotFound = errors.New("request not found")

	// ErrForbidden is returned when the actor's role may not act at the current step
	ErrForbidden = errors.New("actor not eligible for current step")

	// ErrInvalidArgument is returned when an operation is invoked with bad input
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState is returned when an operation is not defined for the
	// request's current step, such as any transition on a completed request
	ErrInvalidState = errors.New("invalid workflow state")

	// ErrConflict is returned when a concurrent mutation won the write;
	// callers should re-fetch and retry
	ErrConflict = errors.New("concurrent modification conflict")
)
