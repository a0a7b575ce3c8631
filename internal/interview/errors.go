package interview

import "errors"

// Sentinel errors returned by [Manager]. Callers match them with errors.Is;
// the HTTP layer maps them to status codes.
var (
	// ErrConfiguration is returned when a session is created with an empty
	// skill or question list, or the manager lacks a required collaborator.
	ErrConfiguration = errors.New("interview: invalid configuration")

	// ErrNotFound is returned for an unknown or already removed session id.
	ErrNotFound = errors.New("interview: session not found")

	// ErrInvalidArgument is returned for a question index outside the
	// session's question list.
	ErrInvalidArgument = errors.New("interview: invalid argument")

	// ErrAlreadyCompleted is returned when an answer arrives after the
	// session was completed.
	ErrAlreadyCompleted = errors.New("interview: session already completed")
)
