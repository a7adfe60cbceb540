package domain

import "errors"

// ErrNotFound is returned by repo and service functions when the requested
// pickup request does not exist in the store.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing location fix, non-positive quantity).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrInvalidTransition is returned when a lifecycle step is requested from a
// status that does not allow it (e.g. completing a request that was never assigned).
// Handlers should map this to HTTP 409 Conflict.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrConflict is returned when a conditional status update matched no record
// because a concurrent writer moved the request first.
// Handlers should map this to HTTP 409 Conflict.
var ErrConflict = errors.New("concurrent update")

// ErrUnavailable wraps failures of the persistence collaborator (unreachable,
// timed out, write rejected). The caller should retry.
// Handlers should map this to HTTP 503 Service Unavailable.
var ErrUnavailable = errors.New("store unavailable")
