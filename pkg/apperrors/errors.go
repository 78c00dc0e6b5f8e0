package apperrors

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidState    = errors.New("invalid lifecycle state")
	ErrUpstreamFailure = errors.New("central request failed")

	// ErrInconsistentState means Central accepted a write but the local update
	// matched nothing afterwards. The two systems of record have diverged and
	// an operator needs to reconcile them; it must never be reported as
	// success.
	ErrInconsistentState = errors.New("central updated but local record was not")
)
