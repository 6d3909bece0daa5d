package core

import "errors"

// Error kinds surfaced by the lifecycle and admission operations. Callers
// classify with errors.Is; the wrapped message carries the specifics.
var (
	// ErrValidation marks malformed or missing required input. Never
	// retried automatically.
	ErrValidation = errors.New("validation failed")

	// ErrStateConflict marks a transition attempted from a status that
	// does not permit it. Callers should re-fetch before retrying.
	ErrStateConflict = errors.New("state conflict")

	// ErrAdmissionConflict marks a submission refused because the user
	// already has an active job.
	ErrAdmissionConflict = errors.New("user already has an active print request")

	// ErrNotFound marks a job or user that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDependency marks an unexpected record store failure. Primary
	// transitions that hit this fail loudly and are not partially applied.
	ErrDependency = errors.New("record store failure")
)
