package keyserver

import "errors"

var (
	// ErrAlreadyExists is returned when a requested branch or directory
	// collides with existing state.
	ErrAlreadyExists = errors.New("already exists")

	// ErrPreconditionNotFound is returned when there is no branch to fork
	// from and lenient mode is off.
	ErrPreconditionNotFound = errors.New("precondition not found")

	// ErrUsage is returned for contradictory caller arguments.
	ErrUsage = errors.New("usage error")
)
