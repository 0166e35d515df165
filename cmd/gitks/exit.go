package main

import (
	"errors"

	"github.com/raphi011/gitks/internal/cmd"
	"github.com/raphi011/gitks/internal/git"
	"github.com/raphi011/gitks/internal/keyserver"
)

// Process exit codes.
const (
	exitOK = iota
	exitFailure
	exitUsage
	exitAlreadyExists
	exitPreconditionNotFound
	exitCommandFailed
)

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	var (
		exitErr  *cmd.ExitError
		cloneErr *git.CloneError
	)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, keyserver.ErrUsage):
		return exitUsage
	case errors.Is(err, keyserver.ErrAlreadyExists):
		return exitAlreadyExists
	case errors.Is(err, keyserver.ErrPreconditionNotFound):
		return exitPreconditionNotFound
	case errors.As(err, &exitErr), errors.As(err, &cloneErr):
		return exitCommandFailed
	default:
		return exitFailure
	}
}
