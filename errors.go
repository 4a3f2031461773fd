package opsuite

import (
	"errors"
	"fmt"

	"github.com/ethereum-optimism/infra/op-suite/exitcodes"
	"github.com/ethereum-optimism/infra/op-suite/runner"
)

// RuntimeError represents an operational error that should lead to exit code 2
// Examples include configuration errors, file not found, etc.
type RuntimeError struct {
	Err error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %v", e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// NewRuntimeError creates a new RuntimeError
func NewRuntimeError(err error) *RuntimeError {
	return &RuntimeError{Err: err}
}

// IsRuntimeError checks if the error is or wraps a RuntimeError
func IsRuntimeError(err error) bool {
	var runtimeErr *RuntimeError
	return err != nil && errors.As(err, &runtimeErr)
}

// ExitCode maps the error returned by the application to its exit code.
// Internal errors win over everything else so that a broken reporter is
// never mistaken for failing tests.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcodes.Success
	case runner.IsInternal(err):
		return exitcodes.InternalErr
	case IsRuntimeError(err):
		return exitcodes.RuntimeErr
	default:
		return exitcodes.TestFailure
	}
}

// Outcome names how a run ended, for logs, metrics and the status endpoint.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case runner.IsInternal(err):
		return "internal_error"
	case errors.Is(err, runner.ErrTestsCancelled):
		return "cancelled"
	case runner.IsTestFailure(err):
		return "failure"
	default:
		return "error"
	}
}
