package runner

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/ethereum-optimism/infra/op-suite/registry"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

// ErrTestsCancelled is returned when a run was cancelled before all tests
// finished.
var ErrTestsCancelled = errors.New("tests cancelled")

// TestFailureError means the run completed but did not succeed: a test
// failed or the tests could not be listed.
type TestFailureError struct {
	Message string
	Err     error
}

func (e *TestFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TestFailureError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a listing that ran out of time.
func (e *TestFailureError) Timeout() bool {
	return registry.IsListingTimeout(e.Err)
}

// IsTestFailure reports whether err means tests failed or could not be listed.
func IsTestFailure(err error) bool {
	var tf *TestFailureError
	return errors.As(err, &tf)
}

// InternalError is a bug in the runner or in a reporter. It is never caused
// by a test.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error in the runner or a reporter: %v", e.Err)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Format prints the stack of the cause with %+v.
func (e *InternalError) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') {
		fmt.Fprintf(s, "internal error in the runner or a reporter: %+v", e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

// IsInternal reports whether err is an internal error.
func IsInternal(err error) bool {
	var ie *InternalError
	return errors.As(err, &ie)
}

func internalError(err error) error {
	return &InternalError{Err: pkgerrors.WithStack(err)}
}

// panicError turns a recovered panic into an internal error.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return &InternalError{Err: pkgerrors.Wrap(err, "panic")}
	}
	return &InternalError{Err: pkgerrors.Errorf("panic: %v", v)}
}

// AttemptError is the expected failure of one attempt at running a test.
type AttemptError struct {
	Test   types.TestPath
	Result types.Result
	Code   *int
	Signal string
}

func (e *AttemptError) Error() string {
	switch {
	case e.Result == types.ResultTimeout:
		return fmt.Sprintf("test %s timed out", e.Test)
	case e.Signal != "":
		return fmt.Sprintf("test %s was killed by %s", e.Test, e.Signal)
	case e.Code != nil:
		return fmt.Sprintf("test %s exited with code %d", e.Test, *e.Code)
	default:
		return fmt.Sprintf("test %s failed", e.Test)
	}
}
