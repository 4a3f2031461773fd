// Package reporter defines the event sink every output component of a test
// run implements, along with the decorators that add behavior to a sink.
//
// The lifecycle of a Reporter is: RegisterTests (at most once, before any
// GotMessage), any number of GotMessage calls, then exactly one Done as the
// last call. If RegistrationFailed is called, Done is never called.
//
// Every decorator in this package is safe for concurrent use. Calls are
// forwarded while the decorator's lock is held, so the order seen downstream
// is the order in which calls were accepted.
package reporter

import (
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

// Reporter receives the timestamped event stream of a test run. An error
// returned from any method is a bug in the reporter, not a test failure.
type Reporter interface {
	RegisterTests(tests []types.TestPath, opts types.RegisterOptions, at time.Time) error
	RegistrationFailed(err error, at time.Time) error
	GotMessage(test types.TestPath, msg types.Message, at time.Time) error
	Done(at time.Time) error
}

// Internal is the untimestamped form of Reporter used inside the runner,
// before a Timestamper assigns times.
type Internal interface {
	RegisterTests(tests []types.TestPath, opts types.RegisterOptions) error
	RegistrationFailed(err error) error
	GotMessage(test types.TestPath, msg types.Message) error
	Done() error
}

// Base implements Reporter with no-ops. Embed it and override the methods a
// reporter cares about.
type Base struct{}

var _ Reporter = Base{}

func (Base) RegisterTests([]types.TestPath, types.RegisterOptions, time.Time) error { return nil }
func (Base) RegistrationFailed(error, time.Time) error                            { return nil }
func (Base) GotMessage(types.TestPath, types.Message, time.Time) error            { return nil }
func (Base) Done(time.Time) error                                                 { return nil }
