package reporter

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

// EventKind names the Reporter method an Event was recorded from.
type EventKind string

const (
	EventRegisterTests      EventKind = "registerTests"
	EventRegistrationFailed EventKind = "registrationFailed"
	EventMessage            EventKind = "gotMessage"
	EventDone               EventKind = "done"
)

// Event is one recorded Reporter call.
type Event struct {
	Kind    EventKind
	Tests   []types.TestPath
	Options types.RegisterOptions
	Err     error
	Test    types.TestPath
	Message types.Message
	Time    time.Time
}

// Recorder keeps every call it receives. It is mostly useful in tests and
// for embedding the runner in other programs.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

var _ Reporter = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RegisterTests(tests []types.TestPath, opts types.RegisterOptions, at time.Time) error {
	return r.add(Event{Kind: EventRegisterTests, Tests: tests, Options: opts, Time: at})
}

func (r *Recorder) RegistrationFailed(err error, at time.Time) error {
	return r.add(Event{Kind: EventRegistrationFailed, Err: err, Time: at})
}

func (r *Recorder) GotMessage(test types.TestPath, msg types.Message, at time.Time) error {
	return r.add(Event{Kind: EventMessage, Test: test, Message: msg, Time: at})
}

func (r *Recorder) Done(at time.Time) error {
	return r.add(Event{Kind: EventDone, Time: at})
}

func (r *Recorder) add(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Messages returns the recorded messages of one test, in order.
func (r *Recorder) Messages(test types.TestPath) []types.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Message
	for _, e := range r.events {
		if e.Kind == EventMessage && e.Test.Equal(test) {
			out = append(out, e.Message)
		}
	}
	return out
}
