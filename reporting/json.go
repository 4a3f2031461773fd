package reporting

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

// JSONEvent is one line written by the JSONReporter.
type JSONEvent struct {
	Event   reporter.EventKind     `json:"event"`
	Time    time.Time              `json:"time"`
	Tests   []types.TestPath       `json:"tests,omitempty"`
	Options *types.RegisterOptions `json:"options,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Test    *types.TestPath        `json:"test,omitempty"`
	Message *types.Message         `json:"message,omitempty"`
}

// JSONReporter writes every reporter call as a JSON line, in the order it
// was received.
type JSONReporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

var _ reporter.Reporter = (*JSONReporter)(nil)

func NewJSONReporter(out io.Writer) *JSONReporter {
	return &JSONReporter{enc: json.NewEncoder(out)}
}

func (j *JSONReporter) RegisterTests(tests []types.TestPath, opts types.RegisterOptions, at time.Time) error {
	return j.write(JSONEvent{Event: reporter.EventRegisterTests, Time: at, Tests: tests, Options: &opts})
}

func (j *JSONReporter) RegistrationFailed(err error, at time.Time) error {
	return j.write(JSONEvent{Event: reporter.EventRegistrationFailed, Time: at, Error: err.Error()})
}

func (j *JSONReporter) GotMessage(test types.TestPath, msg types.Message, at time.Time) error {
	return j.write(JSONEvent{Event: reporter.EventMessage, Time: at, Test: &test, Message: &msg})
}

func (j *JSONReporter) Done(at time.Time) error {
	return j.write(JSONEvent{Event: reporter.EventDone, Time: at})
}

func (j *JSONReporter) write(e JSONEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.enc.Encode(e)
}
