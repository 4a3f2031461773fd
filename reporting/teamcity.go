package reporting

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

var teamcityEscaper = strings.NewReplacer(
	"|", "||",
	"'", "|'",
	"\n", "|n",
	"\r", "|r",
	"[", "|[",
	"]", "|]",
)

// TeamCityReporter writes TeamCity service messages. It expects the
// sequential stream of a Serializer with suite markers and durations.
type TeamCityReporter struct {
	out io.Writer

	mu     sync.Mutex
	errors map[string][]string
}

var _ reporter.Reporter = (*TeamCityReporter)(nil)

func NewTeamCityReporter(out io.Writer) *TeamCityReporter {
	return &TeamCityReporter{out: out, errors: make(map[string][]string)}
}

func (t *TeamCityReporter) RegisterTests([]types.TestPath, types.RegisterOptions, time.Time) error {
	return nil
}

func (t *TeamCityReporter) RegistrationFailed(err error, _ time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message("message", "text", "Failed to list tests", "errorDetails", err.Error(), "status", "ERROR")
}

func (t *TeamCityReporter) GotMessage(test types.TestPath, msg types.Message, _ time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	name := test.Name()
	key := test.Key()
	switch msg.Type {
	case types.MessageSuiteStart:
		return t.message("testSuiteStarted", "name", name)
	case types.MessageSuiteFinish:
		return t.message("testSuiteFinished", "name", name)
	case types.MessageStart:
		if msg.Skipped {
			return nil
		}
		return t.message("testStarted", "name", name, "captureStandardOutput", "false")
	case types.MessageStdout:
		return t.message("testStdOut", "name", name, "out", msg.Data)
	case types.MessageStderr:
		return t.message("testStdErr", "name", name, "out", msg.Data)
	case types.MessageError:
		if msg.Error != nil {
			t.errors[key] = append(t.errors[key], strings.TrimSpace(msg.Error.Message+"\n"+msg.Error.Stack))
		}
	case types.MessageTimeout:
		t.errors[key] = append(t.errors[key], "Test timed out")
	case types.MessageRetry:
		delete(t.errors, key)
		return t.message("testStdErr", "name", name, "out", fmt.Sprintf("Attempt ended with %s, retrying", msg.Result))
	case types.MessageFinish:
		details := strings.Join(t.errors[key], "\n")
		delete(t.errors, key)
		switch msg.Result {
		case types.ResultSkipped:
			return t.message("testIgnored", "name", name, "message", "skipped")
		case types.ResultFailure, types.ResultTimeout, types.ResultAborted:
			if err := t.message("testFailed", "name", name, "message", string(msg.Result), "details", details); err != nil {
				return err
			}
		}
		args := []string{"name", name}
		if msg.Duration != nil {
			args = append(args, "duration", fmt.Sprint(msg.Duration.Milliseconds()))
		}
		return t.message("testFinished", args...)
	}
	return nil
}

func (t *TeamCityReporter) Done(time.Time) error {
	return nil
}

// message writes ##teamcity[kind key='value' ...].
func (t *TeamCityReporter) message(kind string, attrs ...string) error {
	var b strings.Builder
	b.WriteString("##teamcity[")
	b.WriteString(kind)
	for i := 0; i+1 < len(attrs); i += 2 {
		fmt.Fprintf(&b, " %s='%s'", attrs[i], teamcityEscaper.Replace(attrs[i+1]))
	}
	b.WriteString("]\n")
	_, err := io.WriteString(t.out, b.String())
	return err
}
