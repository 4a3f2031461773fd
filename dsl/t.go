package dsl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

// Channel carries messages from a running test to the runner.
type Channel interface {
	Send(types.Message) error
}

// Env is what the test process hands to a running test.
type Env struct {
	Context       context.Context
	Stdout        io.Writer
	Channel       Channel
	Parameter     json.RawMessage
	Timeout       time.Duration
	SlowThreshold time.Duration
	Attributes    map[string]any
}

// T is the handle a test body or hook uses to talk to the runner.
type T struct {
	env Env
}

func NewT(env Env) *T {
	if env.Context == nil {
		env.Context = context.Background()
	}
	if env.Stdout == nil {
		env.Stdout = io.Discard
	}
	return &T{env: env}
}

// Context is cancelled when the runner interrupts the test.
func (t *T) Context() context.Context { return t.env.Context }

// Logf writes a line to the test's stdout.
func (t *T) Logf(format string, args ...any) {
	fmt.Fprintf(t.env.Stdout, format+"\n", args...)
}

// Breadcrumb leaves a note that is reported with the test, which helps
// locate where a test that timed out got stuck.
func (t *T) Breadcrumb(text string) {
	t.send(types.Breadcrumb(text))
}

// SetTimeout changes the test's timeout, measured from the start of the
// test process. Zero disables the timeout.
func (t *T) SetTimeout(d time.Duration) {
	t.env.Timeout = d
	t.send(types.Message{Type: types.MessageSetTimeout, Timeout: d})
}

// SetSlowThreshold changes the duration from which the test counts as slow.
func (t *T) SetSlowThreshold(d time.Duration) {
	t.env.SlowThreshold = d
	t.send(types.Message{Type: types.MessageSetSlowThreshold, SlowThreshold: d})
}

// DebugInfo reports a JSON-encodable value for debugging.
func (t *T) DebugInfo(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode debug info: %w", err)
	}
	t.send(types.Message{Type: types.MessageDebugInfo, DebugInfo: b})
	return nil
}

// Parameter decodes the run's interface parameter into v.
func (t *T) Parameter(v any) error {
	if len(t.env.Parameter) == 0 {
		return nil
	}
	return json.Unmarshal(t.env.Parameter, v)
}

func (t *T) Attributes() map[string]any { return t.env.Attributes }

func (t *T) Timeout() time.Duration { return t.env.Timeout }

func (t *T) SlowThreshold() time.Duration { return t.env.SlowThreshold }

// The runner may already be gone, in which case there is nobody to tell.
func (t *T) send(msg types.Message) {
	if t.env.Channel != nil {
		_ = t.env.Channel.Send(msg)
	}
}
