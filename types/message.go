package types

import (
	"encoding/json"
	"time"
)

// MessageType is the discriminator of a Message.
type MessageType string

const (
	MessageStart              MessageType = "start"
	MessageStdout             MessageType = "stdout"
	MessageStderr             MessageType = "stderr"
	MessageStartedBeforeHooks MessageType = "startedBeforeHooks"
	MessageStartedBeforeHook  MessageType = "startedBeforeHook"
	MessageStartedTest        MessageType = "startedTest"
	MessageStartedAfterHooks  MessageType = "startedAfterHooks"
	MessageStartedAfterHook   MessageType = "startedAfterHook"
	MessageFinishedAfterHooks MessageType = "finishedAfterHooks"
	MessageTimeout            MessageType = "timeout"
	MessageFinish             MessageType = "finish"
	MessageRetry              MessageType = "retry"
	MessageError              MessageType = "error"
	MessageBreadcrumb         MessageType = "breadcrumb"
	MessageAttributes         MessageType = "attributes"
	MessageDebugInfo          MessageType = "debugInfo"
	MessageSetTimeout         MessageType = "setTimeout"
	MessageSetSlowThreshold   MessageType = "setSlowThreshold"
	MessageSuiteStart         MessageType = "suiteStart"
	MessageSuiteFinish        MessageType = "suiteFinish"
	MessageSigint             MessageType = "sigint"
)

// ChildMessage reports whether a test process is allowed to send messages of
// this type. Lifecycle boundaries are produced by the runner and reporters only.
func (t MessageType) ChildMessage() bool {
	switch t {
	case MessageStart, MessageFinish, MessageRetry, MessageTimeout,
		MessageSuiteStart, MessageSuiteFinish, MessageSigint:
		return false
	}
	return true
}

// Result is the outcome carried by finish and retry messages.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
	ResultTimeout Result = "timeout"
	ResultSkipped Result = "skipped"
	ResultAborted Result = "aborted"
)

// Failed reports whether the result counts as a failed test.
func (r Result) Failed() bool {
	return r == ResultFailure || r == ResultTimeout
}

// ErrorInfo describes an error raised inside a test process.
type ErrorInfo struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Message is one event in the life of a test. Only the fields relevant to
// Type are set.
type Message struct {
	Type MessageType `json:"type"`

	// start
	Skipped  bool `json:"skipped,omitempty"`
	Unstable bool `json:"unstable,omitempty"`

	// stdout, stderr and breadcrumb
	Data string `json:"data,omitempty"`

	// startedBeforeHook and startedAfterHook
	Hook string `json:"hook,omitempty"`

	Error      *ErrorInfo      `json:"error,omitempty"`
	Attributes map[string]any  `json:"attributes,omitempty"`
	DebugInfo  json.RawMessage `json:"debugInfo,omitempty"`

	// setTimeout and setSlowThreshold
	Timeout       time.Duration `json:"timeout,omitempty"`
	SlowThreshold time.Duration `json:"slowThreshold,omitempty"`

	// finish and retry
	Result   Result         `json:"result,omitempty"`
	Code     *int           `json:"code,omitempty"`
	Signal   string         `json:"signal,omitempty"`
	Duration *time.Duration `json:"duration,omitempty"`
	Slow     bool           `json:"slow,omitempty"`
	HalfSlow bool           `json:"halfSlow,omitempty"`
}

// Terminal reports whether the message ends the test.
func (m Message) Terminal() bool {
	return m.Type == MessageFinish
}

// Start returns a start message.
func Start(skipped, unstable bool) Message {
	return Message{Type: MessageStart, Skipped: skipped, Unstable: unstable}
}

// Finish returns a finish message with the given result.
func Finish(result Result) Message {
	return Message{Type: MessageFinish, Result: result}
}

// Breadcrumb returns a breadcrumb message.
func Breadcrumb(text string) Message {
	return Message{Type: MessageBreadcrumb, Data: text}
}

// ErrorMessage converts err into an error message.
func ErrorMessage(err error, stack string) Message {
	return Message{Type: MessageError, Error: &ErrorInfo{Message: err.Error(), Stack: stack}}
}
