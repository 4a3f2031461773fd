// Package protocol defines how the runner talks to an interface executable.
//
// The executable is invoked in one of two modes:
//
//	<interface> list <interfaceParameter> <file>
//	<interface> run <params> <file> <segment>...
//
// In list mode it prints the suite tree of file as JSON on stdout. In run mode
// it runs a single test and writes newline-delimited JSON messages to file
// descriptor 3, while reading control messages from file descriptor 4.
package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

const (
	ModeList = "list"
	ModeRun  = "run"

	// MessagesFD is the child's descriptor for messages to the runner.
	MessagesFD = 3
	// ControlFD is the child's descriptor for messages from the runner.
	ControlFD = 4
)

// Params is the JSON blob passed to a test process in run mode.
type Params struct {
	Timeout            time.Duration   `json:"timeout"`
	SlowThreshold      time.Duration   `json:"slowThreshold"`
	InterfaceParameter json.RawMessage `json:"interfaceParameter,omitempty"`
	KillSubProcesses   bool            `json:"killSubProcesses"`
	Attributes         map[string]any  `json:"attributes,omitempty"`
}

// RunArgs builds the argument list of a run-mode invocation.
func RunArgs(params Params, test types.TestPath) ([]string, error) {
	blob, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode test parameters: %w", err)
	}
	return append([]string{ModeRun, string(blob), test.File}, test.Path...), nil
}

// ListArgs builds the argument list of a list-mode invocation.
func ListArgs(interfaceParameter json.RawMessage, file string) []string {
	param := string(interfaceParameter)
	if param == "" {
		param = "null"
	}
	return []string{ModeList, param, file}
}

// Encoder writes messages as JSON lines. It is safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

func (e *Encoder) Send(msg types.Message) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(msg)
}

// Decoder reads JSON-line messages.
type Decoder struct {
	dec *json.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(bufio.NewReader(r))}
}

// Receive returns the next message, or io.EOF once the stream is closed.
func (d *Decoder) Receive() (types.Message, error) {
	var msg types.Message
	if err := d.dec.Decode(&msg); err != nil {
		return types.Message{}, err
	}
	if msg.Type == "" {
		return types.Message{}, fmt.Errorf("message without type")
	}
	return msg, nil
}
