// Package testproc is the runtime of an interface executable: the program
// the runner spawns to list the suites of a test file and to run one test.
//
// A typical interface executable is just:
//
//	func main() {
//		testproc.Main(files)
//	}
package testproc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/ethereum-optimism/infra/op-suite/dsl"
	"github.com/ethereum-optimism/infra/op-suite/protocol"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

// IO holds the streams of a test process. Messages and Control default to
// the protocol file descriptors when left nil in run mode.
type IO struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Messages io.Writer
	Control  io.Reader
}

// Main runs the interface executable and exits. SIGINT interrupts the
// running test the same way a sigint control message does.
func Main(files dsl.Files) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := Run(ctx, os.Args[1:], files, IO{Stdout: os.Stdout, Stderr: os.Stderr})
	stop()
	os.Exit(code)
}

// Run executes one invocation and returns the process exit code.
func Run(ctx context.Context, args []string, files dsl.Files, stdio IO) int {
	if stdio.Stdout == nil {
		stdio.Stdout = io.Discard
	}
	if stdio.Stderr == nil {
		stdio.Stderr = io.Discard
	}
	if len(args) == 0 {
		fmt.Fprintln(stdio.Stderr, "usage: list <interfaceParameter> <file> | run <params> <file> <segment>...")
		return 2
	}

	switch args[0] {
	case protocol.ModeList:
		return list(args[1:], files, stdio)
	case protocol.ModeRun:
		return run(ctx, args[1:], files, stdio)
	default:
		fmt.Fprintf(stdio.Stderr, "unknown mode %q\n", args[0])
		return 2
	}
}

func list(args []string, files dsl.Files, stdio IO) int {
	if len(args) != 2 {
		fmt.Fprintln(stdio.Stderr, "usage: list <interfaceParameter> <file>")
		return 2
	}
	root, err := files.Load(args[1])
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return 1
	}
	if err := json.NewEncoder(stdio.Stdout).Encode(root.Node()); err != nil {
		fmt.Fprintf(stdio.Stderr, "failed to write suite tree: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, args []string, files dsl.Files, stdio IO) int {
	if len(args) < 3 {
		fmt.Fprintln(stdio.Stderr, "usage: run <params> <file> <segment>...")
		return 2
	}
	var params protocol.Params
	if err := json.Unmarshal([]byte(args[0]), &params); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid test parameters: %v\n", err)
		return 2
	}

	if stdio.Messages == nil {
		stdio.Messages = os.NewFile(protocol.MessagesFD, "messages")
	}
	if stdio.Control == nil {
		stdio.Control = os.NewFile(protocol.ControlFD, "control")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watchControl(stdio.Control, cancel)

	r := newTestRun(ctx, params, stdio)
	root, err := files.Load(args[1])
	if err != nil {
		r.reportError(err)
		return 1
	}
	return r.execute(root, args[2:])
}

// watchControl interrupts the test when the runner asks for it.
func watchControl(control io.Reader, interrupt context.CancelFunc) {
	dec := protocol.NewDecoder(control)
	for {
		msg, err := dec.Receive()
		if err != nil {
			return
		}
		if msg.Type == types.MessageSigint {
			interrupt()
		}
	}
}
