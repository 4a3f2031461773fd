package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ethereum-optimism/infra/op-suite/proctree"
	"github.com/ethereum-optimism/infra/op-suite/protocol"
	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/timer"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

// attempt is a single execution of a test in its own process.
type attempt struct {
	r    *runner
	log  log.Logger
	test types.TestInfo
	rep  reporter.Internal

	cmd     *exec.Cmd
	control *protocol.Encoder
	started time.Time

	mu          sync.Mutex
	finished    bool
	timedOut    bool
	killing     bool
	timeout     *timer.Timer
	grace       *timer.Timer
	internalErr error
}

// executeAttempt runs test once. Every outcome of the process is reported
// through rep and ends with exactly one finish message. The returned error
// is an *AttemptError when the test did not succeed, or an *InternalError
// when a reporter failed.
func (r *runner) executeAttempt(ctx context.Context, rep reporter.Internal, test types.TestInfo) error {
	ctx, span := r.tracer.Start(ctx, "run test")
	defer span.End()
	span.SetAttributes(attribute.String("test", test.Path.String()))

	a := &attempt{
		r:    r,
		log:  r.log.New("test", test.Path.String()),
		test: test,
		rep:  rep,
	}
	err := a.run(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (a *attempt) run(ctx context.Context) error {
	args, err := protocol.RunArgs(protocol.Params{
		Timeout:            a.test.Timeout,
		SlowThreshold:      a.test.SlowThreshold,
		InterfaceParameter: a.r.interfaceParameter,
		KillSubProcesses:   a.r.killSubProcesses,
		Attributes:         a.test.Attributes,
	}, a.test.Path)
	if err != nil {
		return a.spawnFailed(err)
	}

	msgR, msgW, err := os.Pipe()
	if err != nil {
		return a.spawnFailed(err)
	}
	ctrlR, ctrlW, err := os.Pipe()
	if err != nil {
		msgR.Close()
		msgW.Close()
		return a.spawnFailed(err)
	}
	defer msgR.Close()
	defer ctrlW.Close()

	a.cmd = exec.Command(a.r.iface, args...)
	a.cmd.ExtraFiles = []*os.File{msgW, ctrlR}
	proctree.Isolate(a.cmd)
	stdout, err := a.cmd.StdoutPipe()
	if err != nil {
		msgW.Close()
		ctrlR.Close()
		return a.spawnFailed(err)
	}
	stderr, err := a.cmd.StderrPipe()
	if err != nil {
		msgW.Close()
		ctrlR.Close()
		return a.spawnFailed(err)
	}

	err = a.cmd.Start()
	// The child owns these ends now; closing ours lets the readers see EOF.
	msgW.Close()
	ctrlR.Close()
	if err != nil {
		return a.spawnFailed(err)
	}
	a.control = protocol.NewEncoder(ctrlW)
	a.started = a.r.clk.Now()
	a.log.Debug("Test process started", "pid", a.cmd.Process.Pid)

	if a.test.Timeout > 0 {
		a.mu.Lock()
		a.timeout = timer.New(a.r.clk, a.test.Timeout, a.onTimeout)
		a.mu.Unlock()
	}
	// ctx only ends when the run is torn down, never on plain cancellation.
	stop := context.AfterFunc(ctx, a.softKill)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		a.readLines(stdout, types.MessageStdout)
	}()
	go func() {
		defer wg.Done()
		a.readLines(stderr, types.MessageStderr)
	}()
	go func() {
		defer wg.Done()
		a.readMessages(msgR)
	}()

	// Exit and stream close are separate events; streams come first.
	wg.Wait()
	waitErr := a.cmd.Wait()
	return a.finish(waitErr)
}

func (a *attempt) spawnFailed(err error) error {
	a.log.Error("Failed to start test process", "err", err)
	a.emit(types.ErrorMessage(fmt.Errorf("failed to start test process: %w", err), ""))
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished = true
	a.forwardLocked(types.Finish(types.ResultFailure))
	if a.internalErr != nil {
		return a.internalErr
	}
	return &AttemptError{Test: a.test.Path, Result: types.ResultFailure}
}

func (a *attempt) finish(waitErr error) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finished = true
	if a.timeout != nil {
		a.timeout.Cancel()
	}
	if a.grace != nil {
		a.grace.Cancel()
	}

	msg := types.Finish(types.ResultSuccess)
	state := a.cmd.ProcessState
	if state != nil {
		if code := state.ExitCode(); code >= 0 {
			msg.Code = &code
		}
		msg.Signal = exitSignal(state)
	}
	switch {
	case a.timedOut:
		msg.Result = types.ResultTimeout
	case waitErr != nil:
		msg.Result = types.ResultFailure
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			a.forwardLocked(types.ErrorMessage(fmt.Errorf("failed to wait for test process: %w", waitErr), ""))
		}
	}
	a.log.Debug("Test process exited", "result", msg.Result, "code", msg.Code, "signal", msg.Signal)
	a.forwardLocked(msg)

	if a.internalErr != nil {
		return a.internalErr
	}
	if msg.Result != types.ResultSuccess {
		return &AttemptError{Test: a.test.Path, Result: msg.Result, Code: msg.Code, Signal: msg.Signal}
	}
	return nil
}

// emit forwards msg unless the attempt already finished.
func (a *attempt) emit(msg types.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished {
		a.log.Warn("Dropping message after finish", "type", msg.Type)
		return
	}
	a.forwardLocked(msg)
}

func (a *attempt) forwardLocked(msg types.Message) {
	if err := forward(a.rep, a.test.Path, msg); err != nil && a.internalErr == nil {
		a.internalErr = err
	}
}

func (a *attempt) readLines(r io.Reader, typ types.MessageType) {
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			a.emit(types.Message{Type: typ, Data: strings.TrimSuffix(line, "\n")})
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
				a.log.Warn("Failed to read test output", "stream", typ, "err", err)
			}
			return
		}
	}
}

func (a *attempt) readMessages(r io.Reader) {
	dec := protocol.NewDecoder(r)
	for {
		msg, err := dec.Receive()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			a.emit(types.ErrorMessage(fmt.Errorf("invalid message from test process: %w", err), ""))
			_, _ = io.Copy(io.Discard, r)
			return
		}
		if !msg.Type.ChildMessage() {
			a.log.Warn("Dropping message the test process may not send", "type", msg.Type)
			continue
		}
		if msg.Type == types.MessageSetTimeout {
			a.setTimeout(msg.Timeout)
		}
		a.emit(msg)
	}
}

// setTimeout applies a timeout requested by the test. Zero or less disables
// the timeout.
func (a *attempt) setTimeout(timeout time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finished || a.timedOut {
		return
	}
	switch {
	case timeout <= 0:
		if a.timeout != nil {
			a.timeout.Cancel()
			a.timeout = nil
		}
	case a.timeout == nil:
		a.timeout = timer.New(a.r.clk, timeout-a.r.clk.Since(a.started), a.onTimeout)
	default:
		if err := a.timeout.UpdateTimeout(timeout); err != nil {
			a.log.Warn("Failed to update test timeout", "timeout", timeout, "err", err)
		}
	}
}

func (a *attempt) onTimeout() {
	a.mu.Lock()
	if a.finished || a.timedOut {
		a.mu.Unlock()
		return
	}
	a.timedOut = true
	a.log.Info("Test timed out", "timeout", a.test.Timeout)
	a.forwardLocked(types.Message{Type: types.MessageTimeout})
	a.mu.Unlock()
	a.softKill()
}

// softKill asks the test process to stop and kills it when it is still
// running after the grace time.
func (a *attempt) softKill() {
	grace := a.r.options.GraceTime
	a.mu.Lock()
	if a.finished || a.killing {
		a.mu.Unlock()
		return
	}
	a.killing = true
	if grace > 0 {
		a.grace = timer.New(a.r.clk, grace, a.forceKill)
	}
	a.mu.Unlock()

	if grace <= 0 {
		a.forceKill()
		return
	}
	if err := a.control.Send(types.Message{Type: types.MessageSigint}); err != nil {
		a.log.Debug("Control channel unavailable, sending SIGINT", "err", err)
		if err := proctree.Interrupt(a.cmd.Process.Pid); err != nil {
			a.log.Warn("Failed to interrupt test process", "err", err)
		}
	}
}

func (a *attempt) forceKill() {
	a.mu.Lock()
	finished := a.finished
	a.mu.Unlock()
	if finished {
		return
	}
	a.log.Info("Killing test process", "pid", a.cmd.Process.Pid)
	if err := proctree.Kill(a.cmd.Process.Pid); err != nil {
		a.log.Warn("Failed to kill test process", "err", err)
	}
}
