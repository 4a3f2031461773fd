package testproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"sync/atomic"

	"github.com/ethereum-optimism/infra/op-suite/dsl"
	"github.com/ethereum-optimism/infra/op-suite/proctree"
	"github.com/ethereum-optimism/infra/op-suite/protocol"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

var (
	errInterrupted = errors.New("interrupted")
	errDoneTwice   = errors.New("done callback called more than once")
)

type panicError struct {
	value any
	stack string
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

type testRun struct {
	ctx    context.Context
	params protocol.Params
	stdio  IO
	enc    *protocol.Encoder
	failed atomic.Bool
}

func newTestRun(ctx context.Context, params protocol.Params, stdio IO) *testRun {
	return &testRun{
		ctx:    ctx,
		params: params,
		stdio:  stdio,
		enc:    protocol.NewEncoder(stdio.Messages),
	}
}

func (r *testRun) env(ctx context.Context) dsl.Env {
	return dsl.Env{
		Context:       ctx,
		Stdout:        r.stdio.Stdout,
		Channel:       r.enc,
		Parameter:     r.params.InterfaceParameter,
		Timeout:       r.params.Timeout,
		SlowThreshold: r.params.SlowThreshold,
		Attributes:    r.params.Attributes,
	}
}

func (r *testRun) send(msg types.Message) {
	if err := r.enc.Send(msg); err != nil {
		fmt.Fprintf(r.stdio.Stderr, "failed to send %s message: %v\n", msg.Type, err)
	}
}

func (r *testRun) reportError(err error) {
	r.failed.Store(true)
	var stack string
	var p *panicError
	if errors.As(err, &p) {
		stack = p.stack
	}
	r.send(types.ErrorMessage(err, stack))
}

func (r *testRun) execute(root *dsl.Suite, path []string) int {
	test, suites, err := root.Lookup(path)
	if err != nil {
		r.reportError(err)
		return 1
	}

	if len(r.params.Attributes) > 0 {
		r.send(types.Message{Type: types.MessageAttributes, Attributes: r.params.Attributes})
	}

	t := dsl.NewT(r.env(r.ctx))
	r.send(types.Message{Type: types.MessageStartedBeforeHooks})
	ready := r.runBeforeHooks(t, suites)

	if ready {
		r.send(types.Message{Type: types.MessageStartedTest})
		r.send(types.Breadcrumb("Starting test"))
		if err := r.await(r.ctx, func(done func(error)) { test.Start(t, done) }); err != nil && !errors.Is(err, errInterrupted) {
			r.reportError(err)
		}
	}

	// After-hooks run to completion even once interrupted.
	r.send(types.Message{Type: types.MessageStartedAfterHooks})
	after := dsl.NewT(r.env(context.Background()))
	for i := len(suites) - 1; i >= 0; i-- {
		for _, hook := range suites[i].AfterHooks() {
			r.send(types.Message{Type: types.MessageStartedAfterHook, Hook: hook.Name})
			if err := r.await(context.Background(), hookStarter(hook, after)); err != nil {
				r.reportError(err)
			}
		}
	}
	r.send(types.Breadcrumb("Finished running after hooks"))
	r.send(types.Message{Type: types.MessageFinishedAfterHooks})

	if r.params.KillSubProcesses {
		if err := proctree.KillChildren(os.Getpid()); err != nil {
			fmt.Fprintf(r.stdio.Stderr, "failed to kill subprocesses: %v\n", err)
		}
	}

	if r.failed.Load() || r.ctx.Err() != nil {
		return 1
	}
	return 0
}

// runBeforeHooks runs the before hooks from the outermost suite inwards and
// reports whether the test itself should run.
func (r *testRun) runBeforeHooks(t *dsl.T, suites []*dsl.Suite) bool {
	for _, suite := range suites {
		for _, hook := range suite.BeforeHooks() {
			if r.ctx.Err() != nil {
				return false
			}
			r.send(types.Message{Type: types.MessageStartedBeforeHook, Hook: hook.Name})
			if err := r.await(r.ctx, hookStarter(hook, t)); err != nil {
				if !errors.Is(err, errInterrupted) {
					r.reportError(err)
				}
				return false
			}
		}
	}
	return r.ctx.Err() == nil
}

func hookStarter(hook *dsl.Hook, t *dsl.T) func(done func(error)) {
	return func(done func(error)) { done(hook.Fn(t)) }
}

// await starts fn on its own goroutine and waits until fn calls done or ctx
// is cancelled. Extra calls to done are reported as errors.
func (r *testRun) await(ctx context.Context, fn func(done func(error))) error {
	result := make(chan error, 1)
	var calls atomic.Int32
	done := func(err error) {
		if calls.Add(1) > 1 {
			r.reportError(errDoneTwice)
			return
		}
		result <- err
	}

	go func() {
		defer func() {
			if v := recover(); v != nil {
				done(&panicError{value: v, stack: string(debug.Stack())})
			}
		}()
		fn(done)
	}()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return errInterrupted
	}
}
