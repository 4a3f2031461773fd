// Package runner runs every listed test in its own process, bounded by a
// parallelism limit, and streams what happens to a reporter.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

// Lister returns the tests of a run.
type Lister interface {
	List(ctx context.Context, files []string) ([]types.TestInfo, error)
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID     string
	Tests     []types.TestInfo
	Stats     reporter.Stats
	StartTime time.Time
	Duration  time.Duration
}

// TestRunner defines the interface for running test suites
type TestRunner interface {
	RunAllTests(ctx context.Context, runID string, rep reporter.Reporter) (*RunResult, error)
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

type attemptFunc func(ctx context.Context, rep reporter.Internal, test types.TestInfo) error

// runner struct implements TestRunner interface
type runner struct {
	lister             Lister
	files              []string
	iface              string
	interfaceParameter json.RawMessage
	options            types.RegisterOptions
	parallel           int
	runUnstable        bool
	killSubProcesses   bool
	log                log.Logger
	clk                clock.Clock
	tracer             trace.Tracer
	runAttempt         attemptFunc
}

// Config holds configuration for creating a new runner
type Config struct {
	Lister             Lister
	Files              []string
	Interface          string // path of the interface executable
	InterfaceParameter json.RawMessage
	Options            types.RegisterOptions
	Parallel           int  // maximum number of concurrent test processes
	RunUnstable        bool // run tests marked unstable instead of skipping them
	KillSubProcesses   bool // test processes kill their own children on exit
	Log                log.Logger
	Clock              clock.Clock
}

// NewTestRunner creates a new test runner instance
func NewTestRunner(cfg Config) (TestRunner, error) {
	return newRunner(cfg)
}

func newRunner(cfg Config) (*runner, error) {
	if cfg.Lister == nil {
		return nil, fmt.Errorf("lister is required")
	}
	if cfg.Interface == "" {
		return nil, fmt.Errorf("interface executable is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewClock()
	}
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	if cfg.Options.Attempts < 1 {
		cfg.Options.Attempts = 1
	}

	cfg.Log.Debug("NewTestRunner()", "interface", cfg.Interface, "files", len(cfg.Files),
		"parallel", cfg.Parallel, "attempts", cfg.Options.Attempts, "runUnstable", cfg.RunUnstable)

	r := &runner{
		lister:             cfg.Lister,
		files:              cfg.Files,
		iface:              cfg.Interface,
		interfaceParameter: cfg.InterfaceParameter,
		options:            cfg.Options,
		parallel:           cfg.Parallel,
		runUnstable:        cfg.RunUnstable,
		killSubProcesses:   cfg.KillSubProcesses,
		log:                cfg.Log,
		clk:                cfg.Clock,
		tracer:             otel.Tracer("test runner"),
	}
	r.runAttempt = r.executeAttempt
	return r, nil
}

// RunAllTests lists and runs every test, reporting to rep. It returns nil
// only when no test failed and the run was not cancelled. Cancelling ctx
// aborts the tests that are still running. An empty runID gets replaced by
// a new one.
func (r *runner) RunAllTests(ctx context.Context, runID string, rep reporter.Reporter) (result *RunResult, err error) {
	if runID == "" {
		runID = NewRunID()
	}
	result = &RunResult{
		RunID:     runID,
		StartTime: r.clk.Now(),
	}
	r.log.Debug("Running all tests", "run_id", result.RunID)

	detector := reporter.NewErrorDetector()
	chain := reporter.NewCancellable(reporter.NewTimestamper(reporter.NewCombined(detector, rep), r.clk))

	defer func() {
		if v := recover(); v != nil {
			err = panicError(v)
		}
		result.Stats = detector.Stats()
		result.Duration = r.clk.Since(result.StartTime)
		if err != nil {
			r.log.Debug("Run finished with error", "run_id", result.RunID, "err", err)
		}
	}()

	cancelled := make(chan error, 1)
	stopWatching := context.AfterFunc(ctx, func() {
		r.log.Info("Cancelling test run", "run_id", result.RunID)
		cancelled <- safeCall(chain.Cancel)
	})
	// wasCancelled waits for a cancellation in progress to complete.
	wasCancelled := func() (bool, error) {
		if stopWatching() {
			return false, nil
		}
		return true, <-cancelled
	}

	tests, listErr := r.lister.List(ctx, r.files)
	if listErr != nil {
		if isCancelled, cerr := wasCancelled(); isCancelled {
			if cerr != nil {
				return result, cerr
			}
			return result, ErrTestsCancelled
		}
		if err := safeCall(func() error { return chain.RegistrationFailed(listErr) }); err != nil {
			return result, err
		}
		return result, &TestFailureError{Message: "failed to process test files", Err: listErr}
	}
	result.Tests = tests

	if err := safeCall(func() error { return chain.RegisterTests(types.Paths(tests), r.options) }); err != nil {
		wasCancelled()
		return result, err
	}

	runErr := r.runTests(ctx, chain, tests)
	isCancelled, cerr := wasCancelled()
	switch {
	case runErr != nil:
		return result, runErr
	case cerr != nil:
		return result, cerr
	case isCancelled:
		return result, ErrTestsCancelled
	}

	if err := safeCall(chain.Done); err != nil {
		return result, err
	}
	if detector.HasErrors() {
		return result, &TestFailureError{Message: "tests failed"}
	}
	return result, nil
}

// runTests runs tests with at most r.parallel processes at a time. Only
// internal errors are returned.
//
// Cancelling ctx stops new tests from starting, but attempts already running
// are left to finish or time out. Their processes are only interrupted when
// another test hits an internal error and the whole run is torn down.
func (r *runner) runTests(ctx context.Context, chain *reporter.Cancellable, tests []types.TestInfo) error {
	g, attemptCtx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(r.parallel)
	stopped := func() bool {
		return chain.IsFinished() || ctx.Err() != nil || attemptCtx.Err() != nil
	}
	for _, test := range tests {
		if stopped() {
			break
		}
		g.Go(func() (err error) {
			defer func() {
				if v := recover(); v != nil {
					err = panicError(v)
				}
			}()
			// A slot may free up only after the run was cancelled.
			if stopped() {
				return nil
			}
			return r.runTest(attemptCtx, chain, test, stopped)
		})
	}
	return g.Wait()
}

// runTest reports the start of test, then either skips it or runs it with
// retries. Failures of the test itself are reported through rep, not
// returned.
func (r *runner) runTest(ctx context.Context, rep reporter.Internal, test types.TestInfo, stopped func() bool) error {
	if test.Skipped || (test.Unstable && !r.runUnstable) {
		if err := forward(rep, test.Path, types.Start(true, test.Unstable)); err != nil {
			return err
		}
		return forward(rep, test.Path, types.Finish(types.ResultSkipped))
	}

	if err := forward(rep, test.Path, types.Start(false, test.Unstable)); err != nil {
		return err
	}
	err := r.runWithRetries(ctx, rep, test, r.options.Attempts, stopped)
	if IsInternal(err) {
		return err
	}
	return nil
}

func forward(rep reporter.Internal, test types.TestPath, msg types.Message) error {
	return safeCall(func() error { return rep.GotMessage(test, msg) })
}

// safeCall runs a reporter call and turns its errors and panics into
// internal errors.
func safeCall(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicError(v)
		}
	}()
	if err := fn(); err != nil {
		if IsInternal(err) {
			return err
		}
		return internalError(err)
	}
	return nil
}
