// Package opsuite runs test files through an interface executable, once or
// periodically, and reports the results.
package opsuite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"

	"github.com/ethereum-optimism/infra/op-suite/metrics"
	"github.com/ethereum-optimism/infra/op-suite/registry"
	"github.com/ethereum-optimism/infra/op-suite/reporting"
	"github.com/ethereum-optimism/infra/op-suite/runner"
	"github.com/ethereum-optimism/infra/op-suite/service"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

// suiteRunner implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &suiteRunner{}

// RunStatus is what the status endpoint serves about the last run.
type RunStatus struct {
	RunID     string               `json:"runID"`
	Outcome   string               `json:"outcome"`
	StartTime time.Time            `json:"startTime"`
	Duration  string               `json:"duration"`
	Total     int                  `json:"total"`
	Results   map[types.Result]int `json:"results"`
	Retries   int                  `json:"retries"`
	Error     string               `json:"error,omitempty"`
}

// suiteRunner lists and runs the configured test files on every scheduled run.
type suiteRunner struct {
	config    *Config
	version   string
	clk       clock.Clock
	runner    runner.TestRunner
	scheduler Scheduler
	service   *service.Service

	mu         sync.Mutex
	last       *RunStatus
	cancelRun  context.CancelFunc
	running    atomic.Bool
	runCounter atomic.Int64

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*suiteRunner, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	config.Log.Debug("Creating op-suite with config",
		"interface", config.Interface,
		"files", config.Files,
		"reporters", config.Reporters,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	clk := clock.NewClock()
	reg, err := registry.NewRegistry(registry.Config{
		Log:                config.Log,
		Interface:          config.Interface,
		InterfaceParameter: config.InterfaceParameter,
		Options:            config.Options,
		Parallel:           config.Parallel,
		Clock:              clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	testRunner, err := runner.NewTestRunner(runner.Config{
		Lister:             reg,
		Files:              config.Files,
		Interface:          config.Interface,
		InterfaceParameter: config.InterfaceParameter,
		Options:            config.Options,
		Parallel:           config.Parallel,
		RunUnstable:        config.RunUnstable,
		KillSubProcesses:   config.KillSubProcesses,
		Log:                config.Log,
		Clock:              clk,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}
	config.Log.Info("op-suite: created registry and test runner")

	s := &suiteRunner{
		config:           config,
		version:          version,
		clk:              clk,
		runner:           testRunner,
		scheduler:        NewRunScheduler(config.RunInterval, config.RunOnce, config.Log, clk),
		shutdownCallback: shutdownCallback,
	}
	if config.Metrics.Enabled {
		s.service = service.New(service.Config{
			Log:    config.Log,
			Host:   config.Metrics.ListenAddr,
			Port:   config.Metrics.ListenPort,
			Status: s.status,
		})
	}
	s.scheduler.RegisterCallback(s.runTests)
	return s, nil
}

// Start runs the tests, then keeps running them at the configured interval
// unless in run-once mode.
// Start implements the cliapp.Lifecycle interface.
func (s *suiteRunner) Start(ctx context.Context) error {
	s.running.Store(true)
	if s.config.RunOnce {
		s.config.Log.Info("Starting op-suite in run-once mode", "version", s.version)
	} else {
		s.config.Log.Info("Starting op-suite in continuous mode", "version", s.version, "interval", s.config.RunInterval)
	}

	if s.service != nil {
		if err := s.service.Start(ctx); err != nil {
			return NewRuntimeError(fmt.Errorf("failed to start service: %w", err))
		}
	}

	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}

	if s.config.RunOnce {
		s.config.Log.Info("Tests completed, exiting (run-once mode)")
		go s.shutdownCallback(nil)
	}
	return nil
}

// runTests runs all tests once with a fresh reporter chain. In continuous
// mode only internal errors are returned; failing tests are reported and
// the next run is scheduled as usual.
func (s *suiteRunner) runTests(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.mu.Lock()
	s.cancelRun = cancel
	s.mu.Unlock()

	runID := runner.NewRunID()
	logger := s.config.Log.New("run_id", runID, "run", s.runCounter.Add(1))
	logger.Info("Running all tests...")

	rep, err := reporting.Build(s.config.Reporters, reporting.Options{
		Out:              s.config.Out,
		NoColor:          s.config.NoColor,
		Log:              logger,
		Clock:            s.clk,
		ProgressInterval: s.config.ProgressInterval,
		LogDir:           s.config.LogDir,
		RunID:            runID,
	})
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to build reporters: %w", err))
	}

	result, err := s.runner.RunAllTests(ctx, runID, rep)
	outcome := Outcome(err)
	metrics.RecordRun(outcome, result.Duration)
	s.record(result, outcome, err)

	switch {
	case err == nil:
		logger.Info("Test run completed", "outcome", outcome, "duration", result.Duration)
	case runner.IsInternal(err):
		logger.Error("Test run failed", "outcome", outcome, "err", fmt.Sprintf("%+v", err))
		return err
	default:
		logger.Warn("Test run completed", "outcome", outcome, "duration", result.Duration, "err", err)
	}
	if s.config.RunOnce {
		return err
	}
	return nil
}

func (s *suiteRunner) record(result *runner.RunResult, outcome string, err error) {
	status := &RunStatus{
		RunID:     result.RunID,
		Outcome:   outcome,
		StartTime: result.StartTime,
		Duration:  result.Duration.String(),
		Total:     result.Stats.Total,
		Results:   result.Stats.Results,
		Retries:   result.Stats.Retries,
	}
	if err != nil {
		status.Error = err.Error()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = status
}

// status returns the last run, or nil before the first run finished.
func (s *suiteRunner) status() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	return s.last
}

// LastRun returns the status of the last finished run.
func (s *suiteRunner) LastRun() (RunStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return RunStatus{}, false
	}
	return *s.last, true
}

// Stop aborts the run in progress and stops the scheduler and the service.
// Stop implements the cliapp.Lifecycle interface.
func (s *suiteRunner) Stop(ctx context.Context) error {
	s.config.Log.Info("Stopping op-suite")
	if !s.running.Swap(false) {
		s.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}

	s.mu.Lock()
	if s.cancelRun != nil {
		s.cancelRun()
	}
	s.mu.Unlock()

	var result error
	if err := s.scheduler.Stop(); err != nil {
		result = errors.Join(result, err)
	}
	if err := s.scheduler.WaitForShutdown(ctx); err != nil {
		result = errors.Join(result, err)
	}
	if s.service != nil {
		if err := s.service.Stop(ctx); err != nil {
			result = errors.Join(result, fmt.Errorf("failed to stop service: %w", err))
		}
	}
	s.config.Log.Info("op-suite stopped")
	return result
}

// Stopped returns true if the op-suite service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (s *suiteRunner) Stopped() bool {
	return !s.running.Load()
}
