package opsuite

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/ethereum/go-ethereum/log"
)

// RunFunc performs one test run.
type RunFunc func(ctx context.Context) error

// Scheduler decides when test runs happen.
type Scheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(RunFunc)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// RunScheduler performs a first run on Start and, unless it is in run-once
// mode, one more run every interval after the previous run ended.
type RunScheduler struct {
	interval time.Duration
	runOnce  bool
	log      log.Logger
	clk      clock.Clock
	run      RunFunc

	runs    atomic.Uint64
	active  atomic.Bool
	stopCh  chan struct{}
	loopsWG sync.WaitGroup
}

var _ Scheduler = (*RunScheduler)(nil)

func NewRunScheduler(interval time.Duration, runOnce bool, logger log.Logger, clk clock.Clock) *RunScheduler {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &RunScheduler{
		interval: interval,
		runOnce:  runOnce,
		log:      logger.New("component", "scheduler"),
		clk:      clk,
		stopCh:   make(chan struct{}),
	}
}

func (s *RunScheduler) RegisterCallback(run RunFunc) {
	s.run = run
}

// Start performs the first run and returns its error. In continuous mode
// the following runs happen in the background until Stop is called or ctx
// is done; their errors are logged.
func (s *RunScheduler) Start(ctx context.Context) error {
	if s.run == nil {
		return errors.New("no run registered with the scheduler")
	}
	s.stopCh = make(chan struct{})
	s.active.Store(true)

	if s.runOnce {
		s.log.Info("Scheduling a single run")
		return s.runNext(ctx)
	}
	s.log.Info("Scheduling periodic runs", "interval", s.interval)
	if err := s.runNext(ctx); err != nil {
		return err
	}

	s.loopsWG.Add(1)
	go func() {
		defer s.loopsWG.Done()
		s.loop(ctx)
	}()
	return nil
}

func (s *RunScheduler) loop(ctx context.Context) {
	wait := s.clk.NewTimer(s.interval)
	defer wait.Stop()
	for {
		select {
		case <-wait.C():
		case <-s.stopCh:
			return
		case <-ctx.Done():
			s.active.Store(false)
			return
		}
		if !s.active.Load() {
			return
		}
		if err := s.runNext(ctx); err != nil {
			s.log.Error("Periodic run failed", "run", s.runs.Load(), "err", err)
		}
		wait.Reset(s.interval)
	}
}

func (s *RunScheduler) runNext(ctx context.Context) error {
	n := s.runs.Add(1)
	s.log.Debug("Starting run", "run", n)
	return s.run(ctx)
}

// Runs returns how many runs were started.
func (s *RunScheduler) Runs() uint64 {
	return s.runs.Load()
}

// Stop prevents further runs. A run in progress is not interrupted.
func (s *RunScheduler) Stop() error {
	if s.active.Swap(false) {
		close(s.stopCh)
	}
	return nil
}

func (s *RunScheduler) Stopped() bool {
	return !s.active.Load()
}

// WaitForShutdown waits for the background loop to return, or for ctx.
func (s *RunScheduler) WaitForShutdown(ctx context.Context) error {
	exited := make(chan struct{})
	go func() {
		s.loopsWG.Wait()
		close(exited)
	}()
	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		s.log.Warn("Scheduler loop still running", "err", ctx.Err())
		return ctx.Err()
	}
}
