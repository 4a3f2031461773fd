package reporting

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

const defaultProgressInterval = 30 * time.Second

// ProgressReporter periodically logs how far the run got and which tests
// have been running the longest.
type ProgressReporter struct {
	logger   log.Logger
	clk      clock.Clock
	interval time.Duration

	mu             sync.RWMutex
	ticker         clock.Ticker
	stopCh         chan struct{}
	completedTests int
	totalTests     int
	startTime      time.Time

	// keyed by TestPath.Key
	runningTests map[string]runningTest
}

type runningTest struct {
	name    string
	started time.Time
}

var _ reporter.Reporter = (*ProgressReporter)(nil)

// NewProgressReporter creates a reporter that logs progress every interval.
func NewProgressReporter(logger log.Logger, clk clock.Clock, interval time.Duration) *ProgressReporter {
	if interval == 0 {
		interval = defaultProgressInterval
	}
	if clk == nil {
		clk = clock.NewClock()
	}
	return &ProgressReporter{
		logger:       logger,
		clk:          clk,
		interval:     interval,
		runningTests: make(map[string]runningTest),
	}
}

func (p *ProgressReporter) RegisterTests(tests []types.TestPath, _ types.RegisterOptions, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.totalTests = len(tests)
	p.completedTests = 0
	p.startTime = at
	p.runningTests = make(map[string]runningTest)
	p.logger.Info("Starting test run", "totalTests", len(tests))

	if p.ticker == nil {
		p.ticker = p.clk.NewTicker(p.interval)
		p.stopCh = make(chan struct{})
		go p.progressReporter(p.ticker, p.stopCh)
	}
	return nil
}

func (p *ProgressReporter) RegistrationFailed(error, time.Time) error {
	return nil
}

func (p *ProgressReporter) GotMessage(test types.TestPath, msg types.Message, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := test.Key()
	switch msg.Type {
	case types.MessageStart:
		if msg.Skipped {
			return nil
		}
		p.runningTests[key] = runningTest{name: test.String(), started: at}
		p.logger.Debug("Test started", "test", test.String(), "runningTests", len(p.runningTests))
	case types.MessageFinish:
		delete(p.runningTests, key)
		p.completedTests++
		// Log individual test completion at debug level to avoid spam
		p.logger.Debug("Test completed", "test", test.String(), "result", msg.Result,
			"completed", p.completedTests, "total", p.totalTests, "runningTests", len(p.runningTests))
	}
	return nil
}

func (p *ProgressReporter) Done(at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ticker != nil {
		p.ticker.Stop()
		close(p.stopCh)
		p.ticker = nil
	}
	duration := at.Sub(p.startTime).Truncate(time.Millisecond)
	p.logger.Info("Completed test run", "totalTests", p.totalTests, "completed", p.completedTests, "duration", duration)
	return nil
}

// progressReporter runs in a goroutine and periodically reports progress
func (p *ProgressReporter) progressReporter(ticker clock.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C():
			p.reportProgress()
		case <-stop:
			return
		}
	}
}

func (p *ProgressReporter) reportProgress() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var percentComplete float64
	if p.totalTests > 0 {
		percentComplete = float64(p.completedTests) * 100.0 / float64(p.totalTests)
	}

	p.logger.Info("Progress update",
		"completed", p.completedTests,
		"total", p.totalTests,
		"percent", fmt.Sprintf("%.1f%%", percentComplete),
		"numRunning", len(p.runningTests),
		"longestRunning", formatRunningTests(p.runningTests, p.clk.Now(), 3),
	)
}

// formatRunningTests lists the longest running tests first, at most maxShow
// of them.
func formatRunningTests(tests map[string]runningTest, now time.Time, maxShow int) string {
	if len(tests) == 0 {
		return ""
	}

	type entry struct {
		name     string
		duration time.Duration
	}
	running := make([]entry, 0, len(tests))
	for _, t := range tests {
		running = append(running, entry{name: t.name, duration: now.Sub(t.started)})
	}
	sort.Slice(running, func(i, j int) bool {
		if running[i].duration != running[j].duration {
			return running[i].duration > running[j].duration
		}
		return running[i].name < running[j].name
	})

	var parts []string
	for i, t := range running {
		if i >= maxShow {
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%v)", t.name, t.duration.Truncate(time.Second)))
	}
	if len(running) > maxShow {
		parts = append(parts, fmt.Sprintf("+%d more", len(running)-maxShow))
	}
	return strings.Join(parts, ", ")
}
