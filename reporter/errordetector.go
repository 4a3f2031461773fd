package reporter

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

// Stats counts the final results of a run.
type Stats struct {
	Total   int
	Results map[types.Result]int
	Retries int
}

// Count returns the number of tests that finished with result.
func (s Stats) Count(result types.Result) int {
	return s.Results[result]
}

// ErrorDetector watches the stream for anything that makes the run fail:
// a failed listing or a test that finished with a failure or a timeout.
type ErrorDetector struct {
	Base

	mu                 sync.Mutex
	registrationFailed bool
	stats              Stats
}

var _ Reporter = (*ErrorDetector)(nil)

func NewErrorDetector() *ErrorDetector {
	return &ErrorDetector{stats: Stats{Results: make(map[types.Result]int)}}
}

func (e *ErrorDetector) RegisterTests(tests []types.TestPath, _ types.RegisterOptions, _ time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Total = len(tests)
	return nil
}

func (e *ErrorDetector) RegistrationFailed(error, time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registrationFailed = true
	return nil
}

func (e *ErrorDetector) GotMessage(_ types.TestPath, msg types.Message, _ time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch msg.Type {
	case types.MessageFinish:
		e.stats.Results[msg.Result]++
	case types.MessageRetry:
		e.stats.Retries++
	}
	return nil
}

// HasErrors reports whether the run must be considered failed.
func (e *ErrorDetector) HasErrors() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.registrationFailed {
		return true
	}
	for result, n := range e.stats.Results {
		if n > 0 && result.Failed() {
			return true
		}
	}
	return false
}

// Stats returns a copy of the counters.
func (e *ErrorDetector) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	results := make(map[types.Result]int, len(e.stats.Results))
	for k, v := range e.stats.Results {
		results[k] = v
	}
	return Stats{Total: e.stats.Total, Results: results, Retries: e.stats.Retries}
}
