package reporter

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

type testTiming struct {
	startedTest   time.Time
	afterHooks    time.Time
	slowThreshold time.Duration
}

// Timer measures how long each test body ran, from startedTest to
// startedAfterHooks, and attaches the duration and slowness flags to the
// test's finish message. Tests that never reached both phases finish without
// a duration.
type Timer struct {
	next Reporter

	mu            sync.Mutex
	slowThreshold time.Duration
	tests         map[string]*testTiming
}

var _ Reporter = (*Timer)(nil)

func NewTimer(next Reporter) *Timer {
	return &Timer{
		next:          next,
		slowThreshold: types.DefaultSlowThreshold,
		tests:         make(map[string]*testTiming),
	}
}

func (t *Timer) RegisterTests(tests []types.TestPath, opts types.RegisterOptions, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slowThreshold = opts.SlowThreshold
	return t.next.RegisterTests(tests, opts, at)
}

func (t *Timer) RegistrationFailed(err error, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next.RegistrationFailed(err, at)
}

func (t *Timer) GotMessage(test types.TestPath, msg types.Message, at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := test.Key()
	switch msg.Type {
	case types.MessageStartedTest:
		t.timing(key).startedTest = at
	case types.MessageStartedAfterHooks:
		t.timing(key).afterHooks = at
	case types.MessageSetSlowThreshold:
		t.timing(key).slowThreshold = msg.SlowThreshold
	case types.MessageRetry:
		delete(t.tests, key)
	case types.MessageFinish:
		if timing, ok := t.tests[key]; ok {
			delete(t.tests, key)
			msg = t.withDuration(msg, timing)
		}
	}
	return t.next.GotMessage(test, msg, at)
}

func (t *Timer) Done(at time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next.Done(at)
}

func (t *Timer) timing(key string) *testTiming {
	timing, ok := t.tests[key]
	if !ok {
		timing = &testTiming{}
		t.tests[key] = timing
	}
	return timing
}

func (t *Timer) withDuration(msg types.Message, timing *testTiming) types.Message {
	if timing.startedTest.IsZero() || timing.afterHooks.IsZero() {
		return msg
	}
	threshold := t.slowThreshold
	if timing.slowThreshold > 0 {
		threshold = timing.slowThreshold
	}
	duration := timing.afterHooks.Sub(timing.startedTest)
	msg.Duration = &duration
	msg.Slow = duration >= threshold
	msg.HalfSlow = duration >= threshold/2
	return msg
}
