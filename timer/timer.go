// Package timer provides a single-shot timeout whose duration can be changed
// while it is running. The duration is always measured from the moment the
// timer was created.
package timer

import (
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/pkg/errors"
)

// ErrStopped is returned when updating a timer that already fired or was
// cancelled.
var ErrStopped = errors.New("timer already elapsed or cancelled")

type state int

const (
	stateActive state = iota
	stateElapsed
	stateCancelled
)

// Timer calls its callback once, asynchronously, when the timeout elapses.
type Timer struct {
	clk       clock.Clock
	start     time.Time
	onTimeout func()
	fired     chan struct{}

	mu      sync.Mutex
	timeout time.Duration
	state   state
	// stop is closed to abandon the currently scheduled firing. A new channel
	// is created on every reschedule and doubles as the schedule's identity.
	stop chan struct{}
}

// New starts a timer that calls onTimeout once timeout has passed since now.
// A timeout that is already used up fires on a separate goroutine, never
// from within New.
func New(clk clock.Clock, timeout time.Duration, onTimeout func()) *Timer {
	t := &Timer{
		clk:       clk,
		start:     clk.Now(),
		onTimeout: onTimeout,
		fired:     make(chan struct{}),
		timeout:   timeout,
	}
	t.mu.Lock()
	t.schedule()
	t.mu.Unlock()
	return t
}

// schedule must be called with mu held.
func (t *Timer) schedule() {
	stop := make(chan struct{})
	t.stop = stop

	remaining := t.timeout - t.clk.Since(t.start)
	if remaining <= 0 {
		go t.fire(stop)
		return
	}

	tm := t.clk.NewTimer(remaining)
	go func() {
		defer tm.Stop()
		select {
		case <-tm.C():
			t.fire(stop)
		case <-stop:
		}
	}()
}

func (t *Timer) fire(stop chan struct{}) {
	t.mu.Lock()
	if t.state != stateActive || t.stop != stop {
		t.mu.Unlock()
		return
	}
	t.state = stateElapsed
	t.mu.Unlock()

	if t.onTimeout != nil {
		t.onTimeout()
	}
	close(t.fired)
}

// UpdateTimeout replaces the timeout. The new value is still relative to the
// creation time of the timer, so a value smaller than the time already spent
// fires right away.
func (t *Timer) UpdateTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateActive {
		return ErrStopped
	}
	t.timeout = timeout
	close(t.stop)
	t.schedule()
	return nil
}

// Cancel prevents the timer from firing. It is safe to call more than once
// and after the timer fired.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != stateActive {
		return
	}
	t.state = stateCancelled
	close(t.stop)
}

// Timeout returns the current timeout.
func (t *Timer) Timeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

// Elapsed reports whether the timer fired.
func (t *Timer) Elapsed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateElapsed
}

// Done is closed after the timeout callback returned.
func (t *Timer) Done() <-chan struct{} {
	return t.fired
}
