package reporter

import (
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

// Cancellable forwards calls until the run is cancelled or reaches a terminal
// state. Cancelling synthesizes an aborted finish for every test that started
// but did not finish, then ends the stream with Done if tests were
// registered. Once finished, every call is silently ignored.
type Cancellable struct {
	next Internal

	mu          sync.Mutex
	registered  bool
	finished    bool
	outstanding *linkedhashmap.Map // test key -> types.TestPath, in start order
}

var _ Internal = (*Cancellable)(nil)

func NewCancellable(next Internal) *Cancellable {
	return &Cancellable{
		next:        next,
		outstanding: linkedhashmap.New(),
	}
}

func (c *Cancellable) RegisterTests(tests []types.TestPath, opts types.RegisterOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return nil
	}
	c.registered = true
	return c.next.RegisterTests(tests, opts)
}

func (c *Cancellable) RegistrationFailed(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return nil
	}
	c.finished = true
	return c.next.RegistrationFailed(err)
}

func (c *Cancellable) GotMessage(test types.TestPath, msg types.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return nil
	}
	switch msg.Type {
	case types.MessageStart:
		c.outstanding.Put(test.Key(), test)
	case types.MessageFinish:
		c.outstanding.Remove(test.Key())
	}
	return c.next.GotMessage(test, msg)
}

func (c *Cancellable) Done() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return nil
	}
	c.finished = true
	return c.next.Done()
}

// Cancel ends the stream early. Calling it on a finished reporter does nothing.
func (c *Cancellable) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return nil
	}
	c.finished = true

	outstanding := c.outstanding.Values()
	c.outstanding.Clear()
	for _, v := range outstanding {
		if err := c.next.GotMessage(v.(types.TestPath), types.Finish(types.ResultAborted)); err != nil {
			return err
		}
	}
	if c.registered {
		return c.next.Done()
	}
	return nil
}

// IsFinished reports whether the stream has ended, by cancellation or
// otherwise. No new tests should be started once it returns true.
func (c *Cancellable) IsFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}
