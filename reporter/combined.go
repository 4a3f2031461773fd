package reporter

import (
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

// Combined forwards every call to each of its reporters in order. It stops at
// the first reporter that returns an error.
type Combined struct {
	reporters []Reporter
	mu        sync.Mutex
}

var _ Reporter = (*Combined)(nil)

func NewCombined(reporters ...Reporter) *Combined {
	return &Combined{reporters: reporters}
}

func (c *Combined) RegisterTests(tests []types.TestPath, opts types.RegisterOptions, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.reporters {
		if err := r.RegisterTests(tests, opts, at); err != nil {
			return err
		}
	}
	return nil
}

func (c *Combined) RegistrationFailed(err error, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.reporters {
		if rerr := r.RegistrationFailed(err, at); rerr != nil {
			return rerr
		}
	}
	return nil
}

func (c *Combined) GotMessage(test types.TestPath, msg types.Message, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.reporters {
		if err := r.GotMessage(test, msg, at); err != nil {
			return err
		}
	}
	return nil
}

func (c *Combined) Done(at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.reporters {
		if err := r.Done(at); err != nil {
			return err
		}
	}
	return nil
}
