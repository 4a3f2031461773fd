package reporter

import (
	"sync"

	"code.cloudfoundry.org/clock"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

// Timestamper turns an Internal call into a Reporter call by reading the
// clock once per call.
type Timestamper struct {
	next Reporter
	clk  clock.Clock
	mu   sync.Mutex
}

var _ Internal = (*Timestamper)(nil)

func NewTimestamper(next Reporter, clk clock.Clock) *Timestamper {
	if clk == nil {
		clk = clock.NewClock()
	}
	return &Timestamper{next: next, clk: clk}
}

func (t *Timestamper) RegisterTests(tests []types.TestPath, opts types.RegisterOptions) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next.RegisterTests(tests, opts, t.clk.Now())
}

func (t *Timestamper) RegistrationFailed(err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next.RegistrationFailed(err, t.clk.Now())
}

func (t *Timestamper) GotMessage(test types.TestPath, msg types.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next.GotMessage(test, msg, t.clk.Now())
}

func (t *Timestamper) Done() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.next.Done(t.clk.Now())
}
