package runner

import (
	"context"
	"errors"
	"sync"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

// postponing holds back the finish message of an attempt so the retry loop
// can decide whether it ends the test or becomes a retry.
type postponing struct {
	next reporter.Internal

	mu     sync.Mutex
	finish *types.Message
}

var _ reporter.Internal = (*postponing)(nil)

func (p *postponing) RegisterTests(tests []types.TestPath, opts types.RegisterOptions) error {
	return p.next.RegisterTests(tests, opts)
}

func (p *postponing) RegistrationFailed(err error) error {
	return p.next.RegistrationFailed(err)
}

func (p *postponing) GotMessage(test types.TestPath, msg types.Message) error {
	if msg.Type == types.MessageFinish {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.finish = &msg
		return nil
	}
	return p.next.GotMessage(test, msg)
}

func (p *postponing) Done() error {
	return p.next.Done()
}

func (p *postponing) postponed() (types.Message, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finish == nil {
		return types.Message{}, false
	}
	return *p.finish, true
}

// runWithRetries runs test until an attempt succeeds or attempts are used
// up. Failed attempts other than the last are reported as retry messages, so
// exactly one finish reaches rep. Once stopped reports true no further
// attempt is made.
func (r *runner) runWithRetries(ctx context.Context, rep reporter.Internal, test types.TestInfo, attempts int, stopped func() bool) error {
	for attempt := 1; ; attempt++ {
		p := &postponing{next: rep}
		err := r.runAttempt(ctx, p, test)
		if IsInternal(err) {
			return err
		}
		msg, ok := p.postponed()
		if !ok {
			return internalError(errors.New("attempt ended without a finish message"))
		}
		// A cancelled run finishes its outstanding tests as aborted.
		if stopped() {
			return err
		}

		last := err == nil || attempt >= attempts
		if !last {
			msg.Type = types.MessageRetry
			r.log.Info("Retrying test", "test", test.Path.String(), "attempt", attempt, "result", msg.Result)
		}
		if ferr := forward(rep, test.Path, msg); ferr != nil {
			return ferr
		}
		if last {
			return err
		}
	}
}
