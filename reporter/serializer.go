package reporter

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/pkg/errors"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

type timedMessage struct {
	msg types.Message
	at  time.Time
}

type pendingTest struct {
	test     types.TestPath
	messages []timedMessage
}

func (p *pendingTest) finished() bool {
	return len(p.messages) > 0 && p.messages[len(p.messages)-1].msg.Terminal()
}

// Serializer reorders the interleaved messages of concurrently running tests
// into a stream in which tests appear to run one at a time.
//
// One test is current at any time and its messages are forwarded as they
// arrive; messages of other tests are buffered. When the current test
// finishes, the next test is picked among buffered ones, restricted to the
// innermost suite around the finished test that still has unfinished tests.
// Within that scope a test whose buffer already holds its finish is
// preferred, then the test that was buffered first. Once an aborted finish
// has been seen the run is being cancelled and tests that have not started
// never will, so the scope is lifted and every buffered test may be picked.
type Serializer struct {
	next Reporter

	mu             sync.Mutex
	current        *types.TestPath
	canPickNewTest bool
	pending        *linkedhashmap.Map // test key -> *pendingTest, in arrival order
	remaining      *types.TestCount
	finished       map[string]bool
	aborting       bool
}

var _ Reporter = (*Serializer)(nil)

func NewSerializer(next Reporter) *Serializer {
	return &Serializer{
		next:           next,
		canPickNewTest: true,
		pending:        linkedhashmap.New(),
		remaining:      types.NewTestCount(),
		finished:       make(map[string]bool),
	}
}

func (s *Serializer) RegisterTests(tests []types.TestPath, opts types.RegisterOptions, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remaining.AddTests(tests)
	return s.next.RegisterTests(tests, opts, at)
}

func (s *Serializer) RegistrationFailed(err error, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.RegistrationFailed(err, at)
}

func (s *Serializer) GotMessage(test types.TestPath, msg types.Message, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := test.Key()
	if s.finished[key] {
		return errors.Errorf("received %s message for test %s which already finished", msg.Type, test)
	}
	if msg.Terminal() && msg.Result == types.ResultAborted {
		s.aborting = true
	}

	if s.current != nil && s.current.Equal(test) {
		if err := s.forward(test, timedMessage{msg: msg, at: at}); err != nil {
			return err
		}
	} else {
		p, ok := s.pending.Get(key)
		if !ok {
			p = &pendingTest{test: test}
			s.pending.Put(key, p)
		}
		pt := p.(*pendingTest)
		pt.messages = append(pt.messages, timedMessage{msg: msg, at: at})
	}

	return s.pickNewTests()
}

func (s *Serializer) Done(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.pending.Empty() {
		return errors.Errorf("done called with %d tests still holding buffered messages", s.pending.Size())
	}
	if !s.canPickNewTest {
		return errors.Errorf("done called before test %s finished", s.current)
	}
	return s.next.Done(at)
}

// forward emits a message of the current test.
func (s *Serializer) forward(test types.TestPath, m timedMessage) error {
	if err := s.next.GotMessage(test, m.msg, m.at); err != nil {
		return err
	}
	if m.msg.Terminal() {
		s.finished[test.Key()] = true
		s.remaining.RemoveTest(test)
		s.canPickNewTest = true
	}
	return nil
}

// pickNewTests selects and flushes buffered tests for as long as the
// selected test completes from its buffer alone.
func (s *Serializer) pickNewTests() error {
	for s.canPickNewTest {
		p, ok := s.selectCandidate(s.scope())
		if !ok {
			return nil
		}
		s.pending.Remove(p.test.Key())
		current := p.test
		s.current = &current
		s.canPickNewTest = false
		for _, m := range p.messages {
			if err := s.forward(p.test, m); err != nil {
				return err
			}
		}
	}
	return nil
}

// scope returns the innermost suite around the last current test that still
// has unfinished tests, or nil when any test may be picked.
func (s *Serializer) scope() *types.TestPath {
	if s.current == nil || s.aborting {
		return nil
	}
	for suite, ok := s.current.SuitePath(); ok; suite, ok = suite.SuitePath() {
		if s.remaining.NumberOfTestsInSuite(suite) > 0 {
			return &suite
		}
	}
	return nil
}

func (s *Serializer) selectCandidate(scope *types.TestPath) (*pendingTest, bool) {
	var first *pendingTest
	it := s.pending.Iterator()
	for it.Next() {
		p := it.Value().(*pendingTest)
		if len(p.messages) == 0 || (scope != nil && !scope.Contains(p.test)) {
			continue
		}
		if p.finished() {
			return p, true
		}
		if first == nil {
			first = p
		}
	}
	return first, first != nil
}
