package reporter

import (
	"slices"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

// SuiteMarker adds suiteStart and suiteFinish messages around the tests of
// each suite. It expects a sequential stream, as produced by a Serializer:
// a suite starts with the first test started in it and finishes with the
// finish of its last remaining test.
//
// A cancelled run leaves tests that never start. Suites still open when the
// stream moves to a test outside of them, or when Done is called, are
// finished at that point, so markers always pair up.
type SuiteMarker struct {
	next Reporter

	mu        sync.Mutex
	total     *types.TestCount
	remaining *types.TestCount
	// open holds the suites between suiteStart and suiteFinish, outermost
	// first. Each contains the next.
	open []types.TestPath
}

var _ Reporter = (*SuiteMarker)(nil)

func NewSuiteMarker(next Reporter) *SuiteMarker {
	return &SuiteMarker{
		next:      next,
		total:     types.NewTestCount(),
		remaining: types.NewTestCount(),
	}
}

func (s *SuiteMarker) RegisterTests(tests []types.TestPath, opts types.RegisterOptions, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total.AddTests(tests)
	s.remaining.AddTests(tests)
	return s.next.RegisterTests(tests, opts, at)
}

func (s *SuiteMarker) RegistrationFailed(err error, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.RegistrationFailed(err, at)
}

func (s *SuiteMarker) GotMessage(test types.TestPath, msg types.Message, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Type {
	case types.MessageStart:
		if err := s.leave(test, at); err != nil {
			return err
		}
		var enter []types.TestPath
		for suite, ok := test.SuitePath(); ok; suite, ok = suite.SuitePath() {
			if s.total.NumberOfTestsInSuite(suite) > 0 && !s.isOpen(suite) {
				enter = append(enter, suite)
			}
		}
		// Outermost first.
		slices.Reverse(enter)
		for _, suite := range enter {
			if err := s.next.GotMessage(suite, types.Message{Type: types.MessageSuiteStart}, at); err != nil {
				return err
			}
			s.open = append(s.open, suite)
		}
		s.remaining.RemoveTest(test)
		return s.next.GotMessage(test, msg, at)

	case types.MessageFinish:
		if err := s.next.GotMessage(test, msg, at); err != nil {
			return err
		}
		for suite, ok := test.SuitePath(); ok; suite, ok = suite.SuitePath() {
			if s.remaining.NumberOfTestsInSuite(suite) > 0 || s.total.NumberOfTestsInSuite(suite) == 0 {
				break
			}
			if len(s.open) == 0 || !s.open[len(s.open)-1].Equal(suite) {
				break
			}
			if err := s.closeInnermost(at); err != nil {
				return err
			}
		}
		return nil
	}
	return s.next.GotMessage(test, msg, at)
}

func (s *SuiteMarker) Done(at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.open) > 0 {
		if err := s.closeInnermost(at); err != nil {
			return err
		}
	}
	return s.next.Done(at)
}

// leave finishes the open suites that do not contain test.
func (s *SuiteMarker) leave(test types.TestPath, at time.Time) error {
	for len(s.open) > 0 && !s.open[len(s.open)-1].Contains(test) {
		if err := s.closeInnermost(at); err != nil {
			return err
		}
	}
	return nil
}

func (s *SuiteMarker) closeInnermost(at time.Time) error {
	suite := s.open[len(s.open)-1]
	s.open = s.open[:len(s.open)-1]
	return s.next.GotMessage(suite, types.Message{Type: types.MessageSuiteFinish}, at)
}

func (s *SuiteMarker) isOpen(suite types.TestPath) bool {
	return slices.ContainsFunc(s.open, suite.Equal)
}
