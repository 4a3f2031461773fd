package reporter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

type mockInternal struct {
	mock.Mock
}

func (m *mockInternal) RegisterTests(tests []types.TestPath, opts types.RegisterOptions) error {
	return m.Called(tests, opts).Error(0)
}

func (m *mockInternal) RegistrationFailed(err error) error {
	return m.Called(err).Error(0)
}

func (m *mockInternal) GotMessage(test types.TestPath, msg types.Message) error {
	return m.Called(test, msg).Error(0)
}

func (m *mockInternal) Done() error {
	return m.Called().Error(0)
}

func newSpy() *mockInternal {
	spy := &mockInternal{}
	spy.On("RegisterTests", mock.Anything, mock.Anything).Return(nil)
	spy.On("RegistrationFailed", mock.Anything).Return(nil)
	spy.On("GotMessage", mock.Anything, mock.Anything).Return(nil)
	spy.On("Done").Return(nil)
	return spy
}

func TestCancellable_ForwardsUntilCancelled(t *testing.T) {
	spy := newSpy()
	c := NewCancellable(spy)
	t1 := tp("T1")

	require.NoError(t, c.RegisterTests([]types.TestPath{t1}, types.DefaultRegisterOptions()))
	require.NoError(t, c.GotMessage(t1, types.Start(false, false)))
	require.NoError(t, c.GotMessage(t1, types.Finish(types.ResultSuccess)))
	require.NoError(t, c.Done())

	spy.AssertNumberOfCalls(t, "RegisterTests", 1)
	spy.AssertNumberOfCalls(t, "GotMessage", 2)
	spy.AssertNumberOfCalls(t, "Done", 1)
	assert.True(t, c.IsFinished())
}

func TestCancellable_CancelAbortsOutstandingTests(t *testing.T) {
	spy := newSpy()
	c := NewCancellable(spy)
	t1, t2 := tp("T1"), tp("T2")

	require.NoError(t, c.RegisterTests([]types.TestPath{t1, t2}, types.DefaultRegisterOptions()))
	require.NoError(t, c.GotMessage(t1, types.Start(false, false)))
	require.NoError(t, c.GotMessage(t2, types.Start(false, false)))
	require.NoError(t, c.GotMessage(t2, types.Finish(types.ResultSuccess)))
	assert.False(t, c.IsFinished())

	require.NoError(t, c.Cancel())
	assert.True(t, c.IsFinished())

	spy.AssertCalled(t, "GotMessage", t1, types.Finish(types.ResultAborted))
	spy.AssertNotCalled(t, "GotMessage", t2, types.Finish(types.ResultAborted))
	spy.AssertNumberOfCalls(t, "GotMessage", 4)
	spy.AssertNumberOfCalls(t, "Done", 1)
}

func TestCancellable_IgnoresCallsAfterCancel(t *testing.T) {
	spy := newSpy()
	c := NewCancellable(spy)
	t1 := tp("T1")

	require.NoError(t, c.RegisterTests([]types.TestPath{t1}, types.DefaultRegisterOptions()))
	require.NoError(t, c.Cancel())
	before := len(spy.Calls)

	require.NoError(t, c.RegisterTests([]types.TestPath{t1}, types.DefaultRegisterOptions()))
	require.NoError(t, c.GotMessage(t1, types.Start(false, false)))
	require.NoError(t, c.RegistrationFailed(errors.New("boom")))
	require.NoError(t, c.Done())
	require.NoError(t, c.Cancel())

	assert.Len(t, spy.Calls, before)
}

func TestCancellable_NoDoneWithoutRegistration(t *testing.T) {
	spy := newSpy()
	c := NewCancellable(spy)

	require.NoError(t, c.Cancel())
	spy.AssertNotCalled(t, "Done")
	assert.True(t, c.IsFinished())
}

func TestCancellable_RegistrationFailedFinishes(t *testing.T) {
	spy := newSpy()
	c := NewCancellable(spy)

	require.NoError(t, c.RegistrationFailed(errors.New("syntax error")))
	require.NoError(t, c.Cancel())
	require.NoError(t, c.Done())

	spy.AssertNumberOfCalls(t, "RegistrationFailed", 1)
	spy.AssertNotCalled(t, "Done")
}

func TestCancellable_PropagatesReporterErrors(t *testing.T) {
	spy := &mockInternal{}
	spy.On("RegisterTests", mock.Anything, mock.Anything).Return(nil)
	spy.On("GotMessage", mock.Anything, mock.Anything).Return(errors.New("reporter bug"))
	c := NewCancellable(spy)

	require.NoError(t, c.RegisterTests(nil, types.DefaultRegisterOptions()))
	assert.EqualError(t, c.GotMessage(tp("T1"), types.Start(false, false)), "reporter bug")
}
