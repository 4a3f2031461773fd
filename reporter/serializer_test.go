package reporter

import (
	"testing"

	"code.cloudfoundry.org/clock/fakeclock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

type step struct {
	test types.TestPath
	typ  types.MessageType
}

func runSerializer(t *testing.T, tests []types.TestPath, steps []step, sendDone bool) []string {
	t.Helper()
	rec := NewRecorder()
	s := NewSerializer(rec)
	require.NoError(t, s.RegisterTests(tests, types.DefaultRegisterOptions(), at(0)))
	for i, st := range steps {
		require.NoError(t, s.GotMessage(st.test, msg(st.typ), at(i+1)))
	}
	if sendDone {
		require.NoError(t, s.Done(at(len(steps)+1)))
	}
	return summarize(rec.Events())
}

func TestSerializer_BasicInterleave(t *testing.T) {
	t1, t2 := tp("T1"), tp("T2")
	got := runSerializer(t, []types.TestPath{t1, t2}, []step{
		{t1, types.MessageStart},
		{t2, types.MessageStart},
		{t1, types.MessageFinish},
		{t2, types.MessageFinish},
	}, true)

	want := []string{"registerTests", "T1:start", "T1:finish", "T2:start", "T2:finish", "done"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected sequence (-want +got):\n%s", diff)
	}
}

func TestSerializer_EarlyStartNext(t *testing.T) {
	t1, t2, t3 := tp("T1"), tp("T2"), tp("T3")
	got := runSerializer(t, []types.TestPath{t1, t2, t3}, []step{
		{t1, types.MessageStart},
		{t2, types.MessageStart},
		{t3, types.MessageStart},
		{t1, types.MessageFinish},
	}, false)

	want := []string{"registerTests", "T1:start", "T1:finish", "T2:start"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected sequence (-want +got):\n%s", diff)
	}
}

func TestSerializer_PrefersFinishedCandidate(t *testing.T) {
	t1, t2, t3 := tp("T1"), tp("T2"), tp("T3")
	got := runSerializer(t, []types.TestPath{t1, t2, t3}, []step{
		{t1, types.MessageStart},
		{t2, types.MessageStart},
		{t3, types.MessageStart},
		{t3, types.MessageFinish},
		{t1, types.MessageFinish},
		{t2, types.MessageFinish},
	}, true)

	want := []string{
		"registerTests",
		"T1:start", "T1:finish",
		"T3:start", "T3:finish",
		"T2:start", "T2:finish",
		"done",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected sequence (-want +got):\n%s", diff)
	}
}

func TestSerializer_StaysInSuiteUntilItIsDone(t *testing.T) {
	a1, a2 := tp("A", "A1"), tp("A", "A2")
	b1 := tp("B", "B1")
	got := runSerializer(t, []types.TestPath{a1, a2, b1}, []step{
		{a1, types.MessageStart},
		{b1, types.MessageStart},
		{a2, types.MessageStart},
		{a1, types.MessageFinish},
		{b1, types.MessageFinish},
		{a2, types.MessageStdout},
		{a2, types.MessageFinish},
	}, true)

	want := []string{
		"registerTests",
		"A1:start", "A1:finish",
		"A2:start", "A2:stdout", "A2:finish",
		"B1:start", "B1:finish",
		"done",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected sequence (-want +got):\n%s", diff)
	}
}

func TestSerializer_CascadesThroughFinishedBuffers(t *testing.T) {
	t1, t2, t3 := tp("T1"), tp("T2"), tp("T3")
	got := runSerializer(t, []types.TestPath{t1, t2, t3}, []step{
		{t2, types.MessageStart},
		{t3, types.MessageStart},
		{t3, types.MessageFinish},
		{t1, types.MessageStart},
		{t1, types.MessageFinish},
		{t2, types.MessageFinish},
	}, true)

	want := []string{
		"registerTests",
		"T2:start",
		"T2:finish",
		"T3:start", "T3:finish",
		"T1:start", "T1:finish",
		"done",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected sequence (-want +got):\n%s", diff)
	}
}

func TestSerializer_PreservesTimestamps(t *testing.T) {
	t1, t2 := tp("T1"), tp("T2")
	rec := NewRecorder()
	s := NewSerializer(rec)
	require.NoError(t, s.RegisterTests([]types.TestPath{t1, t2}, types.DefaultRegisterOptions(), at(0)))
	require.NoError(t, s.GotMessage(t1, msg(types.MessageStart), at(1)))
	require.NoError(t, s.GotMessage(t2, msg(types.MessageStart), at(2)))
	require.NoError(t, s.GotMessage(t1, msg(types.MessageFinish), at(3)))

	events := rec.Events()
	require.Len(t, events, 4)
	assert.Equal(t, "T2", events[3].Test.Name())
	assert.Equal(t, at(2), events[3].Time)
}

func TestSerializer_MessageAfterFinish(t *testing.T) {
	t1 := tp("T1")
	s := NewSerializer(NewRecorder())
	require.NoError(t, s.RegisterTests([]types.TestPath{t1}, types.DefaultRegisterOptions(), at(0)))
	require.NoError(t, s.GotMessage(t1, msg(types.MessageStart), at(1)))
	require.NoError(t, s.GotMessage(t1, msg(types.MessageFinish), at(2)))

	err := s.GotMessage(t1, msg(types.MessageStdout), at(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stdout")
	assert.Contains(t, err.Error(), t1.String())
}

func TestSerializer_DoneWithPendingMessages(t *testing.T) {
	t1, t2 := tp("T1"), tp("T2")

	t.Run("unfinished current test", func(t *testing.T) {
		s := NewSerializer(NewRecorder())
		require.NoError(t, s.RegisterTests([]types.TestPath{t1}, types.DefaultRegisterOptions(), at(0)))
		require.NoError(t, s.GotMessage(t1, msg(types.MessageStart), at(1)))
		assert.Error(t, s.Done(at(2)))
	})

	t.Run("buffered messages", func(t *testing.T) {
		s := NewSerializer(NewRecorder())
		require.NoError(t, s.RegisterTests([]types.TestPath{t1, t2}, types.DefaultRegisterOptions(), at(0)))
		require.NoError(t, s.GotMessage(t1, msg(types.MessageStart), at(1)))
		require.NoError(t, s.GotMessage(t2, msg(types.MessageStart), at(2)))
		require.NoError(t, s.GotMessage(t1, msg(types.MessageFinish), at(3)))
		require.NoError(t, s.GotMessage(t2, msg(types.MessageStdout), at(4)))
		// T2 is current now, still unfinished.
		assert.Error(t, s.Done(at(5)))
	})

	t.Run("nothing ran", func(t *testing.T) {
		s := NewSerializer(NewRecorder())
		require.NoError(t, s.RegisterTests(nil, types.DefaultRegisterOptions(), at(0)))
		assert.NoError(t, s.Done(at(1)))
	})
}

func TestSerializer_RetryDoesNotEndTest(t *testing.T) {
	t1, t2 := tp("T1"), tp("T2")
	got := runSerializer(t, []types.TestPath{t1, t2}, []step{
		{t1, types.MessageStart},
		{t2, types.MessageStart},
		{t1, types.MessageRetry},
		{t2, types.MessageFinish},
		{t1, types.MessageFinish},
	}, true)

	want := []string{
		"registerTests",
		"T1:start", "T1:retry", "T1:finish",
		"T2:start", "T2:finish",
		"done",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unexpected sequence (-want +got):\n%s", diff)
	}
}

func TestSerializer_CancelWithBufferedTestOutsideScope(t *testing.T) {
	a1, a2, b1 := tp("A", "A1"), tp("A", "A2"), tp("B", "B1")
	rec := NewRecorder()
	c := NewCancellable(NewTimestamper(NewSerializer(rec), fakeclock.NewFakeClock(epoch)))

	require.NoError(t, c.RegisterTests([]types.TestPath{a1, a2, b1}, types.DefaultRegisterOptions()))
	require.NoError(t, c.GotMessage(a1, types.Start(false, false)))
	require.NoError(t, c.GotMessage(b1, types.Start(false, false)))
	require.NoError(t, c.Cancel())

	want := []string{
		"registerTests",
		"A1:start", "A1:finish",
		"B1:start", "B1:finish",
		"done",
	}
	if diff := cmp.Diff(want, summarize(rec.Events())); diff != "" {
		t.Errorf("unexpected sequence (-want +got):\n%s", diff)
	}
	assert.Equal(t, []types.Message{types.Start(false, false), types.Finish(types.ResultAborted)}, rec.Messages(b1))
}
