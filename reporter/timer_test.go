package reporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

func finishOf(t *testing.T, rec *Recorder, test types.TestPath) types.Message {
	t.Helper()
	msgs := rec.Messages(test)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, types.MessageFinish, last.Type)
	return last
}

func TestTimer_Durations(t *testing.T) {
	opts := types.DefaultRegisterOptions()
	opts.SlowThreshold = 100 * time.Millisecond

	tests := []struct {
		name     string
		duration int
		override time.Duration
		slow     bool
		halfSlow bool
	}{
		{"fast", 10, 0, false, false},
		{"half slow", 50, 0, false, true},
		{"slow", 100, 0, true, true},
		{"override makes it fast", 100, time.Second, false, false},
		{"override makes it slow", 30, 40 * time.Millisecond, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecorder()
			timer := NewTimer(rec)
			test := tp("T")
			require.NoError(t, timer.RegisterTests([]types.TestPath{test}, opts, at(0)))
			require.NoError(t, timer.GotMessage(test, types.Start(false, false), at(0)))
			if tt.override > 0 {
				require.NoError(t, timer.GotMessage(test, types.Message{Type: types.MessageSetSlowThreshold, SlowThreshold: tt.override}, at(1)))
			}
			require.NoError(t, timer.GotMessage(test, msg(types.MessageStartedTest), at(5)))
			require.NoError(t, timer.GotMessage(test, msg(types.MessageStartedAfterHooks), at(5+tt.duration)))
			require.NoError(t, timer.GotMessage(test, types.Finish(types.ResultSuccess), at(500)))

			finish := finishOf(t, rec, test)
			require.NotNil(t, finish.Duration)
			assert.Equal(t, time.Duration(tt.duration)*time.Millisecond, *finish.Duration)
			assert.Equal(t, tt.slow, finish.Slow)
			assert.Equal(t, tt.halfSlow, finish.HalfSlow)
		})
	}
}

func TestTimer_MissingPhases(t *testing.T) {
	rec := NewRecorder()
	timer := NewTimer(rec)
	test := tp("T")
	require.NoError(t, timer.RegisterTests([]types.TestPath{test}, types.DefaultRegisterOptions(), at(0)))
	require.NoError(t, timer.GotMessage(test, types.Start(false, false), at(0)))
	require.NoError(t, timer.GotMessage(test, msg(types.MessageStartedTest), at(5)))
	require.NoError(t, timer.GotMessage(test, types.Finish(types.ResultTimeout), at(2000)))

	finish := finishOf(t, rec, test)
	assert.Nil(t, finish.Duration)
	assert.False(t, finish.Slow)
}

func TestTimer_RetryResetsTimings(t *testing.T) {
	rec := NewRecorder()
	timer := NewTimer(rec)
	test := tp("T")
	require.NoError(t, timer.RegisterTests([]types.TestPath{test}, types.DefaultRegisterOptions(), at(0)))
	require.NoError(t, timer.GotMessage(test, msg(types.MessageStartedTest), at(5)))
	require.NoError(t, timer.GotMessage(test, msg(types.MessageStartedAfterHooks), at(10)))
	require.NoError(t, timer.GotMessage(test, types.Message{Type: types.MessageRetry, Result: types.ResultFailure}, at(11)))
	require.NoError(t, timer.GotMessage(test, msg(types.MessageStartedTest), at(20)))
	require.NoError(t, timer.GotMessage(test, msg(types.MessageStartedAfterHooks), at(50)))
	require.NoError(t, timer.GotMessage(test, types.Finish(types.ResultSuccess), at(51)))

	finish := finishOf(t, rec, test)
	require.NotNil(t, finish.Duration)
	assert.Equal(t, 30*time.Millisecond, *finish.Duration)
}
