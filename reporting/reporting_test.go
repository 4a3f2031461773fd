package reporting

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-suite/reporter"
	"github.com/ethereum-optimism/infra/op-suite/types"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

type step struct {
	test types.TestPath
	msg  types.Message
	ms   int
}

var (
	testA = types.NewTestPath("file", "a")
	testB = types.NewTestPath("file", "s", "b")
)

// feed plays a passing test a and a failing test b, one after the other.
func feed(t *testing.T, r reporter.Reporter) {
	t.Helper()
	require.NoError(t, r.RegisterTests([]types.TestPath{testA, testB}, types.DefaultRegisterOptions(), at(0)))
	steps := []step{
		{testA, types.Start(false, false), 1},
		{testA, types.Message{Type: types.MessageStartedTest}, 2},
		{testA, types.Message{Type: types.MessageStartedAfterHooks}, 12},
		{testA, types.Finish(types.ResultSuccess), 13},
		{testB, types.Start(false, false), 14},
		{testB, types.Message{Type: types.MessageStdout, Data: "hello"}, 15},
		{testB, types.ErrorMessage(errors.New("boom"), ""), 16},
		{testB, types.Finish(types.ResultFailure), 17},
	}
	for _, s := range steps {
		require.NoError(t, r.GotMessage(s.test, s.msg, at(s.ms)))
	}
	require.NoError(t, r.Done(at(100)))
}

func TestSpecReporter(t *testing.T) {
	var buf bytes.Buffer
	feed(t, sequential(NewSpecReporter(&buf, true)))

	want := strings.Join([]string{
		"",
		"file",
		"  ✓ a",
		"  s",
		"    1) b",
		"",
		"1 passing (100ms)",
		"1 failing",
		"",
		"1) file: s > b",
		"   failure",
		"     hello",
		"     boom",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestSpecReporter_SlowAndRetry(t *testing.T) {
	var buf bytes.Buffer
	r := sequential(NewSpecReporter(&buf, true))
	opts := types.DefaultRegisterOptions()
	opts.SlowThreshold = 10 * time.Millisecond

	require.NoError(t, r.RegisterTests([]types.TestPath{testA}, opts, at(0)))
	for _, s := range []step{
		{testA, types.Start(false, false), 0},
		{testA, types.Message{Type: types.MessageStdout, Data: "first attempt"}, 1},
		{testA, types.Message{Type: types.MessageRetry, Result: types.ResultFailure}, 2},
		{testA, types.Message{Type: types.MessageStartedTest}, 3},
		{testA, types.Message{Type: types.MessageStartedAfterHooks}, 53},
		{testA, types.Finish(types.ResultSuccess), 54},
	} {
		require.NoError(t, r.GotMessage(s.test, s.msg, at(s.ms)))
	}
	require.NoError(t, r.Done(at(60)))

	out := buf.String()
	assert.Contains(t, out, "  ↻ a (failure, retrying)\n")
	assert.Contains(t, out, "  ✓ a (50ms)\n")
	assert.NotContains(t, out, "first attempt")
}

func TestSpecReporter_RegistrationFailed(t *testing.T) {
	var buf bytes.Buffer
	r := NewSpecReporter(&buf, true)
	require.NoError(t, r.RegistrationFailed(errors.New("syntax error"), at(0)))
	assert.Equal(t, "Failed to list tests:\nsyntax error\n", buf.String())
}

func TestTeamCityReporter(t *testing.T) {
	var buf bytes.Buffer
	feed(t, sequential(NewTeamCityReporter(&buf)))

	want := strings.Join([]string{
		"##teamcity[testSuiteStarted name='file']",
		"##teamcity[testStarted name='a' captureStandardOutput='false']",
		"##teamcity[testFinished name='a' duration='10']",
		"##teamcity[testSuiteStarted name='s']",
		"##teamcity[testStarted name='b' captureStandardOutput='false']",
		"##teamcity[testStdOut name='b' out='hello']",
		"##teamcity[testFailed name='b' message='failure' details='boom']",
		"##teamcity[testFinished name='b']",
		"##teamcity[testSuiteFinished name='s']",
		"##teamcity[testSuiteFinished name='file']",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestTeamCityEscaping(t *testing.T) {
	assert.Equal(t, "it|'s |[x|] a||b|nc", teamcityEscaper.Replace("it's [x] a|b\nc"))
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	feed(t, NewJSONReporter(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 10)

	var first, msg, last JSONEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[6]), &msg))
	require.NoError(t, json.Unmarshal([]byte(lines[9]), &last))

	assert.Equal(t, reporter.EventRegisterTests, first.Event)
	assert.Equal(t, []types.TestPath{testA, testB}, first.Tests)
	assert.Equal(t, reporter.EventMessage, msg.Event)
	assert.Equal(t, testB, *msg.Test)
	assert.Equal(t, types.MessageStdout, msg.Message.Type)
	assert.Equal(t, reporter.EventDone, last.Event)
	assert.True(t, last.Time.Equal(at(100)))
}

func TestSummaryReporter(t *testing.T) {
	var buf bytes.Buffer
	feed(t, reporter.NewTimer(NewSummaryReporter(&buf, "RESULTS", true)))

	out := buf.String()
	assert.Contains(t, out, "RESULTS")
	assert.Contains(t, out, "s > b")
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "FAILURE")
	assert.Contains(t, out, "10ms")
	assert.Contains(t, out, "1 PASSED, 1 FAILED, 0 SKIPPED")
	assert.Contains(t, out, "FAIL")
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{1500 * time.Microsecond, "1ms"},
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1m30s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.in))
	}
}
