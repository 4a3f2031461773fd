package logging

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-suite/types"
)

func TestNewFileLogger_Validation(t *testing.T) {
	_, err := NewFileLogger(t.TempDir(), "")
	require.Error(t, err)
	_, err = NewFileLogger("", "run")
	require.Error(t, err)
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	l, err := NewFileLogger(dir, "run-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "testrun-run-1"), l.GetBaseDir())

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	pass := types.NewTestPath("math", "addition", "adds")
	fail := types.NewTestPath("math", "divides")
	skip := types.NewTestPath("math", "later")

	require.NoError(t, l.RegisterTests([]types.TestPath{pass, fail, skip}, types.DefaultRegisterOptions(), now))

	require.NoError(t, l.GotMessage(pass, types.Start(false, false), now))
	require.NoError(t, l.GotMessage(pass, types.Message{Type: types.MessageStdout, Data: "\x1b[32mgreen\x1b[0m"}, now))
	require.NoError(t, l.GotMessage(pass, types.Finish(types.ResultSuccess), now))

	code := 1
	finish := types.Finish(types.ResultFailure)
	finish.Code = &code
	require.NoError(t, l.GotMessage(fail, types.Start(false, false), now))
	require.NoError(t, l.GotMessage(fail, types.Message{Type: types.MessageRetry, Result: types.ResultFailure}, now))
	require.NoError(t, l.GotMessage(fail, types.ErrorMessage(errors.New("division by zero"), "stack line"), now))
	require.NoError(t, l.GotMessage(fail, finish, now))

	require.NoError(t, l.GotMessage(skip, types.Start(true, false), now))
	require.NoError(t, l.GotMessage(skip, types.Finish(types.ResultSkipped), now))

	require.NoError(t, l.Done(now.Add(time.Second)))

	passLog, err := os.ReadFile(l.TestLogFile(pass, types.ResultSuccess))
	require.NoError(t, err)
	assert.Contains(t, string(passLog), "  green\n")
	assert.NotContains(t, string(passLog), "\x1b[")

	failLog, err := os.ReadFile(filepath.Join(dir, "testrun-run-1", "failed", "math__divides.log"))
	require.NoError(t, err)
	assert.Contains(t, string(failLog), "[retry] attempt 1 ended with failure")
	assert.Contains(t, string(failLog), "[error] division by zero")
	assert.Contains(t, string(failLog), "Attempts: 2")
	assert.Contains(t, string(failLog), "Exit:     1")

	_, err = os.Stat(l.TestLogFile(skip, types.ResultSkipped))
	require.NoError(t, err)

	all, err := os.ReadFile(l.GetAllLogsFile())
	require.NoError(t, err)
	assert.Contains(t, string(all), "math: addition > adds")
	assert.Contains(t, string(all), "math: divides")

	summary, err := os.ReadFile(l.GetSummaryFile())
	require.NoError(t, err)
	assert.Contains(t, string(summary), "success:  1")
	assert.Contains(t, string(summary), "failure:  1")
	assert.Contains(t, string(summary), "math: divides [failure]")
}

func TestFileLogger_RegistrationFailed(t *testing.T) {
	l, err := NewFileLogger(t.TempDir(), "run-2")
	require.NoError(t, err)
	require.NoError(t, l.RegistrationFailed(errors.New("syntax error"), time.Now()))

	summary, err := os.ReadFile(l.GetSummaryFile())
	require.NoError(t, err)
	assert.Contains(t, string(summary), "syntax error")
}

func TestAsyncFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	af, err := NewAsyncFile(path)
	require.NoError(t, err)
	require.NoError(t, af.Write([]byte("one\n")))
	require.NoError(t, af.Write([]byte("two\n")))
	require.NoError(t, af.Close())
	require.Error(t, af.Write([]byte("three\n")))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(content))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "math__addition___adds", safeFilename("math: addition > adds"))
}
