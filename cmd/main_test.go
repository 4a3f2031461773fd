package main

import (
	"errors"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v2"

	opsuite "github.com/ethereum-optimism/infra/op-suite"
	"github.com/ethereum-optimism/infra/op-suite/exitcodes"
	"github.com/ethereum-optimism/infra/op-suite/runner"
)

// exitCodeOf runs handleExitErr with an exiter that records the exit code.
func exitCodeOf(t *testing.T, err error) (int, bool) {
	t.Helper()
	origExiter, origWriter := cli.OsExiter, cli.ErrWriter
	t.Cleanup(func() {
		cli.OsExiter = origExiter
		cli.ErrWriter = origWriter
	})

	code, exited := 0, false
	cli.OsExiter = func(c int) {
		code, exited = c, true
	}
	cli.ErrWriter = &discard{}
	handleExitErr(cli.NewContext(cli.NewApp(), flag.NewFlagSet("test", flag.ContinueOnError), nil), err)
	return code, exited
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestHandleExitErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"test failure", &runner.TestFailureError{Message: "tests failed"}, exitcodes.TestFailure},
		{"cancelled", runner.ErrTestsCancelled, exitcodes.TestFailure},
		{"runtime error", opsuite.NewRuntimeError(errors.New("bad config")), exitcodes.RuntimeErr},
		{"internal error", &runner.InternalError{Err: errors.New("reporter broke")}, exitcodes.InternalErr},
		{"explicit exit code", cli.Exit("custom", 5), 5},
		{"lifecycle wrapped", errors.Join(errors.New("failed to start"), opsuite.NewRuntimeError(errors.New("x"))), exitcodes.RuntimeErr},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exited := exitCodeOf(t, tt.err)
			assert.True(t, exited)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestHandleExitErr_Nil(t *testing.T) {
	_, exited := exitCodeOf(t, nil)
	assert.False(t, exited)
}
