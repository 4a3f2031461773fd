//go:build !unix

package proctree

import (
	"errors"
	"os/exec"

	"github.com/shirou/gopsutil/v4/process"
)

func kill(pid int32) error {
	p, err := process.NewProcess(pid)
	if err != nil {
		if errors.Is(err, process.ErrorProcessNotRunning) {
			return nil
		}
		return err
	}
	return p.Kill()
}

// Interrupt is not supported on this platform.
func Interrupt(int) error {
	return errors.ErrUnsupported
}

// Isolate is a no-op on this platform.
func Isolate(*exec.Cmd) {}
