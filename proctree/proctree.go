// Package proctree signals and kills OS process trees.
package proctree

import (
	"errors"

	"github.com/shirou/gopsutil/v4/process"
)

// descendants returns every live descendant of pid, parents before children.
// The tree is built from a single snapshot of the process table, so a process
// exiting during the walk cannot cut it short.
func descendants(pid int32) ([]int32, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	children := make(map[int32][]int32)
	for _, p := range procs {
		ppid, err := p.Ppid()
		if err != nil {
			continue
		}
		children[ppid] = append(children[ppid], p.Pid)
	}

	var out []int32
	queue := []int32{pid}
	seen := map[int32]bool{pid: true}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		for _, child := range children[next] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out, nil
}

// Kill force-kills pid and all of its descendants.
func Kill(pid int) error {
	procs, err := descendants(int32(pid))
	// The root goes first so it cannot fork replacements.
	errs := []error{err, kill(int32(pid))}
	for _, child := range procs {
		errs = append(errs, kill(child))
	}
	return errors.Join(errs...)
}

// KillChildren force-kills every descendant of pid but leaves pid running.
func KillChildren(pid int) error {
	procs, err := descendants(int32(pid))
	errs := []error{err}
	for _, child := range procs {
		errs = append(errs, kill(child))
	}
	return errors.Join(errs...)
}
