//go:build windows

package procutil

import (
	"errors"
	"os"
	"os/exec"
)

// Setup arranges for cancellation to kill the child. Windows has no process
// groups in the Unix sense; grandchildren are not reached.
func Setup(cmd *exec.Cmd) Cleanup {
	cmd.Cancel = func() error {
		return kill(cmd.Process)
	}
	return func() {
		if reaped(cmd) {
			return
		}
		_ = kill(cmd.Process)
	}
}

func kill(proc *os.Process) error {
	if proc == nil {
		return nil
	}
	if err := proc.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Alive reports whether a process with pid can still be opened.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = proc.Release()
	return true
}
