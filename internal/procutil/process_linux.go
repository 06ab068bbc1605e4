//go:build linux

package procutil

import (
	"os/exec"
	"syscall"
)

// Setup puts cmd in its own process group so that cancellation kills the
// child and everything it spawned.
func Setup(cmd *exec.Cmd) Cleanup {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.Cancel = func() error {
		return killProcessGroup(cmd.Process)
	}
	return func() {
		if reaped(cmd) {
			return
		}
		_ = killProcessGroup(cmd.Process)
	}
}
