// Package procutil holds the platform specific parts of child process
// handling: process groups, group kills and liveness checks.
package procutil

import "os/exec"

// Cleanup kills whatever is left of a child that was started but never
// waited for. It does nothing once the child has been reaped, since its
// pid may already belong to another process.
type Cleanup func()

func reaped(cmd *exec.Cmd) bool {
	return cmd.ProcessState != nil
}
