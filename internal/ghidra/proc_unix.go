//go:build unix

package ghidra

import (
	"os/exec"
	"syscall"
)

// killGroup starts cmd in its own process group and kills the whole group
// on cancel, so the JVM behind the analyzeHeadless wrapper goes with it.
func killGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}
