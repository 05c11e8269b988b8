//go:build !unix

package ghidra

import "os/exec"

func killGroup(cmd *exec.Cmd) {}
