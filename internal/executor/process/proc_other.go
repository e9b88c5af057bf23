//go:build !linux

package process

import (
	"errors"
	"os"
	"os/exec"
)

func setProcAttr(cmd *exec.Cmd) {}

// killProcessGroup can only reach the top process here; children may outlive it.
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	err := cmd.Process.Kill()
	if err == nil || errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// killGroupAfterExit has no group to clean up; Wait reaps the process.
func killGroupAfterExit(cmd *exec.Cmd) error {
	return nil
}
