//go:build !windows

package externalcmd

import (
	"os"
	"syscall"
)

func (e *Cmd) runOSSpecific(env []string) error {
	cmd, err := splitCommand(e.cmdstr)
	if err != nil {
		return err
	}

	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// a dedicated process group allows killing subprocesses too
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	err = cmd.Start()
	if err != nil {
		return err
	}

	return e.wait(cmd, func() {
		syscall.Kill(-cmd.Process.Pid, syscall.SIGINT) //nolint:errcheck
	})
}
