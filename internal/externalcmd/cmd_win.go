//go:build windows

package externalcmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// newJob creates a job object that kills its processes when closed.
func newJob() (windows.Handle, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return 0, err
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{
		BasicLimitInformation: windows.JOBOBJECT_BASIC_LIMIT_INFORMATION{
			LimitFlags: windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE,
		},
	}

	_, err = windows.SetInformationJobObject(job, windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)), uint32(unsafe.Sizeof(info)))
	if err != nil {
		windows.CloseHandle(job) //nolint:errcheck
		return 0, err
	}

	return job, nil
}

func assignToJob(job windows.Handle, pid int) error {
	ph, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("unable to open process: %w", err)
	}
	defer windows.CloseHandle(ph) //nolint:errcheck

	return windows.AssignProcessToJobObject(job, ph)
}

func newWindowsCmd(cmdstr string) (*exec.Cmd, error) {
	// cmd.exe parses its own command line.
	for _, prefix := range []string{"cmd ", "cmd.exe "} {
		if strings.HasPrefix(cmdstr, prefix) {
			cmd := exec.Command("cmd.exe")
			cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: cmdstr[len(prefix):]}
			return cmd, nil
		}
	}

	return splitCommand(cmdstr)
}

func (e *Cmd) runOSSpecific(env []string) error {
	cmd, err := newWindowsCmd(e.cmdstr)
	if err != nil {
		return err
	}

	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	job, err := newJob()
	if err != nil {
		return err
	}
	defer windows.CloseHandle(job) //nolint:errcheck

	err = cmd.Start()
	if err != nil {
		return err
	}

	err = assignToJob(job, cmd.Process.Pid)
	if err != nil {
		cmd.Process.Kill() //nolint:errcheck
		cmd.Wait()         //nolint:errcheck
		return err
	}

	return e.wait(cmd, func() {
		windows.TerminateJobObject(job, 1) //nolint:errcheck
	})
}
