// Package externalcmd allows to launch external commands.
package externalcmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"
)

const (
	restartPause = 5 * time.Second
)

var errTerminated = errors.New("terminated")

// Environment is a Cmd environment.
type Environment map[string]string

// Cmd is an external command.
type Cmd struct {
	Pool    *Pool
	Cmdstr  string
	Restart bool
	Env     Environment
	OnExit  func(error)

	cmdstr string

	// in
	terminate chan struct{}
	closeOnce sync.Once
}

// Initialize starts the command.
func (e *Cmd) Initialize() {
	// variables are replaced here, in order to allow using the
	// same commands on both Linux and Windows.
	e.cmdstr = os.Expand(e.Cmdstr, func(variable string) string {
		if value, ok := e.Env[variable]; ok {
			return value
		}
		return os.Getenv(variable)
	})

	if e.OnExit == nil {
		e.OnExit = func(_ error) {}
	}

	e.terminate = make(chan struct{})

	e.Pool.add(e)

	go e.run()
}

// Close closes the command. It doesn't wait for the command to exit.
func (e *Cmd) Close() {
	e.closeOnce.Do(func() {
		close(e.terminate)
	})
}

func (e *Cmd) run() {
	defer e.Pool.remove(e)

	env := append([]string(nil), os.Environ()...)
	for key, val := range e.Env {
		env = append(env, key+"="+val)
	}

	for {
		err := e.runOSSpecific(env)
		if errors.Is(err, errTerminated) {
			return
		}

		if !e.Restart {
			e.OnExit(err)
			return
		}

		if err == nil {
			err = fmt.Errorf("command exited with code 0")
		}
		e.OnExit(err)

		select {
		case <-time.After(restartPause):
		case <-e.terminate:
			return
		}
	}
}

func splitCommand(cmdstr string) (*exec.Cmd, error) {
	parts, err := shellquote.Split(cmdstr)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	return exec.Command(parts[0], parts[1:]...), nil
}

func exitCode(err error) int {
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return ee.ExitCode()
	}
	return 0
}

// wait waits for a started process to exit,
// or kills it when the command is closed.
func (e *Cmd) wait(cmd *exec.Cmd, kill func()) error {
	cmdDone := make(chan int)
	go func() {
		cmdDone <- exitCode(cmd.Wait())
	}()

	select {
	case <-e.terminate:
		kill()
		<-cmdDone
		return errTerminated

	case c := <-cmdDone:
		if c != 0 {
			return fmt.Errorf("command exited with code %d", c)
		}
		return nil
	}
}
