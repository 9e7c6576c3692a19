// Package runner is the boundary through which depbuild starts external
// programs. Everything that spawns git or make goes through a Runner so the
// exact invocations can be observed and replaced in tests.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"

	"github.com/daedaleanai/depbuild/log"
)

// Command describes a single invocation of an external program.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory of the child process. The working
	// directory of depbuild itself is never changed.
	Dir string
	// Env holds additional KEY=VALUE pairs appended to the inherited environment.
	Env []string
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Runner runs external commands synchronously.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// Exec runs commands as child processes, forwarding their output.
type Exec struct {
	Stdout io.Writer
	Stderr io.Writer
}

// Run starts `c` and waits for it to exit. A non-zero exit status is returned
// as an error wrapping *exec.ExitError.
func (r Exec) Run(ctx context.Context, c Command) error {
	log.Debug("Running '%s' in '%s'.\n", c, c.Dir)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdout = r.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = r.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	// The child leads its own process group. Signals from depbuild go to that
	// group and never to the group depbuild itself was started in.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd.Process.Pid, syscall.SIGKILL)
	}

	if err := cmd.Start(); err != nil {
		return eris.Wrapf(err, "starting '%s' failed", c.Name)
	}

	stop := handleInterrupts(c.Name, cmd.Process.Pid)
	defer stop()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return eris.Wrapf(ctx.Err(), "'%s' was aborted", c)
		}
		return eris.Wrapf(err, "running '%s' failed", c)
	}
	return nil
}

func killGroup(pid int, sig syscall.Signal) error {
	return syscall.Kill(-pid, sig)
}

// handleInterrupts captures Ctrl-C while the child with process id `pid`
// runs. The child is in its own process group, so the terminal no longer
// delivers the signal to it: the first Ctrl-C is forwarded to the group and
// a second one within one second kills it.
func handleInterrupts(name string, pid int) func() {
	signals := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(signals, os.Interrupt, syscall.SIGINT)

	go func() {
		select {
		case <-signals:
		case <-done:
			return
		}
		fmt.Fprintf(os.Stderr, "SIGINT: Waiting for %s to finish...\n", name)
		if err := killGroup(pid, syscall.SIGINT); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to interrupt %s: %s\n", name, err)
		}

		var lastSignalTime *time.Time
		for {
			select {
			case <-signals:
			case <-done:
				return
			}

			currentTime := time.Now()
			if lastSignalTime == nil || currentTime.Sub(*lastSignalTime) > 1*time.Second {
				fmt.Fprintf(os.Stderr, "SIGINT: Press Ctrl-C again within 1 sec to force-kill %s...\n", name)
				lastSignalTime = &currentTime
			} else {
				fmt.Fprintf(os.Stderr, "SIGINT: Killing %s and its subprocesses...\n", name)
				if err := killGroup(pid, syscall.SIGKILL); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to kill %s: %s\n", name, err)
				}
			}
		}
	}()

	return func() {
		signal.Stop(signals)
		close(done)
	}
}

// ExitCode returns the exit status carried by `err`, 0 for a nil error and
// -1 when the error did not come from a process that exited.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
