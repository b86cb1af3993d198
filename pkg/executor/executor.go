package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultWaitDelay bounds how long a cancelled command may linger after SIGTERM
const DefaultWaitDelay = 30 * time.Second

// Command describes one host command
type Command struct {
	Name string
	Args []string
	Env  []string
	Dir  string

	// User runs the command through sudo as this account when set
	User string

	// Stdout and Stderr stream output instead of buffering it
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command line for logs
func (c Command) String() string {
	parts := append([]string{c.Name}, c.Args...)
	s := strings.Join(parts, " ")
	if c.User != "" {
		s = "(as " + c.User + ") " + s
	}
	return s
}

// Result is the outcome of a finished command
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
}

// ExitError reports a command that ran and exited non-zero
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with code %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// Runner executes host commands
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// LocalRunner runs commands on this host with os/exec
type LocalRunner struct {
	WaitDelay time.Duration
}

// NewLocalRunner creates a runner for the local host
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{WaitDelay: DefaultWaitDelay}
}

// Run executes cmd and blocks until it exits or ctx is cancelled. On
// cancellation the whole process group receives SIGTERM.
func (r *LocalRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	start := time.Now()

	name, args := cmd.Name, cmd.Args
	if cmd.User != "" {
		args = append([]string{"-u", cmd.User, "-H", "--", name}, args...)
		name = "sudo"
	}

	c := exec.CommandContext(ctx, name, args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return unix.Kill(-c.Process.Pid, unix.SIGTERM)
	}
	c.WaitDelay = r.WaitDelay

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	if cmd.Stdout != nil {
		c.Stdout = cmd.Stdout
	}
	c.Stderr = &stderr
	if cmd.Stderr != nil {
		c.Stderr = io.MultiWriter(cmd.Stderr, &stderr)
	}

	err := c.Run()
	res := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() != nil {
			res.ExitCode = -1
			return res, fmt.Errorf("%s interrupted: %w", cmd, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Command: cmd.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
		res.ExitCode = -1
		return res, fmt.Errorf("failed to run %s: %w", cmd, err)
	}

	return res, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
