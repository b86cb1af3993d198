package health

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
)

const maxOutput = 120

// ExecChecker is healthy when a host command exits zero
type ExecChecker struct {
	// Command is the command to execute (e.g., ["systemctl", "is-active", "devstack@n-cpu"])
	Command []string

	// Env is appended to the inherited environment
	Env []string

	// Timeout is the command execution timeout (default: 10 seconds)
	Timeout time.Duration

	Runner executor.Runner
}

// NewExecChecker creates a new exec health checker
func NewExecChecker(runner executor.Runner, command ...string) *ExecChecker {
	return &ExecChecker{
		Command: command,
		Timeout: 10 * time.Second,
		Runner:  runner,
	}
}

// Check performs the exec health check
func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if len(e.Command) == 0 {
		return result(start, false, "no command specified")
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	cmd := executor.Command{Name: e.Command[0], Args: e.Command[1:], Env: e.Env}
	res, err := e.Runner.Run(execCtx, cmd)
	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return result(start, false, "%s timed out after %s", cmd, e.Timeout)
		}
		return result(start, false, "%v", err)
	}

	if out := summarize(res.Stdout); out != "" {
		return result(start, true, "%s: %s", cmd, out)
	}
	return result(start, true, "%s succeeded", cmd)
}

// Type returns the health check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

// WithTimeout sets the execution timeout
func (e *ExecChecker) WithTimeout(timeout time.Duration) *ExecChecker {
	e.Timeout = timeout
	return e
}

// WithEnv adds environment variables
func (e *ExecChecker) WithEnv(env ...string) *ExecChecker {
	e.Env = append(e.Env, env...)
	return e
}

// summarize reduces command output to one short line
func summarize(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return ""
	}
	if n := strings.Count(out, "\n") + 1; n > 1 {
		return strconv.Itoa(n) + " rows"
	}
	if len(out) > maxOutput {
		out = out[:maxOutput] + "..."
	}
	return out
}
