package executor

import (
	"context"
	"strings"
	"sync"
)

// FakeRunner records commands and answers them from Handler. It lets other
// packages test host mutation without touching the host.
type FakeRunner struct {
	mu      sync.Mutex
	calls   []Command
	Handler func(cmd Command) (Result, error)
}

// Run records cmd and delegates to Handler; commands succeed by default
func (f *FakeRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	handler := f.Handler
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}
	if handler == nil {
		return Result{}, nil
	}
	return handler(cmd)
}

// Calls returns the recorded commands rendered as strings
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many recorded commands contain substr
func (f *FakeRunner) Count(substr string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}
