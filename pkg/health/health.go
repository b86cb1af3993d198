package health

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// CheckType represents the type of health check
type CheckType string

const (
	CheckTypeHTTP      CheckType = "http"
	CheckTypeTCP       CheckType = "tcp"
	CheckTypeExec      CheckType = "exec"
	CheckTypeResources CheckType = "resources"
	CheckTypeLogs      CheckType = "logs"
	CheckTypeComposite CheckType = "composite"
	CheckTypeStatic    CheckType = "static"
)

// Result represents the outcome of a health check
type Result struct {
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all health checkers must implement
type Checker interface {
	// Check performs the health check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of health check
	Type() CheckType
}

func result(start time.Time, healthy bool, format string, args ...any) Result {
	return Result{
		Healthy:   healthy,
		Message:   fmt.Sprintf(format, args...),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// AllOf is healthy when every checker is; checks run in order and stop at
// the first failure
type AllOf []Checker

// Check runs the checkers in order
func (a AllOf) Check(ctx context.Context) Result {
	start := time.Now()
	var messages []string
	for _, c := range a {
		r := c.Check(ctx)
		if !r.Healthy {
			return result(start, false, "%s", r.Message)
		}
		messages = append(messages, r.Message)
	}
	return result(start, true, "%s", strings.Join(messages, "; "))
}

// Type returns the health check type
func (a AllOf) Type() CheckType {
	return CheckTypeComposite
}

// Static always reports the same outcome
type Static struct {
	Healthy bool
	Message string
}

// Check returns the fixed outcome
func (s Static) Check(ctx context.Context) Result {
	return result(time.Now(), s.Healthy, "%s", s.Message)
}

// Type returns the health check type
func (s Static) Type() CheckType {
	return CheckTypeStatic
}
