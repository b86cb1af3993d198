package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the failure category surfaced to the operator
type ErrorKind string

const (
	KindEnvironment   ErrorKind = "EnvironmentError"
	KindConfiguration ErrorKind = "ConfigurationError"
	KindPrerequisite  ErrorKind = "PrerequisiteError"
	KindInstall       ErrorKind = "InstallError"
	KindCleanup       ErrorKind = "CleanupError"
)

// Error carries a kind alongside the failing operation
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

// NewError wraps err with a kind and operation name
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a kinded error from a format string
func Errorf(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Exit codes per failure category
const (
	ExitOK            = 0
	ExitGeneric       = 1
	ExitConfiguration = 2
	ExitEnvironment   = 3
	ExitPrerequisite  = 4
	ExitInstall       = 5
	ExitUnhealthy     = 6
)

// ErrUnhealthy is returned by a health check whose report contains errors
var ErrUnhealthy = errors.New("health report has errors")

// ExitCode maps an error to the process exit code
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, ErrUnhealthy) {
		return ExitUnhealthy
	}
	switch KindOf(err) {
	case KindConfiguration:
		return ExitConfiguration
	case KindEnvironment:
		return ExitEnvironment
	case KindPrerequisite:
		return ExitPrerequisite
	case KindInstall:
		return ExitInstall
	}
	return ExitGeneric
}
