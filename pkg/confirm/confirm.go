// Package confirm asks the operator before destructive steps.
package confirm

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Confirmer decides whether a destructive step may run
type Confirmer interface {
	Confirm(ctx context.Context, title, description string) (bool, error)
}

// Always approves every step; used with --force
type Always struct{}

// Confirm returns true
func (Always) Confirm(context.Context, string, string) (bool, error) { return true, nil }

// Never declines every step; used when nobody can answer
type Never struct{}

// Confirm returns false
func (Never) Confirm(context.Context, string, string) (bool, error) { return false, nil }

// Interactive prompts on the terminal
type Interactive struct{}

// Confirm shows a yes/no prompt defaulting to no. Aborting the prompt
// (ctrl+c, esc) declines the step.
func (Interactive) Confirm(ctx context.Context, title, description string) (bool, error) {
	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes, remove").
				Negative("No, keep").
				Value(&ok),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// ForTerminal picks Always when force is set, Interactive when stdin is a
// terminal, and Never otherwise
func ForTerminal(force bool) Confirmer {
	switch {
	case force:
		return Always{}
	case term.IsTerminal(int(os.Stdin.Fd())):
		return Interactive{}
	default:
		return Never{}
	}
}
