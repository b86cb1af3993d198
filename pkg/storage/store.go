package storage

import (
	"errors"

	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
)

// ErrNotFound is returned when a run does not exist
var ErrNotFound = errors.New("run not found")

// Store defines the interface for the run history
type Store interface {
	// CreateRun assigns an ID when the record has none
	CreateRun(run *types.RunRecord) error
	GetRun(id string) (*types.RunRecord, error)
	UpdateRun(run *types.RunRecord) error

	// ListRuns returns runs oldest first
	ListRuns() ([]*types.RunRecord, error)

	// LastRun returns the most recent run, or ErrNotFound
	LastRun() (*types.RunRecord, error)

	// Utility
	Close() error
}
