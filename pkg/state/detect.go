package state

import (
	"errors"

	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/storage"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
)

// ProcessChecker reports whether the installer is currently running
type ProcessChecker interface {
	Running() (bool, error)
}

// History is the part of the run store detection needs
type History interface {
	LastRun() (*types.RunRecord, error)
}

// Detection is the outcome of Detect with the evidence behind it
type Detection struct {
	State   types.InstallState
	Marker  *Marker
	Running bool
	LastRun *types.RunRecord
}

// Detector derives InstallState from durable evidence on the host
type Detector struct {
	StateDir  string
	Processes ProcessChecker
	History   History
}

// Detect applies, in order: a running installer means installing; a valid
// marker means running; a last run that did not succeed means failed;
// anything else is absent. A corrupt marker counts as failed so that the
// next run cleans up, and so does a successful run whose marker is gone:
// the deployment it recorded may still be on the host.
func (d *Detector) Detect() Detection {
	logger := log.WithComponent("state")
	var det Detection

	if d.Processes != nil {
		running, err := d.Processes.Running()
		if err != nil {
			logger.Warn().Err(err).Msg("Could not scan for installer processes")
		}
		det.Running = running
	}

	marker, markerErr := ReadMarker(d.StateDir)
	det.Marker = marker

	if d.History != nil {
		last, err := d.History.LastRun()
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			logger.Warn().Err(err).Msg("Could not read run history")
		}
		det.LastRun = last
	}

	switch {
	case det.Running:
		det.State = types.StateInstalling
	case markerErr != nil:
		logger.Warn().Err(markerErr).Msg("Treating unreadable marker as a failed install")
		det.State = types.StateFailed
	case marker != nil:
		det.State = types.StateRunning
	case det.MarkerMissingAfterSuccess():
		logger.Warn().Str("run_id", det.LastRun.ID).
			Msg("Completion marker missing after a successful run, treating the install as stale")
		det.State = types.StateFailed
	case det.LastRun != nil && det.LastRun.State != types.StateRunning && det.LastRun.State != types.StateAbsent:
		det.State = types.StateFailed
	default:
		det.State = types.StateAbsent
	}

	return det
}

// MarkerMissingAfterSuccess reports the inconsistency where history records a
// successful install but the marker is gone
func (d Detection) MarkerMissingAfterSuccess() bool {
	return d.Marker == nil && !d.Running && d.LastRun != nil && d.LastRun.State == types.StateRunning
}
