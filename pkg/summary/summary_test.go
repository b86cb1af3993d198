package summary

import (
	"errors"
	"testing"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/cleanup"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/state"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestRenderBootstrap(t *testing.T) {
	out := RenderBootstrap(Bootstrap{
		Role:    types.RoleCompute,
		State:   types.StateRunning,
		HostIP:  "10.0.0.20",
		PeerIP:  "10.0.0.5",
		RunID:   "run-1",
		LogFile: "/var/log/osb/bootstrap-compute.log",
	})

	assert.Contains(t, out, "osb bootstrap: compute")
	assert.Contains(t, out, "SUCCESS")
	assert.Contains(t, out, "10.0.0.5")
	assert.Contains(t, out, "/var/log/osb/bootstrap-compute.log")
	assert.NotContains(t, out, "Failure:")
}

func TestRenderBootstrap_Failure(t *testing.T) {
	err := types.NewError(types.KindInstall, "run installer", errors.New("stack.sh exited with code 1"))
	out := RenderBootstrap(Bootstrap{Role: types.RoleController, State: types.StateFailed, Err: err, LogFile: "/tmp/x.log"})

	assert.Contains(t, out, "FAILURE")
	assert.Contains(t, out, "InstallError")
	assert.Contains(t, out, "stack.sh exited with code 1")
	assert.Contains(t, out, "/tmp/x.log")
}

func TestRenderBootstrap_FailureIsRedacted(t *testing.T) {
	defer log.ResetSecrets()
	log.RegisterSecret("hunter2pw")

	err := types.NewError(types.KindInstall, "run installer",
		errors.New("stack.sh exited with code 1: + RABBIT_PASSWORD=hunter2pw"))
	out := RenderBootstrap(Bootstrap{Role: types.RoleController, State: types.StateFailed, Err: err})

	assert.NotContains(t, out, "hunter2pw")
	assert.Contains(t, out, "RABBIT_PASSWORD="+log.Mask)
}

func TestRenderHealth(t *testing.T) {
	report := types.HealthReport{
		Role: types.RoleController,
		Entries: []types.HealthEntry{
			{Category: types.CategoryIdentity, Status: types.HealthOK, Detail: "token issued"},
			{Category: types.CategoryLogs, Status: types.HealthWarning, Detail: "3 errors"},
		},
	}

	out := RenderHealth(report, "")
	assert.Contains(t, out, "PARTIAL")
	assert.Contains(t, out, "identity")
	assert.Contains(t, out, "3 errors")
	assert.NotContains(t, out, "Findings")

	report.Findings = []string{"marker missing"}
	out = RenderHealth(report, "")
	assert.Contains(t, out, "FAILURE")
	assert.Contains(t, out, "marker missing")
}

func TestRenderCleanup(t *testing.T) {
	report := cleanup.Report{
		State: types.StateAbsent,
		Steps: []cleanup.StepResult{
			{Step: cleanup.StepStopServices, Outcome: cleanup.OutcomeDone, Detail: "devstack services"},
			{Step: cleanup.StepUser, Outcome: cleanup.OutcomeSkipped, Detail: "user stack"},
			{Step: cleanup.StepCaches, Outcome: cleanup.OutcomeNothing},
		},
	}

	out := RenderCleanup(report, "/var/log/osb/cleanup.log")
	assert.Contains(t, out, "PARTIAL")
	assert.Contains(t, out, "nothing to do")
	assert.Contains(t, out, "absent")

	report.Steps = append(report.Steps, cleanup.StepResult{
		Step:    cleanup.StepPackages,
		Outcome: cleanup.OutcomeFailed,
		Err:     types.NewError(types.KindCleanup, cleanup.StepPackages, errors.New("apt locked")),
	})
	assert.Contains(t, RenderCleanup(report, ""), "FAILURE")
}

func TestRenderStatus(t *testing.T) {
	det := state.Detection{
		State: types.StateRunning,
		Marker: &state.Marker{
			Role:        types.RoleController,
			HostIP:      "10.0.0.5",
			CompletedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		},
	}
	runs := []*types.RunRecord{
		{ID: "run-1", Role: types.RoleController, State: types.StateFailed, Error: "InstallError: boom"},
		{ID: "run-2", Role: types.RoleController, State: types.StateRunning},
	}

	out := RenderStatus(det, runs)
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "2025-01-02T03:04:05Z")
	assert.Contains(t, out, "run-2")
	assert.Contains(t, out, "InstallError: boom")
}
