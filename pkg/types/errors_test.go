package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain error", errors.New("boom"), ExitGeneric},
		{"configuration", NewError(KindConfiguration, "resolve", errors.New("no peer")), ExitConfiguration},
		{"environment", NewError(KindEnvironment, "probe", errors.New("no route")), ExitEnvironment},
		{"prerequisite", NewError(KindPrerequisite, "privilege", errors.New("not root")), ExitPrerequisite},
		{"install", NewError(KindInstall, "stack.sh", errors.New("exit 1")), ExitInstall},
		{"wrapped install", fmt.Errorf("bootstrap: %w", NewError(KindInstall, "stack.sh", errors.New("exit 1"))), ExitInstall},
		{"cleanup is not fatal", NewError(KindCleanup, "userdel", errors.New("busy")), ExitGeneric},
		{"unhealthy", fmt.Errorf("healthcheck: %w", ErrUnhealthy), ExitUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := Errorf(KindConfiguration, "resolve topology", "peer %q is not IPv4", "abc")
	assert.Equal(t, `ConfigurationError: resolve topology: peer "abc" is not IPv4`, err.Error())
	assert.True(t, IsKind(err, KindConfiguration))
	assert.False(t, IsKind(nil, KindConfiguration))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Compute ")
	assert.NoError(t, err)
	assert.Equal(t, RoleCompute, r)

	_, err = ParseRole("storage")
	assert.True(t, IsKind(err, KindConfiguration))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateAbsent, StateInstalling))
	assert.True(t, CanTransition(StateInstalling, StateFailed))
	assert.True(t, CanTransition(StateRunning, StateCleaning))
	assert.True(t, CanTransition(StateCleaning, StateAbsent))
	assert.False(t, CanTransition(StateRunning, StateInstalling))
	assert.False(t, CanTransition(StateFailed, StateRunning))
}

func TestHealthReportOverall(t *testing.T) {
	r := HealthReport{Entries: []HealthEntry{
		{Category: CategoryIdentity, Status: HealthOK},
		{Category: CategoryStorage, Status: HealthWarning},
	}}
	assert.Equal(t, HealthWarning, r.Overall())

	r.Findings = []string{"marker missing"}
	assert.Equal(t, HealthError, r.Overall())
}
