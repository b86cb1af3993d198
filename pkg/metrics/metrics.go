package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds osb's metrics only, so textfile output carries no Go
// runtime series that would collide with node-exporter's own
var Registry = prometheus.NewRegistry()

var (
	// Lifecycle metrics
	PhaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osb_phase_duration_seconds",
			Help:    "Duration of lifecycle phases in seconds",
			Buckets: []float64{0.1, 1, 5, 30, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"role", "phase"},
	)

	PhaseFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osb_phase_failures_total",
			Help: "Total number of failed lifecycle phases",
		},
		[]string{"role", "phase"},
	)

	InstallState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osb_install_state",
			Help: "Current install state (1 for the active state, 0 otherwise)",
		},
		[]string{"role", "state"},
	)

	LastRunTimestamp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osb_last_run_timestamp_seconds",
			Help: "Unix time of the last osb invocation by command",
		},
		[]string{"command"},
	)

	// Health metrics
	HealthStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osb_health_status",
			Help: "Health by category (0 = ok, 1 = warning, 2 = error)",
		},
		[]string{"role", "category"},
	)

	// Cleanup metrics
	CleanupSteps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osb_cleanup_steps_total",
			Help: "Cleanup steps by outcome",
		},
		[]string{"step", "outcome"},
	)
)

func init() {
	// Register all metrics
	Registry.MustRegister(PhaseDuration)
	Registry.MustRegister(PhaseFailures)
	Registry.MustRegister(InstallState)
	Registry.MustRegister(LastRunTimestamp)
	Registry.MustRegister(HealthStatus)
	Registry.MustRegister(CleanupSteps)
}

var allStates = []types.InstallState{
	types.StateAbsent,
	types.StateInstalling,
	types.StateRunning,
	types.StateFailed,
	types.StateCleaning,
}

// SetInstallState marks state as the only active state for role
func SetInstallState(role types.Role, state types.InstallState) {
	for _, s := range allStates {
		v := 0.0
		if s == state {
			v = 1
		}
		InstallState.WithLabelValues(string(role), string(s)).Set(v)
	}
}

// SetHealth records one health entry
func SetHealth(role types.Role, entry types.HealthEntry) {
	v := 0.0
	switch entry.Status {
	case types.HealthWarning:
		v = 1
	case types.HealthError:
		v = 2
	}
	HealthStatus.WithLabelValues(string(role), string(entry.Category)).Set(v)
}

// WriteTextfile writes the registry as <dir>/osb_<name>.prom for the
// node-exporter textfile collector. An empty dir disables the export.
func WriteTextfile(dir, name string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create textfile directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("osb_%s.prom", name))
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
