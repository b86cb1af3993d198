/*
Package metrics records osb's Prometheus metrics and exports them for the
node-exporter textfile collector.

osb is a short-lived command, not a daemon, so there is no /metrics
endpoint. Instead every command writes its registry to
<textfile_dir>/osb_<command>.prom when metrics.textfile_dir is set, and
node-exporter publishes the file on its next scrape.

# Metrics Catalog

osb_phase_duration_seconds{role, phase}:
  - Type: Histogram
  - Description: Duration of each lifecycle phase
  - Phases: prerequisites, reentry, environment, configure, install, complete

osb_phase_failures_total{role, phase}:
  - Type: Counter
  - Description: Phases that ended in an error

osb_install_state{role, state}:
  - Type: Gauge
  - Description: 1 for the current InstallState, 0 for the others

osb_last_run_timestamp_seconds{command}:
  - Type: Gauge
  - Description: Unix time of the last bootstrap, healthcheck or cleanup

osb_health_status{role, category}:
  - Type: Gauge
  - Description: 0 ok, 1 warning, 2 error per health category

osb_cleanup_steps_total{step, outcome}:
  - Type: Counter
  - Description: Cleanup steps by outcome (ok, skipped, failed)

# Usage

Timing a phase:

	timer := metrics.NewTimer()
	err := runPhase(ctx)
	timer.ObserveDurationVec(metrics.PhaseDuration, string(role), "install")

Exporting at the end of a command:

	if err := metrics.WriteTextfile(cfg.Metrics.TextfileDir, "bootstrap"); err != nil {
		log.Logger.Warn().Err(err).Msg("Failed to export metrics")
	}

The registry is private to osb (not the Prometheus default registry), so the
textfile holds no Go runtime series that would clash with node-exporter's.
*/
package metrics
