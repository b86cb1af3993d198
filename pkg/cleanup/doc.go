/*
Package cleanup returns a host to its pre-install state.

Cleanup is what `osb cleanup` runs, and what an operator reaches for after a
failed bootstrap that reentry could not untangle. It goes further than the
lifecycle's reentry clean: besides stopping DevStack and running clean.sh it
removes the state directory, the stack user, network leftovers, packages,
logs and caches.

# Steps

Steps run in a fixed order and never abort the sequence: a failure becomes
a CleanupError in the Report and the next step runs.

	step              confirm   removes
	stop-services     no        running devstack services (unstack.sh)
	installer-clean   no        clean.sh leftovers
	state             no        /var/lib/osb: marker and run history
	user              yes       stack user, its home, sudoers entry
	bridges           yes       br-ex, br-int, br-tun and MASQUERADE rules
	packages          yes       packages from Config.Packages still installed
	logs              yes       Config.LogDirs
	caches            yes       Config.Caches (pip, DevStack downloads)

Every step first works out what it would remove. A step with nothing to
remove is reported as OutcomeNothing without asking, so cleaning a clean
host prints a report of "nothing to do" lines and touches nothing.

## Step Flow

	          pending(ctx)
	               │
	     ┌─────────┴─────────┐
	     ▼                   ▼
	  "" (empty)        description
	     │                   │
	     ▼             destructive?
	OutcomeNothing      │        │
	                   yes       no
	                    │        │
	             Confirm(title)  │
	              │       │      │
	            false    true    │
	              │       └──┬───┘
	              ▼          ▼
	        OutcomeSkipped  run(ctx)
	                        │      │
	                       err    nil
	                        │      │
	                        ▼      ▼
	              OutcomeFailed  OutcomeDone

Outcomes are counted in metrics.CleanupSteps by step and outcome.

## Network

Bridges are removed with `ovs-vsctl --if-exists del-br` and, when the
device survives, `ip link delete`. NAT rules are matched by source range
against `iptables -t nat -S POSTROUTING`; the ranges are
Config.FloatingRanges plus the floating range the completion marker
recorded, so a custom range from an earlier bootstrap is still found after
the configuration changed.

## User

Processes of the user are killed first since userdel refuses to remove a
logged-in user. pkill exiting 1 only means nothing matched; any other
failure is logged at debug and userdel reports the real problem.

# Confirmation

Destructive steps ask Config.Confirmer. The choices are:

  - confirm.Always: what --force selects
  - confirm.Interactive: a huh prompt per step on a terminal
  - confirm.Never: the default, declining every destructive step

confirm.ForTerminal picks between them from --force and whether stdin is
a terminal, so a non-interactive cleanup without --force only runs the
best-effort steps.

# Report

	report := engine.Clean(ctx, cleanup.Options{})
	for _, s := range report.Steps {
		fmt.Println(s.Step, s.Outcome, s.Detail)
	}
	if report.Partial() {
		// something failed or was declined
	}
	if err := report.Err(); err != nil {
		// errors.Join of every CleanupError
	}

Report.State is absent unless removing the state directory failed, in
which case it stays failed and the next bootstrap cleans again.

# Usage

	runner := executor.NewLocalRunner()
	engine := cleanup.NewEngine(cleanup.Config{
		Installer:      installer.New(runner, installerOpts),
		Runner:         runner,
		Confirmer:      confirm.ForTerminal(force),
		Bridges:        network.NewBridgeManager(runner, []string{"br-ex", "br-int", "br-tun"}),
		NAT:            network.NewNATCleaner(runner),
		StateDir:       "/var/lib/osb",
		User:           "stack",
		Packages:       []string{"rabbitmq-server", "mysql-server"},
		LogDirs:        []string{"/opt/stack/logs", "/var/log/osb"},
		Caches:         []string{"/root/.cache/pip"},
		FloatingRanges: []string{"172.24.4.0/24"},
	})
	report := engine.Clean(ctx, cleanup.Options{Force: force})

# Testing

All commands go through executor.Runner. Tests use executor.FakeRunner
with a handler that keeps a small model of the host (installed packages,
bridges, NAT rules, the user) and BridgeManager.Exists to fake the
network devices.
*/
package cleanup
