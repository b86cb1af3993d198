/*
Package lifecycle drives one bootstrap run through its phases.

A Machine owns the sequence from "is this host fit to install on" to "the
completion marker is written". It does not know how DevStack works; the
Installer interface hides stack.sh, unstack.sh and clean.sh, and History
hides the run ledger in bbolt.

# Phases

	prerequisites -> reentry -> environment -> configure -> install -> complete

	┌───────────────┐  detect state, root check, resources, peer
	│ prerequisites │  may abort: nothing on the host has changed yet
	└──────┬────────┘
	       ▼
	┌───────────────┐  state != absent: Stop, Clean, remove marker
	│    reentry    │  best effort, always ends absent
	└──────┬────────┘
	       ▼  run recorded as installing
	┌───────────────┐
	│  environment  │  Installer.Prepare: stack user, sudoers, checkout
	└──────┬────────┘
	       ▼
	┌───────────────┐  back up local.conf, write the new one 0600,
	│   configure   │  chown to the stack user
	└──────┬────────┘
	       ▼
	┌───────────────┐  Installer.Install, output to the log file
	│    install    │  never retried; on cancel Stop on a detached context
	└──────┬────────┘
	       ▼
	┌───────────────┐  completion marker with run ID, role, host,
	│   complete    │  branch and floating range
	└───────────────┘

Each phase is logged with a phase field, timed into metrics.PhaseDuration
and counted in metrics.PhaseFailures when it fails.

# Install State

The host's InstallState is detected by state.Detector from the completion
marker, a scan for a running stack.sh and the run history:

	running stack.sh                          installing
	readable marker                           running
	unreadable marker                         failed
	successful run, marker missing            failed
	last run failed or interrupted            failed
	anything else                             absent

Anything other than absent goes through cleaning before a new install, so
a second run performs exactly one clean and one install. The transitions a
run walks are:

	absent ──► installing ──► running
	   ▲            │
	   │            └──────► failed
	   │                        │
	   └──── cleaning ◄─────────┘ (also from running and installing)

Transitions are checked with types.CanTransition; an unexpected one is
logged but not refused, since the host state is what it is.

# Errors

Only prerequisites may abort without touching the host:

  - a non-root caller is a PrerequisiteError (exit code 4)
  - resource shortfalls against Config.Thresholds are warnings
  - an unreachable controller on a compute node is a warning

From the environment phase on, a failure marks the run failed in history
and returns an InstallError (exit code 5). The run record keeps the error
text with registered secrets masked. An interrupted install returns an
InstallError wrapping context.Canceled after services were stopped, with
stopGrace as the bound.

# Usage

	store, err := storage.NewBoltStore(cfg.Paths.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	m := lifecycle.NewMachine(lifecycle.Config{
		Installer:  installer.New(executor.NewLocalRunner(), installerOpts),
		History:    store,
		StateDir:   cfg.Paths.StateDir,
		BackupDir:  cfg.Paths.BackupDir,
		LocalConf:  cfg.DevStack.LocalConf(),
		User:       cfg.DevStack.User,
		Thresholds: cfg.Thresholds.For(topo.Role),
	})

	doc, err := localconf.NewSynthesizer(params).Synthesize(topo)
	if err != nil {
		return err
	}
	st, err := m.Run(ctx, doc, lifecycle.Options{Topology: topo, Branch: "stable/2024.2"})
	fmt.Println(st, m.Last().RunID, m.Last().Backup)

A dry run stops after prerequisites and prints the document with secrets
replaced by the mask:

	st, err := m.Run(ctx, doc, lifecycle.Options{Topology: topo, DryRun: true, Out: os.Stdout})

# Testing

Config.Privileged, Config.Chown, Config.Sysinfo and Config.Now replace the
host-facing pieces. Tests run the Machine against a fake Installer and a
real BoltStore in a temporary directory.
*/
package lifecycle
