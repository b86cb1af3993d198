/*
Package storage keeps osb's run history in BoltDB.

Every lifecycle invocation creates a RunRecord when it starts and updates it
when it finishes. The history answers two questions the completion marker
cannot: whether the last run failed (state detection derives "failed" from
it when neither marker nor installer process exists) and whether a recorded
success has since lost its marker (a health finding).

# Layout

	<state_dir>/history.db
	  runs   (UUIDv7 run ID → JSON RunRecord)

Run IDs are time-ordered UUIDs, so bucket key order is start order and
LastRun is a single cursor seek.

# Locking

BoltDB holds an exclusive flock on the file for writers. NewBoltStore waits
at most LockTimeout for it and then fails with an EnvironmentError, which is
how a second concurrent "osb bootstrap" is refused. Readers (status,
healthcheck) use NewReadOnlyBoltStore and a shared lock.

# Usage

	store, err := storage.NewBoltStore("/var/lib/osb")
	if err != nil {
		return err
	}
	defer store.Close()

	run := &types.RunRecord{Role: types.RoleController, State: types.StateInstalling, StartedAt: time.Now()}
	if err := store.CreateRun(run); err != nil {
		return err
	}
	run.State = types.StateRunning
	_ = store.UpdateRun(run)

The state directory is removed by cleanup, history included.
*/
package storage
