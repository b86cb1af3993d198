/*
Package installer drives DevStack on the local host.

The installer is treated as opaque: stack.sh either succeeds, fails, or is
interrupted, and an interrupted or failed run is only recoverable by a full
unstack/clean cycle. DevStack therefore exposes five operations:

  - Prepare: create the managed account (default "stack", home /opt/stack),
    grant it passwordless sudo, and clone or update the DevStack checkout
    at the configured branch.
  - Install: run stack.sh once, blocking, as the managed user. Output is
    copied verbatim to the caller's writer (normally the run's log file)
    and drives an optional progress spinner.
  - Stop: SIGTERM any running stack.sh, wait for it to exit, then unstack.sh.
  - Clean: clean.sh.
  - Running: whether a stack.sh process exists, found by scanning /proc.

All commands go through executor.Runner so hosts are never touched in tests.
*/
package installer
