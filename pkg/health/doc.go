/*
Package health verifies a deployed node category by category.

A healthcheck runs after stack.sh finishes, or on demand through
`osb healthcheck`. It never changes the host: every probe is a read-only
command, an HTTP GET or a TCP connect, and the resulting report is printed
and discarded.

# Architecture

The building blocks are checkers sharing one interface:

	┌──────────────────────────────────────────────┐
	│               Checker Interface              │
	│  • Check(ctx) Result                         │
	│  • Type() CheckType                          │
	└────────┬─────────────────────────────────────┘
	         │
	 ┌───────┼─────────┬──────────┬──────────┐
	 ▼       ▼         ▼          ▼          ▼
	HTTP    TCP      Exec     Resources    Logs
	 │       │         │          │          │
	 ▼       ▼         ▼          ▼          ▼
	GET    Connect  openstack  sysinfo    tail of
	/vN    :5672    systemctl  thresholds *.log

The Verifier binds checkers to the fixed categories identity, compute,
image, network, storage, resources and logs:

	┌──────────────┐   Probes(topo)   ┌────────────────────────────┐
	│   Verifier   │ ───────────────► │ one Probe per category     │
	└──────┬───────┘                  │ {Category, Checker,        │
	       │ Check(ctx, topo)         │  Optional}                 │
	       ▼                          └────────────────────────────┘
	┌──────────────┐  run each probe  ┌────────────────────────────┐
	│ HealthReport │ ◄─────────────── │ bounded by Options.Timeout │
	│  Entries     │  recover panics  └────────────────────────────┘
	│  Findings    │ ◄── state.Detector (marker vs. run history)
	└──────────────┘

## Probes by Role

Controllers run the openstack CLI against the devstack-admin cloud from
clouds.yaml:

	identity   openstack token issue
	compute    openstack compute service list
	image      openstack image list
	network    openstack network agent list
	storage    openstack volume service list        (optional)

Compute nodes have no admin credentials of their own. They check their
local agents with systemctl and reach the controller over the network:

	identity   GET http://<controller>/identity/v3
	compute    systemctl is-active devstack@n-cpu
	           and TCP <controller>:5672 (message bus)
	image      GET http://<controller>/image
	network    systemctl is-active devstack@q-agt
	storage    GET http://<controller>/volume         (optional)

Both roles add the resources probe (memory, CPU and free disk against the
role's thresholds) and the logs probe (the last DefaultTailLines lines of
every *.log under the DevStack log directory, matched against
DefaultLogPatterns). Both are optional.

# Checkers

## HTTP

HTTPChecker issues a GET and is healthy for a status between
ExpectedStatusMin and ExpectedStatusMax (200-399 by default). OpenStack
version documents are decoded so the message names the API version found:

	c := health.NewHTTPChecker("http://10.0.0.5/identity/v3").
		WithTimeout(5 * time.Second)
	res := c.Check(ctx)
	// res.Message: "GET http://10.0.0.5/identity/v3: HTTP 200, v3.14 (stable)"

## TCP

TCPChecker only opens and closes a connection:

	bus := health.NewTCPChecker("message bus", "10.0.0.5", "5672")
	res := bus.Check(ctx)
	// res.Message: "message bus listening at 10.0.0.5:5672"

## Exec

ExecChecker runs a command through an executor.Runner and is healthy on
exit code 0. Single-line output becomes part of the message, longer output
is summarized as a row count:

	c := health.NewExecChecker(runner, "openstack", "token", "issue", "-f", "value").
		WithEnv("OS_CLOUD=devstack-admin").
		WithTimeout(10 * time.Second)

## Composition

AllOf is healthy only when every member is, and reports the first failure.
Static returns a fixed result; the verifier uses it for a category without
a probe so the report still carries one entry for it.

# Report Rules

  - Every category yields exactly one entry, even when its probe times
    out, errors, or panics.
  - A failing mandatory probe is an error, a failing optional one
    (storage, resources, logs) a warning.
  - Findings report inconsistencies between the completion marker, the
    run history and the host; any finding makes the overall status an
    error.
  - Each probe is bounded by Options.Timeout, 10 seconds unless set.

Findings currently detected:

  - a run recorded as successful whose completion marker is missing
  - a marker written for the other role
  - a marker written for a different host address
  - stack.sh still running

# Usage

Checking a controller:

	v := health.NewVerifier(health.Options{
		Runner:     executor.NewLocalRunner(),
		LogDir:     "/opt/stack/logs",
		Thresholds: cfg.Thresholds.For(types.RoleController),
		State:      &state.Detector{StateDir: cfg.StateDir, History: store},
	})
	report := v.Check(ctx, topo)
	if report.Overall() == types.HealthError {
		return fmt.Errorf("healthcheck: %w", types.ErrUnhealthy)
	}

Checking a compute node only differs in the topology, which carries the
controller address as PeerIP:

	topo, err := topology.NewResolver(topology.NewICMPPinger(2*time.Second)).Resolve(ctx,
		topology.Request{Role: "compute", Peer: "10.0.0.5"}, facts)
	if err != nil {
		return err
	}
	report := v.Check(ctx, topo)

Listing the probes without running them, e.g. for a dry run:

	for _, p := range v.Probes(topo) {
		fmt.Printf("%-10s %-9s optional=%t\n", p.Category, p.Checker.Type(), p.Optional)
	}

# Testing

Probes take an executor.Runner and an *http.Client, so tests drive them
with executor.FakeRunner and httptest servers. Options.Sysinfo replaces the
host resource reader. None of the checkers touch global state.

Reports are never persisted.
*/
package health
