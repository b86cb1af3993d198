package health

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/state"
	"github.com/mukan-bot/OpenStackBuilder/pkg/sysinfo"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
)

// CloudName selects the admin credentials DevStack writes to clouds.yaml
const CloudName = "devstack-admin"

// Probe binds a checker to a category. A failing optional probe is a
// warning, a failing mandatory one an error.
type Probe struct {
	Category types.HealthCategory
	Checker  Checker
	Optional bool
}

// Options configure the probes built by the Verifier
type Options struct {
	Runner     executor.Runner
	HTTPClient *http.Client

	// Timeout bounds each probe
	Timeout time.Duration

	// LogDir is the installer log directory scanned by the logs probe
	LogDir string

	// DiskPath selects the filesystem for the resources probe
	DiskPath   string
	Thresholds sysinfo.Thresholds
	Sysinfo    sysinfo.Reader

	// State, when set, adds findings about marker and history consistency
	State *state.Detector
}

// Verifier checks each health category for a role
type Verifier struct {
	opts Options
	now  func() time.Time
}

// NewVerifier creates a verifier
func NewVerifier(opts Options) *Verifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Sysinfo == nil {
		opts.Sysinfo = sysinfo.Read
	}
	if opts.DiskPath == "" {
		opts.DiskPath = "/"
	}
	return &Verifier{opts: opts, now: time.Now}
}

// Probes returns one probe per category, in report order
func (v *Verifier) Probes(topo types.ClusterTopology) []Probe {
	var probes map[types.HealthCategory]Probe
	if topo.Role == types.RoleCompute {
		probes = v.computeProbes(topo)
	} else {
		probes = v.controllerProbes()
	}

	resources := &ResourceChecker{Path: v.opts.DiskPath, Thresholds: v.opts.Thresholds, Read: v.opts.Sysinfo}
	probes[types.CategoryResources] = Probe{Checker: resources, Optional: true}
	probes[types.CategoryLogs] = Probe{Checker: NewLogChecker(v.opts.LogDir), Optional: true}

	out := make([]Probe, 0, len(types.HealthCategories))
	for _, c := range types.HealthCategories {
		p, ok := probes[c]
		if !ok {
			p = Probe{Checker: Static{Message: "no probe defined"}}
		}
		p.Category = c
		out = append(out, p)
	}
	return out
}

func (v *Verifier) openstack(args ...string) Checker {
	cmd := append([]string{"openstack"}, args...)
	cmd = append(cmd, "-f", "value")
	return NewExecChecker(v.opts.Runner, cmd...).
		WithTimeout(v.opts.Timeout).
		WithEnv("OS_CLOUD=" + CloudName)
}

func (v *Verifier) systemd(unit string) Checker {
	return NewExecChecker(v.opts.Runner, "systemctl", "is-active", unit).WithTimeout(v.opts.Timeout)
}

func (v *Verifier) http(url string) Checker {
	c := NewHTTPChecker(url)
	c.Client = v.opts.HTTPClient
	return c
}

func (v *Verifier) controllerProbes() map[types.HealthCategory]Probe {
	return map[types.HealthCategory]Probe{
		types.CategoryIdentity: {Checker: v.openstack("token", "issue")},
		types.CategoryCompute:  {Checker: v.openstack("compute", "service", "list")},
		types.CategoryImage:    {Checker: v.openstack("image", "list")},
		types.CategoryNetwork:  {Checker: v.openstack("network", "agent", "list")},
		types.CategoryStorage:  {Checker: v.openstack("volume", "service", "list"), Optional: true},
	}
}

func (v *Verifier) computeProbes(topo types.ClusterTopology) map[types.HealthCategory]Probe {
	peer := topo.PeerIP.String()
	rabbit := NewTCPChecker("message bus", peer, "5672").WithTimeout(v.opts.Timeout)

	return map[types.HealthCategory]Probe{
		types.CategoryIdentity: {Checker: v.http(fmt.Sprintf("http://%s/identity/v3", peer))},
		types.CategoryCompute:  {Checker: AllOf{v.systemd("devstack@n-cpu"), rabbit}},
		types.CategoryImage:    {Checker: v.http(fmt.Sprintf("http://%s/image", peer))},
		types.CategoryNetwork:  {Checker: v.systemd("devstack@q-agt")},
		types.CategoryStorage:  {Checker: v.http(fmt.Sprintf("http://%s/volume", peer)), Optional: true},
	}
}

// Check runs every probe and returns a report with exactly one entry per
// category, whatever the probes return
func (v *Verifier) Check(ctx context.Context, topo types.ClusterTopology) types.HealthReport {
	logger := log.WithComponent("health")

	report := types.HealthReport{Role: topo.Role, CheckedAt: v.now().UTC()}

	for _, p := range v.Probes(topo) {
		entry := v.run(ctx, p)
		report.Entries = append(report.Entries, entry)

		ev := logger.Info()
		switch entry.Status {
		case types.HealthWarning:
			ev = logger.Warn()
		case types.HealthError:
			ev = logger.Error()
		}
		ev.Str("category", string(entry.Category)).Str("status", string(entry.Status)).Msg(entry.Detail)
	}

	report.Findings = v.findings(topo)
	for _, f := range report.Findings {
		logger.Error().Str("finding", f).Msg("Inconsistent install state")
	}

	return report
}

func (v *Verifier) run(ctx context.Context, p Probe) (entry types.HealthEntry) {
	entry.Category = p.Category

	defer func() {
		if r := recover(); r != nil {
			entry.Status = types.HealthError
			entry.Detail = fmt.Sprintf("probe panicked: %v", r)
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, v.opts.Timeout)
	defer cancel()

	res := p.Checker.Check(probeCtx)
	entry.Detail = res.Message
	switch {
	case res.Healthy:
		entry.Status = types.HealthOK
	case p.Optional:
		entry.Status = types.HealthWarning
	default:
		entry.Status = types.HealthError
	}
	return entry
}

func (v *Verifier) findings(topo types.ClusterTopology) []string {
	if v.opts.State == nil {
		return nil
	}
	det := v.opts.State.Detect()

	var out []string
	if det.MarkerMissingAfterSuccess() {
		out = append(out, fmt.Sprintf("run %s recorded a successful install but the completion marker is missing",
			det.LastRun.ID))
	}
	if det.Marker != nil && det.Marker.Role != topo.Role {
		out = append(out, fmt.Sprintf("completion marker records role %s, checked as %s", det.Marker.Role, topo.Role))
	}
	if det.Marker != nil && topo.Self.IP != nil && det.Marker.HostIP != "" &&
		!net.ParseIP(det.Marker.HostIP).Equal(topo.Self.IP) {
		out = append(out, fmt.Sprintf("completion marker records host %s, this host is %s", det.Marker.HostIP, topo.Self.IP))
	}
	if det.State == types.StateInstalling {
		out = append(out, "stack.sh is still running")
	}
	return out
}
