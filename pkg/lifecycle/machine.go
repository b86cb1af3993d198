package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/localconf"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/metrics"
	"github.com/mukan-bot/OpenStackBuilder/pkg/state"
	"github.com/mukan-bot/OpenStackBuilder/pkg/sysinfo"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/rs/zerolog"
)

// Phase names, as logged and used for metric labels
const (
	PhasePrerequisites = "prerequisites"
	PhaseReentry       = "reentry"
	PhaseEnvironment   = "environment"
	PhaseConfigure     = "configure"
	PhaseInstall       = "install"
	PhaseComplete      = "complete"
)

// stopGrace bounds the best-effort shutdown after an interrupted install
const stopGrace = 3 * time.Minute

// Installer is the external installer as the lifecycle drives it
type Installer interface {
	Prepare(ctx context.Context) error
	Install(ctx context.Context, out io.Writer) error
	Stop(ctx context.Context) error
	Clean(ctx context.Context) error
	Running() (bool, error)
}

// History records each run; storage.Store satisfies it
type History interface {
	CreateRun(run *types.RunRecord) error
	UpdateRun(run *types.RunRecord) error
	LastRun() (*types.RunRecord, error)
}

// Config wires a Machine to the host
type Config struct {
	Installer Installer
	History   History

	StateDir  string
	BackupDir string

	// LocalConf is where the document is written
	LocalConf string

	// User owns the written document
	User string

	// Thresholds are the role minimums; a shortfall is only a warning
	Thresholds sysinfo.Thresholds
	DiskPath   string
	Sysinfo    sysinfo.Reader

	// Privileged and Chown are swapped in tests
	Privileged func() bool
	Chown      func(path, user string) error
	Now        func() time.Time
}

// Options for one Run
type Options struct {
	Topology types.ClusterTopology
	Branch   string

	// DryRun stops after prerequisites and writes the redacted document to Out
	DryRun bool
	Out    io.Writer
}

// Result describes a finished run
type Result struct {
	RunID  string
	Backup string
	State  types.InstallState
}

// Machine drives absent -> installing -> running|failed, cleaning up first
// when the host carries a previous deployment
type Machine struct {
	cfg    Config
	logger zerolog.Logger
	last   Result
}

// NewMachine creates a state machine
func NewMachine(cfg Config) *Machine {
	if cfg.Sysinfo == nil {
		cfg.Sysinfo = sysinfo.Read
	}
	if cfg.DiskPath == "" {
		cfg.DiskPath = "/"
	}
	if cfg.Privileged == nil {
		cfg.Privileged = sysinfo.IsPrivileged
	}
	if cfg.Chown == nil {
		cfg.Chown = chownToUser
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{
		cfg:    cfg,
		logger: log.WithComponent("lifecycle"),
	}
}

// Last returns what the most recent Run produced
func (m *Machine) Last() Result {
	return m.last
}

// Run takes the host from whatever state it is in to running. Validation
// happens before anything on the host changes; a failed install is never
// retried.
func (m *Machine) Run(ctx context.Context, doc *localconf.Document, opts Options) (types.InstallState, error) {
	topo := opts.Topology
	role := topo.Role
	m.last = Result{}

	if doc == nil {
		return types.StateAbsent, types.Errorf(types.KindConfiguration, "run", "no configuration document")
	}

	var det state.Detection
	if err := m.phase(role, PhasePrerequisites, func() error {
		var err error
		det, err = m.prerequisites(topo)
		return err
	}); err != nil {
		return det.State, err
	}
	metrics.SetInstallState(role, det.State)

	if opts.DryRun {
		if opts.Out != nil {
			fmt.Fprint(opts.Out, doc.Redacted())
		}
		m.logger.Info().Str("state", string(det.State)).Msg("Dry run, nothing changed")
		m.last.State = det.State
		return det.State, nil
	}

	current := det.State
	if err := m.phase(role, PhaseReentry, func() error {
		current = m.reenter(ctx, role, current)
		return nil
	}); err != nil {
		return current, err
	}

	run := &types.RunRecord{
		Role:      role,
		HostIP:    ipString(topo),
		State:     types.StateInstalling,
		StartedAt: m.cfg.Now().UTC(),
	}
	if m.cfg.History != nil {
		if err := m.cfg.History.CreateRun(run); err != nil {
			m.logger.Warn().Err(err).Msg("Could not record run start")
		}
	}
	m.last.RunID = run.ID
	current = m.transition(role, current, types.StateInstalling)

	fail := func(err error) (types.InstallState, error) {
		current = m.transition(role, current, types.StateFailed)
		m.finish(run, types.StateFailed, err)
		return current, err
	}

	if err := m.phase(role, PhaseEnvironment, func() error {
		if err := m.cfg.Installer.Prepare(ctx); err != nil {
			return types.NewError(types.KindInstall, "prepare environment", err)
		}
		return nil
	}); err != nil {
		return fail(err)
	}

	if err := m.phase(role, PhaseConfigure, func() error {
		backup, err := m.configure(doc)
		run.Backup = backup
		m.last.Backup = backup
		return err
	}); err != nil {
		return fail(err)
	}

	if err := m.phase(role, PhaseInstall, func() error {
		return m.install(ctx)
	}); err != nil {
		return fail(err)
	}

	if err := m.phase(role, PhaseComplete, func() error {
		floating, _ := doc.Get("FLOATING_RANGE")
		return m.complete(run, opts.Branch, floating)
	}); err != nil {
		return fail(err)
	}

	current = m.transition(role, current, types.StateRunning)
	m.finish(run, types.StateRunning, nil)
	log.Success(fmt.Sprintf("%s is running", role))
	return current, nil
}

func (m *Machine) phase(role types.Role, name string, fn func() error) error {
	logger := m.logger.With().Str("phase", name).Logger()
	logger.Info().Msg("Starting phase")

	timer := metrics.NewTimer()
	err := fn()
	timer.ObserveDurationVec(metrics.PhaseDuration, string(role), name)

	if err != nil {
		metrics.PhaseFailures.WithLabelValues(string(role), name).Inc()
		logger.Error().Err(err).Dur("duration", timer.Duration()).Msg("Phase failed")
		return err
	}
	logger.Info().Dur("duration", timer.Duration()).Msg("Phase finished")
	return nil
}

// prerequisites is the only phase allowed to abort before mutation
func (m *Machine) prerequisites(topo types.ClusterTopology) (state.Detection, error) {
	detector := &state.Detector{StateDir: m.cfg.StateDir, Processes: m.cfg.Installer}
	if m.cfg.History != nil {
		detector.History = m.cfg.History
	}
	det := detector.Detect()

	if !m.cfg.Privileged() {
		return det, types.Errorf(types.KindPrerequisite, "check privileges", "osb must run as root")
	}

	snap, err := m.cfg.Sysinfo(m.cfg.DiskPath)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Could not read host resources")
	} else {
		for _, v := range snap.Violations(m.cfg.Thresholds) {
			m.logger.Warn().Str("role", string(topo.Role)).Msg(v)
		}
	}

	if topo.Role == types.RoleCompute && !topo.PeerReachable {
		m.logger.Warn().Str("peer", topo.PeerIP.String()).
			Msg("Controller did not answer; the install may fail to register")
	}

	m.logger.Info().Str("state", string(det.State)).Msg("Detected install state")
	return det, nil
}

// reenter tears down a previous or partial deployment. Every step is best
// effort; the host ends up absent either way.
func (m *Machine) reenter(ctx context.Context, role types.Role, current types.InstallState) types.InstallState {
	if current == types.StateAbsent {
		return current
	}

	m.logger.Info().Str("from", string(current)).Msg("Cleaning up previous deployment")
	current = m.transition(role, current, types.StateCleaning)

	if err := m.cfg.Installer.Stop(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Stopping services failed")
	}
	if err := m.cfg.Installer.Clean(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Installer cleanup failed")
	}
	if err := state.RemoveMarker(m.cfg.StateDir); err != nil {
		m.logger.Warn().Err(err).Msg("Could not remove marker")
	}

	return m.transition(role, current, types.StateAbsent)
}

// configure backs up the existing document and writes the new one
func (m *Machine) configure(doc *localconf.Document) (string, error) {
	backup, err := m.backup()
	if err != nil {
		return "", types.NewError(types.KindInstall, "back up configuration", err)
	}

	if err := writeFileAtomic(m.cfg.LocalConf, doc.Render(), 0600); err != nil {
		return backup, types.NewError(types.KindInstall, "write configuration", err)
	}
	if err := m.cfg.Chown(m.cfg.LocalConf, m.cfg.User); err != nil {
		return backup, types.NewError(types.KindInstall, "write configuration", err)
	}

	m.logger.Info().Str("path", m.cfg.LocalConf).Msg("Configuration written")
	m.logger.Debug().Msg(doc.Redacted())
	return backup, nil
}

// backup copies the current document aside; nothing is ever deleted
func (m *Machine) backup() (string, error) {
	data, err := os.ReadFile(m.cfg.LocalConf)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	if err := os.MkdirAll(m.cfg.BackupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := "local.conf." + m.cfg.Now().UTC().Format("20060102T150405Z")
	path := filepath.Join(m.cfg.BackupDir, name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	m.logger.Info().Str("backup", path).Msg("Previous configuration backed up")
	return path, nil
}

func (m *Machine) install(ctx context.Context) error {
	err := m.cfg.Installer.Install(ctx, log.RawOutput())
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		m.logger.Warn().Msg("Install interrupted, stopping services")
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopGrace)
		defer cancel()
		if stopErr := m.cfg.Installer.Stop(stopCtx); stopErr != nil {
			m.logger.Warn().Err(stopErr).Msg("Stopping services failed")
		}
		return types.NewError(types.KindInstall, "run installer", fmt.Errorf("interrupted: %w", ctx.Err()))
	}

	return types.NewError(types.KindInstall, "run installer", err)
}

func (m *Machine) complete(run *types.RunRecord, branch, floating string) error {
	marker := state.Marker{
		RunID:         run.ID,
		Role:          run.Role,
		HostIP:        run.HostIP,
		Branch:        branch,
		FloatingRange: floating,
		CompletedAt:   m.cfg.Now().UTC(),
	}
	if err := state.WriteMarker(m.cfg.StateDir, marker); err != nil {
		return types.NewError(types.KindInstall, "write marker", err)
	}
	return nil
}

func (m *Machine) transition(role types.Role, from, to types.InstallState) types.InstallState {
	if !types.CanTransition(from, to) {
		m.logger.Warn().Str("from", string(from)).Str("to", string(to)).Msg("Unexpected state transition")
	}
	m.logger.Debug().Str("from", string(from)).Str("to", string(to)).Msg("State transition")
	metrics.SetInstallState(role, to)
	m.last.State = to
	return to
}

func (m *Machine) finish(run *types.RunRecord, st types.InstallState, err error) {
	run.State = st
	run.FinishedAt = m.cfg.Now().UTC()
	if err != nil {
		run.Error = log.Redact(err.Error())
	}
	if m.cfg.History == nil || run.ID == "" {
		return
	}
	if uerr := m.cfg.History.UpdateRun(run); uerr != nil {
		m.logger.Warn().Err(uerr).Msg("Could not record run result")
	}
}

func ipString(topo types.ClusterTopology) string {
	if topo.Self.IP == nil {
		return ""
	}
	return topo.Self.IP.String()
}
