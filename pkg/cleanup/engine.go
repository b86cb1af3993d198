package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mukan-bot/OpenStackBuilder/pkg/confirm"
	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/metrics"
	"github.com/mukan-bot/OpenStackBuilder/pkg/network"
	"github.com/mukan-bot/OpenStackBuilder/pkg/state"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/rs/zerolog"
)

// Step names in execution order
const (
	StepStopServices = "stop-services"
	StepInstaller    = "installer-clean"
	StepState        = "state"
	StepUser         = "user"
	StepBridges      = "bridges"
	StepPackages     = "packages"
	StepLogs         = "logs"
	StepCaches       = "caches"
)

// Outcome of one step
type Outcome string

const (
	OutcomeDone    Outcome = "done"
	OutcomeNothing Outcome = "nothing"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Installer is the part of the installer driver cleanup needs
type Installer interface {
	Stop(ctx context.Context) error
	Clean(ctx context.Context) error
	UserExists(ctx context.Context) (bool, error)
	SudoersPath() string
	Installed() bool
}

// Config wires the engine to the host
type Config struct {
	Installer Installer
	Runner    executor.Runner
	Confirmer confirm.Confirmer
	Bridges   *network.BridgeManager
	NAT       *network.NATCleaner

	StateDir string
	User     string
	Packages []string
	LogDirs  []string
	Caches   []string

	// FloatingRanges are matched against MASQUERADE rules; the range recorded
	// in the marker is added at run time
	FloatingRanges []string
}

// Options for one Clean
type Options struct {
	// Force answers yes to every destructive step
	Force bool
}

// StepResult is one line of the report
type StepResult struct {
	Step    string
	Outcome Outcome
	Detail  string
	Err     error
}

// Report lists every step in order. Errors never abort the sequence.
type Report struct {
	Steps []StepResult
	State types.InstallState
}

// Errors returns the CleanupError of every failed step
func (r Report) Errors() []error {
	var errs []error
	for _, s := range r.Steps {
		if s.Err != nil {
			errs = append(errs, s.Err)
		}
	}
	return errs
}

// Err joins the step errors; nil when every step succeeded or was skipped
func (r Report) Err() error {
	return errors.Join(r.Errors()...)
}

// Partial reports whether anything failed or was declined
func (r Report) Partial() bool {
	for _, s := range r.Steps {
		if s.Outcome == OutcomeFailed || s.Outcome == OutcomeSkipped {
			return true
		}
	}
	return false
}

// Engine returns a host to its pre-install state
type Engine struct {
	cfg    Config
	logger zerolog.Logger
}

// NewEngine creates an engine
func NewEngine(cfg Config) *Engine {
	if cfg.Confirmer == nil {
		cfg.Confirmer = confirm.Never{}
	}
	return &Engine{cfg: cfg, logger: log.WithComponent("cleanup")}
}

type step struct {
	name string

	// destructive steps ask the Confirmer first
	destructive bool
	prompt      string

	// pending describes what would be removed; empty means nothing to do
	pending func(ctx context.Context) (string, error)
	run     func(ctx context.Context) error
}

// Clean runs every step. Best-effort steps always run; destructive ones run
// when forced or confirmed.
func (e *Engine) Clean(ctx context.Context, opts Options) Report {
	confirmer := e.cfg.Confirmer
	if opts.Force {
		confirmer = confirm.Always{}
	}

	ranges := append([]string(nil), e.cfg.FloatingRanges...)
	if marker, err := state.ReadMarker(e.cfg.StateDir); err == nil && marker != nil {
		metrics.SetInstallState(marker.Role, types.StateCleaning)
		if marker.FloatingRange != "" {
			ranges = append(ranges, marker.FloatingRange)
		}
	}

	var report Report
	for _, s := range e.steps(ranges) {
		res := e.runStep(ctx, confirmer, s)
		metrics.CleanupSteps.WithLabelValues(res.Step, string(res.Outcome)).Inc()
		report.Steps = append(report.Steps, res)
	}

	report.State = types.StateAbsent
	for _, s := range report.Steps {
		if s.Step == StepState && s.Outcome == OutcomeFailed {
			report.State = types.StateFailed
		}
	}
	return report
}

func (e *Engine) runStep(ctx context.Context, confirmer confirm.Confirmer, s step) StepResult {
	logger := e.logger.With().Str("step", s.name).Logger()
	res := StepResult{Step: s.name}

	fail := func(err error) StepResult {
		res.Outcome = OutcomeFailed
		res.Err = types.NewError(types.KindCleanup, s.name, err)
		res.Detail = err.Error()
		logger.Warn().Err(err).Msg("Cleanup step failed, continuing")
		return res
	}

	what, err := s.pending(ctx)
	if err != nil {
		return fail(err)
	}
	if what == "" {
		res.Outcome = OutcomeNothing
		logger.Debug().Msg("Nothing to clean")
		return res
	}
	res.Detail = what

	if s.destructive {
		ok, err := confirmer.Confirm(ctx, s.prompt, what)
		if err != nil {
			return fail(fmt.Errorf("confirmation failed: %w", err))
		}
		if !ok {
			res.Outcome = OutcomeSkipped
			logger.Info().Msg("Declined, skipping")
			return res
		}
	}

	logger.Info().Str("target", what).Msg("Cleaning")
	if err := s.run(ctx); err != nil {
		return fail(err)
	}
	res.Outcome = OutcomeDone
	return res
}

func (e *Engine) steps(ranges []string) []step {
	return []step{
		{
			name:    StepStopServices,
			pending: e.whenInstalled("devstack services"),
			run:     e.cfg.Installer.Stop,
		},
		{
			name:    StepInstaller,
			pending: e.whenInstalled("clean.sh"),
			run:     e.cfg.Installer.Clean,
		},
		{
			name:    StepState,
			pending: existing(e.cfg.StateDir),
			run:     func(context.Context) error { return removePaths(e.cfg.StateDir) },
		},
		{
			name:        StepUser,
			destructive: true,
			prompt:      fmt.Sprintf("Remove user %s and its home directory?", e.cfg.User),
			pending:     e.pendingUser,
			run:         e.removeUser,
		},
		{
			name:        StepBridges,
			destructive: true,
			prompt:      "Delete openvswitch bridges and NAT rules?",
			pending:     func(ctx context.Context) (string, error) { return e.pendingNetwork(ctx, ranges) },
			run:         func(ctx context.Context) error { return e.removeNetwork(ctx, ranges) },
		},
		{
			name:        StepPackages,
			destructive: true,
			prompt:      "Purge packages installed for the deployment?",
			pending:     e.pendingPackages,
			run:         e.purgePackages,
		},
		{
			name:        StepLogs,
			destructive: true,
			prompt:      "Remove deployment logs?",
			pending:     existing(e.cfg.LogDirs...),
			run:         func(context.Context) error { return removePaths(e.cfg.LogDirs...) },
		},
		{
			name:        StepCaches,
			destructive: true,
			prompt:      "Remove download caches?",
			pending:     existing(e.cfg.Caches...),
			run:         func(context.Context) error { return removePaths(e.cfg.Caches...) },
		},
	}
}

func (e *Engine) whenInstalled(what string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		if !e.cfg.Installer.Installed() {
			return "", nil
		}
		return what, nil
	}
}

func (e *Engine) pendingUser(ctx context.Context) (string, error) {
	var parts []string
	exists, err := e.cfg.Installer.UserExists(ctx)
	if err != nil {
		return "", err
	}
	if exists {
		parts = append(parts, "user "+e.cfg.User)
	}
	if _, err := os.Stat(e.cfg.Installer.SudoersPath()); err == nil {
		parts = append(parts, e.cfg.Installer.SudoersPath())
	}
	return strings.Join(parts, ", "), nil
}

func (e *Engine) removeUser(ctx context.Context) error {
	exists, err := e.cfg.Installer.UserExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		// leftover processes make userdel refuse; pkill exits 1 when none match
		_, err := e.cfg.Runner.Run(ctx, executor.Command{Name: "pkill", Args: []string{"-KILL", "-u", e.cfg.User}})
		var exitErr *executor.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			e.logger.Debug().Err(err).Str("user", e.cfg.User).Msg("Could not kill user processes")
		}

		if _, err := e.cfg.Runner.Run(ctx, executor.Command{
			Name: "userdel",
			Args: []string{"-r", e.cfg.User},
		}); err != nil {
			return fmt.Errorf("failed to remove user %s: %w", e.cfg.User, err)
		}
	}
	return removePaths(e.cfg.Installer.SudoersPath())
}

func (e *Engine) pendingNetwork(ctx context.Context, ranges []string) (string, error) {
	var parts []string
	if e.cfg.Bridges != nil {
		if present := e.cfg.Bridges.Present(); len(present) > 0 {
			parts = append(parts, "bridges "+strings.Join(present, ", "))
		}
	}
	if e.cfg.NAT != nil {
		rules, err := e.cfg.NAT.Rules(ctx, ranges...)
		if err != nil {
			// iptables may be gone along with the packages
			e.logger.Debug().Err(err).Msg("Could not list NAT rules")
		} else if len(rules) > 0 {
			parts = append(parts, fmt.Sprintf("%d NAT rules", len(rules)))
		}
	}
	return strings.Join(parts, ", "), nil
}

func (e *Engine) removeNetwork(ctx context.Context, ranges []string) error {
	var errs []error
	if e.cfg.Bridges != nil {
		errs = append(errs, e.cfg.Bridges.RemoveAll(ctx))
	}
	if e.cfg.NAT != nil {
		if _, err := e.cfg.NAT.Remove(ctx, ranges...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) installedPackages(ctx context.Context) []string {
	var installed []string
	for _, pkg := range e.cfg.Packages {
		res, err := e.cfg.Runner.Run(ctx, executor.Command{
			Name: "dpkg-query",
			Args: []string{"-W", "-f=${Status}", pkg},
		})
		if err == nil && strings.Contains(res.Stdout, "install ok installed") {
			installed = append(installed, pkg)
		}
	}
	return installed
}

func (e *Engine) pendingPackages(ctx context.Context) (string, error) {
	return strings.Join(e.installedPackages(ctx), ", "), nil
}

func (e *Engine) purgePackages(ctx context.Context) error {
	pkgs := e.installedPackages(ctx)
	if len(pkgs) == 0 {
		return nil
	}
	if _, err := e.cfg.Runner.Run(ctx, executor.Command{
		Name: "apt-get",
		Args: append([]string{"purge", "-y"}, pkgs...),
		Env:  []string{"DEBIAN_FRONTEND=noninteractive"},
	}); err != nil {
		return fmt.Errorf("failed to purge packages: %w", err)
	}
	return nil
}

func existing(paths ...string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		var found []string
		for _, p := range paths {
			if p == "" {
				continue
			}
			if _, err := os.Lstat(p); err == nil {
				found = append(found, p)
			}
		}
		return strings.Join(found, ", "), nil
	}
}

func removePaths(paths ...string) error {
	var errs []error
	for _, p := range paths {
		if p == "" || p == "/" {
			continue
		}
		if err := os.RemoveAll(p); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
