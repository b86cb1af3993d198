package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

const (
	// DefaultProcRoot is scanned for running installer processes
	DefaultProcRoot = "/proc"

	// DefaultSudoersDir receives the managed user's sudo rule
	DefaultSudoersDir = "/etc/sudoers.d"

	stackScript   = "stack.sh"
	unstackScript = "unstack.sh"
	cleanScript   = "clean.sh"
)

// Options locate the DevStack checkout and its managed account
type Options struct {
	User   string
	Home   string
	Repo   string
	Branch string

	// StopTimeout bounds the wait for stack.sh to exit after SIGTERM
	StopTimeout time.Duration

	// Progress shows a spinner while stack.sh runs; nil disables it
	Progress io.Writer

	ProcRoot   string
	SudoersDir string
}

// DevStack drives the DevStack scripts. Every script runs as a single
// blocking subprocess under the managed user.
type DevStack struct {
	runner executor.Runner
	opts   Options
	logger zerolog.Logger

	// signal is swapped in tests
	signal func(pid int) error
}

// New creates a driver
func New(runner executor.Runner, opts Options) *DevStack {
	if opts.ProcRoot == "" {
		opts.ProcRoot = DefaultProcRoot
	}
	if opts.SudoersDir == "" {
		opts.SudoersDir = DefaultSudoersDir
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = 2 * time.Minute
	}
	return &DevStack{
		runner: runner,
		opts:   opts,
		logger: log.WithComponent("installer"),
		signal: func(pid int) error { return unix.Kill(pid, unix.SIGTERM) },
	}
}

// Dir is the DevStack checkout
func (d *DevStack) Dir() string {
	return filepath.Join(d.opts.Home, "devstack")
}

// UserExists reports whether the managed account exists
func (d *DevStack) UserExists(ctx context.Context) (bool, error) {
	_, err := d.runner.Run(ctx, executor.Command{Name: "id", Args: []string{"-u", d.opts.User}})
	if err == nil {
		return true, nil
	}
	var exitErr *executor.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

// Prepare creates the managed account and checks out DevStack at the branch
func (d *DevStack) Prepare(ctx context.Context) error {
	exists, err := d.UserExists(ctx)
	if err != nil {
		return fmt.Errorf("failed to look up user %s: %w", d.opts.User, err)
	}
	if !exists {
		d.logger.Info().Str("user", d.opts.User).Str("home", d.opts.Home).Msg("Creating managed user")
		if _, err := d.runner.Run(ctx, executor.Command{
			Name: "useradd",
			Args: []string{"-s", "/bin/bash", "-d", d.opts.Home, "-m", d.opts.User},
		}); err != nil {
			return fmt.Errorf("failed to create user %s: %w", d.opts.User, err)
		}
	}

	// DevStack needs the home traversable and passwordless sudo
	if _, err := d.runner.Run(ctx, executor.Command{Name: "chmod", Args: []string{"+x", d.opts.Home}}); err != nil {
		return fmt.Errorf("failed to open up %s: %w", d.opts.Home, err)
	}
	if err := d.writeSudoers(); err != nil {
		return err
	}

	return d.checkout(ctx)
}

func (d *DevStack) writeSudoers() error {
	if err := os.MkdirAll(d.opts.SudoersDir, 0750); err != nil {
		return fmt.Errorf("failed to create sudoers directory: %w", err)
	}
	path := filepath.Join(d.opts.SudoersDir, d.opts.User)
	rule := fmt.Sprintf("%s ALL=(ALL) NOPASSWD: ALL\n", d.opts.User)
	if err := os.WriteFile(path, []byte(rule), 0440); err != nil {
		return fmt.Errorf("failed to write sudoers rule: %w", err)
	}
	return nil
}

// SudoersPath is the sudo rule written by Prepare
func (d *DevStack) SudoersPath() string {
	return filepath.Join(d.opts.SudoersDir, d.opts.User)
}

func (d *DevStack) checkout(ctx context.Context) error {
	dir := d.Dir()

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		d.logger.Info().Str("dir", dir).Str("branch", d.opts.Branch).Msg("Updating existing DevStack checkout")
		for _, args := range [][]string{
			{"-C", dir, "fetch", "origin", d.opts.Branch},
			{"-C", dir, "checkout", d.opts.Branch},
			{"-C", dir, "reset", "--hard", "origin/" + d.opts.Branch},
		} {
			if _, err := d.runner.Run(ctx, executor.Command{Name: "git", Args: args, User: d.opts.User}); err != nil {
				return fmt.Errorf("failed to update DevStack checkout: %w", err)
			}
		}
		return nil
	}

	d.logger.Info().Str("repo", d.opts.Repo).Str("branch", d.opts.Branch).Msg("Cloning DevStack")
	if _, err := d.runner.Run(ctx, executor.Command{
		Name: "git",
		Args: []string{"clone", "--branch", d.opts.Branch, d.opts.Repo, dir},
		User: d.opts.User,
	}); err != nil {
		return fmt.Errorf("failed to clone DevStack: %w", err)
	}
	return nil
}

// Install runs stack.sh to completion. Output goes to out line by line and,
// when enabled, drives the progress spinner. There is no timeout; cancel ctx
// to interrupt.
func (d *DevStack) Install(ctx context.Context, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	progress := newProgress(d.opts.Progress, "Running stack.sh")
	defer progress.Finish()

	stream := &lineWriter{out: out, onLine: progress.Line}
	defer stream.Flush()

	d.logger.Info().Str("dir", d.Dir()).Msg("Starting stack.sh, this takes a while")
	res, err := d.runner.Run(ctx, executor.Command{
		Name:   "./" + stackScript,
		Dir:    d.Dir(),
		User:   d.opts.User,
		Stdout: stream,
		Stderr: stream,
	})
	if err != nil {
		return err
	}

	d.logger.Info().Dur("duration", res.Duration).Msg("stack.sh finished")
	return nil
}

// Stop terminates a running stack.sh and then runs unstack.sh. Both halves
// are attempted; the first error is returned.
func (d *DevStack) Stop(ctx context.Context) error {
	var errs []error

	pids, err := d.installerPIDs()
	if err != nil {
		errs = append(errs, err)
	}
	if len(pids) > 0 {
		if err := d.terminate(ctx, pids); err != nil {
			errs = append(errs, err)
		}
	}

	if err := d.runScript(ctx, unstackScript); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Clean runs clean.sh, which removes installed services and their data
func (d *DevStack) Clean(ctx context.Context) error {
	return d.runScript(ctx, cleanScript)
}

// Running reports whether a stack.sh process exists on the host
func (d *DevStack) Running() (bool, error) {
	pids, err := d.installerPIDs()
	return len(pids) > 0, err
}

// Installed reports whether a DevStack checkout is present
func (d *DevStack) Installed() bool {
	_, err := os.Stat(filepath.Join(d.Dir(), stackScript))
	return err == nil
}

func (d *DevStack) runScript(ctx context.Context, script string) error {
	path := filepath.Join(d.Dir(), script)
	if _, err := os.Stat(path); err != nil {
		d.logger.Debug().Str("script", script).Msg("Script not present, skipping")
		return nil
	}

	d.logger.Info().Str("script", script).Msg("Running DevStack script")
	stream := &lineWriter{out: log.RawOutput()}
	defer stream.Flush()

	if _, err := d.runner.Run(ctx, executor.Command{
		Name:   "./" + script,
		Dir:    d.Dir(),
		User:   d.opts.User,
		Stdout: stream,
		Stderr: stream,
	}); err != nil {
		return fmt.Errorf("%s failed: %w", script, err)
	}
	return nil
}

// terminate sends SIGTERM and waits for the processes to go away
func (d *DevStack) terminate(ctx context.Context, pids []int) error {
	for _, pid := range pids {
		d.logger.Warn().Int("pid", pid).Msg("Terminating running stack.sh")
		if err := d.signal(pid); err != nil && !errors.Is(err, unix.ESRCH) {
			d.logger.Error().Err(err).Int("pid", pid).Msg("Failed to send SIGTERM")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.opts.StopTimeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		remaining, err := d.installerPIDs()
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("stack.sh still running after %s (pids %v)", d.opts.StopTimeout, remaining)
		case <-ticker.C:
		}
	}
}
