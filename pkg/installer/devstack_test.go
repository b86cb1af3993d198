package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	home  string
	proc  string
	sudo  string
	fake  *executor.FakeRunner
	stack *DevStack
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		home: filepath.Join(root, "opt", "stack"),
		proc: filepath.Join(root, "proc"),
		sudo: filepath.Join(root, "sudoers.d"),
		fake: &executor.FakeRunner{},
	}
	require.NoError(t, os.MkdirAll(f.proc, 0755))
	f.stack = New(f.fake, Options{
		User:        "stack",
		Home:        f.home,
		Repo:        "https://opendev.org/openstack/devstack",
		Branch:      "stable/2024.2",
		StopTimeout: 2 * time.Second,
		ProcRoot:    f.proc,
		SudoersDir:  f.sudo,
	})
	return f
}

func (f *fixture) addProcess(t *testing.T, pid int, args ...string) {
	t.Helper()
	dir := filepath.Join(f.proc, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0755))
	var cmdline []byte
	for _, a := range args {
		cmdline = append(cmdline, a...)
		cmdline = append(cmdline, 0)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), cmdline, 0644))
}

func (f *fixture) addScript(t *testing.T, name string) {
	t.Helper()
	dir := f.stack.Dir()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/bash\n"), 0755))
}

func TestPrepare_CreatesUserAndClones(t *testing.T) {
	f := newFixture(t)
	f.fake.Handler = func(cmd executor.Command) (executor.Result, error) {
		if cmd.Name == "id" {
			return executor.Result{ExitCode: 1}, &executor.ExitError{Command: cmd.String(), ExitCode: 1}
		}
		return executor.Result{}, nil
	}

	require.NoError(t, f.stack.Prepare(context.Background()))

	calls := f.fake.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "id -u stack", calls[0])
	assert.Equal(t, fmt.Sprintf("useradd -s /bin/bash -d %s -m stack", f.home), calls[1])
	assert.Equal(t, fmt.Sprintf("chmod +x %s", f.home), calls[2])
	assert.Equal(t, fmt.Sprintf("(as stack) git clone --branch stable/2024.2 https://opendev.org/openstack/devstack %s", f.stack.Dir()), calls[3])

	rule, err := os.ReadFile(f.stack.SudoersPath())
	require.NoError(t, err)
	assert.Equal(t, "stack ALL=(ALL) NOPASSWD: ALL\n", string(rule))
}

func TestPrepare_ExistingCheckoutIsUpdated(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.stack.Dir(), ".git"), 0755))

	require.NoError(t, f.stack.Prepare(context.Background()))

	assert.Equal(t, 0, f.fake.Count("useradd"))
	assert.Equal(t, 0, f.fake.Count("clone"))
	assert.Equal(t, 1, f.fake.Count("fetch origin stable/2024.2"))
	assert.Equal(t, 1, f.fake.Count("reset --hard origin/stable/2024.2"))
}

func TestPrepare_LookupFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.Handler = func(cmd executor.Command) (executor.Result, error) {
		return executor.Result{}, errors.New("exec: not found")
	}
	assert.Error(t, f.stack.Prepare(context.Background()))
}

func TestInstall_StreamsOutput(t *testing.T) {
	f := newFixture(t)
	var spinner bytes.Buffer
	f.stack.opts.Progress = &spinner

	f.fake.Handler = func(cmd executor.Command) (executor.Result, error) {
		assert.Equal(t, "./stack.sh", cmd.Name)
		assert.Equal(t, "stack", cmd.User)
		assert.Equal(t, f.stack.Dir(), cmd.Dir)
		fmt.Fprint(cmd.Stdout, "+ installing keystone\n+ installing nova\npartial")
		return executor.Result{Duration: time.Second}, nil
	}

	var out bytes.Buffer
	require.NoError(t, f.stack.Install(context.Background(), &out))
	assert.Equal(t, "+ installing keystone\n+ installing nova\npartial", out.String())
}

func TestInstall_Failure(t *testing.T) {
	f := newFixture(t)
	f.fake.Handler = func(cmd executor.Command) (executor.Result, error) {
		return executor.Result{ExitCode: 1}, &executor.ExitError{Command: cmd.String(), ExitCode: 1}
	}

	err := f.stack.Install(context.Background(), nil)
	var exitErr *executor.ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 1, exitErr.ExitCode)
}

func TestRunning(t *testing.T) {
	f := newFixture(t)
	f.addProcess(t, 100, "/bin/bash", "/usr/sbin/sshd")
	f.addProcess(t, 101, "vim", "stack.sh")

	running, err := f.stack.Running()
	require.NoError(t, err)
	assert.False(t, running)

	f.addProcess(t, 102, "bash", "./stack.sh")
	running, err = f.stack.Running()
	require.NoError(t, err)
	assert.True(t, running)
}

func TestStop_TerminatesAndUnstacks(t *testing.T) {
	f := newFixture(t)
	f.addScript(t, unstackScript)
	f.addProcess(t, 4242, "/bin/bash", "./stack.sh")

	var signalled []int
	f.stack.signal = func(pid int) error {
		signalled = append(signalled, pid)
		return os.RemoveAll(filepath.Join(f.proc, strconv.Itoa(pid)))
	}

	require.NoError(t, f.stack.Stop(context.Background()))
	assert.Equal(t, []int{4242}, signalled)
	assert.Equal(t, 1, f.fake.Count("./unstack.sh"))
}

func TestStop_TimesOut(t *testing.T) {
	f := newFixture(t)
	f.stack.opts.StopTimeout = 100 * time.Millisecond
	f.addProcess(t, 4242, "./stack.sh")
	f.stack.signal = func(pid int) error { return nil }

	err := f.stack.Stop(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still running")
}

func TestStopAndClean_NothingInstalled(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.stack.Stop(context.Background()))
	require.NoError(t, f.stack.Clean(context.Background()))
	assert.Empty(t, f.fake.Calls())
	assert.False(t, f.stack.Installed())
}

func TestClean_RunsScript(t *testing.T) {
	f := newFixture(t)
	f.addScript(t, cleanScript)
	f.addScript(t, stackScript)

	require.NoError(t, f.stack.Clean(context.Background()))
	assert.Equal(t, []string{"(as stack) ./clean.sh"}, f.fake.Calls())
	assert.True(t, f.stack.Installed())
}
