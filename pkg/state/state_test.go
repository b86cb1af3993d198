package state

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/storage"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcesses struct {
	running bool
	err     error
}

func (f fakeProcesses) Running() (bool, error) { return f.running, f.err }

type fakeHistory struct {
	last *types.RunRecord
}

func (f fakeHistory) LastRun() (*types.RunRecord, error) {
	if f.last == nil {
		return nil, storage.ErrNotFound
	}
	return f.last, nil
}

func TestMarker_RoundTrip(t *testing.T) {
	dir := t.TempDir()

	m, err := ReadMarker(dir)
	require.NoError(t, err)
	assert.Nil(t, m)

	want := Marker{RunID: "run-1", Role: types.RoleCompute, HostIP: "10.0.0.20", CompletedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)}
	require.NoError(t, WriteMarker(dir, want))

	info, err := os.Stat(MarkerPath(dir))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := ReadMarker(dir)
	require.NoError(t, err)
	assert.Equal(t, want, *got)

	require.NoError(t, RemoveMarker(dir))
	require.NoError(t, RemoveMarker(dir))
	got, err = ReadMarker(dir)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		running   bool
		procErr   error
		marker    bool
		corrupt   bool
		last      *types.RunRecord
		want      types.InstallState
		inconsist bool
	}{
		{name: "clean host", want: types.StateAbsent},
		{name: "installer running", running: true, marker: true, want: types.StateInstalling},
		{name: "marker present", marker: true, last: &types.RunRecord{State: types.StateRunning}, want: types.StateRunning},
		{name: "last run failed", last: &types.RunRecord{State: types.StateFailed}, want: types.StateFailed},
		{name: "last run interrupted", last: &types.RunRecord{State: types.StateInstalling}, want: types.StateFailed},
		{name: "corrupt marker", corrupt: true, want: types.StateFailed},
		{name: "process scan error", procErr: errors.New("denied"), want: types.StateAbsent},
		{
			name:      "marker lost after success",
			last:      &types.RunRecord{ID: "r1", State: types.StateRunning},
			want:      types.StateFailed,
			inconsist: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.marker {
				require.NoError(t, WriteMarker(dir, Marker{RunID: "r", Role: types.RoleController}))
			}
			if tt.corrupt {
				require.NoError(t, os.WriteFile(MarkerPath(dir), []byte("run_id: [oops"), 0600))
			}

			d := &Detector{
				StateDir:  dir,
				Processes: fakeProcesses{running: tt.running, err: tt.procErr},
				History:   fakeHistory{last: tt.last},
			}
			det := d.Detect()
			assert.Equal(t, tt.want, det.State)
			assert.Equal(t, tt.inconsist, det.MarkerMissingAfterSuccess())
		})
	}
}
