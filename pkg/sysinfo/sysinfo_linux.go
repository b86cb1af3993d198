//go:build linux

package sysinfo

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// loadScale is the fixed-point shift the kernel applies to load averages
const loadScale = 1 << 16

// Read returns memory, load and the disk figures of the filesystem holding path
func Read(path string) (Snapshot, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return Snapshot{}, fmt.Errorf("sysinfo: %w", err)
	}

	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}

	snap := Snapshot{
		TotalMemory:     uint64(info.Totalram) * unit,
		AvailableMemory: (uint64(info.Freeram) + uint64(info.Bufferram)) * unit,
		Load1:           float64(info.Loads[0]) / loadScale,
		CPUs:            numCPU(),
	}

	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return snap, fmt.Errorf("statfs %s: %w", path, err)
	}
	snap.DiskTotal = uint64(st.Blocks) * uint64(st.Bsize)
	snap.DiskFree = uint64(st.Bavail) * uint64(st.Bsize)

	return snap, nil
}

// IsPrivileged reports whether the process runs with root privileges
func IsPrivileged() bool {
	return unix.Geteuid() == 0
}
