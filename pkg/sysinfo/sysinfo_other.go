//go:build !linux

package sysinfo

import (
	"errors"
	"os"
)

// Read is only implemented on Linux hosts
func Read(path string) (Snapshot, error) {
	return Snapshot{CPUs: numCPU()}, errors.New("sysinfo is only supported on linux")
}

// IsPrivileged reports whether the process runs with root privileges
func IsPrivileged() bool {
	return os.Geteuid() == 0
}
