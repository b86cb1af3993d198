// Package sysinfo reads host resource figures used by prerequisite checks and
// the resources health category.
package sysinfo

import (
	"fmt"
	"runtime"
)

// GiB is 1024^3 bytes
const GiB = 1 << 30

// Snapshot is a point-in-time view of host resources
type Snapshot struct {
	TotalMemory     uint64
	AvailableMemory uint64
	DiskTotal       uint64
	DiskFree        uint64
	Load1           float64
	CPUs            int
}

// Reader produces a Snapshot for the filesystem holding path
type Reader func(path string) (Snapshot, error)

// Thresholds are the documented minimums for a role
type Thresholds struct {
	MinMemory uint64
	MinDisk   uint64

	// MaxLoadPerCPU is compared against Load1 / CPUs
	MaxLoadPerCPU float64
}

// Violations lists every threshold the snapshot falls short of
func (s Snapshot) Violations(t Thresholds) []string {
	var out []string
	if t.MinMemory > 0 && s.TotalMemory < t.MinMemory {
		out = append(out, fmt.Sprintf("memory %.1f GiB below minimum %.1f GiB",
			float64(s.TotalMemory)/GiB, float64(t.MinMemory)/GiB))
	}
	if t.MinDisk > 0 && s.DiskFree < t.MinDisk {
		out = append(out, fmt.Sprintf("free disk %.1f GiB below minimum %.1f GiB",
			float64(s.DiskFree)/GiB, float64(t.MinDisk)/GiB))
	}
	if t.MaxLoadPerCPU > 0 && s.CPUs > 0 {
		perCPU := s.Load1 / float64(s.CPUs)
		if perCPU > t.MaxLoadPerCPU {
			out = append(out, fmt.Sprintf("load %.2f per CPU above %.2f", perCPU, t.MaxLoadPerCPU))
		}
	}
	return out
}

func numCPU() int {
	return runtime.NumCPU()
}
