package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/sysinfo"
)

// ResourceChecker compares host memory, disk and load with thresholds
type ResourceChecker struct {
	// Path selects the filesystem whose free space is checked
	Path       string
	Thresholds sysinfo.Thresholds
	Read       sysinfo.Reader
}

// NewResourceChecker creates a checker reading live host figures
func NewResourceChecker(path string, t sysinfo.Thresholds) *ResourceChecker {
	return &ResourceChecker{Path: path, Thresholds: t, Read: sysinfo.Read}
}

// Check reads a snapshot and reports every threshold breach
func (r *ResourceChecker) Check(ctx context.Context) Result {
	start := time.Now()

	snap, err := r.Read(r.Path)
	if err != nil {
		return result(start, false, "failed to read host resources: %v", err)
	}

	if v := snap.Violations(r.Thresholds); len(v) > 0 {
		return result(start, false, "%s", strings.Join(v, "; "))
	}

	return result(start, true, "%s", fmt.Sprintf("memory %.1f GiB, free disk %.1f GiB, load %.2f on %d CPUs",
		float64(snap.TotalMemory)/sysinfo.GiB, float64(snap.DiskFree)/sysinfo.GiB, snap.Load1, snap.CPUs))
}

// Type returns the health check type
func (r *ResourceChecker) Type() CheckType {
	return CheckTypeResources
}
