package types

import (
	"fmt"
	"net"
	"strings"
	"time"
)

// Role defines which half of the deployment a host carries
type Role string

const (
	RoleController Role = "controller"
	RoleCompute    Role = "compute"
)

// ParseRole converts a user supplied role name into a Role
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleController:
		return RoleController, nil
	case RoleCompute:
		return RoleCompute, nil
	default:
		return "", NewError(KindConfiguration, "parse role",
			fmt.Errorf("unknown role %q (want controller or compute)", s))
	}
}

// Arch is the normalized CPU architecture of a host
type Arch string

const (
	ArchX86_64 Arch = "x86_64"
	ArchARM64  Arch = "arm64"
	ArchOther  Arch = "other"
)

// ParseArch normalizes a uname machine string
func ParseArch(machine string) Arch {
	switch strings.TrimSpace(machine) {
	case "x86_64", "amd64":
		return ArchX86_64
	case "aarch64", "arm64":
		return ArchARM64
	default:
		return ArchOther
	}
}

// Virt is the hypervisor flavour libvirt will use
type Virt string

const (
	VirtKVM  Virt = "kvm"
	VirtQEMU Virt = "qemu"
)

// InterfaceInfo describes an IPv4 interface other than the default-route one
type InterfaceInfo struct {
	Name    string
	IP      net.IP
	Network *net.IPNet
}

// CIDR returns the interface network in CIDR notation
func (i InterfaceInfo) CIDR() string {
	if i.Network == nil {
		return ""
	}
	return i.Network.String()
}

// HostFacts is captured once per run and never cached across runs
type HostFacts struct {
	Interface string
	IP        net.IP
	Gateway   net.IP
	Hostname  string
	Arch      Arch
	Virt      Virt

	// Secondary lists other IPv4 interfaces in kernel index order
	Secondary []InterfaceInfo
}

// ClusterTopology binds a role to this host and, for compute, its controller
type ClusterTopology struct {
	Role Role
	Self HostFacts

	// PeerIP is the controller address; nil for the controller role
	PeerIP net.IP

	// PeerReachable is the outcome of the best-effort reachability probe
	PeerReachable bool

	// PublicInterface is the secondary interface backing the floating range
	PublicInterface *InterfaceInfo
}

// ServiceHost returns the address every service locator should point at
func (t ClusterTopology) ServiceHost() net.IP {
	if t.Role == RoleCompute {
		return t.PeerIP
	}
	return t.Self.IP
}

// InstallState is the lifecycle state of the deployment on this host
type InstallState string

const (
	StateAbsent     InstallState = "absent"
	StateInstalling InstallState = "installing"
	StateRunning    InstallState = "running"
	StateFailed     InstallState = "failed"
	StateCleaning   InstallState = "cleaning"
)

// CanTransition reports whether the state machine allows from -> to
func CanTransition(from, to InstallState) bool {
	switch from {
	case StateAbsent:
		return to == StateInstalling || to == StateCleaning
	case StateInstalling:
		return to == StateRunning || to == StateFailed || to == StateCleaning
	case StateRunning, StateFailed:
		return to == StateCleaning
	case StateCleaning:
		return to == StateAbsent
	}
	return false
}

// HealthCategory names a subsystem surface probed by the health verifier
type HealthCategory string

const (
	CategoryIdentity  HealthCategory = "identity"
	CategoryCompute   HealthCategory = "compute"
	CategoryImage     HealthCategory = "image"
	CategoryNetwork   HealthCategory = "network"
	CategoryStorage   HealthCategory = "storage"
	CategoryResources HealthCategory = "resources"
	CategoryLogs      HealthCategory = "logs"
)

// HealthCategories is the fixed report order
var HealthCategories = []HealthCategory{
	CategoryIdentity,
	CategoryCompute,
	CategoryImage,
	CategoryNetwork,
	CategoryStorage,
	CategoryResources,
	CategoryLogs,
}

// HealthStatus classifies one category probe
type HealthStatus string

const (
	HealthOK      HealthStatus = "ok"
	HealthWarning HealthStatus = "warning"
	HealthError   HealthStatus = "error"
)

// HealthEntry is one line of a HealthReport
type HealthEntry struct {
	Category HealthCategory `json:"category"`
	Status   HealthStatus   `json:"status"`
	Detail   string         `json:"detail"`
}

// HealthReport is produced fresh by every health check and never persisted
type HealthReport struct {
	Role      Role          `json:"role"`
	CheckedAt time.Time     `json:"checked_at"`
	Entries   []HealthEntry `json:"entries"`
	Findings  []string      `json:"findings,omitempty"`
}

// Overall returns the worst status across entries; findings count as errors
func (r HealthReport) Overall() HealthStatus {
	if len(r.Findings) > 0 {
		return HealthError
	}
	status := HealthOK
	for _, e := range r.Entries {
		switch e.Status {
		case HealthError:
			return HealthError
		case HealthWarning:
			status = HealthWarning
		}
	}
	return status
}

// RunRecord is one lifecycle invocation as kept in the run history
type RunRecord struct {
	ID         string       `json:"id"`
	Role       Role         `json:"role"`
	HostIP     string       `json:"host_ip"`
	State      InstallState `json:"state"`
	Error      string       `json:"error,omitempty"`
	Backup     string       `json:"backup,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitempty"`
}
