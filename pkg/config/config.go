package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mukan-bot/OpenStackBuilder/pkg/localconf"
	"github.com/mukan-bot/OpenStackBuilder/pkg/sysinfo"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when --config is not given
const DefaultPath = "/etc/osb/osb.yaml"

// Config holds host-level settings. Flags override individual fields.
type Config struct {
	Paths      Paths      `yaml:"paths"`
	DevStack   DevStack   `yaml:"devstack"`
	Network    Network    `yaml:"network"`
	Thresholds Thresholds `yaml:"thresholds"`
	Timeouts   Timeouts   `yaml:"timeouts"`
	Cleanup    Cleanup    `yaml:"cleanup"`
	Metrics    Metrics    `yaml:"metrics"`
}

// Paths are the directories osb owns
type Paths struct {
	// StateDir holds the completion marker and run history; removed by cleanup
	StateDir string `yaml:"state_dir"`

	// BackupDir keeps previous local.conf copies; never removed
	BackupDir string `yaml:"backup_dir"`

	LogDir string `yaml:"log_dir"`
}

// DevStack locates the installer checkout and its managed account
type DevStack struct {
	User   string `yaml:"user"`
	Home   string `yaml:"home"`
	Repo   string `yaml:"repo"`
	Branch string `yaml:"branch"`
	LogDir string `yaml:"log_dir"`
}

// Dir is the installer checkout
func (d DevStack) Dir() string {
	return filepath.Join(d.Home, "devstack")
}

// LocalConf is where the generated document is written
func (d DevStack) LocalConf() string {
	return filepath.Join(d.Dir(), "local.conf")
}

// Network feeds the configuration synthesizer and bridge cleanup
type Network struct {
	FixedRange    string   `yaml:"fixed_range"`
	FloatingRange string   `yaml:"floating_range"`
	PoolSize      int      `yaml:"pool_size"`
	Bridges       []string `yaml:"bridges"`
}

// RoleThresholds are minimum resources for one role, in GiB
type RoleThresholds struct {
	MemoryGiB uint64 `yaml:"memory_gib"`
	DiskGiB   uint64 `yaml:"disk_gib"`
}

// Thresholds drive prerequisite warnings and the resources health probe
type Thresholds struct {
	Controller    RoleThresholds `yaml:"controller"`
	Compute       RoleThresholds `yaml:"compute"`
	MaxLoadPerCPU float64        `yaml:"max_load_per_cpu"`
}

// For converts the role's minimums into byte thresholds
func (t Thresholds) For(role types.Role) sysinfo.Thresholds {
	r := t.Compute
	if role == types.RoleController {
		r = t.Controller
	}
	return sysinfo.Thresholds{
		MinMemory:     r.MemoryGiB * sysinfo.GiB,
		MinDisk:       r.DiskGiB * sysinfo.GiB,
		MaxLoadPerCPU: t.MaxLoadPerCPU,
	}
}

// Timeouts bound network probes and shutdown. The installer itself has none.
type Timeouts struct {
	Ping  time.Duration `yaml:"ping"`
	Probe time.Duration `yaml:"probe"`
	Stop  time.Duration `yaml:"stop"`
}

// Cleanup lists what the destructive cleanup steps remove
type Cleanup struct {
	Packages []string `yaml:"packages"`
	Caches   []string `yaml:"caches"`
	LogDirs  []string `yaml:"log_dirs"`
}

// Metrics configures the node-exporter textfile output; empty disables it
type Metrics struct {
	TextfileDir string `yaml:"textfile_dir"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Paths: Paths{
			StateDir:  "/var/lib/osb",
			BackupDir: "/var/backups/osb",
			LogDir:    "/var/log/osb",
		},
		DevStack: DevStack{
			User:   "stack",
			Home:   "/opt/stack",
			Repo:   "https://opendev.org/openstack/devstack",
			Branch: "master",
			LogDir: localconf.DefaultLogDir,
		},
		Network: Network{
			FixedRange:    localconf.DefaultFixedRange,
			FloatingRange: localconf.DefaultFloatingRange,
			PoolSize:      localconf.DefaultPoolSize,
			Bridges:       []string{"br-ex", "br-int", "br-tun"},
		},
		Thresholds: Thresholds{
			Controller:    RoleThresholds{MemoryGiB: 8, DiskGiB: 40},
			Compute:       RoleThresholds{MemoryGiB: 4, DiskGiB: 20},
			MaxLoadPerCPU: 2.0,
		},
		Timeouts: Timeouts{
			Ping:  6 * time.Second,
			Probe: 10 * time.Second,
			Stop:  2 * time.Minute,
		},
		Cleanup: Cleanup{
			Packages: []string{
				"rabbitmq-server",
				"mysql-server",
				"mariadb-server",
				"openvswitch-switch",
				"apache2",
				"memcached",
				"etcd-server",
			},
			Caches: []string{
				"/root/.cache/pip",
				"/var/cache/pip",
			},
			LogDirs: []string{
				localconf.DefaultLogDir,
			},
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, types.NewError(types.KindConfiguration, "load settings", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, types.NewError(types.KindConfiguration, "load settings",
			fmt.Errorf("failed to parse %s: %w", path, err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would make a run misbehave
func (c *Config) Validate() error {
	var problems []error

	for name, p := range map[string]string{
		"paths.state_dir":  c.Paths.StateDir,
		"paths.backup_dir": c.Paths.BackupDir,
		"paths.log_dir":    c.Paths.LogDir,
		"devstack.home":    c.DevStack.Home,
	} {
		if p == "" || !filepath.IsAbs(p) {
			problems = append(problems, fmt.Errorf("%s must be an absolute path, got %q", name, p))
		}
	}
	if c.DevStack.User == "" || c.DevStack.User == "root" {
		problems = append(problems, fmt.Errorf("devstack.user must be a non-root account"))
	}
	if c.DevStack.Repo == "" || c.DevStack.Branch == "" {
		problems = append(problems, fmt.Errorf("devstack.repo and devstack.branch are required"))
	}
	if c.Network.PoolSize <= 0 {
		problems = append(problems, fmt.Errorf("network.pool_size must be positive"))
	}
	if c.Timeouts.Ping <= 0 || c.Timeouts.Probe <= 0 {
		problems = append(problems, fmt.Errorf("timeouts.ping and timeouts.probe must be positive"))
	}

	if len(problems) == 0 {
		return nil
	}
	return types.NewError(types.KindConfiguration, "validate settings", errors.Join(problems...))
}
