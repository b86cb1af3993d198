package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"golang.org/x/sys/unix"
)

// KVMDevicePath is the hardware virtualization device node
const KVMDevicePath = "/dev/kvm"

// DefaultIgnorePrefixes are virtual interfaces never treated as secondary NICs
var DefaultIgnorePrefixes = []string{"lo", "br-", "virbr", "docker", "veth", "ovs-", "tap", "vxlan"}

// Interface is the subset of a network interface the prober needs
type Interface struct {
	Name     string
	Index    int
	Up       bool
	Loopback bool
	Addrs    []*net.IPNet
}

// Prober inspects the host. Every source is swappable for tests.
type Prober struct {
	Routes         func() ([]Route, error)
	Interfaces     func() ([]Interface, error)
	Machine        func() (string, error)
	Hostname       func() (string, error)
	DeviceExists   func(path string) bool
	KVMDevice      string
	IgnorePrefixes []string
}

// NewProber creates a prober reading the live host
func NewProber() *Prober {
	return &Prober{
		Routes:         ReadProcRoutes,
		Interfaces:     ListInterfaces,
		Machine:        unameMachine,
		Hostname:       os.Hostname,
		DeviceExists:   deviceExists,
		KVMDevice:      KVMDevicePath,
		IgnorePrefixes: DefaultIgnorePrefixes,
	}
}

// Probe captures HostFacts. It fails with an EnvironmentError when no default
// route exists or the default interface carries no IPv4 address.
func (p *Prober) Probe(ctx context.Context) (types.HostFacts, error) {
	logger := log.WithComponent("probe")

	if err := ctx.Err(); err != nil {
		return types.HostFacts{}, err
	}

	routes, err := p.Routes()
	if err != nil {
		return types.HostFacts{}, types.NewError(types.KindEnvironment, "read routes", err)
	}
	def, ok := DefaultRoute(routes)
	if !ok {
		return types.HostFacts{}, types.NewError(types.KindEnvironment, "default route",
			errors.New("no default route found"))
	}

	ifaces, err := p.Interfaces()
	if err != nil {
		return types.HostFacts{}, types.NewError(types.KindEnvironment, "list interfaces", err)
	}

	var primary *Interface
	for i := range ifaces {
		if ifaces[i].Name == def.Iface {
			primary = &ifaces[i]
			break
		}
	}
	if primary == nil {
		return types.HostFacts{}, types.Errorf(types.KindEnvironment, "default interface",
			"interface %s owning the default route not found", def.Iface)
	}
	ipnet := firstIPv4(primary.Addrs)
	if ipnet == nil {
		return types.HostFacts{}, types.Errorf(types.KindEnvironment, "default interface",
			"no IPv4 address bound to %s", def.Iface)
	}

	facts := types.HostFacts{
		Interface: def.Iface,
		IP:        ipnet.IP.To4(),
		Arch:      types.ArchOther,
		Virt:      types.VirtQEMU,
	}
	if !def.Gateway.Equal(net.IPv4zero) {
		facts.Gateway = def.Gateway.To4()
	}

	if host, err := p.Hostname(); err == nil {
		facts.Hostname = host
	} else {
		logger.Warn().Err(err).Msg("Failed to read hostname")
	}

	if machine, err := p.Machine(); err == nil {
		facts.Arch = types.ParseArch(machine)
	} else {
		logger.Warn().Err(err).Msg("Failed to read CPU architecture")
	}

	if p.DeviceExists(p.KVMDevice) {
		facts.Virt = types.VirtKVM
	}

	facts.Secondary = p.secondary(ifaces, def.Iface)

	logger.Info().
		Str("interface", facts.Interface).
		Str("ip", facts.IP.String()).
		Str("gateway", ipString(facts.Gateway)).
		Str("arch", string(facts.Arch)).
		Str("virt", string(facts.Virt)).
		Int("secondary", len(facts.Secondary)).
		Msg("Host facts captured")

	return facts, nil
}

func (p *Prober) secondary(ifaces []Interface, primary string) []types.InterfaceInfo {
	var out []types.InterfaceInfo
	for _, iface := range ifaces {
		if iface.Name == primary || iface.Loopback || !iface.Up || p.ignored(iface.Name) {
			continue
		}
		ipnet := firstIPv4(iface.Addrs)
		if ipnet == nil {
			continue
		}
		network := &net.IPNet{IP: ipnet.IP.Mask(ipnet.Mask).To4(), Mask: ipnet.Mask}
		out = append(out, types.InterfaceInfo{
			Name:    iface.Name,
			IP:      ipnet.IP.To4(),
			Network: network,
		})
	}
	return out
}

func (p *Prober) ignored(name string) bool {
	for _, prefix := range p.IgnorePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// ListInterfaces reads interfaces and their addresses in kernel index order
func ListInterfaces() ([]Interface, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	out := make([]Interface, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, fmt.Errorf("addresses of %s: %w", iface.Name, err)
		}
		entry := Interface{
			Name:     iface.Name,
			Index:    iface.Index,
			Up:       iface.Flags&net.FlagUp != 0,
			Loopback: iface.Flags&net.FlagLoopback != 0,
		}
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok {
				entry.Addrs = append(entry.Addrs, ipnet)
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func firstIPv4(addrs []*net.IPNet) *net.IPNet {
	for _, a := range addrs {
		if a != nil && a.IP.To4() != nil {
			return a
		}
	}
	return nil
}

func unameMachine() (string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", err
	}
	return unix.ByteSliceToString(u.Machine[:]), nil
}

func deviceExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func ipString(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
