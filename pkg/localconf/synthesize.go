package localconf

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
)

const (
	DefaultFixedRange    = "10.11.12.0/24"
	DefaultFloatingRange = "172.24.4.0/24"
	DefaultPoolSize      = 32
	DefaultDest          = "/opt/stack"
	DefaultLogDir        = "/opt/stack/logs"
)

// PasswordKeys all carry the same operator-supplied password
var PasswordKeys = []string{
	"ADMIN_PASSWORD",
	"DATABASE_PASSWORD",
	"RABBIT_PASSWORD",
	"SERVICE_PASSWORD",
}

// ServiceLocatorKeys point a compute node at its controller
var ServiceLocatorKeys = []string{
	"SERVICE_HOST",
	"MYSQL_HOST",
	"RABBIT_HOST",
	"Q_HOST",
	"KEYSTONE_SERVICE_HOST",
}

// OVNServices are disabled on both roles so that openvswitch is the only backend
var OVNServices = []string{
	"ovn-northd",
	"ovn-controller",
	"q-ovn-metadata-agent",
}

// ControllerServices run on the controller, in enable order
var ControllerServices = []string{
	"key",
	"mysql",
	"rabbit",
	"g-api",
	"n-api",
	"n-cond",
	"n-sch",
	"n-novnc",
	"placement-api",
	"q-svc",
	"q-agt",
	"q-dhcp",
	"q-l3",
	"q-meta",
	"c-api",
	"c-sch",
	"c-vol",
	"horizon",
}

// ComputeServices run on a compute node, in enable order
var ComputeServices = []string{
	"n-cpu",
	"q-agt",
	"placement-client",
}

// Params are the inputs besides topology
type Params struct {
	Password      string
	PoolSize      int
	FixedRange    string
	FloatingRange string
	Dest          string
	LogDir        string
}

// Synthesizer builds role documents. It has no side effects besides logging.
type Synthesizer struct {
	params Params
}

// NewSynthesizer fills unset params with defaults
func NewSynthesizer(p Params) *Synthesizer {
	if p.PoolSize <= 0 {
		p.PoolSize = DefaultPoolSize
	}
	if p.FixedRange == "" {
		p.FixedRange = DefaultFixedRange
	}
	if p.FloatingRange == "" {
		p.FloatingRange = DefaultFloatingRange
	}
	if p.Dest == "" {
		p.Dest = DefaultDest
	}
	if p.LogDir == "" {
		p.LogDir = DefaultLogDir
	}
	return &Synthesizer{params: p}
}

// Synthesize produces the document for topo. Identical input yields a
// byte-identical rendering.
func (s *Synthesizer) Synthesize(topo types.ClusterTopology) (*Document, error) {
	if err := s.validate(topo); err != nil {
		return nil, err
	}

	doc := NewDocument()
	s.common(doc, topo)

	switch topo.Role {
	case types.RoleController:
		s.controller(doc, topo)
	case types.RoleCompute:
		s.compute(doc, topo)
	}

	return doc, nil
}

func (s *Synthesizer) validate(topo types.ClusterTopology) error {
	const op = "synthesize config"
	if s.params.Password == "" {
		return types.NewError(types.KindConfiguration, op, errors.New("password must not be empty"))
	}
	if topo.Self.IP == nil || topo.Self.IP.To4() == nil {
		return types.NewError(types.KindConfiguration, op, errors.New("host has no IPv4 address"))
	}
	switch topo.Role {
	case types.RoleController:
	case types.RoleCompute:
		if topo.PeerIP == nil || topo.PeerIP.To4() == nil {
			return types.NewError(types.KindConfiguration, op, errors.New("compute role requires a controller address"))
		}
		if topo.PeerIP.Equal(topo.Self.IP) {
			return types.Errorf(types.KindConfiguration, op, "controller address %s is this host", topo.PeerIP)
		}
	default:
		return types.Errorf(types.KindConfiguration, op, "unknown role %q", topo.Role)
	}
	return nil
}

func (s *Synthesizer) common(doc *Document, topo types.ClusterTopology) {
	doc.Set("HOST_IP", topo.Self.IP.String())
	doc.Set("DEST", s.params.Dest)
	doc.Set("MULTI_HOST", "True")
	for _, k := range PasswordKeys {
		doc.SetSecret(k, s.params.Password)
	}
	doc.Set("LOGFILE", filepath.Join(s.params.LogDir, "stack.sh.log"))
	doc.Set("LOGDAYS", "2")
	doc.Set("LOG_COLOR", "False")
	doc.Set("LIBVIRT_TYPE", string(virtOrDefault(topo.Self.Virt)))
	doc.Set("Q_AGENT", "openvswitch")
	doc.Set("Q_ML2_PLUGIN_MECHANISM_DRIVERS", "openvswitch,l2population")
	doc.Set("Q_ML2_TENANT_NETWORK_TYPE", "vxlan")
}

func (s *Synthesizer) controller(doc *Document, topo types.ClusterTopology) {
	self := topo.Self.IP.String()
	doc.Set("SERVICE_HOST", self)
	doc.Set("FIXED_RANGE", s.params.FixedRange)

	floating, pool, gateway := s.floating(topo)
	doc.Set("FLOATING_RANGE", floating)
	if pool != "" {
		doc.Set("Q_FLOATING_ALLOCATION_POOL", pool)
	}
	if gateway != "" {
		doc.Set("PUBLIC_NETWORK_GATEWAY", gateway)
	}
	if topo.PublicInterface != nil {
		doc.Set("PUBLIC_INTERFACE", topo.PublicInterface.Name)
	}

	doc.Disable(OVNServices...)
	doc.Enable(ControllerServices...)
}

func (s *Synthesizer) compute(doc *Document, topo types.ClusterTopology) {
	peer := topo.PeerIP.String()
	self := topo.Self.IP.String()

	for _, k := range ServiceLocatorKeys {
		doc.Set(k, peer)
	}
	doc.Set("GLANCE_HOSTPORT", net.JoinHostPort(peer, "9292"))
	doc.Set("NOVNCPROXY_URL", fmt.Sprintf("http://%s:6080/vnc_lite.html", peer))
	doc.Set("VNCSERVER_LISTEN", self)
	doc.Set("VNCSERVER_PROXYCLIENT_ADDRESS", self)
	doc.Set("ENABLED_SERVICES", strings.Join(ComputeServices, ","))

	doc.Disable(OVNServices...)
	doc.Disable(ControllerServices...)
	doc.Enable(ComputeServices...)
}

// floating returns FLOATING_RANGE, the allocation pool and the public gateway.
// Any failure on the secondary interface falls back to the default range.
func (s *Synthesizer) floating(topo types.ClusterTopology) (string, string, string) {
	logger := log.WithComponent("localconf")

	if iface := topo.PublicInterface; iface != nil && iface.Network != nil {
		gateway := secondaryGateway(topo)
		pool, err := FloatingPool(iface.Network, s.params.PoolSize, iface.IP, gateway)
		if err == nil {
			if pool.Size < s.params.PoolSize {
				logger.Warn().Int("requested", s.params.PoolSize).Int("size", pool.Size).
					Str("network", iface.CIDR()).Msg("Floating pool shrunk to the free addresses available")
			}
			return iface.CIDR(), pool.String(), gateway.String()
		}
		logger.Warn().Err(err).Str("interface", iface.Name).
			Str("fallback", s.params.FloatingRange).
			Msg("Could not derive floating range from secondary interface, using default")
	}

	_, network, err := net.ParseCIDR(s.params.FloatingRange)
	if err != nil {
		logger.Warn().Err(err).Str("range", s.params.FloatingRange).Msg("Invalid floating range")
		return s.params.FloatingRange, "", ""
	}
	gateway, err := FirstHost(network)
	if err != nil {
		return network.String(), "", ""
	}
	pool, err := FloatingPool(network, s.params.PoolSize, gateway)
	if err != nil {
		return network.String(), "", gateway.String()
	}
	return network.String(), pool.String(), gateway.String()
}

// secondaryGateway uses the default gateway when it sits on the public
// network, else the first host of that network.
func secondaryGateway(topo types.ClusterTopology) net.IP {
	iface := topo.PublicInterface
	if gw := topo.Self.Gateway; gw != nil && iface.Network.Contains(gw) {
		return gw.To4()
	}
	gw, err := FirstHost(iface.Network)
	if err != nil {
		return nil
	}
	return gw
}

func virtOrDefault(v types.Virt) types.Virt {
	if v == "" {
		return types.VirtQEMU
	}
	return v
}
