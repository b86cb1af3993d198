package localconf

import (
	"bytes"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func controllerTopology(t *testing.T) types.ClusterTopology {
	return types.ClusterTopology{
		Role: types.RoleController,
		Self: types.HostFacts{
			Interface: "eth0",
			IP:        net.ParseIP("10.0.0.5").To4(),
			Gateway:   net.ParseIP("10.0.0.1").To4(),
			Hostname:  "controller",
			Arch:      types.ArchX86_64,
			Virt:      types.VirtKVM,
		},
		PublicInterface: &types.InterfaceInfo{
			Name:    "eth1",
			IP:      net.ParseIP("192.168.1.50").To4(),
			Network: mustCIDR(t, "192.168.1.0/24"),
		},
	}
}

func computeTopology() types.ClusterTopology {
	return types.ClusterTopology{
		Role: types.RoleCompute,
		Self: types.HostFacts{
			Interface: "eth0",
			IP:        net.ParseIP("10.0.0.20").To4(),
			Gateway:   net.ParseIP("10.0.0.1").To4(),
			Hostname:  "compute-1",
			Arch:      types.ArchARM64,
			Virt:      types.VirtQEMU,
		},
		PeerIP: net.ParseIP("10.0.0.5").To4(),
	}
}

func get(t *testing.T, doc *Document, key string) string {
	t.Helper()
	v, ok := doc.Get(key)
	require.True(t, ok, "missing %s", key)
	return v
}

func TestSynthesize_Controller(t *testing.T) {
	doc, err := NewSynthesizer(Params{Password: "pw"}).Synthesize(controllerTopology(t))
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.5", get(t, doc, "HOST_IP"))
	assert.Equal(t, "10.0.0.5", get(t, doc, "SERVICE_HOST"))
	assert.Equal(t, "kvm", get(t, doc, "LIBVIRT_TYPE"))
	assert.Equal(t, DefaultFixedRange, get(t, doc, "FIXED_RANGE"))
	assert.Equal(t, "192.168.1.0/24", get(t, doc, "FLOATING_RANGE"))
	assert.Equal(t, "start=192.168.1.223,end=192.168.1.254", get(t, doc, "Q_FLOATING_ALLOCATION_POOL"))
	assert.Equal(t, "192.168.1.1", get(t, doc, "PUBLIC_NETWORK_GATEWAY"))
	assert.Equal(t, "eth1", get(t, doc, "PUBLIC_INTERFACE"))

	for _, svc := range OVNServices {
		enabled, toggled := doc.Enabled(svc)
		assert.True(t, toggled, svc)
		assert.False(t, enabled, svc)
	}
	for _, svc := range ControllerServices {
		enabled, _ := doc.Enabled(svc)
		assert.True(t, enabled, svc)
	}
	_, toggled := doc.Enabled("n-cpu")
	assert.False(t, toggled)
}

func TestSynthesize_ControllerWithoutSecondaryFallsBack(t *testing.T) {
	topo := controllerTopology(t)
	topo.PublicInterface = nil

	doc, err := NewSynthesizer(Params{Password: "pw"}).Synthesize(topo)
	require.NoError(t, err)

	assert.Equal(t, DefaultFloatingRange, get(t, doc, "FLOATING_RANGE"))
	assert.Equal(t, "start=172.24.4.223,end=172.24.4.254", get(t, doc, "Q_FLOATING_ALLOCATION_POOL"))
	assert.Equal(t, "172.24.4.1", get(t, doc, "PUBLIC_NETWORK_GATEWAY"))
	_, ok := doc.Get("PUBLIC_INTERFACE")
	assert.False(t, ok)
}

func TestSynthesize_ControllerUnusableSecondaryFallsBack(t *testing.T) {
	topo := controllerTopology(t)
	topo.PublicInterface.Network = mustCIDR(t, "192.168.1.0/31")
	topo.PublicInterface.IP = net.ParseIP("192.168.1.0").To4()

	doc, err := NewSynthesizer(Params{Password: "pw"}).Synthesize(topo)
	require.NoError(t, err)
	assert.Equal(t, DefaultFloatingRange, get(t, doc, "FLOATING_RANGE"))
}

func TestSynthesize_ComputePointsAtPeer(t *testing.T) {
	doc, err := NewSynthesizer(Params{Password: "pw"}).Synthesize(computeTopology())
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.20", get(t, doc, "HOST_IP"))
	for _, k := range ServiceLocatorKeys {
		assert.Equal(t, "10.0.0.5", get(t, doc, k), k)
	}
	assert.Equal(t, "10.0.0.5:9292", get(t, doc, "GLANCE_HOSTPORT"))
	assert.Equal(t, "http://10.0.0.5:6080/vnc_lite.html", get(t, doc, "NOVNCPROXY_URL"))
	assert.Equal(t, "10.0.0.20", get(t, doc, "VNCSERVER_PROXYCLIENT_ADDRESS"))
	assert.Equal(t, "qemu", get(t, doc, "LIBVIRT_TYPE"))
	assert.Equal(t, "n-cpu,q-agt,placement-client", get(t, doc, "ENABLED_SERVICES"))

	for _, svc := range ControllerServices {
		enabled, toggled := doc.Enabled(svc)
		assert.True(t, toggled, svc)
		assert.Equal(t, svc == "q-agt", enabled, svc)
	}
	for _, svc := range ComputeServices {
		enabled, _ := doc.Enabled(svc)
		assert.True(t, enabled, svc)
	}

	toggles := doc.Toggles()
	last := toggles[len(toggles)-len(ComputeServices):]
	for i, svc := range ComputeServices {
		assert.Equal(t, Toggle{Service: svc, Enabled: true}, last[i])
	}

	_, ok := doc.Get("FLOATING_RANGE")
	assert.False(t, ok)
}

func TestSynthesize_PasswordsConsistentAcrossRoles(t *testing.T) {
	s := NewSynthesizer(Params{Password: "Sup3r$ecret"})
	controller, err := s.Synthesize(controllerTopology(t))
	require.NoError(t, err)
	compute, err := s.Synthesize(computeTopology())
	require.NoError(t, err)

	for _, k := range PasswordKeys {
		assert.Equal(t, "Sup3r$ecret", get(t, controller, k), k)
		assert.Equal(t, get(t, controller, k), get(t, compute, k), k)
	}
	assert.Equal(t, []string{"Sup3r$ecret"}, controller.Secrets())
	assert.NotContains(t, controller.Redacted(), "Sup3r$ecret")
}

func TestSynthesize_Validation(t *testing.T) {
	tests := []struct {
		name     string
		password string
		mutate   func(*types.ClusterTopology)
	}{
		{"empty password", "", func(*types.ClusterTopology) {}},
		{"compute without peer", "pw", func(tp *types.ClusterTopology) { tp.PeerIP = nil }},
		{"compute peer is self", "pw", func(tp *types.ClusterTopology) { tp.PeerIP = tp.Self.IP }},
		{"no host address", "pw", func(tp *types.ClusterTopology) { tp.Self.IP = nil }},
		{"unknown role", "pw", func(tp *types.ClusterTopology) { tp.Role = "storage" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topo := computeTopology()
			tt.mutate(&topo)
			_, err := NewSynthesizer(Params{Password: tt.password}).Synthesize(topo)
			assert.True(t, types.IsKind(err, types.KindConfiguration), "got %v", err)
		})
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("identical topology renders byte-identical documents", prop.ForAll(
		func(self, peer, prefix uint8, password string, compute bool) bool {
			selfIP := net.IPv4(10, 0, 0, self%250+1).To4()
			peerIP := net.IPv4(10, 0, 1, peer%250+1).To4()
			bits := int(prefix%9) + 22

			_, network, err := net.ParseCIDR(fmt.Sprintf("192.168.%d.0/%d", peer, bits))
			if err != nil {
				return false
			}

			topo := types.ClusterTopology{
				Role: types.RoleController,
				Self: types.HostFacts{Interface: "eth0", IP: selfIP, Virt: types.VirtKVM},
				PublicInterface: &types.InterfaceInfo{
					Name:    "eth1",
					IP:      net.IPv4(192, 168, peer, self).To4(),
					Network: network,
				},
			}
			if compute {
				topo.Role = types.RoleCompute
				topo.PeerIP = peerIP
				topo.PublicInterface = nil
			}

			s := NewSynthesizer(Params{Password: password})
			first, err1 := s.Synthesize(topo)
			second, err2 := s.Synthesize(topo)
			if err1 != nil || err2 != nil {
				return password == "" && err1 != nil && err2 != nil
			}
			return bytes.Equal(first.Render(), second.Render()) &&
				!strings.Contains(first.Redacted(), "PASSWORD="+password+"\n")
		},
		gen.UInt8(),
		gen.UInt8(),
		gen.UInt8(),
		gen.AlphaString(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
