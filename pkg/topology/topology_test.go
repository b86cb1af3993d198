package topology

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	reachable bool
	err       error
	calls     int
}

func (f *fakePinger) Reachable(ctx context.Context, ip net.IP) (bool, error) {
	f.calls++
	return f.reachable, f.err
}

func testFacts() types.HostFacts {
	_, secondary, _ := net.ParseCIDR("192.168.1.0/24")
	return types.HostFacts{
		Interface: "eth0",
		IP:        net.ParseIP("10.0.0.20").To4(),
		Gateway:   net.ParseIP("10.0.0.1").To4(),
		Hostname:  "compute-1",
		Arch:      types.ArchX86_64,
		Virt:      types.VirtKVM,
		Secondary: []types.InterfaceInfo{
			{Name: "eth1", IP: net.ParseIP("192.168.1.50").To4(), Network: secondary},
		},
	}
}

func TestResolve_ComputeRequiresPeer(t *testing.T) {
	r := NewResolver(&fakePinger{reachable: true})

	tests := []struct {
		name string
		peer string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"hostname", "controller.local"},
		{"ipv6", "fd00::5"},
		{"partial", "10.0.0"},
		{"loopback", "127.0.0.1"},
		{"self", "10.0.0.20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), Request{Role: "compute", Peer: tt.peer}, testFacts())
			require.Error(t, err)
			assert.True(t, types.IsKind(err, types.KindConfiguration))
		})
	}
}

func TestResolve_UnknownRole(t *testing.T) {
	_, err := NewResolver(nil).Resolve(context.Background(), Request{Role: "storage"}, testFacts())
	assert.True(t, types.IsKind(err, types.KindConfiguration))
}

func TestResolve_UnreachablePeerIsWarningOnly(t *testing.T) {
	pinger := &fakePinger{reachable: false, err: errors.New("timeout")}
	topo, err := NewResolver(pinger).Resolve(context.Background(),
		Request{Role: "compute", Peer: "10.0.0.5"}, testFacts())

	require.NoError(t, err)
	assert.Equal(t, types.RoleCompute, topo.Role)
	assert.Equal(t, "10.0.0.5", topo.PeerIP.String())
	assert.False(t, topo.PeerReachable)
	assert.Equal(t, 1, pinger.calls)
	assert.Equal(t, "10.0.0.5", topo.ServiceHost().String())
}

func TestResolve_ControllerIgnoresPeer(t *testing.T) {
	pinger := &fakePinger{reachable: true}
	topo, err := NewResolver(pinger).Resolve(context.Background(),
		Request{Role: "controller", Peer: "10.0.0.5"}, testFacts())

	require.NoError(t, err)
	assert.Nil(t, topo.PeerIP)
	assert.Equal(t, 0, pinger.calls)
	assert.Equal(t, "10.0.0.20", topo.ServiceHost().String())
	require.NotNil(t, topo.PublicInterface)
	assert.Equal(t, "eth1", topo.PublicInterface.Name)
}

func TestResolve_PublicInterfaceOverride(t *testing.T) {
	r := NewResolver(nil)

	_, err := r.Resolve(context.Background(),
		Request{Role: "controller", PublicInterface: "eth9"}, testFacts())
	assert.True(t, types.IsKind(err, types.KindConfiguration))

	topo, err := r.Resolve(context.Background(),
		Request{Role: "controller", PublicInterface: "eth1"}, testFacts())
	require.NoError(t, err)
	assert.Equal(t, "eth1", topo.PublicInterface.Name)
}

func TestResolve_NoSecondaryInterface(t *testing.T) {
	facts := testFacts()
	facts.Secondary = nil

	topo, err := NewResolver(nil).Resolve(context.Background(), Request{Role: "controller"}, facts)
	require.NoError(t, err)
	assert.Nil(t, topo.PublicInterface)
}
