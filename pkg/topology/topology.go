package topology

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/mukan-bot/OpenStackBuilder/pkg/types"
)

// Request is the operator input for one host
type Request struct {
	Role string

	// Peer is the controller address, required for compute
	Peer string

	// PublicInterface optionally names the secondary interface for floating IPs
	PublicInterface string
}

// Resolver combines HostFacts and operator input into a ClusterTopology
type Resolver struct {
	Pinger Pinger
}

// NewResolver creates a resolver that probes peers with the given pinger
func NewResolver(p Pinger) *Resolver {
	return &Resolver{Pinger: p}
}

// Resolve validates the request and builds the topology. An unreachable peer
// is logged as a warning only: the controller may not be provisioned yet.
func (r *Resolver) Resolve(ctx context.Context, req Request, facts types.HostFacts) (types.ClusterTopology, error) {
	logger := log.WithComponent("topology")

	role, err := types.ParseRole(req.Role)
	if err != nil {
		return types.ClusterTopology{}, err
	}

	topo := types.ClusterTopology{Role: role, Self: facts}

	switch role {
	case types.RoleCompute:
		peer, err := parsePeer(req.Peer)
		if err != nil {
			return types.ClusterTopology{}, err
		}
		if facts.IP != nil && peer.Equal(facts.IP) {
			return types.ClusterTopology{}, types.Errorf(types.KindConfiguration, "resolve topology",
				"peer %s is this host's own address", peer)
		}
		topo.PeerIP = peer
		topo.PeerReachable = r.reachable(ctx, peer)
		if !topo.PeerReachable {
			logger.Warn().Str("peer", peer.String()).
				Msg("Controller is not reachable yet; continuing, services will connect once it is up")
		}
	case types.RoleController:
		if strings.TrimSpace(req.Peer) != "" {
			logger.Debug().Str("peer", req.Peer).Msg("Ignoring peer address for controller role")
		}
	}

	iface, err := selectPublicInterface(facts, req.PublicInterface)
	if err != nil {
		return types.ClusterTopology{}, err
	}
	topo.PublicInterface = iface

	logger.Info().
		Str("role", string(topo.Role)).
		Str("self", facts.IP.String()).
		Str("peer", ipOrEmpty(topo.PeerIP)).
		Bool("peer_reachable", topo.PeerReachable).
		Msg("Topology resolved")

	return topo, nil
}

func (r *Resolver) reachable(ctx context.Context, peer net.IP) bool {
	if r.Pinger == nil {
		return false
	}
	ok, err := r.Pinger.Reachable(ctx, peer)
	if err != nil {
		logger := log.WithComponent("topology")
		logger.Debug().Err(err).Str("peer", peer.String()).Msg("Reachability check failed")
		return false
	}
	return ok
}

func parsePeer(s string) (net.IP, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, types.NewError(types.KindConfiguration, "resolve topology",
			errors.New("compute role requires --peer (the controller address)"))
	}
	ip := net.ParseIP(s)
	if ip == nil || ip.To4() == nil {
		return nil, types.Errorf(types.KindConfiguration, "resolve topology",
			"peer %q is not a valid IPv4 address", s)
	}
	ip4 := ip.To4()
	if ip4.IsUnspecified() || ip4.IsLoopback() || ip4.Equal(net.IPv4bcast) {
		return nil, types.Errorf(types.KindConfiguration, "resolve topology",
			"peer %q is not a usable host address", s)
	}
	return ip4, nil
}

func selectPublicInterface(facts types.HostFacts, name string) (*types.InterfaceInfo, error) {
	if name != "" {
		for i := range facts.Secondary {
			if facts.Secondary[i].Name == name {
				iface := facts.Secondary[i]
				return &iface, nil
			}
		}
		return nil, types.Errorf(types.KindConfiguration, "resolve topology",
			"public interface %q is not an unused IPv4 interface on this host", name)
	}
	if len(facts.Secondary) == 0 {
		return nil, nil
	}
	iface := facts.Secondary[0]
	return &iface, nil
}

func ipOrEmpty(ip net.IP) string {
	if ip == nil {
		return ""
	}
	return ip.String()
}
