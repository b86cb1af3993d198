package network

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/mukan-bot/OpenStackBuilder/pkg/executor"
	"github.com/mukan-bot/OpenStackBuilder/pkg/log"
	"github.com/rs/zerolog"
)

// BridgeManager removes the bridges openvswitch created for the deployment
type BridgeManager struct {
	runner  executor.Runner
	bridges []string
	logger  zerolog.Logger

	// Exists reports whether a link is present; defaults to net.InterfaceByName
	Exists func(name string) bool
}

// NewBridgeManager creates a manager for the named bridges
func NewBridgeManager(runner executor.Runner, bridges []string) *BridgeManager {
	return &BridgeManager{
		runner:  runner,
		bridges: bridges,
		logger:  log.WithComponent("network"),
		Exists: func(name string) bool {
			_, err := net.InterfaceByName(name)
			return err == nil
		},
	}
}

// Present returns the managed bridges that still exist
func (m *BridgeManager) Present() []string {
	var out []string
	for _, b := range m.bridges {
		if m.Exists(b) {
			out = append(out, b)
		}
	}
	return out
}

// RemoveAll deletes every managed bridge still present. openvswitch is asked
// first; a link it does not know about is deleted with ip link.
func (m *BridgeManager) RemoveAll(ctx context.Context) error {
	var errs []error
	for _, b := range m.Present() {
		if err := m.remove(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *BridgeManager) remove(ctx context.Context, bridge string) error {
	m.logger.Info().Str("bridge", bridge).Msg("Removing bridge")

	// ovs-vsctl may already be purged; fall through to ip link
	if _, err := m.runner.Run(ctx, executor.Command{
		Name: "ovs-vsctl",
		Args: []string{"--if-exists", "del-br", bridge},
	}); err != nil {
		m.logger.Debug().Err(err).Str("bridge", bridge).Msg("ovs-vsctl could not remove bridge")
	}

	if !m.Exists(bridge) {
		return nil
	}

	if _, err := m.runner.Run(ctx, executor.Command{
		Name: "ip",
		Args: []string{"link", "delete", bridge},
	}); err != nil {
		return fmt.Errorf("failed to delete bridge %s: %w", bridge, err)
	}
	return nil
}
