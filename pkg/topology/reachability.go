package topology

import (
	"context"
	"fmt"
	"net"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Pinger answers whether an address responds within a bounded time
type Pinger interface {
	Reachable(ctx context.Context, ip net.IP) (bool, error)
}

// ICMPPinger sends a fixed number of echo requests with pro-bing
type ICMPPinger struct {
	Attempts int
	Interval time.Duration
	Timeout  time.Duration
}

// NewICMPPinger creates a pinger with 3 attempts bounded by timeout
func NewICMPPinger(timeout time.Duration) *ICMPPinger {
	return &ICMPPinger{
		Attempts: 3,
		Interval: time.Second,
		Timeout:  timeout,
	}
}

// Reachable tries an unprivileged UDP ping first and falls back to raw ICMP
func (p *ICMPPinger) Reachable(ctx context.Context, ip net.IP) (bool, error) {
	recv, err := p.run(ctx, ip, false)
	if err != nil {
		recv, err = p.run(ctx, ip, true)
	}
	if err != nil {
		return false, err
	}
	return recv > 0, nil
}

func (p *ICMPPinger) run(ctx context.Context, ip net.IP, privileged bool) (int, error) {
	pinger, err := probing.NewPinger(ip.String())
	if err != nil {
		return 0, fmt.Errorf("failed to create pinger: %w", err)
	}
	pinger.SetPrivileged(privileged)
	pinger.Count = p.Attempts
	pinger.Interval = p.Interval
	pinger.Timeout = p.Timeout

	if err := pinger.RunWithContext(ctx); err != nil {
		return 0, fmt.Errorf("ping %s: %w", ip, err)
	}
	return pinger.Statistics().PacketsRecv, nil
}
