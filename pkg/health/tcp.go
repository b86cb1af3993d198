package health

import (
	"context"
	"net"
	"time"
)

// TCPChecker passes when Service accepts a connection on Address. Compute
// hosts use it for controller endpoints that have no HTTP surface.
type TCPChecker struct {
	Service string
	Address string
	Timeout time.Duration
}

// NewTCPChecker dials host:port; service names it in the result message
func NewTCPChecker(service, host, port string) *TCPChecker {
	return &TCPChecker{
		Service: service,
		Address: net.JoinHostPort(host, port),
		Timeout: 5 * time.Second,
	}
}

func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	d := net.Dialer{Timeout: t.Timeout}
	conn, err := d.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return result(start, false, "%s at %s unreachable: %v", t.Service, t.Address, err)
	}
	conn.Close()
	return result(start, true, "%s listening at %s", t.Service, t.Address)
}

func (t *TCPChecker) Type() CheckType { return CheckTypeTCP }

// WithTimeout bounds the dial
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
