package probe

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
)

// ProcRoutePath is the kernel IPv4 routing table
const ProcRoutePath = "/proc/net/route"

const (
	routeFlagUp      = 0x1
	routeFlagGateway = 0x2
)

// Route is one IPv4 routing table entry
type Route struct {
	Iface       string
	Destination net.IP
	Gateway     net.IP
	Mask        net.IPMask
	Flags       uint32
	Metric      int
}

// IsDefault reports whether the route is an active 0.0.0.0/0 route
func (r Route) IsDefault() bool {
	ones, _ := r.Mask.Size()
	return r.Flags&routeFlagUp != 0 && r.Destination.Equal(net.IPv4zero) && ones == 0
}

// ReadProcRoutes parses the routing table from /proc/net/route
func ReadProcRoutes() ([]Route, error) {
	f, err := os.Open(ProcRoutePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open routing table: %w", err)
	}
	defer f.Close()
	return ParseRoutes(f)
}

// ParseRoutes parses the /proc/net/route text format
func ParseRoutes(r io.Reader) ([]Route, error) {
	var routes []Route
	scanner := bufio.NewScanner(r)
	header := true
	for scanner.Scan() {
		if header {
			header = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 8 {
			continue
		}

		dst, err := parseHexIP(fields[1])
		if err != nil {
			return nil, fmt.Errorf("bad destination %q: %w", fields[1], err)
		}
		gw, err := parseHexIP(fields[2])
		if err != nil {
			return nil, fmt.Errorf("bad gateway %q: %w", fields[2], err)
		}
		flags, err := strconv.ParseUint(fields[3], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("bad flags %q: %w", fields[3], err)
		}
		metric, err := strconv.Atoi(fields[6])
		if err != nil {
			return nil, fmt.Errorf("bad metric %q: %w", fields[6], err)
		}
		mask, err := parseHexIP(fields[7])
		if err != nil {
			return nil, fmt.Errorf("bad mask %q: %w", fields[7], err)
		}

		routes = append(routes, Route{
			Iface:       fields[0],
			Destination: dst,
			Gateway:     gw,
			Mask:        net.IPMask(mask.To4()),
			Flags:       uint32(flags),
			Metric:      metric,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read routing table: %w", err)
	}
	return routes, nil
}

// DefaultRoute picks the lowest-metric default route; equal metrics keep
// kernel table order
func DefaultRoute(routes []Route) (Route, bool) {
	var best Route
	found := false
	for _, r := range routes {
		if !r.IsDefault() {
			continue
		}
		if !found || r.Metric < best.Metric {
			best = r
			found = true
		}
	}
	return best, found
}

// parseHexIP decodes the little-endian hex form used by /proc/net/route
func parseHexIP(s string) (net.IP, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, err
	}
	ip := make(net.IP, 4)
	binary.LittleEndian.PutUint32(ip, uint32(v))
	return ip, nil
}
