package localconf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
)

// Pool is an inclusive range of floating addresses
type Pool struct {
	Start net.IP
	End   net.IP
	Size  int
}

// String renders the pool as a neutron allocation pool
func (p Pool) String() string {
	return fmt.Sprintf("start=%s,end=%s", p.Start, p.End)
}

// FloatingPool picks the highest run of size contiguous addresses in network
// that holds no excluded address. When no run is long enough the pool
// shrinks to the longest free run, the higher one on a tie.
func FloatingPool(network *net.IPNet, size int, exclude ...net.IP) (Pool, error) {
	if network == nil {
		return Pool{}, errors.New("no network")
	}
	if size <= 0 {
		return Pool{}, fmt.Errorf("invalid pool size %d", size)
	}
	base := network.IP.To4()
	if base == nil || len(network.Mask) != net.IPv4len {
		return Pool{}, fmt.Errorf("%s is not an IPv4 network", network)
	}
	ones, _ := network.Mask.Size()
	if ones > 30 {
		return Pool{}, fmt.Errorf("%s has no usable host range", network)
	}

	netAddr := toUint(base.Mask(network.Mask))
	broadcast := netAddr | ^binary.BigEndian.Uint32(network.Mask)
	first, last := netAddr+1, broadcast-1

	excluded := make(map[uint32]bool, len(exclude))
	for _, ip := range exclude {
		if v4 := ip.To4(); v4 != nil {
			excluded[toUint(v4)] = true
		}
	}

	var runEnd, runLen, bestEnd, bestLen uint32
	for addr := last; addr >= first; addr-- {
		if excluded[addr] {
			if runLen > bestLen {
				bestEnd, bestLen = runEnd, runLen
			}
			runLen = 0
			continue
		}
		if runLen == 0 {
			runEnd = addr
		}
		runLen++
		if runLen == uint32(size) {
			bestEnd, bestLen = runEnd, runLen
			break
		}
	}
	if runLen > bestLen {
		bestEnd, bestLen = runEnd, runLen
	}
	if bestLen == 0 {
		return Pool{}, fmt.Errorf("no free addresses in %s", network)
	}

	start, end := bestEnd-bestLen+1, bestEnd
	return Pool{Start: fromUint(start), End: fromUint(end), Size: int(end - start + 1)}, nil
}

// FirstHost returns the lowest usable address of an IPv4 network
func FirstHost(network *net.IPNet) (net.IP, error) {
	if network == nil || network.IP.To4() == nil {
		return nil, errors.New("not an IPv4 network")
	}
	ones, _ := network.Mask.Size()
	if ones > 30 {
		return nil, fmt.Errorf("%s has no usable host range", network)
	}
	return fromUint(toUint(network.IP.To4().Mask(network.Mask)) + 1), nil
}

func toUint(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}

func fromUint(v uint32) net.IP {
	ip := make(net.IP, net.IPv4len)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}
