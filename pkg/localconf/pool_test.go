package localconf

import (
	"net"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCIDR(t *testing.T, s string) *net.IPNet {
	t.Helper()
	_, n, err := net.ParseCIDR(s)
	require.NoError(t, err)
	return n
}

func TestFloatingPool(t *testing.T) {
	tests := []struct {
		name    string
		cidr    string
		size    int
		exclude []string
		start   string
		end     string
		wantErr bool
	}{
		{
			name:    "slash 24 keeps the top of the subnet",
			cidr:    "192.168.1.0/24",
			size:    32,
			exclude: []string{"192.168.1.50", "192.168.1.1"},
			start:   "192.168.1.223",
			end:     "192.168.1.254",
		},
		{
			name:    "excluded address at the top is skipped",
			cidr:    "192.168.1.0/24",
			size:    4,
			exclude: []string{"192.168.1.254"},
			start:   "192.168.1.250",
			end:     "192.168.1.253",
		},
		{
			name:    "small subnet shrinks to the remainder",
			cidr:    "10.1.0.0/28",
			size:    32,
			exclude: []string{"10.1.0.1"},
			start:   "10.1.0.2",
			end:     "10.1.0.14",
		},
		{
			name:    "host near the top pushes the pool below it",
			cidr:    "192.168.1.0/24",
			size:    32,
			exclude: []string{"192.168.1.240", "192.168.1.1"},
			start:   "192.168.1.208",
			end:     "192.168.1.239",
		},
		{
			name:    "longest run wins when none is big enough",
			cidr:    "10.1.0.0/28",
			size:    32,
			exclude: []string{"10.1.0.10", "10.1.0.1"},
			start:   "10.1.0.2",
			end:     "10.1.0.9",
		},
		{
			name:    "equal runs prefer the higher one",
			cidr:    "10.1.0.0/28",
			size:    32,
			exclude: []string{"10.1.0.8", "10.1.0.1"},
			start:   "10.1.0.9",
			end:     "10.1.0.14",
		},
		{
			name:    "slash 31 has no usable range",
			cidr:    "10.1.0.0/31",
			size:    8,
			wantErr: true,
		},
		{
			name:    "every address excluded",
			cidr:    "10.1.0.0/30",
			size:    8,
			exclude: []string{"10.1.0.1", "10.1.0.2"},
			wantErr: true,
		},
		{
			name:    "zero size",
			cidr:    "10.1.0.0/24",
			size:    0,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var exclude []net.IP
			for _, s := range tt.exclude {
				exclude = append(exclude, net.ParseIP(s))
			}

			pool, err := FloatingPool(mustCIDR(t, tt.cidr), tt.size, exclude...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, pool.Start.String())
			assert.Equal(t, tt.end, pool.End.String())
			assert.LessOrEqual(t, pool.Size, tt.size)
		})
	}
}

func TestFloatingPool_NeverContainsExcluded(t *testing.T) {
	network := mustCIDR(t, "192.168.1.0/24")
	host := net.ParseIP("192.168.1.50")
	gateway := net.ParseIP("192.168.1.1")

	pool, err := FloatingPool(network, 254, host, gateway)
	require.NoError(t, err)

	assert.True(t, network.Contains(pool.Start))
	assert.True(t, network.Contains(pool.End))
	for v := toUint(pool.Start); v <= toUint(pool.End); v++ {
		ip := fromUint(v)
		assert.False(t, ip.Equal(host), "pool contains host address")
		assert.False(t, ip.Equal(gateway), "pool contains gateway")
	}
	assert.Equal(t, "start=192.168.1.51,end=192.168.1.254", pool.String())
}

func TestFloatingPool_FullSizeWhereverTheHostSits(t *testing.T) {
	network := mustCIDR(t, "192.168.1.0/24")
	gateway := net.ParseIP("192.168.1.1")

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("a /24 always yields the full pool around host and gateway", prop.ForAll(
		func(octet uint8) bool {
			host := net.IPv4(192, 168, 1, octet)
			pool, err := FloatingPool(network, 32, host, gateway)
			if err != nil || pool.Size != 32 {
				return false
			}
			for v := toUint(pool.Start); v <= toUint(pool.End); v++ {
				if fromUint(v).Equal(host) || fromUint(v).Equal(gateway) {
					return false
				}
			}
			return true
		},
		gen.UInt8Range(2, 254),
	))

	properties.TestingRun(t)
}

func TestFirstHost(t *testing.T) {
	ip, err := FirstHost(mustCIDR(t, "172.24.4.0/24"))
	require.NoError(t, err)
	assert.Equal(t, "172.24.4.1", ip.String())

	_, err = FirstHost(mustCIDR(t, "172.24.4.0/32"))
	assert.Error(t, err)
}
