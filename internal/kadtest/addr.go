package kadtest

import (
	"net/netip"

	"github.com/plprobelab/go-kadtable/kad"
	"github.com/plprobelab/go-kadtable/network/address"
)

// NewAddr returns the address of the peer identified by k. The ip and port
// are derived from n so that distinct values of n give distinct endpoints.
func NewAddr[K kad.Key[K]](k K, n int) *address.PeerAddress[K] {
	ip := netip.AddrFrom4([4]byte{10, byte(n >> 16), byte(n >> 8), byte(n)})
	a, err := address.New(k, ip, uint16(4000+n%60000))
	if err != nil {
		// a 4 byte ip is always valid
		panic(err)
	}
	return a
}

// NewAddrs returns one address per key, numbered in order.
func NewAddrs[K kad.Key[K]](keys ...K) []*address.PeerAddress[K] {
	addrs := make([]*address.PeerAddress[K], len(keys))
	for i, k := range keys {
		addrs[i] = NewAddr(k, i+1)
	}
	return addrs
}
