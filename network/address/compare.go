package address

import (
	"slices"

	"github.com/plprobelab/go-kadtable/kad"
)

// DistanceComparator returns a function that orders peer addresses by the XOR
// distance of their keys to target, closest first. Addresses with equal keys
// compare as equal.
func DistanceComparator[K kad.Key[K]](target K) func(a, b *PeerAddress[K]) int {
	return func(a, b *PeerAddress[K]) int {
		return target.Xor(a.key).Compare(target.Xor(b.key))
	}
}

// SortByDistance sorts addrs in place by ascending distance to target. The
// relative order of addresses with equal keys is preserved.
func SortByDistance[K kad.Key[K]](target K, addrs []*PeerAddress[K]) {
	slices.SortStableFunc(addrs, DistanceComparator(target))
}
