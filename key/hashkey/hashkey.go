// Package hashkey derives Kademlia keys from arbitrary preimages using the multihash registry.
package hashkey

import (
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	mh "github.com/multiformats/go-multihash"
	mhreg "github.com/multiformats/go-multihash/core"

	"github.com/plprobelab/go-kadtable/key"
)

const (
	// Hasher160 is the hash function used to derive 160-bit identifiers.
	Hasher160 = mh.SHA1

	// Hasher256 is the hash function used to derive 256-bit identifiers.
	Hasher256 = mh.SHA2_256
)

// Key160FromBytes produces a 160-bit Kademlia key from b using SHA-1.
func Key160FromBytes(b []byte) key.Key160 {
	return key.NewKey160(digest(Hasher160, b))
}

// Key160FromString produces a 160-bit Kademlia key from a string using SHA-1.
func Key160FromString(s string) key.Key160 {
	return Key160FromBytes([]byte(s))
}

// Key256FromBytes produces a 256-bit Kademlia key from b using SHA2-256.
func Key256FromBytes(b []byte) key.Key256 {
	return key.NewKey256(digest(Hasher256, b))
}

// Key256FromString produces a 256-bit Kademlia key from a string using SHA2-256.
func Key256FromString(s string) key.Key256 {
	return Key256FromBytes([]byte(s))
}

// Key256FromPeerID produces the 256-bit Kademlia key of a libp2p peer.
func Key256FromPeerID(id peer.ID) key.Key256 {
	return Key256FromBytes([]byte(id))
}

func digest(code uint64, b []byte) []byte {
	hasher, err := mhreg.GetHasher(code)
	if err != nil {
		// both hash functions are registered by the multihash core package
		panic(fmt.Sprintf("hashkey: %v", err))
	}
	hasher.Write(b)
	return hasher.Sum(nil)
}
