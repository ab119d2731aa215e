package routing

import (
	"context"

	"github.com/plprobelab/go-kadtable/kad"
	"github.com/plprobelab/go-kadtable/network/address"
)

// Table is the interface for Kademlia Routing Tables, as used by the lookup
// and message handling layers of a node.
type Table[K kad.Key[K]] interface {
	// Self returns the local node's address
	Self() *address.PeerAddress[K]
	// BucketIndex returns the index of the bucket a key belongs to
	BucketIndex(K) int
	// Insert records that a peer has been seen
	Insert(context.Context, *address.PeerAddress[K])
	// MarkUnresponsive records that peers failed to respond
	MarkUnresponsive(context.Context, ...*address.PeerAddress[K])
	// NearestNodes returns the closest peers to a given key
	NearestNodes(context.Context, K, int) []*address.PeerAddress[K]
	// AllNodes returns every peer held in the table
	AllNodes() []*address.PeerAddress[K]
}

