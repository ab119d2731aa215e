// Package bucketrt implements a Kademlia routing table made of one bucket per
// bit of the key space. Buckets hold a bounded number of contacts and prefer
// long lived, responsive peers over newly seen ones.
package bucketrt

import (
	"context"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/plprobelab/go-kadtable/kad"
	"github.com/plprobelab/go-kadtable/key"
	"github.com/plprobelab/go-kadtable/network/address"
	"github.com/plprobelab/go-kadtable/routing"
	"github.com/plprobelab/go-kadtable/util"
)

// Table is a Kademlia routing table. Bucket i holds the contacts whose
// distance class from the local node is i+1. The local node itself is held
// by bucket 0.
//
// Each bucket is guarded by its own lock, so there is no table wide lock.
// Methods that read across buckets observe each bucket at a slightly
// different time. All exported methods are safe for concurrent use.
type Table[K kad.ComparableKey[K]] struct {
	self    *address.PeerAddress[K]
	buckets []*Bucket[K]
	logger  *zap.Logger
	metrics *metrics
}

var _ routing.Table[key.Key256] = (*Table[key.Key256])(nil)

// New returns a routing table for the local node self. One bucket is
// allocated for every bit of the key space.
func New[K kad.ComparableKey[K]](self *address.PeerAddress[K], cfg *Config) (*Table[K], error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rt := &Table[K]{
		self:    self,
		buckets: make([]*Bucket[K], self.Key().BitLen()),
		logger:  cfg.Logger.Named("routing"),
	}

	m, err := newMetrics(cfg.Registerer, rt.Size)
	if err != nil {
		return nil, err
	}
	rt.metrics = m

	bcfg := *cfg
	bcfg.Logger = rt.logger
	for i := range rt.buckets {
		rt.buckets[i] = newBucket[K](i, &bcfg, m)
	}

	rt.buckets[0].InsertAddr(self)
	return rt, nil
}

// Self returns the address of the local node.
func (rt *Table[K]) Self() *address.PeerAddress[K] {
	return rt.self
}

// BucketIndex returns the index of the bucket kk belongs to. The local
// node's own key belongs to bucket 0.
func (rt *Table[K]) BucketIndex(kk K) int {
	bid := key.DistanceClass(rt.self.Key(), kk) - 1
	if bid < 0 {
		return 0
	}
	return bid
}

// Bucket returns the bucket at index i.
func (rt *Table[K]) Bucket(i int) *Bucket[K] {
	return rt.buckets[i]
}

// BucketCount returns the number of buckets, which is the bit length of the key space.
func (rt *Table[K]) BucketCount() int {
	return len(rt.buckets)
}

// Insert records that the peer at addr has been seen.
func (rt *Table[K]) Insert(ctx context.Context, addr *address.PeerAddress[K]) {
	_, span := util.StartSpan(ctx, "routing.bucket.insert", trace.WithAttributes(
		attribute.String("KadID", key.HexString(addr.Key())),
	))
	defer span.End()

	bid := rt.BucketIndex(addr.Key())
	o := rt.buckets[bid].InsertAddr(addr)
	span.SetAttributes(attribute.Int("bucket", bid), attribute.String("outcome", o.String()))
}

// InsertContact records a sighting of the peer held by c.
func (rt *Table[K]) InsertContact(ctx context.Context, c *Contact[K]) {
	_, span := util.StartSpan(ctx, "routing.bucket.insertContact", trace.WithAttributes(
		attribute.String("KadID", key.HexString(c.Key())),
	))
	defer span.End()

	bid := rt.BucketIndex(c.Key())
	o := rt.buckets[bid].Insert(c)
	span.SetAttributes(attribute.Int("bucket", bid), attribute.String("outcome", o.String()))
}

// MarkUnresponsive records that the given peers failed to respond. Each peer
// is handled independently by its bucket; peers that are not active contacts
// are ignored, as is the local node.
func (rt *Table[K]) MarkUnresponsive(ctx context.Context, addrs ...*address.PeerAddress[K]) {
	_, span := util.StartSpan(ctx, "routing.bucket.markUnresponsive", trace.WithAttributes(
		attribute.Int("count", len(addrs)),
	))
	defer span.End()

	found := 0
	for _, a := range addrs {
		if a.Equal(rt.self) {
			continue
		}
		if rt.buckets[rt.BucketIndex(a.Key())].Remove(a) {
			found++
		}
	}
	span.SetAttributes(attribute.Int("found", found))
}

// NearestNodes returns the n peers closest to kk, closest first. The local
// node is never part of the result. Fewer than n peers are returned if the
// table does not hold enough.
func (rt *Table[K]) NearestNodes(ctx context.Context, kk K, n int) []*address.PeerAddress[K] {
	_, span := util.StartSpan(ctx, "routing.bucket.nearestNodes", trace.WithAttributes(
		attribute.String("KadID", key.HexString(kk)),
		attribute.Int("n", n),
	))
	defer span.End()

	if n <= 0 {
		return []*address.PeerAddress[K]{}
	}

	selfKey := rt.self.Key()
	nodes := make([]*address.PeerAddress[K], 0, rt.Size())
	for _, b := range rt.buckets {
		for _, c := range b.Contacts() {
			if key.Equal(c.Key(), selfKey) {
				continue
			}
			nodes = append(nodes, c.Address())
		}
	}

	address.SortByDistance(kk, nodes)
	if len(nodes) > n {
		nodes = nodes[:n]
	}
	span.SetAttributes(attribute.Int("found", len(nodes)))
	return nodes
}

// AllNodes returns the addresses of every active contact, including the local node.
func (rt *Table[K]) AllNodes() []*address.PeerAddress[K] {
	var nodes []*address.PeerAddress[K]
	for _, b := range rt.buckets {
		for _, c := range b.Contacts() {
			nodes = append(nodes, c.Address())
		}
	}
	return nodes
}

// AllContacts returns a copy of every active contact, including the local node.
func (rt *Table[K]) AllContacts() []*Contact[K] {
	var contacts []*Contact[K]
	for _, b := range rt.buckets {
		contacts = append(contacts, b.Contacts()...)
	}
	return contacts
}

// Size returns the number of active contacts held by the table.
func (rt *Table[K]) Size() int {
	n := 0
	for _, b := range rt.buckets {
		n += b.Size()
	}
	return n
}

func (rt *Table[K]) String() string {
	sb := new(strings.Builder)
	sb.WriteString("\n ***************** \n")
	total := 0
	for _, b := range rt.buckets {
		n := b.Size()
		if n == 0 {
			continue
		}
		total += n
		sb.WriteString("# nodes in Bucket with depth ")
		sb.WriteString(strconv.Itoa(b.Depth()))
		sb.WriteString(": ")
		sb.WriteString(strconv.Itoa(n))
		sb.WriteString("\n")
		sb.WriteString(b.String())
		sb.WriteString("\n")
	}
	sb.WriteString("\nTotal Contacts: ")
	sb.WriteString(strconv.Itoa(total))
	sb.WriteString("\n\n ******************** ")
	return sb.String()
}
