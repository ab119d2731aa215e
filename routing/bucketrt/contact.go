package bucketrt

import (
	"fmt"
	"time"

	"github.com/plprobelab/go-kadtable/kad"
	"github.com/plprobelab/go-kadtable/network/address"
)

// Contact tracks the liveness of a peer held by a bucket: when it was last
// seen and how many times in a row it failed to respond.
type Contact[K kad.Key[K]] struct {
	addr       *address.PeerAddress[K]
	lastSeen   time.Time
	staleCount int
}

// NewContact returns a fresh contact for addr, last seen at the given time.
func NewContact[K kad.Key[K]](addr *address.PeerAddress[K], lastSeen time.Time) *Contact[K] {
	return &Contact[K]{
		addr:     addr,
		lastSeen: lastSeen,
	}
}

func (c *Contact[K]) Address() *address.PeerAddress[K] {
	return c.addr
}

func (c *Contact[K]) Key() K {
	return c.addr.Key()
}

func (c *Contact[K]) LastSeen() time.Time {
	return c.lastSeen
}

func (c *Contact[K]) StaleCount() int {
	return c.staleCount
}

// Touch records that the peer was seen at the given time and clears its stale count.
func (c *Contact[K]) Touch(now time.Time) {
	c.lastSeen = now
	c.staleCount = 0
}

// MarkStale records that the peer failed to respond.
func (c *Contact[K]) MarkStale() {
	c.staleCount++
}

// Equal reports whether both contacts are for the same peer.
func (c *Contact[K]) Equal(o *Contact[K]) bool {
	return c.addr.Equal(o.addr)
}

func (c *Contact[K]) String() string {
	return fmt.Sprintf("%s (stale: %d)", c.addr, c.staleCount)
}

func (c *Contact[K]) clone() *Contact[K] {
	cp := *c
	return &cp
}

// CompareRecency orders contacts by the time they were last seen, least
// recently seen first. Contacts seen at the same instant are ordered by key,
// so distinct peers never compare as equal.
func CompareRecency[K kad.Key[K]](a, b *Contact[K]) int {
	if c := a.lastSeen.Compare(b.lastSeen); c != 0 {
		return c
	}
	return a.Key().Compare(b.Key())
}

// staler reports whether a should be evicted before b.
func staler[K kad.Key[K]](a, b *Contact[K]) bool {
	if a.staleCount != b.staleCount {
		return a.staleCount > b.staleCount
	}
	return CompareRecency(a, b) < 0
}
