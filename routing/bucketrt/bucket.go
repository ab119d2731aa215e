package bucketrt

import (
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"

	"github.com/plprobelab/go-kadtable/kad"
	"github.com/plprobelab/go-kadtable/network/address"
)

// InsertOutcome describes where a bucket placed a newly seen peer.
type InsertOutcome int

const (
	// Added means the peer became an active contact in a bucket with spare capacity.
	Added InsertOutcome = iota
	// Refreshed means the peer was already an active contact and was marked as seen.
	Refreshed
	// ReplacedStale means the peer became an active contact in place of a stale one.
	ReplacedStale
	// Cached means the bucket was full of responsive contacts and the peer was
	// kept in the replacement cache.
	Cached
	// Discarded means the bucket was full of responsive contacts and has no
	// replacement cache.
	Discarded
)

func (o InsertOutcome) String() string {
	switch o {
	case Added:
		return "added"
	case Refreshed:
		return "refreshed"
	case ReplacedStale:
		return "replaced_stale"
	case Cached:
		return "cached"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

type removeOutcome int

const (
	removeNotFound removeOutcome = iota
	removeReplaced
	removeMarkedStale
)

func (o removeOutcome) String() string {
	switch o {
	case removeReplaced:
		return "replaced"
	case removeMarkedStale:
		return "marked_stale"
	default:
		return "not_found"
	}
}

// Bucket holds the contacts of a routing table at one distance from the local
// node, along with a cache of recently seen peers that did not fit. All
// exported methods are safe for concurrent use.
type Bucket[K kad.ComparableKey[K]] struct {
	depth          int
	size           int
	staleThreshold int
	clk            clock.Clock
	logger         *zap.Logger
	metrics        *metrics

	mu sync.Mutex

	// contacts indexes the active contacts by key
	contacts map[K]*Contact[K]

	// byRecency holds the active contacts in CompareRecency order
	byRecency []*Contact[K]

	// replacements is nil when the replacement cache is disabled. Entries
	// are ranked by the time they were last seen, not by insertion order.
	replacements *simplelru.LRU[K, *Contact[K]]
	cacheSize    int
}

// NewBucket returns an empty bucket for the given depth of a routing table.
func NewBucket[K kad.ComparableKey[K]](depth int, cfg *Config) (*Bucket[K], error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newBucket[K](depth, cfg, nil), nil
}

func newBucket[K kad.ComparableKey[K]](depth int, cfg *Config, m *metrics) *Bucket[K] {
	b := &Bucket[K]{
		depth:          depth,
		size:           cfg.BucketSize,
		staleThreshold: cfg.StaleThreshold,
		clk:            cfg.Clock,
		logger:         cfg.Logger.With(zap.Int("depth", depth)),
		metrics:        m,
		contacts:       make(map[K]*Contact[K], cfg.BucketSize),
		byRecency:      make([]*Contact[K], 0, cfg.BucketSize),
		cacheSize:      cfg.ReplacementCacheSize,
	}
	if cfg.ReplacementCacheSize > 0 {
		// only fails for a non-positive size
		b.replacements, _ = simplelru.NewLRU[K, *Contact[K]](cfg.ReplacementCacheSize, nil)
	}
	return b
}

// Depth returns the position of the bucket in its routing table.
func (b *Bucket[K]) Depth() int {
	return b.depth
}

// Insert records a sighting of the peer held by c. The bucket keeps its own
// copy of c.
//
// A peer that is already active is refreshed and adopts the network address
// of c. A new peer is added if the bucket has spare capacity, or replaces the
// stalest contact whose stale count reached the threshold. Otherwise it is
// kept in the replacement cache, if enabled. A full bucket never drops a
// responsive contact for a newly seen one.
func (b *Bucket[K]) Insert(c *Contact[K]) InsertOutcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	o := b.insert(c.clone())
	b.metrics.inserted(o)
	return o
}

// InsertAddr records a sighting of the peer at addr.
func (b *Bucket[K]) InsertAddr(addr *address.PeerAddress[K]) InsertOutcome {
	return b.Insert(NewContact(addr, b.clk.Now()))
}

func (b *Bucket[K]) insert(c *Contact[K]) InsertOutcome {
	kk := c.Key()

	if existing, ok := b.contacts[kk]; ok {
		b.unlink(existing)
		existing.addr = c.addr
		existing.Touch(b.clk.Now())
		b.link(existing)
		return Refreshed
	}

	if len(b.contacts) < b.size {
		b.add(c)
		return Added
	}

	if stalest := b.stalest(); stalest != nil {
		b.drop(stalest)
		b.add(c)
		b.logger.Debug("evicted stale contact",
			zap.Stringer("evicted", stalest.addr),
			zap.Int("stale_count", stalest.staleCount),
			zap.Stringer("peer", c.addr))
		return ReplacedStale
	}

	if !b.cache(c) {
		return Discarded
	}
	return Cached
}

// Remove handles a peer that failed to respond. If the peer is not an active
// contact, Remove does nothing and returns false.
//
// When the replacement cache holds a peer, the most recently seen one takes
// the place of the unresponsive contact. Otherwise the contact stays in the
// bucket with its stale count incremented, so the bucket never shrinks.
func (b *Bucket[K]) Remove(addr *address.PeerAddress[K]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	o := b.remove(addr.Key())
	b.metrics.removed(o)
	return o != removeNotFound
}

func (b *Bucket[K]) remove(kk K) removeOutcome {
	c, ok := b.contacts[kk]
	if !ok {
		return removeNotFound
	}

	if r := b.popReplacement(); r != nil {
		b.drop(c)
		b.add(r)
		b.logger.Debug("replaced unresponsive contact",
			zap.Stringer("removed", c.addr),
			zap.Stringer("promoted", r.addr))
		return removeReplaced
	}

	c.MarkStale()
	b.logger.Debug("marked contact stale",
		zap.Stringer("peer", c.addr),
		zap.Int("stale_count", c.staleCount))
	return removeMarkedStale
}

// Contains reports whether the peer is an active contact of the bucket.
func (b *Bucket[K]) Contains(addr *address.PeerAddress[K]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.contacts[addr.Key()]
	return ok
}

// InReplacementCache reports whether the peer is held in the replacement cache.
func (b *Bucket[K]) InReplacementCache(addr *address.PeerAddress[K]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.replacements != nil && b.replacements.Contains(addr.Key())
}

// Size returns the number of active contacts.
func (b *Bucket[K]) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.contacts)
}

// Contacts returns a copy of the active contacts, least recently seen first.
func (b *Bucket[K]) Contacts() []*Contact[K] {
	b.mu.Lock()
	defer b.mu.Unlock()

	cs := make([]*Contact[K], len(b.byRecency))
	for i, c := range b.byRecency {
		cs[i] = c.clone()
	}
	return cs
}

// Replacements returns a copy of the replacement cache, least recently seen first.
func (b *Bucket[K]) Replacements() []*Contact[K] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.replacements == nil {
		return nil
	}
	cs := make([]*Contact[K], 0, b.replacements.Len())
	for _, c := range b.replacements.Values() {
		cs = append(cs, c.clone())
	}
	slices.SortFunc(cs, CompareRecency[K])
	return cs
}

func (b *Bucket[K]) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	sb := new(strings.Builder)
	sb.WriteString("Bucket at depth: ")
	sb.WriteString(strconv.Itoa(b.depth))
	sb.WriteString("\n Nodes: \n")
	for _, c := range b.byRecency {
		sb.WriteString("Node: ")
		sb.WriteString(c.String())
		sb.WriteString("\n")
	}
	return sb.String()
}

// stalest returns the active contact with the highest stale count at or above
// the threshold, preferring the least recently seen on ties. It returns nil
// if no contact is stale.
func (b *Bucket[K]) stalest() *Contact[K] {
	var stalest *Contact[K]
	for _, c := range b.byRecency {
		if c.staleCount < b.staleThreshold {
			continue
		}
		if stalest == nil || staler(c, stalest) {
			stalest = c
		}
	}
	return stalest
}

// cache keeps c in the replacement cache, evicting the least recently seen
// entry when the cache is full. A peer that is already cached adopts the
// address of c and the later of both sighting times. It returns false if the
// cache is disabled.
func (b *Bucket[K]) cache(c *Contact[K]) bool {
	if b.replacements == nil {
		return false
	}
	kk := c.Key()
	if cached, ok := b.replacements.Peek(kk); ok {
		cached.addr = c.addr
		if c.lastSeen.After(cached.lastSeen) {
			cached.lastSeen = c.lastSeen
		}
		return true
	}

	if b.replacements.Len() >= b.cacheSize {
		oldest := slices.MinFunc(b.replacements.Values(), CompareRecency[K])
		b.replacements.Remove(oldest.Key())
	}
	b.replacements.Add(kk, c)
	return true
}

// popReplacement removes and returns the most recently seen replacement, or
// nil if the cache is empty.
func (b *Bucket[K]) popReplacement() *Contact[K] {
	if b.replacements == nil || b.replacements.Len() == 0 {
		return nil
	}
	newest := slices.MaxFunc(b.replacements.Values(), CompareRecency[K])
	b.replacements.Remove(newest.Key())
	return newest
}

// add makes c an active contact. The caller must ensure the bucket has room.
func (b *Bucket[K]) add(c *Contact[K]) {
	kk := c.Key()
	if b.replacements != nil {
		b.replacements.Remove(kk)
	}
	b.contacts[kk] = c
	b.link(c)
}

func (b *Bucket[K]) drop(c *Contact[K]) {
	delete(b.contacts, c.Key())
	b.unlink(c)
}

func (b *Bucket[K]) link(c *Contact[K]) {
	i, _ := slices.BinarySearchFunc(b.byRecency, c, CompareRecency[K])
	b.byRecency = slices.Insert(b.byRecency, i, c)
}

func (b *Bucket[K]) unlink(c *Contact[K]) {
	if i := slices.Index(b.byRecency, c); i >= 0 {
		b.byRecency = slices.Delete(b.byRecency, i, i+1)
	}
}
