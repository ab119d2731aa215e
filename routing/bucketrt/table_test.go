package bucketrt

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/plprobelab/go-kadtable/internal/kadtest"
	"github.com/plprobelab/go-kadtable/kad"
	"github.com/plprobelab/go-kadtable/kaderr"
	"github.com/plprobelab/go-kadtable/key"
	"github.com/plprobelab/go-kadtable/network/address"
)

func newTestTable[K kad.ComparableKey[K]](t *testing.T, self K, cfg *Config) *Table[K] {
	t.Helper()
	rt, err := New(kadtest.NewAddr(self, 0), cfg)
	require.NoError(t, err)
	return rt
}

func TestNew(t *testing.T) {
	rt := newTestTable(t, key.Key8(0), DefaultConfig())

	require.Equal(t, 8, rt.BucketCount())
	require.Equal(t, key.Key8(0), rt.Self().Key())

	// the local node is held by bucket 0
	require.Equal(t, 1, rt.Size())
	require.True(t, rt.Bucket(0).Contains(rt.Self()))
	require.Len(t, rt.AllNodes(), 1)
	require.Len(t, rt.AllContacts(), 1)

	rt160 := newTestTable(t, key.ZeroKey160(), DefaultConfig())
	require.Equal(t, 160, rt160.BucketCount())
}

func TestNewConfig(t *testing.T) {
	self := kadtest.NewAddr(key.Key8(0), 0)

	_, err := New(self, nil)
	var cerr *kaderr.ConfigurationError
	require.True(t, errors.As(err, &cerr))

	cfg := DefaultConfig()
	cfg.StaleThreshold = 0
	_, err = New(self, cfg)
	require.True(t, errors.As(err, &cerr))
}

func TestBucketIndex(t *testing.T) {
	rt := newTestTable(t, key.Key8(0), DefaultConfig())

	testCases := []struct {
		key key.Key8
		bid int
	}{
		{0x00, 0}, // self
		{0x01, 0},
		{0x02, 1},
		{0x03, 1},
		{0x04, 2},
		{0x10, 4},
		{0x7f, 6},
		{0x80, 7},
		{0xff, 7},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.bid, rt.BucketIndex(tc.key), "key %s", tc.key)
	}
}

func TestInsertRoutesByDistance(t *testing.T) {
	ctx := context.Background()
	rt := newTestTable(t, key.Key8(0), DefaultConfig())

	far := kadtest.NewAddr(key.Key8(0x80), 1)
	near := kadtest.NewAddr(key.Key8(0x01), 2)
	mid := kadtest.NewAddr(key.Key8(0x0c), 3)
	rt.Insert(ctx, far)
	rt.Insert(ctx, near)
	rt.Insert(ctx, mid)

	require.True(t, rt.Bucket(7).Contains(far))
	require.True(t, rt.Bucket(0).Contains(near))
	require.True(t, rt.Bucket(3).Contains(mid))
	require.Equal(t, 4, rt.Size())
	require.Equal(t, 2, rt.Bucket(0).Size())

	// refreshing does not add a second entry
	rt.Insert(ctx, far)
	require.Equal(t, 4, rt.Size())
}

func TestInsertContact(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	rt := newTestTable(t, key.Key8(0), testConfig(clk))

	seen := clk.Now().Add(-time.Hour)
	rt.InsertContact(ctx, NewContact(kadtest.NewAddr(key.Key8(0x40), 1), seen))

	cs := rt.Bucket(6).Contacts()
	require.Len(t, cs, 1)
	require.Equal(t, seen, cs[0].LastSeen())
}

func TestDistancePartition(t *testing.T) {
	ctx := context.Background()
	rng := kadtest.Rand()
	self := kadtest.RandomKey32(rng)
	rt := newTestTable(t, self, DefaultConfig())

	for i := 0; i < 2000; i++ {
		rt.Insert(ctx, kadtest.NewAddr(kadtest.RandomKey32(rng), i+1))
	}

	for i := 0; i < rt.BucketCount(); i++ {
		b := rt.Bucket(i)
		require.LessOrEqual(t, b.Size(), 5)
		for _, c := range b.Contacts() {
			if c.Key() == self {
				require.Equal(t, 0, i)
				continue
			}
			require.Equal(t, i+1, key.DistanceClass(self, c.Key()))
		}
		for _, c := range b.Replacements() {
			require.Equal(t, i+1, key.DistanceClass(self, c.Key()))
		}
	}
}

func TestMarkUnresponsive(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewMock()
	rt := newTestTable(t, key.Key8(0), testConfig(clk))

	// five peers in bucket 7
	addrs := kadtest.NewAddrs[key.Key8](0x81, 0x82, 0x83, 0x84, 0x85)
	for _, a := range addrs {
		clk.Add(time.Second)
		rt.Insert(ctx, a)
	}
	cached := kadtest.NewAddr(key.Key8(0x86), 6)
	rt.Insert(ctx, cached)
	require.True(t, rt.Bucket(7).InReplacementCache(cached))

	// first removal is replaced from the cache, the second only marked stale
	rt.MarkUnresponsive(ctx, addrs[0], addrs[1])
	require.False(t, rt.Bucket(7).Contains(addrs[0]))
	require.True(t, rt.Bucket(7).Contains(cached))
	require.True(t, rt.Bucket(7).Contains(addrs[1]))
	require.Equal(t, 1, contactOf(t, rt.Bucket(7), addrs[1]).StaleCount())

	// unknown peers are ignored
	rt.MarkUnresponsive(ctx, kadtest.NewAddr(key.Key8(0x10), 9))
	require.Equal(t, 6, rt.Size())

	// the local node is never marked
	rt.MarkUnresponsive(ctx, rt.Self())
	require.Equal(t, 0, rt.AllContacts()[0].StaleCount())
}

func TestNearestNodesExcludesSelf(t *testing.T) {
	ctx := context.Background()
	rt := newTestTable(t, key.Key8(0), DefaultConfig())

	require.Empty(t, rt.NearestNodes(ctx, key.Key8(0), 5))

	rt.Insert(ctx, kadtest.NewAddr(key.Key8(0x01), 1))
	rt.Insert(ctx, kadtest.NewAddr(key.Key8(0x80), 2))

	nearest := rt.NearestNodes(ctx, key.Key8(0), 5)
	require.Len(t, nearest, 2)
	require.Equal(t, key.Key8(0x01), nearest[0].Key())
	require.Equal(t, key.Key8(0x80), nearest[1].Key())
	for _, a := range nearest {
		require.False(t, a.Equal(rt.Self()))
	}
}

func TestNearestNodesCount(t *testing.T) {
	ctx := context.Background()
	rt := newTestTable(t, key.Key8(0), DefaultConfig())
	for i, k := range []key.Key8{0x01, 0x02, 0x04, 0x08, 0x10} {
		rt.Insert(ctx, kadtest.NewAddr(k, i+1))
	}

	require.Empty(t, rt.NearestNodes(ctx, key.Key8(0x03), 0))
	require.Empty(t, rt.NearestNodes(ctx, key.Key8(0x03), -1))
	require.Len(t, rt.NearestNodes(ctx, key.Key8(0x03), 3), 3)
	require.Len(t, rt.NearestNodes(ctx, key.Key8(0x03), 100), 5)

	nearest := rt.NearestNodes(ctx, key.Key8(0x03), 3)
	require.Equal(t, key.Key8(0x02), nearest[0].Key()) // 0x03 ^ 0x02 = 0x01
	require.Equal(t, key.Key8(0x01), nearest[1].Key()) // 0x03 ^ 0x01 = 0x02
	require.Equal(t, key.Key8(0x04), nearest[2].Key()) // 0x03 ^ 0x04 = 0x07
}

func bruteForceNearest[K kad.Key[K]](target K, addrs []*address.PeerAddress[K], n int) []K {
	sorted := slices.Clone(addrs)
	slices.SortFunc(sorted, func(a, b *address.PeerAddress[K]) int {
		return target.Xor(a.Key()).Compare(target.Xor(b.Key()))
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	ks := make([]K, len(sorted))
	for i, a := range sorted {
		ks[i] = a.Key()
	}
	return ks
}

func addrKeys[K kad.Key[K]](addrs []*address.PeerAddress[K]) []K {
	ks := make([]K, len(addrs))
	for i, a := range addrs {
		ks[i] = a.Key()
	}
	return ks
}

func TestNearestNodesMatchesBruteForce(t *testing.T) {
	ctx := context.Background()
	rng := kadtest.Rand()

	// buckets large enough to hold every peer
	cfg := DefaultConfig()
	cfg.BucketSize = 500
	self := kadtest.RandomKey32(rng)
	rt := newTestTable(t, self, cfg)

	var inserted []*address.PeerAddress[key.Key32]
	for i := 0; i < 300; i++ {
		a := kadtest.NewAddr(kadtest.RandomKey32(rng), i+1)
		inserted = append(inserted, a)
		rt.Insert(ctx, a)
	}

	for i := 0; i < 50; i++ {
		target := kadtest.RandomKey32(rng)
		for _, n := range []int{1, 5, 20, 300, 400} {
			want := bruteForceNearest(target, inserted, n)
			got := addrKeys(rt.NearestNodes(ctx, target, n))
			require.Equal(t, want, got)
		}
	}
}

func TestNearestNodesFullBuckets(t *testing.T) {
	ctx := context.Background()
	rng := kadtest.Rand()
	self := kadtest.RandomKey160(rng)
	rt := newTestTable(t, self, DefaultConfig())

	for i := 0; i < 1000; i++ {
		rt.Insert(ctx, kadtest.NewAddr(kadtest.RandomKey160(rng), i+1))
	}

	var held []*address.PeerAddress[key.Key160]
	for _, a := range rt.AllNodes() {
		if !a.Equal(rt.Self()) {
			held = append(held, a)
		}
	}

	for i := 0; i < 20; i++ {
		target := kadtest.RandomKey160(rng)
		want := bruteForceNearest(target, held, 5)
		require.Equal(t, want, addrKeys(rt.NearestNodes(ctx, target, 5)))
	}

	// peers sharing a long prefix with self are kept in the closest buckets
	near := kadtest.RandomKey160WithPrefix(rng, key.BitString(self)[:40])
	rt.Insert(ctx, kadtest.NewAddr(near, 5000))
	require.Equal(t, near, rt.NearestNodes(ctx, self, 1)[0].Key())
}

func TestTableConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	self := key.Key32(0)
	rt := newTestTable(t, self, DefaultConfig())

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 500; i++ {
				a := kadtest.NewAddr(key.Key32(rng.Uint32()>>uint(rng.Intn(32))), int(seed)*1000+i)
				switch rng.Intn(4) {
				case 0:
					rt.MarkUnresponsive(ctx, a)
				case 1:
					rt.NearestNodes(ctx, a.Key(), 10)
				default:
					rt.Insert(ctx, a)
				}
			}
		}(int64(g))
	}
	wg.Wait()

	for i := 0; i < rt.BucketCount(); i++ {
		b := rt.Bucket(i)
		require.LessOrEqual(t, b.Size(), 5)
		require.LessOrEqual(t, len(b.Replacements()), 3)
		for _, c := range b.Contacts() {
			require.Equal(t, i, rt.BucketIndex(c.Key()))
		}
	}
	require.True(t, rt.Bucket(0).Contains(rt.Self()))
}

func TestTableString(t *testing.T) {
	ctx := context.Background()
	rt := newTestTable(t, key.Key8(0), DefaultConfig())
	rt.Insert(ctx, kadtest.NewAddr(key.Key8(0x80), 1))

	s := rt.String()
	require.True(t, strings.Contains(s, "# nodes in Bucket with depth 7: 1"))
	require.True(t, strings.Contains(s, "Node: 80 (stale: 0)"))
	require.True(t, strings.Contains(s, "Total Contacts: 2"))
}
