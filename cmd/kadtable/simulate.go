package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/netip"

	"github.com/benbjohnson/clock"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plprobelab/go-kadtable/kad"
	"github.com/plprobelab/go-kadtable/key"
	"github.com/plprobelab/go-kadtable/key/hashkey"
	"github.com/plprobelab/go-kadtable/network/address"
	"github.com/plprobelab/go-kadtable/routing/bucketrt"
)

type simulateOptions struct {
	self         string
	target       string
	peers        int
	unresponsive int
	closest      int
	seed         int64
	width        int
}

var simOpts simulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Fill a routing table with simulated peers and query it",
	Long: `simulate creates a routing table for the identity derived from --self,
inserts --peers pseudo-random peers, reports --unresponsive of them as
unresponsive and prints the table along with the --closest peers to --target.

With --width 256 a --self value that parses as a libp2p peer ID is used as
such; any other value is hashed.`,
	RunE: runSimulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.self, "self", "self", "identity of the local node")
	f.StringVar(&simOpts.target, "target", "target", "value whose closest peers are printed")
	f.IntVar(&simOpts.peers, "peers", 100, "number of simulated peers")
	f.IntVar(&simOpts.unresponsive, "unresponsive", 10, "number of peers reported as unresponsive")
	f.IntVar(&simOpts.closest, "closest", 0, "number of closest peers to print (k if zero)")
	f.Int64Var(&simOpts.seed, "seed", 1, "seed of the peer generator")
	f.IntVar(&simOpts.width, "width", 160, "key width in bits, 160 or 256")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	opts := simOpts
	if opts.peers < 0 || opts.unresponsive < 0 || opts.closest < 0 {
		return fmt.Errorf("peers, unresponsive and closest must not be negative")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync() // nolint:errcheck

	reg := prometheus.NewRegistry()
	rcfg := cfg.RoutingConfig(clock.New(), logger, reg)
	if opts.closest == 0 {
		opts.closest = cfg.BucketSize
	}

	switch opts.width {
	case 160:
		err = simulate(cmd.Context(), cmd.OutOrStdout(), rcfg, hashkey.Key160FromString, opts)
	case 256:
		err = simulate(cmd.Context(), cmd.OutOrStdout(), rcfg, key256, opts)
	default:
		return fmt.Errorf("unsupported key width: %d", opts.width)
	}
	if err != nil {
		return err
	}
	return printMetrics(cmd.OutOrStdout(), reg)
}

func key256(s string) key.Key256 {
	if id, err := peer.Decode(s); err == nil {
		return hashkey.Key256FromPeerID(id)
	}
	return hashkey.Key256FromString(s)
}

func simulate[K kad.ComparableKey[K]](ctx context.Context, w io.Writer, cfg *bucketrt.Config, keyOf func(string) K, opts simulateOptions) error {
	rng := rand.New(rand.NewSource(opts.seed))

	self, err := randomAddr(rng, keyOf(opts.self))
	if err != nil {
		return err
	}
	rt, err := bucketrt.New(self, cfg)
	if err != nil {
		return err
	}

	peers := make([]*address.PeerAddress[K], 0, opts.peers)
	for i := 0; i < opts.peers; i++ {
		a, err := randomAddr(rng, keyOf(fmt.Sprintf("peer-%d-%d", opts.seed, i)))
		if err != nil {
			return err
		}
		peers = append(peers, a)
		rt.Insert(ctx, a)
	}

	unresponsive := opts.unresponsive
	if unresponsive > len(peers) {
		unresponsive = len(peers)
	}
	rng.Shuffle(len(peers), func(i, j int) { peers[i], peers[j] = peers[j], peers[i] })
	rt.MarkUnresponsive(ctx, peers[:unresponsive]...)

	cfg.Logger.Debug("simulation done",
		zap.Int("peers", opts.peers),
		zap.Int("unresponsive", unresponsive),
		zap.Int("contacts", rt.Size()))

	fmt.Fprintf(w, "self: %s (%s)\n", self, self.AddrPort())
	fmt.Fprintln(w, rt.String())

	target := keyOf(opts.target)
	fmt.Fprintf(w, "\n%d closest peers to %s:\n", opts.closest, key.HexString(target))
	for i, a := range rt.NearestNodes(ctx, target, opts.closest) {
		m, err := a.Multiaddr()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%3d  %s  %s  bucket %d\n", i+1, a, m, rt.BucketIndex(a.Key()))
	}
	return nil
}

func randomAddr[K kad.Key[K]](rng *rand.Rand, k K) (*address.PeerAddress[K], error) {
	ip := netip.AddrFrom4([4]byte{10, byte(rng.Intn(256)), byte(rng.Intn(256)), byte(1 + rng.Intn(254))})
	return address.New(k, ip, uint16(1024+rng.Intn(64511)))
}

func printMetrics(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	fmt.Fprintln(w, "\nmetrics:")
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}
