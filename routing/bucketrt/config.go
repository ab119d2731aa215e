package bucketrt

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/plprobelab/go-kadtable/kaderr"
)

var errNilConfig = &kaderr.ConfigurationError{
	Component: "RoutingTableConfig",
	Err:       errors.New("config must not be nil"),
}

// Config holds the configuration of a Table and its buckets.
type Config struct {
	// BucketSize is the 'k' parameter defined by Kademlia: the maximum number of
	// active contacts held by a bucket.
	BucketSize int

	// ReplacementCacheSize is the maximum number of contacts each bucket keeps
	// aside to replace unresponsive ones. Zero disables the replacement cache.
	ReplacementCacheSize int

	// StaleThreshold is the stale count at which an active contact may be
	// evicted in favour of a newly seen peer.
	StaleThreshold int

	Clock  clock.Clock // a clock that may replaced by a mock when testing
	Logger *zap.Logger

	// Registerer is used to register the table's metrics. If nil, metrics are
	// still collected but not registered.
	Registerer prometheus.Registerer
}

// Validate checks the configuration options and returns an error if any have invalid values.
func (cfg *Config) Validate() error {
	if cfg.BucketSize < 1 {
		return &kaderr.ConfigurationError{
			Component: "RoutingTableConfig",
			Err:       fmt.Errorf("bucket size must be greater than zero"),
		}
	}
	if cfg.ReplacementCacheSize < 0 {
		return &kaderr.ConfigurationError{
			Component: "RoutingTableConfig",
			Err:       fmt.Errorf("replacement cache size must not be negative"),
		}
	}
	if cfg.StaleThreshold < 1 {
		return &kaderr.ConfigurationError{
			Component: "RoutingTableConfig",
			Err:       fmt.Errorf("stale threshold must be greater than zero"),
		}
	}
	if cfg.Clock == nil {
		return &kaderr.ConfigurationError{
			Component: "RoutingTableConfig",
			Err:       fmt.Errorf("clock must not be nil"),
		}
	}
	if cfg.Logger == nil {
		return &kaderr.ConfigurationError{
			Component: "RoutingTableConfig",
			Err:       fmt.Errorf("logger must not be nil"),
		}
	}
	return nil
}

// DefaultConfig returns the default configuration options for a Table.
// Options may be overridden before passing to New.
func DefaultConfig() *Config {
	return &Config{
		BucketSize:           5,
		ReplacementCacheSize: 3,
		StaleThreshold:       1,
		Clock:                clock.New(), // use standard time
		Logger:               zap.NewNop(),
	}
}
