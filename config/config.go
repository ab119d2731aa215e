// Package config holds the node wide configuration of a Kademlia node and
// loads it from YAML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/plprobelab/go-kadtable/kaderr"
	"github.com/plprobelab/go-kadtable/routing/bucketrt"
)

// Config is the configuration of a Kademlia node. The routing table only
// reads the bucket parameters; the timings are consumed by the network and
// lookup layers.
type Config struct {
	// BucketSize is the maximum number of active contacts per bucket and the
	// number of peers returned by closest node queries.
	BucketSize int `yaml:"k"`

	// ReplacementCacheSize is the number of peers each bucket keeps aside to
	// replace unresponsive contacts.
	ReplacementCacheSize int `yaml:"replacement_cache_size"`

	// StaleThreshold is the number of unanswered requests after which a
	// contact may be evicted.
	StaleThreshold int `yaml:"stale"`

	// RestoreInterval is the time between two refreshes of the routing table.
	RestoreInterval time.Duration `yaml:"restore_interval"`

	// ResponseTimeout is how long to wait for a peer to answer a single message.
	ResponseTimeout time.Duration `yaml:"response_timeout"`

	// OperationTimeout is how long a whole operation, such as a lookup, may take.
	OperationTimeout time.Duration `yaml:"operation_timeout"`

	MaxConcurrentMessages int  `yaml:"max_concurrent_messages"`
	Testing               bool `yaml:"testing"`
}

// Default returns the default node configuration.
func Default() *Config {
	return &Config{
		BucketSize:            5,
		ReplacementCacheSize:  3,
		StaleThreshold:        1,
		RestoreInterval:       time.Minute,
		ResponseTimeout:       2 * time.Second,
		OperationTimeout:      2 * time.Second,
		MaxConcurrentMessages: 10,
	}
}

// Load reads the configuration held in the YAML file at path. Options missing
// from the file keep their default value.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a YAML configuration from r. Unknown options are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Write encodes the configuration as YAML to w.
func (cfg *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// Validate checks the configuration options and returns an error if any have invalid values.
func (cfg *Config) Validate() error {
	if cfg.BucketSize < 1 {
		return &kaderr.ConfigurationError{
			Component: "NodeConfig",
			Err:       fmt.Errorf("k must be greater than zero"),
		}
	}
	if cfg.ReplacementCacheSize < 0 {
		return &kaderr.ConfigurationError{
			Component: "NodeConfig",
			Err:       fmt.Errorf("replacement cache size must not be negative"),
		}
	}
	if cfg.StaleThreshold < 1 {
		return &kaderr.ConfigurationError{
			Component: "NodeConfig",
			Err:       fmt.Errorf("stale threshold must be greater than zero"),
		}
	}
	if cfg.RestoreInterval <= 0 {
		return &kaderr.ConfigurationError{
			Component: "NodeConfig",
			Err:       fmt.Errorf("restore interval must be greater than zero"),
		}
	}
	if cfg.ResponseTimeout <= 0 {
		return &kaderr.ConfigurationError{
			Component: "NodeConfig",
			Err:       fmt.Errorf("response timeout must be greater than zero"),
		}
	}
	if cfg.OperationTimeout < cfg.ResponseTimeout {
		return &kaderr.ConfigurationError{
			Component: "NodeConfig",
			Err:       fmt.Errorf("operation timeout must not be shorter than the response timeout"),
		}
	}
	if cfg.MaxConcurrentMessages < 1 {
		return &kaderr.ConfigurationError{
			Component: "NodeConfig",
			Err:       fmt.Errorf("max concurrent messages must be greater than zero"),
		}
	}
	return nil
}

// RoutingConfig returns the routing table configuration derived from cfg.
// reg may be nil.
func (cfg *Config) RoutingConfig(clk clock.Clock, logger *zap.Logger, reg prometheus.Registerer) *bucketrt.Config {
	return &bucketrt.Config{
		BucketSize:           cfg.BucketSize,
		ReplacementCacheSize: cfg.ReplacementCacheSize,
		StaleThreshold:       cfg.StaleThreshold,
		Clock:                clk,
		Logger:               logger,
		Registerer:           reg,
	}
}
