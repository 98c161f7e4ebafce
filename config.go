// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"fmt"
	"os"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/luxfi/gridclient/affinity"
	"github.com/luxfi/gridclient/internal/compress"
)

// Cache modes.
const (
	ModePartitioned = "partitioned"
	ModeReplicated  = "replicated"
)

// Hash id resolvers accepted in Config.HashID.
const (
	HashIDNode       = "node"
	HashIDConsistent = "consistent"
)

// Duration is a time.Duration that reads "1.5s" style strings or integer
// nanoseconds from JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := gojson.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case float64:
		*d = Duration(time.Duration(x))
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", b)
	}
	return nil
}

// NodeConfig describes a grid node known at startup.
type NodeConfig struct {
	ID           string            `json:"id"`
	ConsistentID string            `json:"consistent_id,omitempty"`
	Addr         string            `json:"addr"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// CacheConfig describes a named cache.
type CacheConfig struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
	// Partitions overrides Config.Partitions for this cache.
	Partitions int `json:"partitions,omitempty"`
}

// Config is the client configuration.
type Config struct {
	Nodes          []NodeConfig  `json:"nodes"`
	Caches         []CacheConfig `json:"caches"`
	Transport      string        `json:"transport"`
	Compression    string        `json:"compression"`
	DialTimeout    Duration      `json:"dial_timeout"`
	RequestTimeout Duration      `json:"request_timeout"`
	RedialInterval Duration      `json:"redial_interval"`
	Partitions     int           `json:"partitions"`
	Replicas       int           `json:"replicas"`
	HashID         string        `json:"hash_id"`
	LogLevel       string        `json:"log_level"`
}

// DefaultConfig returns a config with no nodes or caches.
func DefaultConfig() Config {
	return Config{
		Transport:      TransportTCP,
		Compression:    compress.None,
		DialTimeout:    Duration(5 * time.Second),
		RequestTimeout: Duration(30 * time.Second),
		RedialInterval: Duration(time.Second),
		Partitions:     affinity.DefaultPartitions,
		Replicas:       affinity.DefaultReplicas,
		HashID:         HashIDNode,
		LogLevel:       "info",
	}
}

// Normalize replaces unset fields with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()

	if c.Transport == "" {
		c.Transport = d.Transport
	}
	if c.Compression == "" {
		c.Compression = d.Compression
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.RedialInterval <= 0 {
		c.RedialInterval = d.RedialInterval
	}
	if c.Partitions <= 0 {
		c.Partitions = d.Partitions
	}
	if c.Replicas <= 0 {
		c.Replicas = d.Replicas
	}
	if c.HashID == "" {
		c.HashID = d.HashID
	}
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	for i := range c.Caches {
		if c.Caches[i].Mode == "" {
			c.Caches[i].Mode = ModePartitioned
		}
	}
}

// Validate reports the first problem found in a normalized config.
func (c *Config) Validate() error {
	if !HasTransport(c.Transport) {
		return invalidConfig("transport %q not available (have %v)", c.Transport, AvailableTransports())
	}
	if _, err := compress.ByName(c.Compression); err != nil {
		return invalidConfig("%v", err)
	}
	switch c.HashID {
	case HashIDNode, HashIDConsistent:
	default:
		return invalidConfig("hash_id %q", c.HashID)
	}

	ids := make(map[string]struct{}, len(c.Nodes))
	for i, n := range c.Nodes {
		if n.ID == "" {
			return invalidConfig("node %d has no id", i)
		}
		if n.Addr == "" {
			return invalidConfig("node %q has no addr", n.ID)
		}
		if _, ok := ids[n.ID]; ok {
			return invalidConfig("duplicate node %q", n.ID)
		}
		ids[n.ID] = struct{}{}
	}

	names := make(map[string]struct{}, len(c.Caches))
	for _, cc := range c.Caches {
		if cc.Name == "" {
			return invalidConfig("cache with no name")
		}
		if _, ok := names[cc.Name]; ok {
			return invalidConfig("duplicate cache %q", cc.Name)
		}
		names[cc.Name] = struct{}{}
		switch cc.Mode {
		case ModePartitioned, ModeReplicated:
		default:
			return invalidConfig("cache %q has mode %q", cc.Name, cc.Mode)
		}
		if cc.Partitions < 0 {
			return invalidConfig("cache %q has %d partitions", cc.Name, cc.Partitions)
		}
	}
	return nil
}

// LoadConfig reads a JSON config file over the defaults, normalizes it and
// validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := gojson.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	cfg.Normalize()
	return cfg, cfg.Validate()
}

// Topology returns the startup topology described by the node list.
func (c *Config) Topology() *affinity.Topology {
	nodes := make([]affinity.Node, len(c.Nodes))
	for i, n := range c.Nodes {
		nodes[i] = affinity.Node{
			ID:           n.ID,
			ConsistentID: n.ConsistentID,
			Addr:         n.Addr,
			Attributes:   n.Attributes,
		}
	}
	return affinity.NewTopology(1, nodes...)
}

// AffinityFor returns the affinity function of cache cc.
func (c *Config) AffinityFor(cc CacheConfig) *affinity.PartitionAffinity {
	resolver := affinity.NodeIDResolver
	if c.HashID == HashIDConsistent {
		resolver = affinity.ConsistentIDResolver
	}
	partitions := c.Partitions
	if cc.Partitions > 0 {
		partitions = cc.Partitions
	}
	return affinity.New(
		affinity.WithPartitions(partitions),
		affinity.WithReplicas(c.Replicas),
		affinity.WithHashIDResolver(resolver),
	)
}
