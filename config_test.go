// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/gridclient/affinity"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"nodes": [
			{"id": "b", "addr": "10.0.0.2:7000", "consistent_id": "host-b"},
			{"id": "a", "addr": "10.0.0.1:7000"}
		],
		"caches": [
			{"name": "people"},
			{"name": "ref", "mode": "replicated"},
			{"name": "small", "partitions": 64}
		],
		"dial_timeout": "250ms",
		"request_timeout": 2000000000,
		"hash_id": "consistent"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, time.Duration(cfg.DialTimeout))
	assert.Equal(t, 2*time.Second, time.Duration(cfg.RequestTimeout))
	assert.Equal(t, time.Second, time.Duration(cfg.RedialInterval))
	assert.Equal(t, TransportTCP, cfg.Transport)
	assert.Equal(t, affinity.DefaultPartitions, cfg.Partitions)
	assert.Equal(t, ModePartitioned, cfg.Caches[0].Mode)
	assert.Equal(t, ModeReplicated, cfg.Caches[1].Mode)

	topo := cfg.Topology()
	require.Equal(t, 2, topo.Len())
	assert.Equal(t, "a", topo.At(0).ID)
	b, ok := topo.Node("b")
	require.True(t, ok)
	assert.Equal(t, "host-b", b.ConsistentID)

	assert.Equal(t, 64, cfg.AffinityFor(cfg.Caches[2]).Partitions())
	assert.Equal(t, affinity.DefaultPartitions, cfg.AffinityFor(cfg.Caches[0]).Partitions())
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"nodes": [`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeConfig(t, `{"dial_timeout": "soon"}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeConfig(t, `{"nodes": [{"id": "a"}]}`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	tests := map[string]func(*Config){
		"transport":      func(c *Config) { c.Transport = "smoke-signal" },
		"compression":    func(c *Config) { c.Compression = "brotli" },
		"hash id":        func(c *Config) { c.HashID = "random" },
		"node id":        func(c *Config) { c.Nodes = []NodeConfig{{Addr: "x:1"}} },
		"duplicate node": func(c *Config) { c.Nodes = []NodeConfig{{ID: "a", Addr: "x:1"}, {ID: "a", Addr: "x:2"}} },
		"cache name":     func(c *Config) { c.Caches = []CacheConfig{{Mode: ModePartitioned}} },
		"cache mode":     func(c *Config) { c.Caches = []CacheConfig{{Name: "c", Mode: "sharded"}} },
		"partitions":     func(c *Config) { c.Caches = []CacheConfig{{Name: "c", Mode: ModePartitioned, Partitions: -1}} },
		"duplicate cache": func(c *Config) {
			c.Caches = []CacheConfig{{Name: "c", Mode: ModePartitioned}, {Name: "c", Mode: ModePartitioned}}
		},
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}

	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestDurationJSON(t *testing.T) {
	b, err := Duration(1500 * time.Millisecond).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(b))

	var d Duration
	require.NoError(t, d.UnmarshalJSON(b))
	assert.Equal(t, 1500*time.Millisecond, time.Duration(d))
	assert.Error(t, d.UnmarshalJSON([]byte(`true`)))
}
