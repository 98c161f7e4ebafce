// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package affinity

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

const (
	// DefaultPartitions is the size of the partition space.
	DefaultPartitions = 10000
	// DefaultReplicas is the number of ring points per node.
	DefaultReplicas = 128
)

// Option configures a PartitionAffinity.
type Option func(*PartitionAffinity)

// WithPartitions sets the partition count. Values below one are ignored.
func WithPartitions(n int) Option {
	return func(a *PartitionAffinity) {
		if n > 0 {
			a.partitions = n
		}
	}
}

// WithReplicas sets the number of ring points per node.
func WithReplicas(n int) Option {
	return func(a *PartitionAffinity) {
		if n > 0 {
			a.replicas = n
		}
	}
}

// WithHashIDResolver sets how nodes are identified on the ring.
func WithHashIDResolver(r HashIDResolver) Option {
	return func(a *PartitionAffinity) {
		if r != nil {
			a.hashID = r
		}
	}
}

type ringCache struct {
	topo *Topology
	ring *Ring
}

// PartitionAffinity is a deterministic key to partition to node mapping.
// Two instances built with the same options agree on every mapping for the
// same topology. It is safe for concurrent use.
type PartitionAffinity struct {
	partitions int
	replicas   int
	hashID     HashIDResolver

	cache atomic.Pointer[ringCache]
}

// New returns a PartitionAffinity with the given options applied over the
// defaults.
func New(opts ...Option) *PartitionAffinity {
	a := &PartitionAffinity{
		partitions: DefaultPartitions,
		replicas:   DefaultReplicas,
		hashID:     NodeIDResolver,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Partitions returns the size of the partition space.
func (a *PartitionAffinity) Partitions() int { return a.partitions }

// PartitionOf maps a key hash into [0, Partitions).
func (a *PartitionAffinity) PartitionOf(hash int32) int {
	return int(safeAbs(hash)) % a.partitions
}

// safeAbs is abs with MinInt32 mapped to zero, since its negation overflows.
func safeAbs(h int32) int32 {
	if h == math.MinInt32 {
		return 0
	}
	if h < 0 {
		return -h
	}
	return h
}

// Partition returns the partition of key.
func (a *PartitionAffinity) Partition(key any) (int, error) {
	h, err := HashCode(key)
	if err != nil {
		return 0, err
	}
	return a.PartitionOf(h), nil
}

func (a *PartitionAffinity) ring(topo *Topology) *Ring {
	if c := a.cache.Load(); c != nil && c.topo == topo {
		return c.ring
	}
	r := NewRing(topo.nodes, a.replicas, a.hashID)
	a.cache.Store(&ringCache{topo: topo, ring: r})
	return r
}

func (a *PartitionAffinity) checkPartition(partition int) error {
	if partition < 0 || partition >= a.partitions {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidPartition, partition, a.partitions)
	}
	return nil
}

// NodeFor returns the primary node for partition in topo.
func (a *PartitionAffinity) NodeFor(partition int, topo *Topology) (Node, error) {
	if err := a.checkPartition(partition); err != nil {
		return Node{}, err
	}
	if topo.Len() == 0 {
		return Node{}, ErrNoAvailableNode
	}
	n, ok := a.ring(topo).Lookup(partitionKey(partition))
	if !ok {
		return Node{}, ErrNoAvailableNode
	}
	return n, nil
}

// NodesFor returns the primary node followed by up to count-1 backups.
func (a *PartitionAffinity) NodesFor(partition int, topo *Topology, count int) ([]Node, error) {
	if err := a.checkPartition(partition); err != nil {
		return nil, err
	}
	if topo.Len() == 0 {
		return nil, ErrNoAvailableNode
	}
	return a.ring(topo).Owners(partitionKey(partition), count), nil
}

// NodeForKey returns the partition of key and its primary node.
func (a *PartitionAffinity) NodeForKey(key any, topo *Topology) (int, Node, error) {
	p, err := a.Partition(key)
	if err != nil {
		return 0, Node{}, err
	}
	n, err := a.NodeFor(p, topo)
	return p, n, err
}

// Assignments returns the primary partitions of every node in topo.
func (a *PartitionAffinity) Assignments(topo *Topology) (map[string]*roaring.Bitmap, error) {
	if topo.Len() == 0 {
		return nil, ErrNoAvailableNode
	}
	r := a.ring(topo)
	out := make(map[string]*roaring.Bitmap, topo.Len())
	for _, n := range topo.nodes {
		out[n.ID] = roaring.New()
	}
	for p := 0; p < a.partitions; p++ {
		n, _ := r.Lookup(partitionKey(p))
		out[n.ID].Add(uint32(p))
	}
	return out, nil
}

// PartitionsOf returns the partitions whose primary is nodeID. The result is
// empty when nodeID is not part of topo.
func (a *PartitionAffinity) PartitionsOf(nodeID string, topo *Topology) (*roaring.Bitmap, error) {
	all, err := a.Assignments(topo)
	if err != nil {
		return nil, err
	}
	if bm, ok := all[nodeID]; ok {
		return bm, nil
	}
	return roaring.New(), nil
}
