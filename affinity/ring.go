// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package affinity

import (
	"encoding/binary"
	"sort"

	"github.com/cespare/xxhash/v2"
)

type ringPoint struct {
	hash uint64
	node int
}

// Ring is a consistent-hash ring over a fixed node set. Each node occupies
// replicas virtual points, so adding or removing one node only moves the
// partitions adjacent to its points.
type Ring struct {
	nodes  []Node
	points []ringPoint
}

// NewRing places nodes on a ring using the identity chosen by resolve.
func NewRing(nodes []Node, replicas int, resolve HashIDResolver) *Ring {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	if resolve == nil {
		resolve = NodeIDResolver
	}
	r := &Ring{
		nodes:  nodes,
		points: make([]ringPoint, 0, len(nodes)*replicas),
	}
	var buf []byte
	for i, n := range nodes {
		id := resolve(n)
		for v := 0; v < replicas; v++ {
			buf = append(buf[:0], id...)
			buf = binary.BigEndian.AppendUint32(buf, uint32(v))
			r.points = append(r.points, ringPoint{hash: xxhash.Sum64(buf), node: i})
		}
	}
	sort.Slice(r.points, func(i, j int) bool {
		if r.points[i].hash != r.points[j].hash {
			return r.points[i].hash < r.points[j].hash
		}
		return r.points[i].node < r.points[j].node
	})
	return r
}

// Len returns the number of nodes on the ring.
func (r *Ring) Len() int { return len(r.nodes) }

func (r *Ring) search(key uint64) int {
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= key })
	if i == len(r.points) {
		i = 0
	}
	return i
}

// Lookup returns the node owning key.
func (r *Ring) Lookup(key uint64) (Node, bool) {
	if len(r.points) == 0 {
		return Node{}, false
	}
	return r.nodes[r.points[r.search(key)].node], true
}

// Owners returns up to n distinct nodes for key, walking the ring clockwise
// from the primary owner.
func (r *Ring) Owners(key uint64, n int) []Node {
	if len(r.points) == 0 || n <= 0 {
		return nil
	}
	n = min(n, len(r.nodes))
	out := make([]Node, 0, n)
	seen := make([]bool, len(r.nodes))
	for i, start := 0, r.search(key); i < len(r.points) && len(out) < n; i++ {
		p := r.points[(start+i)%len(r.points)]
		if seen[p.node] {
			continue
		}
		seen[p.node] = true
		out = append(out, r.nodes[p.node])
	}
	return out
}

func partitionKey(partition int) uint64 {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(partition))
	return xxhash.Sum64(b[:])
}
