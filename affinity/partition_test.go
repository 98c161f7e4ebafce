// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package affinity

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodes(n int) []Node {
	out := make([]Node, n)
	for i := range out {
		out[i] = Node{
			ID:           fmt.Sprintf("node-%02d", i),
			ConsistentID: fmt.Sprintf("cid-%02d", i),
			Addr:         fmt.Sprintf("10.0.0.%d:47100", i+1),
		}
	}
	return out
}

func TestPartitionOf(t *testing.T) {
	a := New()
	assert.Equal(t, DefaultPartitions, a.Partitions())
	assert.Equal(t, 0, a.PartitionOf(math.MinInt32))
	assert.Equal(t, 7, a.PartitionOf(7))
	assert.Equal(t, 7, a.PartitionOf(-7))
	assert.Equal(t, 2, a.PartitionOf(10002))
	assert.Equal(t, int(math.MaxInt32%DefaultPartitions), a.PartitionOf(math.MaxInt32))

	small := New(WithPartitions(16))
	for h := int32(-1000); h < 1000; h++ {
		p := small.PartitionOf(h)
		require.GreaterOrEqual(t, p, 0)
		require.Less(t, p, 16)
	}
}

func TestPartitionAffinityDeterministic(t *testing.T) {
	ns := nodes(5)
	a, b := New(), New()
	topoA := NewTopology(1, ns...)
	// Same members in a different order.
	topoB := NewTopology(1, ns[4], ns[2], ns[0], ns[3], ns[1])

	for p := 0; p < a.Partitions(); p += 37 {
		na, err := a.NodeFor(p, topoA)
		require.NoError(t, err)
		nb, err := b.NodeFor(p, topoB)
		require.NoError(t, err)
		require.Equal(t, na.ID, nb.ID, "partition %d", p)
	}

	for _, key := range []any{"user:1", int32(99), int64(1) << 40, true} {
		pa, na, err := a.NodeForKey(key, topoA)
		require.NoError(t, err)
		pb, nb, err := b.NodeForKey(key, topoB)
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
		assert.Equal(t, na.ID, nb.ID)
	}
}

func TestPartitionAffinityMinimalRemap(t *testing.T) {
	a := New(WithPartitions(1024))
	before := NewTopology(1, nodes(4)...)
	after := NewTopology(2, nodes(5)...)
	added := after.At(4).ID

	moved := 0
	for p := 0; p < a.Partitions(); p++ {
		nb, err := a.NodeFor(p, before)
		require.NoError(t, err)
		na, err := a.NodeFor(p, after)
		require.NoError(t, err)
		if nb.ID != na.ID {
			moved++
			require.Equal(t, added, na.ID, "partition %d moved between old nodes", p)
		}
	}
	assert.Positive(t, moved)
	assert.Less(t, moved, a.Partitions()/2)
}

func TestPartitionAffinityEmptyTopology(t *testing.T) {
	a := New()
	_, err := a.NodeFor(0, NewTopology(1))
	require.ErrorIs(t, err, ErrNoAvailableNode)
	_, err = a.NodeFor(0, nil)
	require.ErrorIs(t, err, ErrNoAvailableNode)
	_, _, err = a.NodeForKey("k", NewTopology(1))
	require.ErrorIs(t, err, ErrNoAvailableNode)
	_, err = a.PartitionsOf("node-00", NewTopology(1))
	require.ErrorIs(t, err, ErrNoAvailableNode)
}

func TestPartitionAffinityInvalidPartition(t *testing.T) {
	a := New(WithPartitions(8))
	topo := NewTopology(1, nodes(2)...)
	_, err := a.NodeFor(8, topo)
	require.ErrorIs(t, err, ErrInvalidPartition)
	_, err = a.NodeFor(-1, topo)
	require.ErrorIs(t, err, ErrInvalidPartition)
}

func TestPartitionsOfCoversSpace(t *testing.T) {
	a := New(WithPartitions(512))
	topo := NewTopology(1, nodes(3)...)
	all, err := a.Assignments(topo)
	require.NoError(t, err)
	require.Len(t, all, 3)

	var total uint64
	for id, bm := range all {
		total += bm.GetCardinality()
		single, err := a.PartitionsOf(id, topo)
		require.NoError(t, err)
		assert.True(t, single.Equals(bm))
		for _, p := range bm.ToArray() {
			n, err := a.NodeFor(int(p), topo)
			require.NoError(t, err)
			require.Equal(t, id, n.ID)
		}
	}
	assert.Equal(t, uint64(512), total)

	none, err := a.PartitionsOf("missing", topo)
	require.NoError(t, err)
	assert.True(t, none.IsEmpty())
}

func TestNodesForBackups(t *testing.T) {
	a := New()
	topo := NewTopology(1, nodes(3)...)
	owners, err := a.NodesFor(17, topo, 5)
	require.NoError(t, err)
	require.Len(t, owners, 3)
	primary, err := a.NodeFor(17, topo)
	require.NoError(t, err)
	assert.Equal(t, primary.ID, owners[0].ID)
	assert.NotEqual(t, owners[0].ID, owners[1].ID)
	assert.NotEqual(t, owners[1].ID, owners[2].ID)
	assert.NotEqual(t, owners[0].ID, owners[2].ID)
}

func TestHashIDResolver(t *testing.T) {
	ns := nodes(4)
	byCID := New(WithHashIDResolver(ConsistentIDResolver))
	topo := NewTopology(1, ns...)

	// Restarted nodes keep their consistent ID but get new node IDs.
	restarted := make([]Node, len(ns))
	for i, n := range ns {
		n.ID = fmt.Sprintf("restart-%02d", i)
		restarted[i] = n
	}
	topo2 := NewTopology(2, restarted...)
	for p := 0; p < byCID.Partitions(); p += 101 {
		n1, err := byCID.NodeFor(p, topo)
		require.NoError(t, err)
		n2, err := byCID.NodeFor(p, topo2)
		require.NoError(t, err)
		assert.Equal(t, n1.ConsistentID, n2.ConsistentID)
	}

	assert.Equal(t, "x", ConsistentIDResolver(Node{ID: "x"}))
}

func TestPartitionAffinityConcurrent(t *testing.T) {
	a := New()
	topos := []*Topology{NewTopology(1, nodes(3)...), NewTopology(2, nodes(4)...)}
	want := make([]string, len(topos))
	for i, topo := range topos {
		n, err := New().NodeFor(42, topo)
		require.NoError(t, err)
		want[i] = n.ID
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				idx := (g + i) % len(topos)
				n, err := a.NodeFor(42, topos[idx])
				assert.NoError(t, err)
				assert.Equal(t, want[idx], n.ID)
			}
		}(g)
	}
	wg.Wait()
}

func TestTopology(t *testing.T) {
	ns := nodes(3)
	topo := NewTopology(3, ns[2], ns[0], ns[1], ns[0])
	assert.Equal(t, 3, topo.Len())
	assert.Equal(t, "node-00", topo.At(0).ID)
	n, ok := topo.Node("node-02")
	require.True(t, ok)
	assert.Equal(t, ns[2].Addr, n.Addr)
	_, ok = topo.Node("node-09")
	assert.False(t, ok)

	var nilTopo *Topology
	assert.Equal(t, 0, nilTopo.Len())
	assert.Nil(t, nilTopo.Nodes())
}
