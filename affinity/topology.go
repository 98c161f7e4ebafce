// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package affinity

import (
	"slices"
	"strings"
)

// Node is a grid member as seen by the client.
type Node struct {
	ID           string
	ConsistentID string
	Addr         string
	Attributes   map[string]string
}

// Topology is an immutable snapshot of live nodes. It is replaced, never
// modified, when the grid membership changes.
type Topology struct {
	Version int64
	nodes   []Node
}

// NewTopology returns a snapshot of nodes ordered by ID. Later duplicates of
// an ID are dropped.
func NewTopology(version int64, nodes ...Node) *Topology {
	sorted := make([]Node, 0, len(nodes))
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		sorted = append(sorted, n)
	}
	slices.SortFunc(sorted, func(a, b Node) int { return strings.Compare(a.ID, b.ID) })
	return &Topology{Version: version, nodes: sorted}
}

// Nodes returns a copy of the snapshot's nodes.
func (t *Topology) Nodes() []Node {
	if t == nil {
		return nil
	}
	return slices.Clone(t.nodes)
}

// Len returns the number of nodes.
func (t *Topology) Len() int {
	if t == nil {
		return 0
	}
	return len(t.nodes)
}

// Node looks a node up by ID.
func (t *Topology) Node(id string) (Node, bool) {
	if t == nil {
		return Node{}, false
	}
	i, ok := slices.BinarySearchFunc(t.nodes, id, func(n Node, id string) int { return strings.Compare(n.ID, id) })
	if !ok {
		return Node{}, false
	}
	return t.nodes[i], true
}

// At returns the i-th node in ID order.
func (t *Topology) At(i int) Node {
	return t.nodes[i]
}

// HashIDResolver chooses the identity a node is placed on the ring by.
type HashIDResolver func(Node) string

// NodeIDResolver places nodes by their ID.
func NodeIDResolver(n Node) string { return n.ID }

// ConsistentIDResolver places nodes by their consistent ID, which survives
// restarts, and falls back to the ID when none is set.
func ConsistentIDResolver(n Node) string {
	if n.ConsistentID != "" {
		return n.ConsistentID
	}
	return n.ID
}
