// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package affinity maps cache keys to partitions and partitions to the nodes
// that own them, so the client can route a request without asking the grid.
//
// A key is first reduced to an int32 hash by a [Hashable] adapter. The hash
// picks a partition in a fixed space ([PartitionAffinity.PartitionOf]); the
// partition is then placed on a consistent-hash [Ring] built from the current
// [Topology] snapshot. Both steps must match the grid's own scheme, otherwise
// requests land on the wrong node and rely on server-side redirection.
package affinity
