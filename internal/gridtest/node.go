// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gridtest runs in-process grid nodes for tests.
package gridtest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/gridclient"
	"github.com/luxfi/gridclient/affinity"
	"github.com/luxfi/gridclient/portable"
	"github.com/luxfi/gridclient/protocol"
)

// Task is a compute task a node can run.
type Task func(ctx context.Context, req *protocol.TaskRequest) (any, error)

type entry struct {
	key   any
	value any
}

// Node is a grid node holding caches in memory. Entries are bucketed by the
// key's hash and matched with the key type's own equality, the way a real
// node treats portable keys.
type Node struct {
	ID string

	server gridclient.Server
	m      *portable.Marshaller
	cancel context.CancelFunc
	served atomic.Int64

	mu     sync.Mutex
	caches map[string]map[int32][]entry
	tasks  map[string]Task
}

// Start listens on a loopback port and serves until the test ends. reg must
// hold every user type the node will decode; the protocol types are added.
func Start(t testing.TB, id string, reg *portable.Registry, opts ...gridclient.ServerOption) *Node {
	t.Helper()
	require.NoError(t, protocol.RegisterTypes(reg))

	srv, err := gridclient.Listen("127.0.0.1:0", opts...)
	require.NoError(t, err)

	n := &Node{
		ID:     id,
		server: srv,
		m:      portable.NewMarshaller(reg),
		caches: make(map[string]map[int32][]entry),
		tasks:  make(map[string]Task),
	}
	require.NoError(t, srv.RegisterRaw(protocol.MethodCache, n.handleCache))
	require.NoError(t, srv.RegisterRaw(protocol.MethodTask, n.handleTask))

	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	go func() { _ = srv.Serve(ctx) }()
	t.Cleanup(n.Close)
	return n
}

// Cluster starts count nodes named node-0, node-1 and so on.
func Cluster(t testing.TB, count int, reg *portable.Registry, opts ...gridclient.ServerOption) []*Node {
	t.Helper()
	nodes := make([]*Node, count)
	for i := range nodes {
		nodes[i] = Start(t, fmt.Sprintf("node-%d", i), reg, opts...)
	}
	return nodes
}

// Topology returns a snapshot of nodes.
func Topology(version int64, nodes ...*Node) *affinity.Topology {
	members := make([]affinity.Node, len(nodes))
	for i, n := range nodes {
		members[i] = n.Node()
	}
	return affinity.NewTopology(version, members...)
}

// Config returns a client config listing nodes and the given partitioned
// caches.
func Config(nodes []*Node, caches ...string) gridclient.Config {
	cfg := gridclient.DefaultConfig()
	for _, n := range nodes {
		cfg.Nodes = append(cfg.Nodes, gridclient.NodeConfig{ID: n.ID, Addr: n.Addr()})
	}
	for _, c := range caches {
		cfg.Caches = append(cfg.Caches, gridclient.CacheConfig{Name: c, Mode: gridclient.ModePartitioned})
	}
	return cfg
}

// Node returns the topology member describing n.
func (n *Node) Node() affinity.Node {
	return affinity.Node{ID: n.ID, Addr: n.Addr()}
}

// Addr returns the listen address.
func (n *Node) Addr() string { return n.server.Addr() }

// Served returns the number of requests handled.
func (n *Node) Served() int64 { return n.served.Load() }

// RegisterTask makes task runnable under name.
func (n *Node) RegisterTask(name string, task Task) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks[name] = task
}

// Len returns the number of entries in cache.
func (n *Node) Len(cache string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, bucket := range n.caches[cache] {
		count += len(bucket)
	}
	return count
}

// Close stops the node.
func (n *Node) Close() {
	n.cancel()
	_ = n.server.Close()
}

func (n *Node) hash(key any) (int32, error) {
	if h, ok := n.m.HashCode(key); ok {
		return h, nil
	}
	return affinity.HashCode(key)
}

func (n *Node) respond(result any, err error) ([]byte, error) {
	if err != nil {
		return n.m.Marshal(protocol.Failed(err))
	}
	return n.m.Marshal(protocol.OK(result))
}

func (n *Node) handleCache(_ context.Context, payload []byte) ([]byte, error) {
	n.served.Add(1)
	var req protocol.CacheRequest
	if err := n.m.UnmarshalInto(payload, &req); err != nil {
		return nil, err
	}
	h, err := n.hash(req.Key)
	if err != nil {
		return n.respond(nil, err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	cache, ok := n.caches[req.Cache]
	if !ok {
		cache = make(map[int32][]entry)
		n.caches[req.Cache] = cache
	}
	bucket := cache[h]
	idx := -1
	for i, e := range bucket {
		if n.m.Equal(e.key, req.Key) {
			idx = i
			break
		}
	}

	switch req.Op {
	case protocol.OpPut:
		if idx >= 0 {
			bucket[idx].value = req.Value
		} else {
			cache[h] = append(bucket, entry{key: req.Key, value: req.Value})
		}
		return n.respond(true, nil)
	case protocol.OpGet:
		if idx < 0 {
			return n.respond(nil, nil)
		}
		return n.respond(bucket[idx].value, nil)
	case protocol.OpRemove:
		if idx < 0 {
			return n.respond(false, nil)
		}
		cache[h] = append(bucket[:idx], bucket[idx+1:]...)
		return n.respond(true, nil)
	default:
		return n.respond(nil, fmt.Errorf("unknown op %q", req.Op))
	}
}

func (n *Node) handleTask(ctx context.Context, payload []byte) ([]byte, error) {
	n.served.Add(1)
	var req protocol.TaskRequest
	if err := n.m.UnmarshalInto(payload, &req); err != nil {
		return nil, err
	}
	n.mu.Lock()
	task, ok := n.tasks[req.Task]
	n.mu.Unlock()
	if !ok {
		return n.respond(nil, fmt.Errorf("unknown task %q", req.Task))
	}
	return n.respond(task(ctx, &req))
}
