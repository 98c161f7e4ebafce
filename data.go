// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/gridclient/affinity"
	"github.com/luxfi/gridclient/protocol"
)

type dataProjection struct {
	c          *client
	name       string
	replicated bool
	aff        *affinity.PartitionAffinity
	logger     *Logger
}

func (d *dataProjection) Name() string { return d.name }

// route returns the partition and node key belongs to. Replicated caches
// have no partitions and spread requests round-robin; their partition is -1.
func (d *dataProjection) route(key any) (int, affinity.Node, error) {
	topo := d.c.Topology()
	if d.replicated {
		n, err := d.c.roundRobin(topo)
		return -1, n, err
	}
	h, err := d.c.hashKey(unwrap(key))
	if err != nil {
		return 0, affinity.Node{}, err
	}
	p := d.aff.PartitionOf(h)
	n, err := d.aff.NodeFor(p, topo)
	return p, n, err
}

func (d *dataProjection) Affinity(key any) (int, affinity.Node, error) {
	return d.route(key)
}

// target resolves opts and returns the key requests route by together with
// the affinity key sent to the node, nil when the entry key routes itself.
func target(key any, opts []KeyOption) (routeKey, affinityKey any) {
	var o keyOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.affinityKey == nil {
		return key, nil
	}
	return o.affinityKey, unwrap(o.affinityKey)
}

// do routes req by routeKey and sends it to the owning node.
func (d *dataProjection) do(ctx context.Context, req *protocol.CacheRequest, routeKey any) (any, int, string, error) {
	p, node, err := d.route(routeKey)
	if err != nil {
		return nil, p, "", err
	}
	res, err := d.c.call(ctx, node, protocol.MethodCache, req)
	return res, p, node.ID, err
}

func (d *dataProjection) Put(ctx context.Context, key, value any, opts ...KeyOption) (bool, error) {
	routeKey, affKey := target(key, opts)
	start := time.Now()
	res, p, node, err := d.do(ctx, &protocol.CacheRequest{
		Op:          protocol.OpPut,
		Cache:       d.name,
		Key:         unwrap(key),
		AffinityKey: affKey,
		Value:       unwrap(value),
	}, routeKey)
	d.c.metrics.RecordCacheOp(string(protocol.OpPut), time.Since(start), err)
	d.logger.LogPut(ctx, node, p, time.Since(start), err)
	if err != nil {
		return false, err
	}
	return resultBool(res)
}

func (d *dataProjection) Get(ctx context.Context, key any, opts ...KeyOption) (Variant, error) {
	routeKey, affKey := target(key, opts)
	start := time.Now()
	res, p, node, err := d.do(ctx, &protocol.CacheRequest{
		Op:          protocol.OpGet,
		Cache:       d.name,
		Key:         unwrap(key),
		AffinityKey: affKey,
	}, routeKey)
	d.c.metrics.RecordCacheOp(string(protocol.OpGet), time.Since(start), err)
	d.logger.LogGet(ctx, node, p, res != nil, time.Since(start), err)
	if err != nil {
		return Variant{}, err
	}
	return NewVariant(res), nil
}

func (d *dataProjection) Remove(ctx context.Context, key any, opts ...KeyOption) (bool, error) {
	routeKey, affKey := target(key, opts)
	start := time.Now()
	res, p, node, err := d.do(ctx, &protocol.CacheRequest{
		Op:          protocol.OpRemove,
		Cache:       d.name,
		Key:         unwrap(key),
		AffinityKey: affKey,
	}, routeKey)
	d.c.metrics.RecordCacheOp(string(protocol.OpRemove), time.Since(start), err)
	d.logger.LogRemove(ctx, node, p, time.Since(start), err)
	if err != nil {
		return false, err
	}
	return resultBool(res)
}

func resultBool(res any) (bool, error) {
	b, ok := res.(bool)
	if !ok {
		return false, fmt.Errorf("%w: expected bool result, got %T", ErrInvalidResponse, res)
	}
	return b, nil
}
