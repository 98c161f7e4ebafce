// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"time"

	"github.com/luxfi/gridclient/affinity"
	"github.com/luxfi/gridclient/protocol"
)

type computeProjection struct {
	c *client
}

func (p *computeProjection) Execute(ctx context.Context, task string, arg any) (Variant, error) {
	node, err := p.c.roundRobin(p.c.Topology())
	if err != nil {
		return Variant{}, err
	}
	return p.run(ctx, node, &protocol.TaskRequest{Task: task, Arg: unwrap(arg)})
}

func (p *computeProjection) AffinityExecute(ctx context.Context, task, cache string, affinityKey, arg any) (Variant, error) {
	d, err := p.c.Data(cache)
	if err != nil {
		return Variant{}, err
	}
	_, node, err := d.Affinity(affinityKey)
	if err != nil {
		return Variant{}, err
	}
	return p.run(ctx, node, &protocol.TaskRequest{
		Task:        task,
		Cache:       cache,
		AffinityKey: unwrap(affinityKey),
		Arg:         unwrap(arg),
	})
}

func (p *computeProjection) run(ctx context.Context, node affinity.Node, req *protocol.TaskRequest) (Variant, error) {
	start := time.Now()
	res, err := p.c.call(ctx, node, protocol.MethodTask, req)
	p.c.metrics.RecordTask(req.Task, time.Since(start), err)
	p.c.logger.LogExecute(ctx, req.Task, node.ID, time.Since(start), err)
	if err != nil {
		return Variant{}, err
	}
	return NewVariant(res), nil
}
