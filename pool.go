// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/luxfi/gridclient/affinity"
)

type connDialer func(ctx context.Context, addr string) (Conn, error)

// poolEntry holds the connection to one node. mu serializes dials so
// concurrent callers share one attempt.
type poolEntry struct {
	mu      sync.Mutex
	addr    string
	conn    Conn
	lastErr error
	limiter *rate.Limiter
}

// pool keeps one lazily dialed connection per node. After a failed dial the
// node is not redialed more often than once per redial interval; callers in
// between get the last dial error.
type pool struct {
	dial     connDialer
	interval time.Duration
	logger   *Logger
	metrics  MetricsCollector

	mu      sync.Mutex
	entries map[string]*poolEntry
	closed  bool
}

func newPool(dial connDialer, interval time.Duration, logger *Logger, metrics MetricsCollector) *pool {
	return &pool{
		dial:     dial,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		entries:  make(map[string]*poolEntry),
	}
}

func (p *pool) entry(node affinity.Node) (*poolEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClientClosed
	}
	e, ok := p.entries[node.ID]
	if !ok {
		e = &poolEntry{
			addr:    node.Addr,
			limiter: rate.NewLimiter(rate.Every(p.interval), 1),
		}
		p.entries[node.ID] = e
	}
	return e, nil
}

// get returns the connection to node, dialing it if needed.
func (p *pool) get(ctx context.Context, node affinity.Node) (Conn, error) {
	e, err := p.entry(node)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn != nil && e.addr == node.Addr {
		return e.conn, nil
	}
	if e.conn != nil {
		// The node moved; drop the stale connection.
		_ = e.conn.Close()
		e.conn = nil
	}
	e.addr = node.Addr
	if e.lastErr != nil && !e.limiter.Allow() {
		return nil, e.lastErr
	}

	conn, err := p.dial(ctx, node.Addr)
	p.metrics.RecordDial(node.ID, err)
	p.logger.LogDial(ctx, node.ID, node.Addr, err)
	if err != nil {
		e.lastErr = err
		e.limiter.Allow()
		return nil, err
	}
	e.conn, e.lastErr = conn, nil

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		_ = conn.Close()
		e.conn = nil
		return nil, ErrClientClosed
	}
	return conn, nil
}

// invalidate drops conn if it is still the connection held for nodeID.
func (p *pool) invalidate(nodeID string, conn Conn) {
	p.mu.Lock()
	e, ok := p.entries[nodeID]
	p.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == conn {
		_ = e.conn.Close()
		e.conn = nil
	}
}

// retain closes the connections of nodes missing from topo.
func (p *pool) retain(topo *affinity.Topology) error {
	p.mu.Lock()
	var stale []*poolEntry
	for id, e := range p.entries {
		if _, ok := topo.Node(id); !ok {
			stale = append(stale, e)
			delete(p.entries, id)
		}
	}
	p.mu.Unlock()
	return closeEntries(stale)
}

// close closes every connection concurrently.
func (p *pool) close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	entries := make([]*poolEntry, 0, len(p.entries))
	for _, e := range p.entries {
		entries = append(entries, e)
	}
	p.entries = nil
	p.mu.Unlock()
	return closeEntries(entries)
}

func closeEntries(entries []*poolEntry) error {
	var g errgroup.Group
	for _, e := range entries {
		e := e // per-iteration copy; go directive is 1.21
		g.Go(func() error {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.conn == nil {
				return nil
			}
			err := e.conn.Close()
			e.conn = nil
			if errors.Is(err, ErrConnClosed) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
