// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/luxfi/gridclient/affinity"
	"github.com/luxfi/gridclient/internal/compress"
	"github.com/luxfi/gridclient/portable"
	"github.com/luxfi/gridclient/protocol"
)

// Option configures Open.
type Option func(*options)

type options struct {
	registry *portable.Registry
	logger   *Logger
	metrics  MetricsCollector
	topology *affinity.Topology
	dialOpts []DialOption
}

// WithRegistry sets the type registry. It defaults to the process-wide
// registry. Open registers the protocol types in it and freezes it.
func WithRegistry(r *portable.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithLogger sets the client logger.
func WithLogger(l *Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m MetricsCollector) Option {
	return func(o *options) { o.metrics = m }
}

// WithTopology sets the startup topology instead of deriving it from the
// configured nodes.
func WithTopology(t *affinity.Topology) Option {
	return func(o *options) { o.topology = t }
}

// WithDialOptions appends options used for every node connection.
func WithDialOptions(opts ...DialOption) Option {
	return func(o *options) { o.dialOpts = append(o.dialOpts, opts...) }
}

type client struct {
	cfg     Config
	m       *portable.Marshaller
	logger  *Logger
	metrics MetricsCollector
	pool    *pool
	caches  map[string]*dataProjection
	compute *computeProjection

	topo   atomic.Pointer[affinity.Topology]
	next   atomic.Uint64
	closed atomic.Bool
}

var _ Client = (*client)(nil)

// Open validates cfg, registers the protocol types, freezes the registry and
// returns a client. Connections are dialed lazily on first use.
func Open(ctx context.Context, cfg Config, opts ...Option) (Client, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{registry: portable.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = NewTextLogger(ParseLevel(cfg.LogLevel))
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	if o.topology == nil {
		o.topology = cfg.Topology()
	}

	if err := protocol.RegisterTypes(o.registry); err != nil {
		return nil, fmt.Errorf("register protocol types: %w", err)
	}
	o.registry.Freeze()

	compressor, err := compress.ByName(cfg.Compression)
	if err != nil {
		return nil, invalidConfig("%v", err)
	}

	c := &client{
		cfg:     cfg,
		m:       portable.NewMarshaller(o.registry),
		logger:  o.logger,
		metrics: o.metrics,
		caches:  make(map[string]*dataProjection, len(cfg.Caches)),
	}
	c.compute = &computeProjection{c: c}
	for _, cc := range cfg.Caches {
		c.caches[cc.Name] = &dataProjection{
			c:          c,
			name:       cc.Name,
			replicated: cc.Mode == ModeReplicated,
			aff:        cfg.AffinityFor(cc),
			logger:     o.logger.WithCache(cc.Name),
		}
	}

	dialOpts := append([]DialOption{
		WithTransport(cfg.Transport),
		WithCodec(PortableCodec{M: c.m}),
		WithCompressor(compressor),
		WithDialTimeout(time.Duration(cfg.DialTimeout)),
		WithDialLogger(o.logger),
		WithDialMetrics(o.metrics),
	}, o.dialOpts...)
	c.pool = newPool(func(ctx context.Context, addr string) (Conn, error) {
		return Dial(ctx, addr, dialOpts...)
	}, time.Duration(cfg.RedialInterval), o.logger, o.metrics)

	c.topo.Store(o.topology)
	o.logger.LogTopology(ctx, o.topology.Version, o.topology.Len())
	return c, nil
}

func (c *client) Compute() ComputeProjection { return c.compute }

func (c *client) Data(name string) (DataProjection, error) {
	d, ok := c.caches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCache, name)
	}
	return d, nil
}

func (c *client) Marshaller() *portable.Marshaller { return c.m }

func (c *client) Topology() *affinity.Topology { return c.topo.Load() }

func (c *client) UpdateTopology(topo *affinity.Topology) {
	if topo == nil {
		topo = affinity.NewTopology(0)
	}
	c.topo.Store(topo)
	c.logger.LogTopology(context.Background(), topo.Version, topo.Len())
	if err := c.pool.retain(topo); err != nil {
		c.logger.Warn("closing connections of departed nodes", "error", err)
	}
}

func (c *client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.pool.close()
}

// roundRobin picks the next node of topo.
func (c *client) roundRobin(topo *affinity.Topology) (affinity.Node, error) {
	if topo.Len() == 0 {
		return affinity.Node{}, affinity.ErrNoAvailableNode
	}
	i := c.next.Add(1) - 1
	return topo.At(int(i % uint64(topo.Len()))), nil
}

// hashKey returns the routing hash of key. Values of registered external
// types hash through their serializer.
func (c *client) hashKey(key any) (int32, error) {
	h, err := affinity.HashCode(key)
	var uerr *affinity.UnhashableKeyError
	if errors.As(err, &uerr) {
		if h, ok := c.m.HashCode(key); ok {
			return h, nil
		}
	}
	return h, err
}

// call sends req to node and returns the result of a successful response.
func (c *client) call(ctx context.Context, node affinity.Node, method string, req portable.Portable) (any, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.RequestTimeout))
		defer cancel()
	}

	conn, err := c.pool.get(ctx, node)
	if err != nil {
		return nil, err
	}
	var resp protocol.Response
	if err := conn.Call(ctx, method, req, &resp); err != nil {
		if errors.Is(err, ErrConnClosed) {
			c.pool.invalidate(node.ID, conn)
		}
		return nil, err
	}
	if resp.Status != protocol.StatusOK {
		return nil, &RemoteError{Node: node.ID, Method: method, Message: resp.Error}
	}
	return resp.Result, nil
}

// unwrap converts a Variant argument back to the value it holds.
func unwrap(v any) any {
	if vv, ok := v.(Variant); ok {
		return vv.Value()
	}
	return v
}
