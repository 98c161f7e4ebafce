// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"time"

	"github.com/luxfi/gridclient/affinity"
	"github.com/luxfi/gridclient/internal/compress"
	"github.com/luxfi/gridclient/portable"
)

// Client is a thick client of a compute and cache grid. It routes every
// keyed request to the node owning the key's partition.
type Client interface {
	// Compute returns the projection that runs tasks on the grid.
	Compute() ComputeProjection

	// Data returns the projection over the named cache.
	Data(name string) (DataProjection, error)

	// Marshaller returns the marshaller over the client's frozen registry.
	Marshaller() *portable.Marshaller

	// Topology returns the current topology snapshot.
	Topology() *affinity.Topology

	// UpdateTopology replaces the topology snapshot. Connections to nodes
	// that left are closed.
	UpdateTopology(topo *affinity.Topology)

	// Close closes all connections.
	Close() error
}

// ComputeProjection runs named tasks on grid nodes.
type ComputeProjection interface {
	// Execute runs task on the next node in round-robin order.
	Execute(ctx context.Context, task string, arg any) (Variant, error)

	// AffinityExecute runs task on the node owning affinityKey in cache.
	AffinityExecute(ctx context.Context, task, cache string, affinityKey, arg any) (Variant, error)
}

// DataProjection reads and writes one named cache.
type DataProjection interface {
	// Name returns the cache name.
	Name() string

	// Put stores value under key and reports whether the node accepted it.
	Put(ctx context.Context, key, value any, opts ...KeyOption) (bool, error)

	// Get returns the value stored under key, or a null Variant. An entry
	// put with WithAffinityKey must be read with the same affinity key.
	Get(ctx context.Context, key any, opts ...KeyOption) (Variant, error)

	// Remove deletes key and reports whether it was present.
	Remove(ctx context.Context, key any, opts ...KeyOption) (bool, error)

	// Affinity returns the partition of key and the node that owns it.
	Affinity(key any) (int, affinity.Node, error)
}

// KeyOption configures a single Put, Get or Remove.
type KeyOption func(*keyOptions)

type keyOptions struct {
	affinityKey any
}

// WithAffinityKey routes the operation by k instead of the entry key, so
// related entries can be collocated.
func WithAffinityKey(k any) KeyOption {
	return func(o *keyOptions) { o.affinityKey = k }
}

// Conn is a connection to one grid node.
type Conn interface {
	// Call encodes args with the connection codec and decodes the reply
	// into reply.
	Call(ctx context.Context, method string, args, reply any) error

	// CallRaw makes a call with pre-encoded bytes.
	CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error)

	// Close closes the connection
	Close() error
}

// Server is the node side of a transport. The client never needs one; it
// exists for embedded nodes and tests.
type Server interface {
	// RegisterRaw registers a raw byte handler
	RegisterRaw(method string, handler RawHandler) error

	// Serve starts serving requests (blocks until context cancelled)
	Serve(ctx context.Context) error

	// Close stops the server
	Close() error

	// Addr returns the server's listen address
	Addr() string
}

// RawHandler handles raw byte calls.
type RawHandler func(ctx context.Context, payload []byte) ([]byte, error)

// Codec encodes/decodes messages
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

// DialOption configures client connections
type DialOption func(*dialOptions)

type dialOptions struct {
	codec      Codec
	transport  string
	compressor compress.Compressor
	timeout    time.Duration
	logger     *Logger
	metrics    MetricsCollector
}

func newDialOptions(opts []DialOption) *dialOptions {
	o := &dialOptions{
		codec:     defaultCodec,
		transport: DefaultTransport,
		logger:    NoopLogger(),
		metrics:   NoopMetricsCollector{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithCodec sets a custom codec
func WithCodec(c Codec) DialOption {
	return func(o *dialOptions) { o.codec = c }
}

// WithTransport explicitly sets the transport type
func WithTransport(t string) DialOption {
	return func(o *dialOptions) { o.transport = t }
}

// WithCompressor compresses request payloads of at least
// CompressionThreshold bytes.
func WithCompressor(c compress.Compressor) DialOption {
	return func(o *dialOptions) { o.compressor = c }
}

// WithDialTimeout bounds connection setup.
func WithDialTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) { o.timeout = d }
}

// WithDialLogger sets the logger used by the connection.
func WithDialLogger(l *Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// WithDialMetrics sets the collector that observes sent payloads.
func WithDialMetrics(m MetricsCollector) DialOption {
	return func(o *dialOptions) { o.metrics = m }
}

// ServerOption configures servers
type ServerOption func(*serverOptions)

type serverOptions struct {
	transport  string
	compressor compress.Compressor
	logger     *Logger
}

func newServerOptions(opts []ServerOption) *serverOptions {
	o := &serverOptions{
		transport: DefaultTransport,
		logger:    NoopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithServerTransport explicitly sets the transport type for the server
func WithServerTransport(t string) ServerOption {
	return func(o *serverOptions) { o.transport = t }
}

// WithServerCompressor compresses response payloads of at least
// CompressionThreshold bytes.
func WithServerCompressor(c compress.Compressor) ServerOption {
	return func(o *serverOptions) { o.compressor = c }
}

// WithServerLogger sets the server logger.
func WithServerLogger(l *Logger) ServerOption {
	return func(o *serverOptions) { o.logger = l }
}
