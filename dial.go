// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// Dial connects to a grid node using the transport selected by opts (tcp by
// default).
func Dial(ctx context.Context, addr string, opts ...DialOption) (Conn, error) {
	o := newDialOptions(opts)
	t, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransport, o.transport)
	}
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}
	return t.dial(ctx, addr, o)
}

// Listen creates a node-side listener using the transport selected by opts.
func Listen(addr string, opts ...ServerOption) (Server, error) {
	o := newServerOptions(opts)
	t, ok := lookupTransport(o.transport)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransport, o.transport)
	}
	return t.listen(addr, o)
}

// encodeArgs and decodeReply are shared by the transports' Call methods.
func encodeArgs(c Codec, args any) ([]byte, error) {
	if args == nil {
		return nil, nil
	}
	payload, err := c.Encode(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	return payload, nil
}

func decodeReply(c Codec, resp []byte, reply any) error {
	if reply == nil || len(resp) == 0 {
		return nil
	}
	if err := c.Decode(resp, reply); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}
	return nil
}

func dialFrame(ctx context.Context, addr string, o *dialOptions) (Conn, error) {
	conn, err := FrameDial(ctx, addr, o.compressor)
	if err != nil {
		return nil, err
	}
	conn.metrics = o.metrics
	return &frameClient{conn: conn, codec: o.codec}, nil
}

func listenFrame(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &frameServer{
		listener: listener,
		handlers: make(map[string]RawHandler),
		opts:     o,
	}, nil
}

// frameClient implements Conn over a FrameConn
type frameClient struct {
	conn  *FrameConn
	codec Codec
}

func (c *frameClient) Call(ctx context.Context, method string, args, reply any) error {
	payload, err := encodeArgs(c.codec, args)
	if err != nil {
		return err
	}
	resp, err := c.conn.Call(ctx, method, payload)
	if err != nil {
		return err
	}
	return decodeReply(c.codec, resp, reply)
}

func (c *frameClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	return c.conn.Call(ctx, method, payload)
}

func (c *frameClient) Close() error {
	return c.conn.Close()
}

// frameServer implements Server over a FrameServer
type frameServer struct {
	listener net.Listener
	opts     *serverOptions

	mu       sync.RWMutex
	handlers map[string]RawHandler
	server   *FrameServer
}

func (s *frameServer) RegisterRaw(method string, handler RawHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	return nil
}

func (s *frameServer) handle(ctx context.Context, method string, payload []byte) ([]byte, error) {
	s.mu.RLock()
	handler, ok := s.handlers[method]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown method: %s", method)
	}
	return handler(ctx, payload)
}

func (s *frameServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	s.server = NewFrameServer(s.listener, FrameHandlerFunc(s.handle), s.opts.compressor, s.opts.logger)
	srv := s.server
	s.mu.Unlock()
	return srv.Serve(ctx)
}

func (s *frameServer) Close() error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()
	if srv != nil {
		return srv.Close()
	}
	return s.listener.Close()
}

func (s *frameServer) Addr() string {
	return s.listener.Addr().String()
}
