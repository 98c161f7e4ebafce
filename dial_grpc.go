//go:build grpc

// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
)

// grpcServicePrefix is prepended to grid method names to form gRPC paths.
const grpcServicePrefix = "/gridclient.Grid/"

func init() {
	// Register gRPC transport when build tag is enabled
	registerTransport(TransportGRPC, dialGRPC, listenGRPC)
}

// rawCodec moves pre-encoded payloads through gRPC without protobuf.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("raw codec: cannot marshal %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return "gridclient-raw" }

func dialGRPC(_ context.Context, addr string, o *dialOptions) (Conn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(rawCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial: %w", err)
	}
	return &grpcClient{addr: addr, conn: conn, codec: o.codec, metrics: o.metrics}, nil
}

type grpcClient struct {
	addr    string
	conn    *grpc.ClientConn
	codec   Codec
	metrics MetricsCollector
}

func (c *grpcClient) Call(ctx context.Context, method string, args, reply any) error {
	payload, err := encodeArgs(c.codec, args)
	if err != nil {
		return err
	}
	resp, err := c.CallRaw(ctx, method, payload)
	if err != nil {
		return err
	}
	return decodeReply(c.codec, resp, reply)
}

func (c *grpcClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	c.metrics.RecordPayload(len(payload), false)
	var resp []byte
	err := c.conn.Invoke(ctx, grpcServicePrefix+method, &payload, &resp)
	if s, ok := status.FromError(err); ok && (s.Code() == codes.Unknown || s.Code() == codes.Unimplemented) {
		return nil, &RemoteError{Node: c.addr, Method: method, Message: s.Message()}
	}
	return resp, err
}

func (c *grpcClient) Close() error {
	return c.conn.Close()
}

func listenGRPC(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &grpcServer{
		listener: listener,
		handlers: make(map[string]RawHandler),
	}
	s.server = grpc.NewServer(
		grpc.ForceServerCodec(rawCodec{}),
		grpc.UnknownServiceHandler(s.handleStream),
	)
	return s, nil
}

// grpcServer serves every method through one unknown-service handler, so
// no protobuf service definition is needed.
type grpcServer struct {
	listener net.Listener
	server   *grpc.Server

	mu       sync.RWMutex
	handlers map[string]RawHandler
}

func (s *grpcServer) RegisterRaw(method string, handler RawHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	return nil
}

func (s *grpcServer) handleStream(_ any, stream grpc.ServerStream) error {
	full, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "no method in stream")
	}
	method := strings.TrimPrefix(full, grpcServicePrefix)
	s.mu.RLock()
	handler, ok := s.handlers[method]
	s.mu.RUnlock()
	if !ok {
		return status.Errorf(codes.Unimplemented, "unknown method: %s", method)
	}

	var req []byte
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}
	resp, err := handler(stream.Context(), req)
	if err != nil {
		return status.Error(codes.Unknown, err.Error())
	}
	return stream.SendMsg(&resp)
}

func (s *grpcServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.server.Stop)
	defer stop()
	if err := s.server.Serve(s.listener); !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (s *grpcServer) Close() error {
	s.server.Stop()
	if err := s.listener.Close(); !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *grpcServer) Addr() string {
	return s.listener.Addr().String()
}
