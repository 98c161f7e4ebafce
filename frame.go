// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/luxfi/gridclient/internal/compress"
)

// MessageType identifies frame message types. It occupies the low nibble of
// the type byte; the high bits carry payload flags.
type MessageType uint8

const (
	MsgRequest  MessageType = 0x01
	MsgResponse MessageType = 0x02
	MsgError    MessageType = 0x03
)

// Payload flags.
const (
	FlagZstd uint8 = 0x40
	FlagLZ4  uint8 = 0x20

	typeMask = 0x0F
)

const (
	// MaxFrameSize bounds a single frame.
	MaxFrameSize = 64 << 20
	// CompressionThreshold is the smallest payload that is compressed.
	CompressionThreshold = 1024

	responseWriteTimeout = 30 * time.Second
)

func compressorFlag(c compress.Compressor) uint8 {
	switch c.Name() {
	case compress.Zstd:
		return FlagZstd
	case compress.LZ4:
		return FlagLZ4
	default:
		return 0
	}
}

// encodePayload appends payload to buf, compressed when c is set and the
// payload is large enough to benefit. It returns the flags to set.
func encodePayload(buf, payload []byte, c compress.Compressor) ([]byte, uint8) {
	if c == nil || len(payload) < CompressionThreshold {
		return append(buf, payload...), 0
	}
	out, err := c.Compress(buf, payload)
	if err != nil {
		return append(buf, payload...), 0
	}
	return out, compressorFlag(c)
}

func decodePayload(payload []byte, flags uint8) ([]byte, error) {
	switch flags {
	case 0:
		return payload, nil
	case FlagZstd:
		return compress.ZstdCompressor{}.Decompress(nil, payload)
	case FlagLZ4:
		return compress.LZ4Compressor{}.Decompress(nil, payload)
	default:
		return nil, fmt.Errorf("%w: %#x", ErrUnsupportedPayload, flags)
	}
}

func readFrame(r io.Reader, header []byte) ([]byte, error) {
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	msgLen := binary.BigEndian.Uint32(header)
	if msgLen == 0 || msgLen > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrInvalidResponse, msgLen)
	}
	msg := make([]byte, msgLen)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

type frameResponse struct {
	data []byte
	err  error
}

type pendingCall struct {
	method string
	ch     chan frameResponse
}

// FrameConn multiplexes requests over one TCP connection by request id.
type FrameConn struct {
	conn       net.Conn
	compressor compress.Compressor
	metrics    MetricsCollector
	writeMu    sync.Mutex
	pending    sync.Map // requestID -> *pendingCall
	nextID     atomic.Uint32
	closed     atomic.Bool
	readDone   chan struct{}
}

// FrameDial connects to a frame server. c may be nil to disable request
// compression; compressed responses are always accepted.
func FrameDial(ctx context.Context, addr string, c compress.Compressor) (*FrameConn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("frame dial: %w", err)
	}

	fc := &FrameConn{
		conn:       conn,
		compressor: c,
		metrics:    NoopMetricsCollector{},
		readDone:   make(chan struct{}),
	}
	go fc.readLoop()
	return fc, nil
}

// Call sends a request and waits for its response.
func (z *FrameConn) Call(ctx context.Context, method string, payload []byte) ([]byte, error) {
	if z.closed.Load() {
		return nil, ErrConnClosed
	}
	if len(method) > 0xFFFF {
		return nil, fmt.Errorf("frame: method name of %d bytes", len(method))
	}

	requestID := z.nextID.Add(1)
	call := &pendingCall{method: method, ch: make(chan frameResponse, 1)}
	z.pending.Store(requestID, call)
	defer z.pending.Delete(requestID)

	// Encode: [4 len][1 type|flags][4 reqID][2 methodLen][method][payload]
	buf := make([]byte, 11, 11+len(method)+len(payload))
	buf[4] = byte(MsgRequest)
	binary.BigEndian.PutUint32(buf[5:9], requestID)
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(method)))
	buf = append(buf, method...)
	buf, flags := encodePayload(buf, payload, z.compressor)
	if len(buf)-4 > MaxFrameSize {
		return nil, fmt.Errorf("frame: request of %d bytes exceeds limit", len(buf)-4)
	}
	buf[4] |= flags
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)-4))
	z.metrics.RecordPayload(len(buf), flags != 0)

	z.writeMu.Lock()
	deadline, _ := ctx.Deadline()
	_ = z.conn.SetWriteDeadline(deadline)
	_, err := z.conn.Write(buf)
	z.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("frame write: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case resp := <-call.ch:
		return resp.data, resp.err
	case <-z.readDone:
		return nil, ErrConnClosed
	}
}

func (z *FrameConn) readLoop() {
	defer func() {
		_ = z.Close()
		close(z.readDone)
	}()

	header := make([]byte, 4)
	for {
		msg, err := readFrame(z.conn, header)
		if err != nil {
			return
		}
		if len(msg) < 5 {
			continue
		}

		msgType := MessageType(msg[0] & typeMask)
		flags := msg[0] &^ typeMask
		requestID := binary.BigEndian.Uint32(msg[1:5])

		v, ok := z.pending.Load(requestID)
		if !ok {
			continue
		}
		call := v.(*pendingCall)
		payload, err := decodePayload(msg[5:], flags)
		if err != nil {
			call.ch <- frameResponse{err: err}
			continue
		}
		switch msgType {
		case MsgResponse:
			call.ch <- frameResponse{data: payload}
		case MsgError:
			call.ch <- frameResponse{err: &RemoteError{
				Node:    z.conn.RemoteAddr().String(),
				Method:  call.method,
				Message: string(payload),
			}}
		default:
			call.ch <- frameResponse{err: fmt.Errorf("%w: message type %#x", ErrInvalidResponse, msgType)}
		}
	}
}

// Done is closed when the connection stops reading.
func (z *FrameConn) Done() <-chan struct{} { return z.readDone }

// Close closes the connection
func (z *FrameConn) Close() error {
	if z.closed.Swap(true) {
		return nil
	}
	return z.conn.Close()
}

// FrameServer handles incoming frame requests
type FrameServer struct {
	listener   net.Listener
	handler    FrameHandler
	compressor compress.Compressor
	logger     *Logger
	conns      sync.Map
	closed     atomic.Bool
}

// FrameHandler handles frame requests
type FrameHandler interface {
	HandleFrame(ctx context.Context, method string, payload []byte) ([]byte, error)
}

// FrameHandlerFunc is a function adapter for FrameHandler
type FrameHandlerFunc func(ctx context.Context, method string, payload []byte) ([]byte, error)

func (f FrameHandlerFunc) HandleFrame(ctx context.Context, method string, payload []byte) ([]byte, error) {
	return f(ctx, method, payload)
}

// NewFrameServer creates a new frame server. c compresses large responses
// and may be nil.
func NewFrameServer(listener net.Listener, handler FrameHandler, c compress.Compressor, logger *Logger) *FrameServer {
	if logger == nil {
		logger = NoopLogger()
	}
	return &FrameServer{
		listener:   listener,
		handler:    handler,
		compressor: c,
		logger:     logger,
	}
}

// Serve accepts connections until the server is closed or ctx is done.
func (s *FrameServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *FrameServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	s.conns.Store(conn, struct{}{})
	defer s.conns.Delete(conn)

	var writeMu sync.Mutex
	header := make([]byte, 4)
	for {
		msg, err := readFrame(conn, header)
		if err != nil {
			return
		}
		if MessageType(msg[0]&typeMask) != MsgRequest || len(msg) < 7 {
			continue
		}
		flags := msg[0] &^ typeMask
		requestID := binary.BigEndian.Uint32(msg[1:5])
		methodLen := int(binary.BigEndian.Uint16(msg[5:7]))
		if len(msg) < 7+methodLen {
			continue
		}
		method := string(msg[7 : 7+methodLen])

		go func(raw []byte) {
			payload, err := decodePayload(raw, flags)
			var resp []byte
			if err == nil {
				resp, err = s.handler.HandleFrame(ctx, method, payload)
			}
			writeMu.Lock()
			defer writeMu.Unlock()
			s.sendResponse(conn, requestID, resp, err)
		}(msg[7+methodLen:])
	}
}

func (s *FrameServer) sendResponse(conn net.Conn, requestID uint32, data []byte, err error) {
	buf := make([]byte, 9, 9+len(data))
	var flags uint8
	if err != nil {
		buf[4] = byte(MsgError)
		buf = append(buf, err.Error()...)
	} else {
		buf[4] = byte(MsgResponse)
		buf, flags = encodePayload(buf, data, s.compressor)
	}
	buf[4] |= flags
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(buf)-4))
	binary.BigEndian.PutUint32(buf[5:9], requestID)

	_ = conn.SetWriteDeadline(time.Now().Add(responseWriteTimeout))
	if _, err := conn.Write(buf); err != nil {
		s.logger.Debug("response write failed", "remote", conn.RemoteAddr().String(), "error", err)
	}
}

// Close closes the server
func (s *FrameServer) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.conns.Range(func(key, _ any) bool {
		key.(net.Conn).Close()
		return true
	})
	return s.listener.Close()
}

// Addr returns the listener address
func (s *FrameServer) Addr() net.Addr {
	return s.listener.Addr()
}
