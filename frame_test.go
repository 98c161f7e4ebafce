// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/gridclient/internal/compress"
)

func startServer(t testing.TB, ctx context.Context, opts ...ServerOption) Server {
	t.Helper()
	server, err := Listen("127.0.0.1:0", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })

	require.NoError(t, server.RegisterRaw("echo", func(ctx context.Context, payload []byte) ([]byte, error) {
		return payload, nil
	}))
	require.NoError(t, server.RegisterRaw("fail", func(ctx context.Context, payload []byte) ([]byte, error) {
		return nil, errors.New("handler exploded")
	}))
	go server.Serve(ctx)
	return server
}

func TestFrameRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := startServer(t, ctx)
	client, err := Dial(ctx, server.Addr())
	require.NoError(t, err)
	defer client.Close()

	payload := []byte("hello world")
	resp, err := client.CallRaw(ctx, "echo", payload)
	require.NoError(t, err)
	assert.Equal(t, payload, resp)
}

func TestFrameCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := startServer(t, ctx)
	require.NoError(t, server.RegisterRaw("add", func(ctx context.Context, payload []byte) ([]byte, error) {
		var req struct{ A, B int }
		if err := defaultCodec.Decode(payload, &req); err != nil {
			return nil, err
		}
		return defaultCodec.Encode(struct{ Sum int }{Sum: req.A + req.B})
	}))

	client, err := Dial(ctx, server.Addr())
	require.NoError(t, err)
	defer client.Close()

	var resp struct{ Sum int }
	require.NoError(t, client.Call(ctx, "add", struct{ A, B int }{A: 2, B: 3}, &resp))
	assert.Equal(t, 5, resp.Sum)
}

func TestFrameConcurrentCalls(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := startServer(t, ctx)
	client, err := Dial(ctx, server.Addr())
	require.NoError(t, err)
	defer client.Close()

	errs := make(chan error, 32)
	for i := 0; i < cap(errs); i++ {
		go func(i int) {
			want := bytes.Repeat([]byte{byte(i)}, i+1)
			got, err := client.CallRaw(ctx, "echo", want)
			if err == nil && !bytes.Equal(want, got) {
				err = errors.New("response routed to the wrong caller")
			}
			errs <- err
		}(i)
	}
	for i := 0; i < cap(errs); i++ {
		require.NoError(t, <-errs)
	}
}

func TestFrameRemoteError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := startServer(t, ctx)
	client, err := Dial(ctx, server.Addr())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.CallRaw(ctx, "fail", nil)
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "fail", rerr.Method)
	assert.Equal(t, "handler exploded", rerr.Message)

	_, err = client.CallRaw(ctx, "missing", nil)
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "unknown method")
}

func TestFrameCompression(t *testing.T) {
	for _, name := range []string{compress.Zstd, compress.LZ4} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			c, err := compress.ByName(name)
			require.NoError(t, err)
			server := startServer(t, ctx, WithServerCompressor(c))

			metrics := &BasicMetricsCollector{}
			client, err := Dial(ctx, server.Addr(), WithCompressor(c), WithDialMetrics(metrics))
			require.NoError(t, err)
			defer client.Close()

			small := []byte("tiny")
			resp, err := client.CallRaw(ctx, "echo", small)
			require.NoError(t, err)
			assert.Equal(t, small, resp)

			large := bytes.Repeat([]byte("compressible "), 4*CompressionThreshold)
			resp, err = client.CallRaw(ctx, "echo", large)
			require.NoError(t, err)
			assert.Equal(t, large, resp)

			stats := metrics.Stats()
			assert.Equal(t, int64(1), stats.CompressedFrames)
			assert.Equal(t, int64(1), stats.UncompressedFrames)
			assert.Less(t, stats.PayloadBytes, int64(len(large)))
		})
	}
}

func TestFramePayloadFlags(t *testing.T) {
	data := bytes.Repeat([]byte("abc"), CompressionThreshold)
	out, flags := encodePayload(nil, data, compress.ZstdCompressor{})
	assert.Equal(t, FlagZstd, flags)
	decoded, err := decodePayload(out, flags)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	out, flags = encodePayload(nil, data[:10], compress.LZ4Compressor{})
	assert.Zero(t, flags)
	assert.Equal(t, data[:10], out)

	_, err = decodePayload(data, FlagZstd|FlagLZ4)
	assert.ErrorIs(t, err, ErrUnsupportedPayload)
}

func TestFrameConnClosed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := startServer(t, ctx)
	conn, err := FrameDial(ctx, server.Addr(), nil)
	require.NoError(t, err)
	_, err = conn.Call(ctx, "echo", []byte("x"))
	require.NoError(t, err)

	require.NoError(t, server.Close())
	select {
	case <-conn.Done():
	case <-ctx.Done():
		t.Fatal("connection not closed after server shutdown")
	}
	_, err = conn.Call(ctx, "echo", nil)
	assert.ErrorIs(t, err, ErrConnClosed)
}

func TestDialUnknownTransport(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", WithTransport("carrier-pigeon"))
	assert.ErrorIs(t, err, ErrUnknownTransport)
	_, err = Listen("127.0.0.1:0", WithServerTransport("carrier-pigeon"))
	assert.ErrorIs(t, err, ErrUnknownTransport)
}

func BenchmarkFrameRoundTrip(b *testing.B) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := startServer(b, ctx)
	client, err := Dial(ctx, server.Addr())
	if err != nil {
		b.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	payload := make([]byte, 1024)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := client.CallRaw(ctx, "echo", payload); err != nil {
			b.Fatal(err)
		}
	}
}
