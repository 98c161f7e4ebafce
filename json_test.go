// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := startServer(t, ctx, WithServerTransport(TransportJSON))
	client, err := Dial(ctx, server.Addr(), WithTransport(TransportJSON))
	require.NoError(t, err)
	defer client.Close()

	payload := []byte{0, 1, 2, 0xff}
	resp, err := client.CallRaw(ctx, "echo", payload)
	require.NoError(t, err)
	assert.Equal(t, payload, resp)

	var sum struct{ Sum int }
	require.NoError(t, server.RegisterRaw("add", func(_ context.Context, p []byte) ([]byte, error) {
		var req struct{ A, B int }
		if err := defaultCodec.Decode(p, &req); err != nil {
			return nil, err
		}
		return defaultCodec.Encode(struct{ Sum int }{req.A + req.B})
	}))
	require.NoError(t, client.Call(ctx, "add", struct{ A, B int }{4, 5}, &sum))
	assert.Equal(t, 9, sum.Sum)
}

func TestJSONRemoteError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := startServer(t, ctx, WithServerTransport(TransportJSON))
	client, err := Dial(ctx, server.Addr(), WithTransport(TransportJSON))
	require.NoError(t, err)

	_, err = client.CallRaw(ctx, "fail", nil)
	var rerr *RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "handler exploded", rerr.Message)

	_, err = client.CallRaw(ctx, "missing", nil)
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "unknown method")
}

func TestSendJSONRequestStatus(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	server := startServer(t, ctx, WithServerTransport(TransportJSON))
	uri, err := url.Parse("http://" + server.Addr() + "/elsewhere")
	require.NoError(t, err)

	var reply JSONResponse
	err = SendJSONRequest(ctx, uri, JSONService+".Call", &JSONRequest{Method: "echo"}, &reply,
		WithHeader("X-Grid-Client", "test"),
		WithQueryParam("trace", "1"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status code: 404")
	assert.Equal(t, "trace=1", uri.RawQuery)
}

func TestRequestOptions(t *testing.T) {
	o := NewRequestOptions([]RequestOption{
		WithHeader("X-Grid-Client", "a"),
		WithHeader("X-Grid-Client", "b"),
		WithQueryParam("trace", "1"),
	})
	assert.Equal(t, []string{"a", "b"}, o.headers.Values("X-Grid-Client"))
	assert.Equal(t, "trace=1", o.queryParams.Encode())
	assert.NotNil(t, o.logger)

	// Request options and Open options are distinct types.
	var _ RequestOption = WithRequestLogger(NoopLogger())
	var _ Option = WithLogger(NoopLogger())
}

func TestJSONRetryOnlyBeforeSend(t *testing.T) {
	assert.True(t, isRetryableError(&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}))
	assert.True(t, isRetryableError(syscall.ECONNREFUSED))
	assert.False(t, isRetryableError(io.EOF))
	assert.False(t, isRetryableError(errors.New("read: connection reset by peer")))
	assert.False(t, isRetryableError(&net.OpError{Op: "read", Net: "tcp", Err: io.EOF}))
	assert.False(t, isRetryableError(nil))
}

func TestJSONNoRetryAfterSend(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The node accepts the request and drops the connection unanswered.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()
	var accepted atomic.Int32
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			accepted.Add(1)
			buf := make([]byte, 4096)
			_, _ = conn.Read(buf)
			conn.Close()
		}
	}()

	client, err := Dial(ctx, listener.Addr().String(), WithTransport(TransportJSON))
	require.NoError(t, err)
	_, err = client.CallRaw(ctx, "put", []byte("once"))
	require.Error(t, err)
	assert.Equal(t, int32(1), accepted.Load())
}
