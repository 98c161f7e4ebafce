// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"syscall"
	"time"

	gorillarpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
)

const (
	maxRetries    = 3
	retryBaseWait = 500 * time.Millisecond

	// JSONPath is the HTTP path of the JSON-RPC endpoint.
	JSONPath = "/rpc"
	// JSONService is the JSON-RPC service name nodes register.
	JSONService = "Grid"
)

// newHTTPClient creates a fresh HTTP client with disabled connection reuse.
// This avoids EOF errors that can occur with connection pooling when nodes
// restart between attempts.
func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			DisableKeepAlives: true,
		},
	}
}

// CleanlyCloseBody drains and closes an HTTP response body to prevent
// HTTP/2 GOAWAY errors caused by closing bodies with unread data.
// See: https://github.com/golang/go/issues/46071
func CleanlyCloseBody(body io.ReadCloser) error {
	if body == nil {
		return nil
	}
	_, _ = io.Copy(io.Discard, body)
	return body.Close()
}

// isRetryableError reports whether err happened while dialing, before any
// request bytes reached the node. Later failures are returned as is, since a
// put or remove may already have been applied.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// RequestOptions configures a single JSON-RPC request.
type RequestOptions struct {
	headers     http.Header
	queryParams url.Values
	logger      *Logger
}

// RequestOption configures a JSON-RPC request.
type RequestOption func(*RequestOptions)

// NewRequestOptions applies opts over empty headers and query parameters.
func NewRequestOptions(opts []RequestOption) *RequestOptions {
	o := &RequestOptions{
		headers:     http.Header{},
		queryParams: url.Values{},
		logger:      NoopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *RequestOptions) { o.headers.Add(key, value) }
}

// WithQueryParam adds a query parameter to the request URL.
func WithQueryParam(key, value string) RequestOption {
	return func(o *RequestOptions) { o.queryParams.Add(key, value) }
}

// WithRequestLogger sets the logger retries are reported to.
func WithRequestLogger(l *Logger) RequestOption {
	return func(o *RequestOptions) { o.logger = l }
}

// SendJSONRequest posts a JSON-RPC 2.0 request to uri and decodes the result
// into reply. Failures to connect are retried with exponential backoff; any
// error after the connection is established is returned without a retry.
func SendJSONRequest(
	ctx context.Context,
	uri *url.URL,
	method string,
	params any,
	reply any,
	options ...RequestOption,
) error {
	requestBodyBytes, err := json2.EncodeClientRequest(method, params)
	if err != nil {
		return fmt.Errorf("failed to encode client params: %w", err)
	}

	ops := NewRequestOptions(options)
	uri.RawQuery = ops.queryParams.Encode()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 500ms, 1s
			waitTime := retryBaseWait * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		// Body buffer is consumed by each attempt
		request, err := http.NewRequestWithContext(
			ctx,
			http.MethodPost,
			uri.String(),
			bytes.NewBuffer(requestBodyBytes),
		)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		request.Header = ops.headers.Clone()
		request.Header.Set("Content-Type", "application/json")

		resp, err := newHTTPClient().Do(request)
		if err != nil {
			lastErr = err
			retryable := isRetryableError(err)
			ops.logger.DebugContext(ctx, "json request attempt failed",
				"method", method,
				"attempt", attempt+1,
				"retryable", retryable,
				"error", err,
			)
			if retryable {
				continue
			}
			return fmt.Errorf("failed to issue request: %w", err)
		}
		if attempt > 0 {
			ops.logger.DebugContext(ctx, "json request succeeded after retry",
				"method", method,
				"attempt", attempt+1,
			)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			CleanlyCloseBody(resp.Body)
			return fmt.Errorf("received status code: %d", resp.StatusCode)
		}

		err = json2.DecodeClientResponse(resp.Body, reply)
		CleanlyCloseBody(resp.Body)
		if err != nil {
			var jerr *json2.Error
			if errors.As(err, &jerr) {
				return err
			}
			return fmt.Errorf("failed to decode client response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("failed to issue request after %d retries: %w", maxRetries, lastErr)
}

// JSONRequest is the JSON-RPC parameter carrying one grid call.
type JSONRequest struct {
	Method  string `json:"method"`
	Payload []byte `json:"payload"`
}

// JSONResponse is the JSON-RPC result of a grid call.
type JSONResponse struct {
	Payload []byte `json:"payload"`
}

func dialJSON(_ context.Context, addr string, o *dialOptions) (Conn, error) {
	uri, err := url.Parse("http://" + addr + JSONPath)
	if err != nil {
		return nil, fmt.Errorf("json dial: %w", err)
	}
	return &jsonClient{addr: addr, uri: uri, codec: o.codec, logger: o.logger, metrics: o.metrics}, nil
}

// jsonClient implements Conn over JSON-RPC. It holds no connection; every
// call is a fresh HTTP request.
type jsonClient struct {
	addr    string
	uri     *url.URL
	codec   Codec
	logger  *Logger
	metrics MetricsCollector
}

func (c *jsonClient) Call(ctx context.Context, method string, args, reply any) error {
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

func (c *jsonClient) CallRaw(ctx context.Context, method string, payload []byte) ([]byte, error) {
	c.metrics.RecordPayload(len(payload), false)
	uri := *c.uri
	var reply JSONResponse
	err := SendJSONRequest(ctx, &uri, JSONService+".Call",
		&JSONRequest{Method: method, Payload: payload}, &reply,
		WithRequestLogger(c.logger),
	)
	var jerr *json2.Error
	if errors.As(err, &jerr) {
		return nil, &RemoteError{Node: c.addr, Method: method, Message: jerr.Message}
	}
	if err != nil {
		return nil, err
	}
	return reply.Payload, nil
}

func (c *jsonClient) Close() error { return nil }

func listenJSON(addr string, o *serverOptions) (Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s := &jsonServer{
		listener: listener,
		handlers: make(map[string]RawHandler),
		logger:   o.logger,
	}

	rpcServer := gorillarpc.NewServer()
	rpcServer.RegisterCodec(json2.NewCodec(), "application/json")
	if err := rpcServer.RegisterService(&jsonService{s: s}, JSONService); err != nil {
		listener.Close()
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle(JSONPath, rpcServer)
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	return s, nil
}

// jsonServer implements Server with a gorilla JSON-RPC service.
type jsonServer struct {
	listener net.Listener
	http     *http.Server
	logger   *Logger

	mu       sync.RWMutex
	handlers map[string]RawHandler
}

func (s *jsonServer) RegisterRaw(method string, handler RawHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = handler
	return nil
}

func (s *jsonServer) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()
	if err := s.http.Serve(s.listener); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *jsonServer) Close() error {
	err := s.http.Close()
	if lerr := s.listener.Close(); err == nil && !errors.Is(lerr, net.ErrClosed) {
		err = lerr
	}
	return err
}

func (s *jsonServer) Addr() string {
	return s.listener.Addr().String()
}

type jsonService struct {
	s *jsonServer
}

// Call dispatches a grid call to the registered raw handler.
func (j *jsonService) Call(r *http.Request, args *JSONRequest, reply *JSONResponse) error {
	j.s.mu.RLock()
	handler, ok := j.s.handlers[args.Method]
	j.s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown method: %s", args.Method)
	}
	out, err := handler(r.Context(), args.Payload)
	if err != nil {
		j.s.logger.DebugContext(r.Context(), "json call failed", "method", args.Method, "error", err)
		return err
	}
	reply.Payload = out
	return nil
}
