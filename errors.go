// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"errors"
	"fmt"
)

// Client errors.
var (
	ErrUnknownCache  = errors.New("gridclient: unknown cache")
	ErrInvalidConfig = errors.New("gridclient: invalid config")
	ErrClientClosed  = errors.New("gridclient: client closed")
)

// Transport errors. They reach callers unmodified.
var (
	ErrConnClosed         = errors.New("gridclient: connection closed")
	ErrInvalidResponse    = errors.New("gridclient: invalid response")
	ErrUnknownTransport   = errors.New("gridclient: unknown transport")
	ErrUnsupportedPayload = errors.New("gridclient: unsupported payload flags")
)

// RemoteError is a failure reported by a grid node while serving a request.
type RemoteError struct {
	Node    string
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("gridclient: %s on node %s failed: %s", e.Method, e.Node, e.Message)
}

// VariantTypeError is returned by Variant accessors on a kind mismatch.
type VariantTypeError struct {
	Want Kind
	Have Kind
}

func (e *VariantTypeError) Error() string {
	return fmt.Sprintf("gridclient: variant holds %s, not %s", e.Have, e.Want)
}

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
