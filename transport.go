// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"context"
	"sort"
	"sync"
)

// Transport types
const (
	TransportTCP  = "tcp"  // Binary frames over TCP, default
	TransportGRPC = "grpc" // Google RPC, requires build tag
	TransportJSON = "json" // JSON-RPC over HTTP
)

// DefaultTransport is the default transport type
const DefaultTransport = TransportTCP

type dialFunc func(ctx context.Context, addr string, o *dialOptions) (Conn, error)
type listenFunc func(addr string, o *serverOptions) (Server, error)

type transport struct {
	dial   dialFunc
	listen listenFunc
}

var (
	transportsMu sync.RWMutex
	transports   = map[string]transport{
		TransportTCP:  {dialFrame, listenFrame},
		TransportJSON: {dialJSON, listenJSON},
	}
)

// registerTransport registers a new transport (used by build tags)
func registerTransport(name string, dial dialFunc, listen listenFunc) {
	transportsMu.Lock()
	defer transportsMu.Unlock()
	transports[name] = transport{dial, listen}
}

func lookupTransport(name string) (transport, bool) {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	t, ok := transports[name]
	return t, ok
}

// AvailableTransports returns the sorted list of available transport types
func AvailableTransports() []string {
	transportsMu.RLock()
	defer transportsMu.RUnlock()
	result := make([]string, 0, len(transports))
	for name := range transports {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// HasTransport checks if a transport is available
func HasTransport(name string) bool {
	_, ok := lookupTransport(name)
	return ok
}
