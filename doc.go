// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gridclient is a thick client for a compute and cache grid.
//
// Values cross the wire in the portable format (package portable): a
// self-describing binary envelope keyed by a numeric type id. Keys are routed
// on the client (package affinity): every key maps to a partition and every
// partition to one owning node of the current topology snapshot, so requests
// go straight to the node that holds the data.
//
// # Usage
//
//	reg := portable.NewRegistry()
//	portable.MustRegister[Person](reg, 10)
//
//	cfg, err := gridclient.LoadConfig("grid.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	client, err := gridclient.Open(ctx, cfg, gridclient.WithRegistry(reg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	people, err := client.Data("people")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	_, err = people.Put(ctx, int32(100), &Person{ID: 10, Name: "person1"})
//	v, err := people.Get(ctx, int32(100))
//	p, err := gridclient.PortableAs[*Person](v)
//
// Open registers the protocol messages and freezes the registry; register
// every user type before calling it.
//
// # Transport Selection
//
// Binary frames over TCP are the default transport. Frames carry a request
// id, so one connection per node serves concurrent calls; payloads of at
// least CompressionThreshold bytes are compressed with zstd or lz4 when the
// config asks for it.
//
//	"transport": "tcp"    # binary frames (default)
//	"transport": "json"   # JSON-RPC 2.0 over HTTP
//	"transport": "grpc"   # gRPC, requires -tags grpc
//
// # Architecture
//
//   - client.go: Client, projections, Conn and Server interfaces, options
//   - grid.go: Open and request routing
//   - data.go, compute.go: cache and compute projections
//   - variant.go: tagged results
//   - codec.go: portable and JSON codecs
//   - transport.go: transport registry for build-tag extensibility
//   - dial.go: Dial and Listen factory functions
//   - frame.go: binary frame transport (default)
//   - json.go: JSON-RPC transport
//   - dial_grpc.go: gRPC transport (requires -tags grpc)
//   - pool.go: per-node connection pool
//   - config.go, logger.go, metrics.go: configuration and observability
package gridclient
