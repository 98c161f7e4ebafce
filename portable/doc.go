// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package portable implements the self-describing binary object format used
// on the wire between the client and grid nodes.
//
// # Envelope
//
// Every object is written as an envelope:
//
//	[1 version][1 flags][4 typeID][4 totalLength][4 schemaOffset][data...][schema...]
//
// The data section holds field values in write order, each prefixed with a
// one-byte Tag. The schema table is a sequence of (nameHash, offset) pairs, so
// a field can be located by name without parsing the fields before it. All
// integers are big-endian.
//
// # Types
//
// Types participate in one of two ways:
//
//   - Natively, by implementing [Portable] and registering a factory with
//     [Register] or [Registry.RegisterPortable].
//   - Externally, by registering a [Serializer] for a foreign type with
//     [RegisterExternal]. Values then travel wrapped in [External].
//
// Both kinds are resolved to a single [Behavior] at registration time; the
// [Marshaller] only ever talks to a Behavior.
//
// # Lifecycle
//
// A [Registry] is populated during initialization and then frozen with
// [Registry.Freeze]. Lookups are safe for concurrent use at any time.
package portable
