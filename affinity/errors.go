// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package affinity

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNoAvailableNode is returned when a partition cannot be mapped to a
	// node of the topology snapshot.
	ErrNoAvailableNode = errors.New("affinity: no available node")
	// ErrInvalidPartition is returned for partitions outside [0, Partitions).
	ErrInvalidPartition = errors.New("affinity: invalid partition")
	// ErrNilKey is returned when a nil key is hashed.
	ErrNilKey = errors.New("affinity: nil key")
)

// UnhashableKeyError is returned for keys of a kind with no hash adapter.
type UnhashableKeyError struct {
	Type reflect.Type
}

func (e *UnhashableKeyError) Error() string {
	return fmt.Sprintf("affinity: no hash adapter for key type %v", e.Type)
}
