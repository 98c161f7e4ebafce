// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrRegistryFrozen is returned when a new type is registered after Freeze.
	ErrRegistryFrozen = errors.New("portable: registry is frozen")
	// ErrMalformed indicates bytes that do not form a valid envelope.
	ErrMalformed = errors.New("portable: malformed data")
	// ErrFieldHashCollision is returned when two different field names of one
	// object hash to the same schema key.
	ErrFieldHashCollision = errors.New("portable: field name hash collision")
	// ErrUnsupportedValue is returned by WriteObject for values it cannot encode.
	ErrUnsupportedValue = errors.New("portable: unsupported value")
)

// ConflictingRegistrationError is returned when a type id is registered twice
// with incompatible behaviors.
type ConflictingRegistrationError struct {
	TypeID    int32
	Existing  string
	Requested string
}

func (e *ConflictingRegistrationError) Error() string {
	return fmt.Sprintf("portable: type id %d already bound to %s, cannot bind %s", e.TypeID, e.Existing, e.Requested)
}

// UnregisteredTypeError is returned when data references an unknown type id.
type UnregisteredTypeError struct {
	TypeID int32
}

func (e *UnregisteredTypeError) Error() string {
	return fmt.Sprintf("portable: type id %d is not registered", e.TypeID)
}

// UnboundTypeError is returned when a value has no portable behavior.
type UnboundTypeError struct {
	Type reflect.Type
}

func (e *UnboundTypeError) Error() string {
	return fmt.Sprintf("portable: no portable behavior for %v", e.Type)
}

// FieldNotFoundError is returned when a reader asks for an absent field.
type FieldNotFoundError struct {
	Field  string
	TypeID int32
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("portable: field %q not found in type %d", e.Field, e.TypeID)
}

// TypeMismatchError is returned when a stored field has a different tag than
// the one requested.
type TypeMismatchError struct {
	Field    string
	Expected Tag
	Actual   Tag
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("portable: field %q is %s, not %s", e.Field, e.Actual, e.Expected)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformed}, args...)...)
}
