// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

import (
	"errors"
	"reflect"
)

// Serializer grants portable behavior to a type T that does not implement
// Portable itself.
type Serializer[T any] interface {
	TypeID(v T) int32
	WritePortable(v T, w *Writer) error
	ReadPortable(r *Reader) (T, error)
	HashCode(v T) int32
	Equals(a, b T) bool
}

// External wraps a foreign value together with the serializer that encodes
// it. The wrapper borrows the value: it never copies or mutates it, and
// dropping the wrapper has no effect on the value.
type External[T any] struct {
	value      T
	serializer Serializer[T]
}

// NewExternal binds v to s.
func NewExternal[T any](v T, s Serializer[T]) *External[T] {
	return &External[T]{value: v, serializer: s}
}

// Value returns the wrapped value.
func (e *External[T]) Value() T { return e.value }

// Serializer returns the serializer bound to the value.
func (e *External[T]) Serializer() Serializer[T] { return e.serializer }

// TypeID returns the wire type id reported by the serializer.
func (e *External[T]) TypeID() int32 { return e.serializer.TypeID(e.value) }

// HashCode returns the serializer's hash of the wrapped value.
func (e *External[T]) HashCode() int32 { return e.serializer.HashCode(e.value) }

// Equals compares the wrapped value with other, which may be another
// External of the same type or a bare T.
func (e *External[T]) Equals(other any) bool {
	switch o := other.(type) {
	case *External[T]:
		return o != nil && e.serializer.Equals(e.value, o.value)
	case T:
		return e.serializer.Equals(e.value, o)
	}
	return false
}

func (e *External[T]) behavior() Behavior {
	return externalBehavior[T]{s: e.serializer}
}

// adapter is implemented by wrappers that carry their own behavior.
type adapter interface {
	behavior() Behavior
}

// RegisterExternal binds id to the foreign type T encoded by s. Bare values
// of type T can then be marshalled directly, and unmarshalling yields
// *External[T].
func RegisterExternal[T any](r *Registry, id int32, s Serializer[T]) error {
	if s == nil {
		return errors.New("portable: nil serializer")
	}
	return r.register(&TypeDescriptor{
		TypeID:     id,
		Kind:       KindExternal,
		Type:       reflect.TypeOf((*T)(nil)).Elem(),
		Behavior:   externalBehavior[T]{s: s},
		serializer: reflect.TypeOf(s),
	})
}

type externalBehavior[T any] struct {
	s Serializer[T]
}

func (b externalBehavior[T]) unwrap(v any) T {
	if e, ok := v.(*External[T]); ok {
		return e.value
	}
	if t, ok := v.(T); ok {
		return t
	}
	var zero T
	return zero
}

func (b externalBehavior[T]) TypeID(v any) int32 {
	return b.s.TypeID(b.unwrap(v))
}

func (b externalBehavior[T]) WriteFields(v any, w *Writer) error {
	return b.s.WritePortable(b.unwrap(v), w)
}

func (b externalBehavior[T]) ReadValue(r *Reader) (any, error) {
	v, err := b.s.ReadPortable(r)
	if err != nil {
		return nil, err
	}
	return &External[T]{value: v, serializer: b.s}, nil
}

func (b externalBehavior[T]) HashCode(v any) int32 {
	return b.s.HashCode(b.unwrap(v))
}

func (b externalBehavior[T]) Equals(x, y any) bool {
	return b.s.Equals(b.unwrap(x), b.unwrap(y))
}
