// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

// Behavior is the capability bundle the Marshaller depends on. Every
// registered type, native or external, is reduced to one Behavior.
type Behavior interface {
	// TypeID returns the wire type id of v.
	TypeID(v any) int32
	// WriteFields encodes the fields of v.
	WriteFields(v any, w *Writer) error
	// ReadValue constructs a new value from r.
	ReadValue(r *Reader) (any, error)
	// HashCode returns the semantic hash of v used for affinity.
	HashCode(v any) int32
	// Equals reports whether a and b are equal under the type's own rules.
	Equals(a, b any) bool
}

// Portable is implemented by types that know how to encode themselves.
//
// HashCode and Equals are semantic: two values with the same declared hash
// are routed to the same partition, and Equals decides key identity.
type Portable interface {
	TypeID() int32
	WritePortable(w *Writer) error
	ReadPortable(r *Reader) error
	HashCode() int32
	Equals(other Portable) bool
}

// nativeBehavior adapts Portable implementations. newFn may be nil when the
// behavior is only used for writing.
type nativeBehavior struct {
	newFn func() Portable
}

func (nativeBehavior) TypeID(v any) int32 {
	return v.(Portable).TypeID()
}

func (nativeBehavior) WriteFields(v any, w *Writer) error {
	return v.(Portable).WritePortable(w)
}

func (b nativeBehavior) ReadValue(r *Reader) (any, error) {
	if b.newFn == nil {
		return nil, &UnregisteredTypeError{TypeID: r.TypeID()}
	}
	p := b.newFn()
	if err := p.ReadPortable(r); err != nil {
		return nil, err
	}
	return p, nil
}

func (nativeBehavior) HashCode(v any) int32 {
	return v.(Portable).HashCode()
}

func (nativeBehavior) Equals(a, b any) bool {
	pa, ok := a.(Portable)
	if !ok {
		return false
	}
	pb, ok := b.(Portable)
	if !ok {
		return false
	}
	return pa.Equals(pb)
}
