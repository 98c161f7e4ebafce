// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

import (
	"fmt"
	"reflect"
)

// Marshaller turns objects into envelopes and back using the behaviors of a
// Registry. It holds no per-call state and is safe for concurrent use.
type Marshaller struct {
	reg *Registry
}

// NewMarshaller returns a marshaller over reg, or over the process-wide
// registry when reg is nil.
func NewMarshaller(reg *Registry) *Marshaller {
	if reg == nil {
		reg = Default()
	}
	return &Marshaller{reg: reg}
}

// Registry returns the registry the marshaller resolves types with.
func (m *Marshaller) Registry() *Registry { return m.reg }

// behaviorOf finds the behavior that encodes v: its own, when it is an
// External or implements Portable, or the one registered for its type.
func (m *Marshaller) behaviorOf(v any) (Behavior, error) {
	switch x := v.(type) {
	case adapter:
		return x.behavior(), nil
	case Portable:
		if d, ok := m.reg.Bind(v); ok {
			return d.Behavior, nil
		}
		return nativeBehavior{}, nil
	}
	if d, ok := m.reg.Bind(v); ok {
		return d.Behavior, nil
	}
	return nil, &UnboundTypeError{Type: reflect.TypeOf(v)}
}

// Marshal encodes v as a portable envelope.
func (m *Marshaller) Marshal(v any) ([]byte, error) {
	if isNil(v) {
		return nil, &UnboundTypeError{Type: reflect.TypeOf(v)}
	}
	return m.appendObject(nil, v)
}

func (m *Marshaller) appendObject(buf []byte, v any) ([]byte, error) {
	b, err := m.behaviorOf(v)
	if err != nil {
		return nil, err
	}
	w := newWriter(m, buf)
	if err := b.WriteFields(v, w); err != nil {
		return nil, fmt.Errorf("write type %d: %w", b.TypeID(v), err)
	}
	return w.finish(b.TypeID(v))
}

// Unmarshal decodes an envelope produced by Marshal. Externally adapted types
// are returned as *External[T]. On error no value is returned.
func (m *Marshaller) Unmarshal(data []byte) (any, error) {
	v, n, err := m.decodeObject(data)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, malformed("%d trailing bytes", len(data)-n)
	}
	return v, nil
}

func (m *Marshaller) decodeObject(b []byte) (any, int, error) {
	r, n, err := m.parseEnvelope(b)
	if err != nil {
		return nil, 0, err
	}
	d, err := m.reg.Resolve(r.typeID)
	if err != nil {
		return nil, 0, err
	}
	v, err := d.Behavior.ReadValue(r)
	if err != nil {
		return nil, 0, fmt.Errorf("read type %d: %w", r.typeID, err)
	}
	return v, n, nil
}

// UnmarshalAs decodes data and asserts the result is a T.
func UnmarshalAs[T any](m *Marshaller, data []byte) (T, error) {
	var zero T
	v, err := m.Unmarshal(data)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("portable: decoded %T, not %T", v, zero)
	}
	return t, nil
}

// UnmarshalInto decodes data into p, whose type id must match the envelope.
// Nested objects are resolved through the registry as usual.
func (m *Marshaller) UnmarshalInto(data []byte, p Portable) error {
	r, n, err := m.parseEnvelope(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return malformed("%d trailing bytes", len(data)-n)
	}
	if r.typeID != p.TypeID() {
		return fmt.Errorf("portable: envelope holds type %d, not %d", r.typeID, p.TypeID())
	}
	if err := p.ReadPortable(r); err != nil {
		return fmt.Errorf("read type %d: %w", r.typeID, err)
	}
	return nil
}

// MarshalValue encodes any supported value, primitive or object, as a tagged
// value.
func (m *Marshaller) MarshalValue(v any) ([]byte, error) {
	return m.appendValue(nil, v)
}

// UnmarshalValue decodes bytes produced by MarshalValue. Like Unmarshal, it
// rejects trailing bytes.
func (m *Marshaller) UnmarshalValue(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, malformed("empty value")
	}
	v, n, err := m.decodeValue(Tag(data[0]), data[1:])
	if err != nil {
		return nil, err
	}
	if 1+n != len(data) {
		return nil, malformed("%d trailing bytes", len(data)-1-n)
	}
	return v, nil
}

// HashCode returns the semantic hash of a portable value. ok is false when v
// has no portable behavior.
func (m *Marshaller) HashCode(v any) (hash int32, ok bool) {
	if isNil(v) {
		return 0, false
	}
	b, err := m.behaviorOf(v)
	if err != nil {
		return 0, false
	}
	return b.HashCode(v), true
}

// Equal compares a and b with the equality of their portable behavior, or
// with reflect.DeepEqual when they have none.
func (m *Marshaller) Equal(a, b any) bool {
	if isNil(a) || isNil(b) {
		return isNil(a) && isNil(b)
	}
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	if bh, err := m.behaviorOf(a); err == nil {
		return bh.Equals(a, b)
	}
	return reflect.DeepEqual(a, b)
}
