// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"fmt"
	"math"
	"time"

	"github.com/luxfi/gridclient/affinity"
	"github.com/luxfi/gridclient/portable"
)

// Kind is the kind of value a Variant holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindByte
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindString
	KindBytes
	KindTime
	KindArray
	KindPortable
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindByte:     "byte",
	KindInt16:    "int16",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindFloat32:  "float32",
	KindFloat64:  "float64",
	KindString:   "string",
	KindBytes:    "bytes",
	KindTime:     "time",
	KindArray:    "array",
	KindPortable: "portable",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Variant is a tagged value returned by cache reads and compute tasks. The
// zero Variant is null.
type Variant struct {
	kind  Kind
	value any
}

// NewVariant wraps v. Unsigned and platform-sized integers are widened the
// same way they are encoded on the wire. It panics if v is an unsigned
// integer above math.MaxInt64; VariantOf reports that as an error.
func NewVariant(v any) Variant {
	vv, err := VariantOf(v)
	if err != nil {
		panic(err)
	}
	return vv
}

// VariantOf is like NewVariant but returns an error wrapping
// portable.ErrUnsupportedValue for unsigned integers that overflow int64.
func VariantOf(v any) (Variant, error) {
	switch x := v.(type) {
	case uint64:
		return unsignedVariant(x)
	case uint:
		return unsignedVariant(uint64(x))
	}
	return wrap(v), nil
}

func unsignedVariant(x uint64) (Variant, error) {
	if x > math.MaxInt64 {
		return Variant{}, fmt.Errorf("%w: uint64 %d overflows int64", portable.ErrUnsupportedValue, x)
	}
	return Variant{KindInt64, int64(x)}, nil
}

func wrap(v any) Variant {
	switch x := v.(type) {
	case nil:
		return Variant{}
	case Variant:
		return x
	case bool:
		return Variant{KindBool, x}
	case int8:
		return Variant{KindByte, x}
	case int16:
		return Variant{KindInt16, x}
	case int32:
		return Variant{KindInt32, x}
	case int64:
		return Variant{KindInt64, x}
	case int:
		return Variant{KindInt64, int64(x)}
	case uint8:
		return Variant{KindInt16, int16(x)}
	case uint16:
		return Variant{KindInt32, int32(x)}
	case uint32:
		return Variant{KindInt64, int64(x)}
	case float32:
		return Variant{KindFloat32, x}
	case float64:
		return Variant{KindFloat64, x}
	case string:
		return Variant{KindString, x}
	case []byte:
		if x == nil {
			return Variant{}
		}
		return Variant{KindBytes, x}
	case time.Time:
		return Variant{KindTime, x}
	case []int32, []int64, []float32, []float64, []bool, []string:
		return Variant{KindArray, x}
	}
	return Variant{KindPortable, v}
}

// Kind returns the kind of the held value.
func (v Variant) Kind() Kind { return v.kind }

// Value returns the held value, nil for null.
func (v Variant) Value() any { return v.value }

// IsNull reports whether v holds no value.
func (v Variant) IsNull() bool { return v.kind == KindNull }

// HasAnyValue reports whether v holds a value of any kind.
func (v Variant) HasAnyValue() bool { return v.kind != KindNull }

func (v Variant) HasBool() bool     { return v.kind == KindBool }
func (v Variant) HasByte() bool     { return v.kind == KindByte }
func (v Variant) HasInt16() bool    { return v.kind == KindInt16 }
func (v Variant) HasInt32() bool    { return v.kind == KindInt32 }
func (v Variant) HasInt64() bool    { return v.kind == KindInt64 }
func (v Variant) HasFloat32() bool  { return v.kind == KindFloat32 }
func (v Variant) HasFloat64() bool  { return v.kind == KindFloat64 }
func (v Variant) HasString() bool   { return v.kind == KindString }
func (v Variant) HasBytes() bool    { return v.kind == KindBytes }
func (v Variant) HasTime() bool     { return v.kind == KindTime }
func (v Variant) HasArray() bool    { return v.kind == KindArray }
func (v Variant) HasPortable() bool { return v.kind == KindPortable }

func variantAs[T any](v Variant, k Kind) (T, error) {
	var zero T
	if v.kind != k {
		return zero, &VariantTypeError{Want: k, Have: v.kind}
	}
	return v.value.(T), nil
}

func (v Variant) AsBool() (bool, error)       { return variantAs[bool](v, KindBool) }
func (v Variant) AsByte() (int8, error)       { return variantAs[int8](v, KindByte) }
func (v Variant) AsInt16() (int16, error)     { return variantAs[int16](v, KindInt16) }
func (v Variant) AsInt32() (int32, error)     { return variantAs[int32](v, KindInt32) }
func (v Variant) AsInt64() (int64, error)     { return variantAs[int64](v, KindInt64) }
func (v Variant) AsFloat32() (float32, error) { return variantAs[float32](v, KindFloat32) }
func (v Variant) AsFloat64() (float64, error) { return variantAs[float64](v, KindFloat64) }
func (v Variant) AsString() (string, error)   { return variantAs[string](v, KindString) }
func (v Variant) AsBytes() ([]byte, error)    { return variantAs[[]byte](v, KindBytes) }
func (v Variant) AsTime() (time.Time, error)  { return variantAs[time.Time](v, KindTime) }
func (v Variant) AsArray() (any, error)       { return variantAs[any](v, KindArray) }
func (v Variant) AsPortable() (any, error)    { return variantAs[any](v, KindPortable) }

// PortableAs returns the portable object held by v as a T.
func PortableAs[T any](v Variant) (T, error) {
	var zero T
	obj, err := v.AsPortable()
	if err != nil {
		return zero, err
	}
	t, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("gridclient: variant holds %T, not %T", obj, zero)
	}
	return t, nil
}

// HashCode returns the hash the held value routes by, so a Variant can be
// used as a cache key. Null and arrays hash to zero.
func (v Variant) HashCode() int32 {
	if v.kind == KindNull || v.kind == KindArray {
		return 0
	}
	h, err := affinity.HashCode(v.value)
	if err != nil {
		return 0
	}
	return h
}

func (v Variant) String() string {
	if v.kind == KindNull {
		return "null"
	}
	return fmt.Sprintf("%s(%v)", v.kind, v.value)
}
