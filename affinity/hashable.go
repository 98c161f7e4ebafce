// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package affinity

import (
	"math"
	"reflect"
	"time"

	"github.com/luxfi/gridclient/portable"
)

// Hashable produces the hash the grid uses for a key's content. Portable
// objects and External wrappers satisfy it through their declared HashCode,
// which is semantic rather than structural.
type Hashable interface {
	HashCode() int32
}

// Adapters for built-in key kinds. Each reproduces the JVM hash of the value
// as it is encoded on the wire: unsigned integers are widened like the
// portable encoder widens them.
type (
	BoolKey    bool
	Int8Key    int8
	Int16Key   int16
	Int32Key   int32
	Int64Key   int64
	Uint8Key   uint8
	Uint16Key  uint16
	Uint32Key  uint32
	Uint64Key  uint64
	StringKey  string
	Float32Key float32
	Float64Key float64
	BytesKey   []byte
	TimeKey    time.Time
)

func (k BoolKey) HashCode() int32 {
	if k {
		return 1231
	}
	return 1237
}

func (k Int8Key) HashCode() int32   { return int32(k) }
func (k Int16Key) HashCode() int32  { return int32(k) }
func (k Int32Key) HashCode() int32  { return int32(k) }
func (k Int64Key) HashCode() int32  { return foldInt64(int64(k)) }
func (k Uint8Key) HashCode() int32  { return int32(k) }
func (k Uint16Key) HashCode() int32 { return int32(k) }
func (k Uint32Key) HashCode() int32 { return foldInt64(int64(k)) }
func (k Uint64Key) HashCode() int32 { return foldInt64(int64(k)) }
func (k StringKey) HashCode() int32 { return portable.StringHash(string(k)) }

// HashCode returns the bits of k with every NaN collapsed to one pattern.
func (k Float32Key) HashCode() int32 {
	if math.IsNaN(float64(k)) {
		return 0x7fc00000
	}
	return int32(math.Float32bits(float32(k)))
}

// HashCode folds the bits of k with every NaN collapsed to one pattern.
func (k Float64Key) HashCode() int32 {
	if math.IsNaN(float64(k)) {
		return foldInt64(0x7ff8000000000000)
	}
	return foldInt64(int64(math.Float64bits(float64(k))))
}

func (k BytesKey) HashCode() int32 {
	h := int32(1)
	for _, b := range k {
		h = 31*h + int32(int8(b))
	}
	return h
}

func (k TimeKey) HashCode() int32 {
	return foldInt64(time.Time(k).UnixNano())
}

func foldInt64(v int64) int32 {
	u := uint64(v)
	return int32(u ^ u>>32)
}

// Of returns the adapter for key.
func Of(key any) (Hashable, error) {
	switch k := key.(type) {
	case nil:
		return nil, ErrNilKey
	case Hashable:
		if reflect.ValueOf(k).Kind() == reflect.Pointer && reflect.ValueOf(k).IsNil() {
			return nil, ErrNilKey
		}
		return k, nil
	case bool:
		return BoolKey(k), nil
	case int8:
		return Int8Key(k), nil
	case int16:
		return Int16Key(k), nil
	case int32:
		return Int32Key(k), nil
	case int64:
		return Int64Key(k), nil
	case int:
		return Int64Key(k), nil
	case uint8:
		return Uint8Key(k), nil
	case uint16:
		return Uint16Key(k), nil
	case uint32:
		return Uint32Key(k), nil
	case uint64:
		return Uint64Key(k), nil
	case uint:
		return Uint64Key(k), nil
	case string:
		return StringKey(k), nil
	case float32:
		return Float32Key(k), nil
	case float64:
		return Float64Key(k), nil
	case []byte:
		return BytesKey(k), nil
	case time.Time:
		return TimeKey(k), nil
	}
	return nil, &UnhashableKeyError{Type: reflect.TypeOf(key)}
}

// HashCode returns the hash of key.
func HashCode(key any) (int32, error) {
	h, err := Of(key)
	if err != nil {
		return 0, err
	}
	return h.HashCode(), nil
}
