// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"time"
)

func appendLen(buf []byte, n int) ([]byte, error) {
	if n > math.MaxInt32 {
		return nil, fmt.Errorf("%w: length %d exceeds int32", ErrUnsupportedValue, n)
	}
	return binary.BigEndian.AppendUint32(buf, uint32(n)), nil
}

func appendString(buf []byte, s string) ([]byte, error) {
	buf, err := appendLen(buf, len(s))
	if err != nil {
		return nil, err
	}
	return append(buf, s...), nil
}

func appendBytes(buf []byte, b []byte) ([]byte, error) {
	buf, err := appendLen(buf, len(b))
	if err != nil {
		return nil, err
	}
	return append(buf, b...), nil
}

// appendValue writes v as [tag][payload].
func (m *Marshaller) appendValue(buf []byte, v any) ([]byte, error) {
	if isNil(v) {
		return append(buf, byte(TagNull)), nil
	}

	var err error
	switch x := v.(type) {
	case bool:
		var b byte
		if x {
			b = 1
		}
		return append(buf, byte(TagBool), b), nil
	case int8:
		return append(buf, byte(TagByte), byte(x)), nil
	case uint8:
		buf = append(buf, byte(TagInt16))
		return binary.BigEndian.AppendUint16(buf, uint16(x)), nil
	case int16:
		buf = append(buf, byte(TagInt16))
		return binary.BigEndian.AppendUint16(buf, uint16(x)), nil
	case uint16:
		buf = append(buf, byte(TagInt32))
		return binary.BigEndian.AppendUint32(buf, uint32(x)), nil
	case int32:
		buf = append(buf, byte(TagInt32))
		return binary.BigEndian.AppendUint32(buf, uint32(x)), nil
	case uint32:
		buf = append(buf, byte(TagInt64))
		return binary.BigEndian.AppendUint64(buf, uint64(x)), nil
	case int64:
		buf = append(buf, byte(TagInt64))
		return binary.BigEndian.AppendUint64(buf, uint64(x)), nil
	case int:
		buf = append(buf, byte(TagInt64))
		return binary.BigEndian.AppendUint64(buf, uint64(x)), nil
	case uint:
		return m.appendValue(buf, uint64(x))
	case uint64:
		if x > math.MaxInt64 {
			return nil, fmt.Errorf("%w: uint64 %d overflows int64", ErrUnsupportedValue, x)
		}
		buf = append(buf, byte(TagInt64))
		return binary.BigEndian.AppendUint64(buf, x), nil
	case float32:
		buf = append(buf, byte(TagFloat32))
		return binary.BigEndian.AppendUint32(buf, math.Float32bits(x)), nil
	case float64:
		buf = append(buf, byte(TagFloat64))
		return binary.BigEndian.AppendUint64(buf, math.Float64bits(x)), nil
	case string:
		return appendString(append(buf, byte(TagString)), x)
	case []byte:
		return appendBytes(append(buf, byte(TagBytes)), x)
	case time.Time:
		buf = append(buf, byte(TagTime))
		return binary.BigEndian.AppendUint64(buf, uint64(x.UnixNano())), nil
	case []int32:
		if buf, err = appendLen(append(buf, byte(TagInt32Array)), len(x)); err != nil {
			return nil, err
		}
		for _, e := range x {
			buf = binary.BigEndian.AppendUint32(buf, uint32(e))
		}
		return buf, nil
	case []int64:
		if buf, err = appendLen(append(buf, byte(TagInt64Array)), len(x)); err != nil {
			return nil, err
		}
		for _, e := range x {
			buf = binary.BigEndian.AppendUint64(buf, uint64(e))
		}
		return buf, nil
	case []float32:
		if buf, err = appendLen(append(buf, byte(TagFloat32Array)), len(x)); err != nil {
			return nil, err
		}
		for _, e := range x {
			buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(e))
		}
		return buf, nil
	case []float64:
		if buf, err = appendLen(append(buf, byte(TagFloat64Array)), len(x)); err != nil {
			return nil, err
		}
		for _, e := range x {
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(e))
		}
		return buf, nil
	case []bool:
		if buf, err = appendLen(append(buf, byte(TagBoolArray)), len(x)); err != nil {
			return nil, err
		}
		for _, e := range x {
			var b byte
			if e {
				b = 1
			}
			buf = append(buf, b)
		}
		return buf, nil
	case []string:
		if buf, err = appendLen(append(buf, byte(TagStringArray)), len(x)); err != nil {
			return nil, err
		}
		for _, e := range x {
			if buf, err = appendString(buf, e); err != nil {
				return nil, err
			}
		}
		return buf, nil
	}

	return m.appendObject(append(buf, byte(TagPortable)), v)
}

// decodeValue decodes a payload written by appendValue for tag and returns
// the number of bytes it used. b starts right after the tag byte and may
// extend past the value.
func (m *Marshaller) decodeValue(tag Tag, b []byte) (any, int, error) {
	fixed := func(size int, what string) error {
		if len(b) < size {
			return malformed("short %s", what)
		}
		return nil
	}
	switch tag {
	case TagNull:
		return nil, 0, nil
	case TagBool:
		if err := fixed(1, "bool"); err != nil {
			return nil, 0, err
		}
		return b[0] != 0, 1, nil
	case TagByte:
		if err := fixed(1, "byte"); err != nil {
			return nil, 0, err
		}
		return int8(b[0]), 1, nil
	case TagInt16:
		if err := fixed(2, "int16"); err != nil {
			return nil, 0, err
		}
		return int16(binary.BigEndian.Uint16(b)), 2, nil
	case TagInt32:
		if err := fixed(4, "int32"); err != nil {
			return nil, 0, err
		}
		return int32(binary.BigEndian.Uint32(b)), 4, nil
	case TagInt64:
		if err := fixed(8, "int64"); err != nil {
			return nil, 0, err
		}
		return int64(binary.BigEndian.Uint64(b)), 8, nil
	case TagFloat32:
		if err := fixed(4, "float32"); err != nil {
			return nil, 0, err
		}
		return math.Float32frombits(binary.BigEndian.Uint32(b)), 4, nil
	case TagFloat64:
		if err := fixed(8, "float64"); err != nil {
			return nil, 0, err
		}
		return math.Float64frombits(binary.BigEndian.Uint64(b)), 8, nil
	case TagTime:
		if err := fixed(8, "time"); err != nil {
			return nil, 0, err
		}
		return time.Unix(0, int64(binary.BigEndian.Uint64(b))).UTC(), 8, nil
	case TagString:
		s, _, err := readSized(b, 1)
		if err != nil {
			return nil, 0, err
		}
		return string(s), 4 + len(s), nil
	case TagBytes:
		s, _, err := readSized(b, 1)
		if err != nil {
			return nil, 0, err
		}
		return append([]byte(nil), s...), 4 + len(s), nil
	case TagInt32Array:
		s, n, err := readSized(b, 4)
		if err != nil {
			return nil, 0, err
		}
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(binary.BigEndian.Uint32(s[i*4:]))
		}
		return out, 4 + len(s), nil
	case TagInt64Array:
		s, n, err := readSized(b, 8)
		if err != nil {
			return nil, 0, err
		}
		out := make([]int64, n)
		for i := range out {
			out[i] = int64(binary.BigEndian.Uint64(s[i*8:]))
		}
		return out, 4 + len(s), nil
	case TagFloat32Array:
		s, n, err := readSized(b, 4)
		if err != nil {
			return nil, 0, err
		}
		out := make([]float32, n)
		for i := range out {
			out[i] = math.Float32frombits(binary.BigEndian.Uint32(s[i*4:]))
		}
		return out, 4 + len(s), nil
	case TagFloat64Array:
		s, n, err := readSized(b, 8)
		if err != nil {
			return nil, 0, err
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Float64frombits(binary.BigEndian.Uint64(s[i*8:]))
		}
		return out, 4 + len(s), nil
	case TagBoolArray:
		s, n, err := readSized(b, 1)
		if err != nil {
			return nil, 0, err
		}
		out := make([]bool, n)
		for i := range out {
			out[i] = s[i] != 0
		}
		return out, 4 + len(s), nil
	case TagStringArray:
		if err := fixed(4, "string array"); err != nil {
			return nil, 0, err
		}
		n := int32(binary.BigEndian.Uint32(b))
		if n < 0 || int(n) > len(b)/4 {
			return nil, 0, malformed("string array count %d", n)
		}
		out := make([]string, n)
		used := 4
		for i := range out {
			s, _, err := readSized(b[used:], 1)
			if err != nil {
				return nil, 0, err
			}
			out[i] = string(s)
			used += 4 + len(s)
		}
		return out, used, nil
	case TagPortable:
		return m.decodeObject(b)
	}
	return nil, 0, malformed("unknown tag %d", uint8(tag))
}

// readSized reads an int32 count followed by count elements of size bytes.
func readSized(b []byte, size int) ([]byte, int, error) {
	if len(b) < 4 {
		return nil, 0, malformed("short length prefix")
	}
	n := int32(binary.BigEndian.Uint32(b))
	if n < 0 || int64(n)*int64(size) > int64(len(b)-4) {
		return nil, 0, malformed("length %d out of range", n)
	}
	end := 4 + int(n)*size
	return b[4:end], int(n), nil
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
