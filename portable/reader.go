// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

import (
	"encoding/binary"
	"fmt"
	"time"
)

// Reader decodes the named fields of one object. Fields may be read in any
// order. When a name was written more than once, the last write wins.
type Reader struct {
	m            *Marshaller
	data         []byte
	typeID       int32
	schemaOffset int
	fields       map[int32]int
}

// parseEnvelope validates the envelope header at the start of b and builds a
// Reader over it. It returns the envelope length.
func (m *Marshaller) parseEnvelope(b []byte) (*Reader, int, error) {
	if len(b) < headerSize {
		return nil, 0, malformed("envelope of %d bytes", len(b))
	}
	if b[offVersion] != Version {
		return nil, 0, malformed("unsupported version %d", b[offVersion])
	}
	typeID := int32(binary.BigEndian.Uint32(b[offTypeID:]))
	total := int(int32(binary.BigEndian.Uint32(b[offLength:])))
	schema := int(int32(binary.BigEndian.Uint32(b[offSchema:])))
	if total < headerSize || total > len(b) {
		return nil, 0, malformed("envelope length %d of %d available", total, len(b))
	}
	if schema < headerSize || schema > total || (total-schema)%schemaEntrySize != 0 {
		return nil, 0, malformed("schema offset %d in envelope of %d", schema, total)
	}

	r := &Reader{
		m:            m,
		data:         b[:total],
		typeID:       typeID,
		schemaOffset: schema,
		fields:       make(map[int32]int, (total-schema)/schemaEntrySize),
	}
	for off := schema; off < total; off += schemaEntrySize {
		h := int32(binary.BigEndian.Uint32(b[off:]))
		fo := int(int32(binary.BigEndian.Uint32(b[off+4:])))
		if fo < headerSize || fo >= schema {
			return nil, 0, malformed("field offset %d outside data section", fo)
		}
		r.fields[h] = fo
	}
	return r, total, nil
}

// TypeID returns the type id of the object being read.
func (r *Reader) TypeID() int32 { return r.typeID }

// FieldCount returns the number of distinct fields in the object.
func (r *Reader) FieldCount() int { return len(r.fields) }

// Has reports whether the object contains a field called name.
func (r *Reader) Has(name string) bool {
	_, ok := r.fields[FieldHash(name)]
	return ok
}

// Tag returns the stored tag of a field.
func (r *Reader) Tag(name string) (Tag, error) {
	off, ok := r.fields[FieldHash(name)]
	if !ok {
		return 0, &FieldNotFoundError{Field: name, TypeID: r.typeID}
	}
	return Tag(r.data[off]), nil
}

// read locates name and decodes it, checking the stored tag against want.
func (r *Reader) read(name string, want Tag) (any, error) {
	off, ok := r.fields[FieldHash(name)]
	if !ok {
		return nil, &FieldNotFoundError{Field: name, TypeID: r.typeID}
	}
	got := Tag(r.data[off])
	if got != want && !(got == TagNull && want.nullable()) {
		return nil, &TypeMismatchError{Field: name, Expected: want, Actual: got}
	}
	v, _, err := r.m.decodeValue(got, r.data[off+1:r.schemaOffset])
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", name, err)
	}
	return v, nil
}

func read[T any](r *Reader, name string, want Tag) (T, error) {
	var zero T
	v, err := r.read(name, want)
	if err != nil || v == nil {
		return zero, err
	}
	return v.(T), nil
}

// ReadBool reads a boolean field.
func (r *Reader) ReadBool(name string) (bool, error) { return read[bool](r, name, TagBool) }

// ReadInt8 reads a signed byte field.
func (r *Reader) ReadInt8(name string) (int8, error) { return read[int8](r, name, TagByte) }

// ReadInt16 reads a 16-bit integer field.
func (r *Reader) ReadInt16(name string) (int16, error) { return read[int16](r, name, TagInt16) }

// ReadInt32 reads a 32-bit integer field.
func (r *Reader) ReadInt32(name string) (int32, error) { return read[int32](r, name, TagInt32) }

// ReadInt64 reads a 64-bit integer field.
func (r *Reader) ReadInt64(name string) (int64, error) { return read[int64](r, name, TagInt64) }

// ReadFloat32 reads a single-precision field.
func (r *Reader) ReadFloat32(name string) (float32, error) {
	return read[float32](r, name, TagFloat32)
}

// ReadFloat64 reads a double-precision field.
func (r *Reader) ReadFloat64(name string) (float64, error) {
	return read[float64](r, name, TagFloat64)
}

// ReadString reads a string field. A null field reads as "".
func (r *Reader) ReadString(name string) (string, error) { return read[string](r, name, TagString) }

// ReadBytes reads a byte slice field.
func (r *Reader) ReadBytes(name string) ([]byte, error) { return read[[]byte](r, name, TagBytes) }

// ReadTime reads a timestamp field. The result is in UTC.
func (r *Reader) ReadTime(name string) (time.Time, error) { return read[time.Time](r, name, TagTime) }

// ReadInt32Array reads an int32 array field.
func (r *Reader) ReadInt32Array(name string) ([]int32, error) {
	return read[[]int32](r, name, TagInt32Array)
}

// ReadInt64Array reads an int64 array field.
func (r *Reader) ReadInt64Array(name string) ([]int64, error) {
	return read[[]int64](r, name, TagInt64Array)
}

// ReadFloat32Array reads a float32 array field.
func (r *Reader) ReadFloat32Array(name string) ([]float32, error) {
	return read[[]float32](r, name, TagFloat32Array)
}

// ReadFloat64Array reads a float64 array field.
func (r *Reader) ReadFloat64Array(name string) ([]float64, error) {
	return read[[]float64](r, name, TagFloat64Array)
}

// ReadBoolArray reads a bool array field.
func (r *Reader) ReadBoolArray(name string) ([]bool, error) {
	return read[[]bool](r, name, TagBoolArray)
}

// ReadStringArray reads a string array field.
func (r *Reader) ReadStringArray(name string) ([]string, error) {
	return read[[]string](r, name, TagStringArray)
}

// ReadPortable reads a nested object. Null reads as nil.
func (r *Reader) ReadPortable(name string) (any, error) { return r.read(name, TagPortable) }

// ReadObject reads a field of any tag.
func (r *Reader) ReadObject(name string) (any, error) {
	tag, err := r.Tag(name)
	if err != nil {
		return nil, err
	}
	return r.read(name, tag)
}

// ReadPortableAs reads a nested object and asserts its type.
func ReadPortableAs[T any](r *Reader, name string) (T, error) {
	var zero T
	v, err := r.ReadPortable(name)
	if err != nil || v == nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("portable: field %q holds %T, not %T", name, v, zero)
	}
	return t, nil
}
