// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"
)

type fieldEntry struct {
	hash   int32
	offset int32
}

// Writer encodes the named fields of one object. A Writer is handed to
// Portable.WritePortable and Serializer.WritePortable; it is not safe for
// concurrent use and must not be retained after the call returns.
type Writer struct {
	m      *Marshaller
	buf    []byte
	start  int
	fields []fieldEntry
	names  map[int32]string
}

func newWriter(m *Marshaller, buf []byte) *Writer {
	start := len(buf)
	buf = append(buf, Version, 0)
	buf = append(buf, make([]byte, headerSize-2)...)
	return &Writer{
		m:     m,
		buf:   buf,
		start: start,
		names: make(map[int32]string),
	}
}

// begin records a schema entry for name at the current offset.
func (w *Writer) begin(name string) error {
	lower := strings.ToLower(name)
	h := FieldHash(lower)
	if prev, ok := w.names[h]; ok && prev != lower {
		return fmt.Errorf("%w: %q and %q", ErrFieldHashCollision, prev, name)
	}
	w.names[h] = lower
	w.fields = append(w.fields, fieldEntry{hash: h, offset: int32(len(w.buf) - w.start)})
	return nil
}

// WriteBool writes a boolean field.
func (w *Writer) WriteBool(name string, v bool) error { return w.WriteObject(name, v) }

// WriteInt8 writes a signed byte field.
func (w *Writer) WriteInt8(name string, v int8) error { return w.WriteObject(name, v) }

// WriteInt16 writes a 16-bit integer field.
func (w *Writer) WriteInt16(name string, v int16) error {
	if err := w.begin(name); err != nil {
		return err
	}
	w.buf = binary.BigEndian.AppendUint16(append(w.buf, byte(TagInt16)), uint16(v))
	return nil
}

// WriteInt32 writes a 32-bit integer field.
func (w *Writer) WriteInt32(name string, v int32) error {
	if err := w.begin(name); err != nil {
		return err
	}
	w.buf = binary.BigEndian.AppendUint32(append(w.buf, byte(TagInt32)), uint32(v))
	return nil
}

// WriteInt64 writes a 64-bit integer field.
func (w *Writer) WriteInt64(name string, v int64) error {
	if err := w.begin(name); err != nil {
		return err
	}
	w.buf = binary.BigEndian.AppendUint64(append(w.buf, byte(TagInt64)), uint64(v))
	return nil
}

// WriteFloat32 writes a single-precision field.
func (w *Writer) WriteFloat32(name string, v float32) error {
	if err := w.begin(name); err != nil {
		return err
	}
	w.buf = binary.BigEndian.AppendUint32(append(w.buf, byte(TagFloat32)), math.Float32bits(v))
	return nil
}

// WriteFloat64 writes a double-precision field.
func (w *Writer) WriteFloat64(name string, v float64) error {
	if err := w.begin(name); err != nil {
		return err
	}
	w.buf = binary.BigEndian.AppendUint64(append(w.buf, byte(TagFloat64)), math.Float64bits(v))
	return nil
}

// WriteString writes a UTF-8 string field.
func (w *Writer) WriteString(name string, v string) error { return w.WriteObject(name, v) }

// WriteBytes writes a byte slice field. A nil slice is written as empty.
func (w *Writer) WriteBytes(name string, v []byte) error { return w.WriteObject(name, v) }

// WriteTime writes a timestamp with nanosecond precision.
func (w *Writer) WriteTime(name string, v time.Time) error { return w.WriteObject(name, v) }

// WriteInt32Array writes an int32 array field.
func (w *Writer) WriteInt32Array(name string, v []int32) error { return w.WriteObject(name, v) }

// WriteInt64Array writes an int64 array field.
func (w *Writer) WriteInt64Array(name string, v []int64) error { return w.WriteObject(name, v) }

// WriteFloat32Array writes a float32 array field.
func (w *Writer) WriteFloat32Array(name string, v []float32) error { return w.WriteObject(name, v) }

// WriteFloat64Array writes a float64 array field.
func (w *Writer) WriteFloat64Array(name string, v []float64) error { return w.WriteObject(name, v) }

// WriteBoolArray writes a bool array field.
func (w *Writer) WriteBoolArray(name string, v []bool) error { return w.WriteObject(name, v) }

// WriteStringArray writes a string array field.
func (w *Writer) WriteStringArray(name string, v []string) error { return w.WriteObject(name, v) }

// WriteNull writes an explicit null field.
func (w *Writer) WriteNull(name string) error { return w.WriteObject(name, nil) }

// WritePortable writes a nested object. v must be Portable, an External, or
// a value of a registered external type; nil is written as null.
func (w *Writer) WritePortable(name string, v any) error {
	if err := w.begin(name); err != nil {
		return err
	}
	if isNil(v) {
		w.buf = append(w.buf, byte(TagNull))
		return nil
	}
	buf, err := w.m.appendObject(append(w.buf, byte(TagPortable)), v)
	if err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	w.buf = buf
	return nil
}

// WriteObject writes v with a tag chosen from its dynamic type. Unsigned
// integers are widened to the next signed type; int and uint are written as
// int64.
func (w *Writer) WriteObject(name string, v any) error {
	if err := w.begin(name); err != nil {
		return err
	}
	buf, err := w.m.appendValue(w.buf, v)
	if err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	w.buf = buf
	return nil
}

// finish appends the schema table and fills in the header.
func (w *Writer) finish(typeID int32) ([]byte, error) {
	schemaOffset := len(w.buf) - w.start
	for _, f := range w.fields {
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(f.hash))
		w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(f.offset))
	}
	total := len(w.buf) - w.start
	if total > math.MaxInt32 {
		return nil, fmt.Errorf("%w: object of %d bytes", ErrUnsupportedValue, total)
	}

	hdr := w.buf[w.start:]
	binary.BigEndian.PutUint32(hdr[offTypeID:], uint32(typeID))
	binary.BigEndian.PutUint32(hdr[offLength:], uint32(total))
	binary.BigEndian.PutUint32(hdr[offSchema:], uint32(schemaOffset))
	return w.buf, nil
}
