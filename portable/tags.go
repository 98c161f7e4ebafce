// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

import "fmt"

// Version is the envelope format version written by this package.
const Version byte = 1

const (
	headerSize      = 14
	schemaEntrySize = 8

	offVersion = 0
	offFlags   = 1
	offTypeID  = 2
	offLength  = 6
	offSchema  = 10
)

// Tag identifies the encoding of a single field value.
type Tag uint8

const (
	TagNull Tag = iota
	TagBool
	TagByte
	TagInt16
	TagInt32
	TagInt64
	TagFloat32
	TagFloat64
	TagString
	TagBytes
	TagPortable
	TagInt32Array
	TagInt64Array
	TagFloat32Array
	TagFloat64Array
	TagBoolArray
	TagStringArray
	TagTime
)

var tagNames = [...]string{
	TagNull:         "null",
	TagBool:         "bool",
	TagByte:         "byte",
	TagInt16:        "int16",
	TagInt32:        "int32",
	TagInt64:        "int64",
	TagFloat32:      "float32",
	TagFloat64:      "float64",
	TagString:       "string",
	TagBytes:        "bytes",
	TagPortable:     "portable",
	TagInt32Array:   "int32[]",
	TagInt64Array:   "int64[]",
	TagFloat32Array: "float32[]",
	TagFloat64Array: "float64[]",
	TagBoolArray:    "bool[]",
	TagStringArray:  "string[]",
	TagTime:         "time",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return fmt.Sprintf("tag(%d)", uint8(t))
}

// nullable reports whether a null may stand in for a value of this tag.
func (t Tag) nullable() bool {
	switch t {
	case TagString, TagBytes, TagPortable,
		TagInt32Array, TagInt64Array, TagFloat32Array, TagFloat64Array,
		TagBoolArray, TagStringArray:
		return true
	}
	return false
}
