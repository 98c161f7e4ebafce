// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package portable

import (
	"strings"
	"unicode/utf16"
)

// FieldHash returns the schema hash of a field name. Writer and reader must
// agree on it, and so must every client and node speaking the format.
//
// The hash is the JVM String.hashCode of the lower-cased name.
func FieldHash(name string) int32 {
	return StringHash(strings.ToLower(name))
}

// StringHash computes the JVM String.hashCode of s over its UTF-16 code units.
func StringHash(s string) int32 {
	var h int32
	for _, r := range s {
		if r < 0x10000 {
			h = 31*h + int32(r)
			continue
		}
		r1, r2 := utf16.EncodeRune(r)
		h = 31*h + int32(r1)
		h = 31*h + int32(r2)
	}
	return h
}
