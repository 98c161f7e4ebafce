// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gridclient

import (
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/luxfi/gridclient/portable"
)

// JSONCodec is a JSON-based codec
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return gojson.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v any) error {
	return gojson.Unmarshal(data, v)
}

// defaultCodec is used when no codec is specified
var defaultCodec Codec = JSONCodec{}

// PortableCodec encodes messages as portable envelopes.
type PortableCodec struct {
	M *portable.Marshaller
}

func (c PortableCodec) Encode(v any) ([]byte, error) {
	return c.M.Marshal(v)
}

// Decode fills v, which must be a Portable pointer of the encoded type or a
// *any receiving whatever the envelope holds.
func (c PortableCodec) Decode(data []byte, v any) error {
	switch out := v.(type) {
	case portable.Portable:
		return c.M.UnmarshalInto(data, out)
	case *any:
		decoded, err := c.M.Unmarshal(data)
		if err != nil {
			return err
		}
		*out = decoded
		return nil
	default:
		return fmt.Errorf("portable codec: cannot decode into %T", v)
	}
}
