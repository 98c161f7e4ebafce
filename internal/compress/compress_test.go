// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package compress

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("grid-payload:"), 512)
	for _, name := range []string{Zstd, LZ4} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())

			packed, err := c.Compress([]byte{0xAA}, src)
			require.NoError(t, err)
			assert.Equal(t, byte(0xAA), packed[0])
			assert.Less(t, len(packed), len(src))

			out, err := c.Decompress(nil, packed[1:])
			require.NoError(t, err)
			assert.Equal(t, src, out)
		})
	}
}

func TestIncompressible(t *testing.T) {
	src := make([]byte, 4096)
	_, err := rand.Read(src)
	require.NoError(t, err)

	for _, c := range []Compressor{ZstdCompressor{}, LZ4Compressor{}} {
		_, err := c.Compress(nil, src)
		assert.ErrorIs(t, err, ErrIncompressible, c.Name())
	}
}

func TestCorrupt(t *testing.T) {
	_, err := LZ4Compressor{}.Decompress(nil, []byte{0, 0})
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = LZ4Compressor{}.Decompress(nil, []byte{0xff, 0xff, 0xff, 0xff, 1})
	assert.ErrorIs(t, err, ErrCorrupt)
	_, err = ZstdCompressor{}.Decompress(nil, []byte("not zstd"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestByName(t *testing.T) {
	c, err := ByName("")
	require.NoError(t, err)
	assert.Nil(t, c)
	c, err = ByName(None)
	require.NoError(t, err)
	assert.Nil(t, c)
	_, err = ByName("snappy")
	assert.Error(t, err)
}
