// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package compress provides the payload compressors used by the frame
// transport.
package compress

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var (
	// ErrIncompressible is returned when compression would not shrink the
	// payload. Callers send it raw instead.
	ErrIncompressible = errors.New("compress: incompressible payload")
	// ErrCorrupt is returned for payloads that fail to decompress.
	ErrCorrupt = errors.New("compress: corrupt payload")
)

// Algorithm names accepted by ByName.
const (
	None = "none"
	Zstd = "zstd"
	LZ4  = "lz4"
)

// maxDecoded bounds the size a payload may claim after decompression.
const maxDecoded = 64 << 20

// Compressor compresses and restores frame payloads.
type Compressor interface {
	Name() string
	Compress(dst, src []byte) ([]byte, error)
	Decompress(dst, src []byte) ([]byte, error)
}

// ByName returns the compressor for name. "none" and "" return nil.
func ByName(name string) (Compressor, error) {
	switch name {
	case "", None:
		return nil, nil
	case Zstd:
		return ZstdCompressor{}, nil
	case LZ4:
		return LZ4Compressor{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown algorithm %q", name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() (*zstd.Encoder, error) {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

func getZstdDecoder() (*zstd.Decoder, error) {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecoded))
}

// ZstdCompressor uses zstd frames, which carry their own size.
type ZstdCompressor struct{}

func (ZstdCompressor) Name() string { return Zstd }

func (ZstdCompressor) Compress(dst, src []byte) ([]byte, error) {
	enc, err := getZstdEncoder()
	if err != nil {
		return nil, err
	}
	defer zstdEncoderPool.Put(enc)

	start := len(dst)
	out := enc.EncodeAll(src, dst)
	if len(out)-start >= len(src) {
		return nil, ErrIncompressible
	}
	return out, nil
}

func (ZstdCompressor) Decompress(dst, src []byte) ([]byte, error) {
	dec, err := getZstdDecoder()
	if err != nil {
		return nil, err
	}
	defer zstdDecoderPool.Put(dec)

	out, err := dec.DecodeAll(src, dst)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return out, nil
}

// LZ4Compressor uses lz4 blocks prefixed with the decoded size as a
// big-endian uint32, since blocks do not record it.
type LZ4Compressor struct{}

func (LZ4Compressor) Name() string { return LZ4 }

func (LZ4Compressor) Compress(dst, src []byte) ([]byte, error) {
	start := len(dst)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(src)))
	bound := lz4.CompressBlockBound(len(src))
	dst = append(dst, make([]byte, bound)...)

	n, err := lz4.CompressBlock(src, dst[start+4:], nil)
	if err != nil {
		return nil, err
	}
	if n == 0 || 4+n >= len(src) {
		return nil, ErrIncompressible
	}
	return dst[:start+4+n], nil
}

func (LZ4Compressor) Decompress(dst, src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("%w: short lz4 block", ErrCorrupt)
	}
	size := binary.BigEndian.Uint32(src)
	if size > maxDecoded {
		return nil, fmt.Errorf("%w: lz4 block claims %d bytes", ErrCorrupt, size)
	}
	start := len(dst)
	dst = append(dst, make([]byte, size)...)
	n, err := lz4.UncompressBlock(src[4:], dst[start:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if uint32(n) != size {
		return nil, fmt.Errorf("%w: decoded %d of %d bytes", ErrCorrupt, n, size)
	}
	return dst, nil
}
