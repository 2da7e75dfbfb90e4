// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

package wc

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionKind identifies the at-rest compression applied to a
// pristine blob. Stored as text in the pristine table's compression
// column.
type CompressionKind string

const (
	CompressionNone CompressionKind = "none"
	CompressionZstd CompressionKind = "zstd"
)

// zstdEncoder and zstdDecoder are reused across calls to avoid
// repeated initialization overhead. Both are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("wc: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("wc: zstd decoder initialization failed: " + err.Error())
	}
}

// compressPristine zstd-compresses a pristine blob before it is
// written to disk. Pristine reads happen on cold paths (checkout,
// diff-against-base, commit composition) where ratio matters more
// than decode latency, which is why pristines use zstd rather than
// lz4.
func compressPristine(plaintext []byte) (compressed []byte, kind CompressionKind) {
	out := zstdEncoder.EncodeAll(plaintext, nil)
	if len(out) >= len(plaintext) {
		return plaintext, CompressionNone
	}
	return out, CompressionZstd
}

func decompressPristine(data []byte, kind CompressionKind, plaintextSize int) ([]byte, error) {
	switch kind {
	case CompressionNone:
		return data, nil
	case CompressionZstd:
		result, err := zstdDecoder.DecodeAll(data, make([]byte, 0, plaintextSize))
		if err != nil {
			return nil, fmt.Errorf("wc: zstd decompress: %w", err)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("wc: unknown pristine compression kind %q", kind)
	}
}

// compressDAVCache lz4-compresses the opaque per-node blob cached from
// the remote protocol's metadata. DAV cache blobs are read on the hot
// read_info path for every status call, where lz4's decompression
// speed matters more than ratio.
func compressDAVCache(data []byte) ([]byte, int, error) {
	if len(data) == 0 {
		return nil, 0, nil
	}
	bound := lz4.CompressBlockBound(len(data))
	dest := make([]byte, bound)
	written, err := lz4.CompressBlock(data, dest, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("wc: lz4 compress dav cache: %w", err)
	}
	if written == 0 || written >= len(data) {
		return data, len(data), nil
	}
	return dest[:written], len(data), nil
}

func decompressDAVCache(compressed []byte, uncompressedSize int) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, nil
	}
	if len(compressed) == uncompressedSize {
		// Stored uncompressed (incompressible on write).
		return compressed, nil
	}
	dest := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, dest)
	if err != nil {
		return nil, fmt.Errorf("wc: lz4 decompress dav cache: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("wc: lz4 decompress dav cache: got %d bytes, expected %d", read, uncompressedSize)
	}
	return dest, nil
}
