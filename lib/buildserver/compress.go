// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package buildserver

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Encodings for StreamOutput.Data. These names are protocol constants.
const (
	EncodingNone = "none"
	EncodingZstd = "zstd"
	EncodingLZ4  = "lz4"
)

// SupportedEncodings is the preference order offered by clients and
// accepted by servers.
var SupportedEncodings = []string{EncodingZstd, EncodingLZ4}

// NegotiateEncoding picks the first encoding the client offers that
// the server supports, or EncodingNone.
func NegotiateEncoding(offered, supported []string) string {
	for _, candidate := range offered {
		for _, available := range supported {
			if candidate == available {
				return candidate
			}
		}
	}
	return EncodingNone
}

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic("buildserver: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("buildserver: zstd decoder initialization failed: " + err.Error())
	}
}

// EncodeOutput compresses data with the requested encoding. When
// compression would not shrink the data it is returned unencoded; the
// returned encoding names what was actually applied.
func EncodeOutput(data []byte, encoding string) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, EncodingNone, nil
	}
	switch encoding {
	case EncodingNone, "":
		return data, EncodingNone, nil

	case EncodingZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return data, EncodingNone, nil
		}
		return compressed, EncodingZstd, nil

	case EncodingLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, "", fmt.Errorf("lz4 compress: %w", err)
		}
		// Zero means the block is incompressible.
		if written == 0 || written >= len(data) {
			return data, EncodingNone, nil
		}
		return destination[:written], EncodingLZ4, nil

	default:
		return nil, "", fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// DecodeOutput reverses EncodeOutput. size is the decoded length.
func DecodeOutput(data []byte, encoding string, size int) ([]byte, error) {
	switch encoding {
	case EncodingNone, "":
		if len(data) != size {
			return nil, fmt.Errorf("output size %d does not match expected %d", len(data), size)
		}
		return data, nil

	case EncodingZstd:
		decoded, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(decoded) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(decoded), size)
		}
		return decoded, nil

	case EncodingLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(data, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil

	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
