// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package bundlestore

import (
	"bytes"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
)

const (
	defaultCompressionLevel = brotli.DefaultCompression
	bestCompressionLevel    = brotli.BestCompression
	// Blobs decompressing past this are rejected.
	maxDecompressedSize = 64 << 20
)

// level < 0 disables compression.
func compress(data []byte, level int) ([]byte, error) {
	if level < 0 {
		return data, nil
	}
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, level)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(io.LimitReader(r, maxDecompressedSize+1))
	if err != nil {
		return nil, fmt.Errorf("decompressing blob: %w", err)
	}
	if len(out) > maxDecompressedSize {
		return nil, fmt.Errorf("decompressed blob exceeds %d bytes", maxDecompressedSize)
	}
	return out, nil
}
