// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package hashing

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestEmptyInputVectors(t *testing.T) {
	vectors := map[string]string{
		Keccak256Name: "0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		Sha256Name:    "0xe3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha3Name:      "0xa7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a",
		Blake3Name:    "0xaf1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262",
	}
	for name, want := range vectors {
		h, err := FromName(name)
		require.NoError(t, err)
		require.Equal(t, name, h.Name())
		require.Equal(t, common.HexToHash(want), h.Hash(), name)
	}
}

func TestPartsAreConcatenated(t *testing.T) {
	for _, h := range All() {
		whole := h.Hash([]byte("Value stack:abcdef"))
		parts := h.Hash([]byte("Value stack:"), []byte("abc"), nil, []byte("def"))
		require.Equal(t, whole, parts, h.Name())
	}
}

func TestHashersDiffer(t *testing.T) {
	seen := make(map[common.Hash]string)
	for _, h := range All() {
		digest := h.Hash([]byte("one step"))
		if other, ok := seen[digest]; ok {
			t.Fatalf("%s and %s produced the same digest", h.Name(), other)
		}
		seen[digest] = h.Name()
	}
}

func TestUnknownHasher(t *testing.T) {
	_, err := FromName("md5")
	require.Error(t, err)
	h, err := FromName("KECCAK256")
	require.NoError(t, err)
	require.Equal(t, Default, h)
}
