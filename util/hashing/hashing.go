// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

// Package hashing holds the commitment hash primitives. Every tree, chain and
// proof in this module is parameterised over a Hasher so that host and
// verifier can agree on any 32 byte digest function.
package hashing

import (
	"fmt"
	"hash"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	sha256simd "github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// Hasher digests the concatenation of its arguments. Implementations must be
// pure: no state may survive between calls, so a single value can be shared
// by concurrent provers.
type Hasher interface {
	Name() string
	Hash(data ...[]byte) common.Hash
}

const (
	Keccak256Name = "keccak256"
	Sha256Name    = "sha256"
	Sha3Name      = "sha3-256"
	Blake3Name    = "blake3"
)

var Default Hasher = Keccak256{}

type Keccak256 struct{}

func (Keccak256) Name() string { return Keccak256Name }

func (Keccak256) Hash(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

type Sha256 struct{}

func (Sha256) Name() string { return Sha256Name }

func (Sha256) Hash(data ...[]byte) common.Hash {
	return sum(sha256simd.New(), data)
}

// Sha3 is the NIST SHA3-256 variant, not the legacy keccak padding.
type Sha3 struct{}

func (Sha3) Name() string { return Sha3Name }

func (Sha3) Hash(data ...[]byte) common.Hash {
	return sum(sha3.New256(), data)
}

type Blake3 struct{}

func (Blake3) Name() string { return Blake3Name }

func (Blake3) Hash(data ...[]byte) common.Hash {
	return sum(blake3.New(common.HashLength, nil), data)
}

func sum(h hash.Hash, data [][]byte) common.Hash {
	var ret common.Hash
	for _, b := range data {
		if _, err := h.Write(b); err != nil {
			// hash.Hash never returns an error on Write
			panic(fmt.Sprintf("error writing %v data: %v", h, err))
		}
	}
	h.Sum(ret[:0])
	return ret
}

// FromName resolves a configured hash name. Matching is case-insensitive.
func FromName(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case Keccak256Name, "keccak":
		return Keccak256{}, nil
	case Sha256Name:
		return Sha256{}, nil
	case Sha3Name, "sha3":
		return Sha3{}, nil
	case Blake3Name:
		return Blake3{}, nil
	default:
		return nil, fmt.Errorf("unknown hasher %q (valid: %s, %s, %s, %s)", name, Keccak256Name, Sha256Name, Sha3Name, Blake3Name)
	}
}

// All returns every built-in hasher, in a fixed order.
func All() []Hasher {
	return []Hasher{Keccak256{}, Sha256{}, Sha3{}, Blake3{}}
}
