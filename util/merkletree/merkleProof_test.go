// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package merkletree

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alt-research/osp/util/hashing"
)

func TestMerkleProofs(t *testing.T) {
	h := hashing.Keccak256{}
	for size := 1; size <= 13; size++ {
		items := make([]common.Hash, size)
		for i := range items {
			items[i] = pseudorandomForTesting(uint64(i))
		}
		tree := NewMerkleTree(h, ValueType, items)
		for j := range items {
			proof := tree.Prove(uint64(j))
			if proof == nil {
				t.Fatal(j, tree.Size())
			}
			if proof.LeafHash != items[j] {
				t.Fatal()
			}
			if proof.RootHash != tree.Hash() {
				t.Fatal()
			}
			if len(proof.Proof) != tree.Depth() {
				t.Fatal(j, tree.Depth(), len(proof.Proof))
			}
			if !proof.IsCorrect(h, ValueType) {
				t.Fatal(j, tree.Size(), len(proof.Proof))
			}
			// A single leaf is its own root, so only deeper trees bind the type.
			if tree.Depth() > 0 && proof.IsCorrect(h, MemoryType) {
				t.Fatal("proof verified under the wrong tree type")
			}
		}
		if tree.Prove(uint64(size)) != nil {
			t.Fatal("proved a leaf past the end of the tree")
		}
	}
}

func TestEmptyAndSingleton(t *testing.T) {
	h := hashing.Keccak256{}
	empty := NewMerkleTree(h, ValueType, nil)
	if empty.Hash() != (common.Hash{}) {
		t.Fatal(empty.Hash())
	}
	if empty.Prove(0) != nil {
		t.Fatal()
	}
	leaf := pseudorandomForTesting(7)
	single := NewMerkleTree(h, ValueType, []common.Hash{leaf})
	if single.Hash() != leaf || single.Depth() != 0 {
		t.Fatal(single.Hash(), single.Depth())
	}
	proof := single.Prove(0)
	if proof == nil || len(proof.Proof) != 0 || !proof.IsCorrect(h, ValueType) {
		t.Fatal(proof)
	}
	if single.Prove(1) != nil {
		t.Fatal("proved a leaf past the end of the tree")
	}
}

func TestPaddingMatchesExplicitEmptyLeaves(t *testing.T) {
	h := hashing.Sha256{}
	items := []common.Hash{pseudorandomForTesting(1), pseudorandomForTesting(2), pseudorandomForTesting(3)}
	padded := append(append([]common.Hash{}, items...), common.Hash{})
	if NewMerkleTree(h, MemoryType, items).Hash() != NewMerkleTree(h, MemoryType, padded).Hash() {
		t.Fatal("implicit padding differs from explicit empty leaf")
	}
}

func TestSetMatchesRebuild(t *testing.T) {
	h := hashing.Blake3{}
	items := make([]common.Hash, 11)
	for i := range items {
		items[i] = pseudorandomForTesting(uint64(i))
	}
	tree := NewMerkleTree(h, InstructionType, items)
	original := tree.Clone()
	for i := range items {
		items[i] = pseudorandomForTesting(uint64(100 + i))
		if err := tree.Set(uint64(i), items[i]); err != nil {
			t.Fatal(err)
		}
		if tree.Hash() != NewMerkleTree(h, InstructionType, items).Hash() {
			t.Fatal("incremental update diverged at", i)
		}
	}
	if original.Hash() == tree.Hash() {
		t.Fatal("clone shares storage with the updated tree")
	}
	if err := tree.Set(uint64(len(items)), common.Hash{}); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatal(err)
	}
}

func TestRootFromPathRejectsOversizedIndex(t *testing.T) {
	h := hashing.Keccak256{}
	tree := NewMerkleTree(h, ValueType, []common.Hash{pseudorandomForTesting(0), pseudorandomForTesting(1)})
	proof := tree.Prove(1)
	if _, ok := RootFromPath(h, ValueType, proof.LeafHash, 3, proof.Proof); ok {
		t.Fatal("index wider than the path was accepted")
	}
}

func pseudorandomForTesting(x uint64) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], x)
	return crypto.Keccak256Hash(buf[:])
}
