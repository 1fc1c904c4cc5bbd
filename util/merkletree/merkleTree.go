// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package merkletree

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alt-research/osp/util/hashing"
)

// Type namespaces the internal nodes of a tree so that roots of different
// kinds of trees can never be confused with each other.
type Type uint8

const (
	EmptyType Type = iota
	ValueType
	InstructionType
	MemoryType
)

func (t Type) String() string {
	switch t {
	case EmptyType:
		return "Empty"
	case ValueType:
		return "Value"
	case InstructionType:
		return "Instruction"
	case MemoryType:
		return "Memory"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

func (t Type) prefix() []byte {
	return []byte(t.String() + " merkle tree:")
}

// MaxDepth bounds the height of any tree and the length of any proof path.
const MaxDepth = 64

var ErrIndexOutOfRange = errors.New("merkle leaf index out of range")

// MerkleTree is a binary Merkle tree over a fixed number of leaves, padded on
// the right with empty leaves up to the next power of two. The zero hash is
// the empty leaf. Leaf hashes are supplied by the caller.
type MerkleTree struct {
	hasher hashing.Hasher
	ty     Type
	// layers[0] holds the leaves, layers[len-1] the root. Layers are not
	// padded; a missing right child is read from empties.
	layers  [][]common.Hash
	empties []common.Hash
}

func emptyHashes(h hashing.Hasher, ty Type, depth int) []common.Hash {
	empties := make([]common.Hash, depth+1)
	prefix := ty.prefix()
	for i := 1; i <= depth; i++ {
		empties[i] = h.Hash(prefix, empties[i-1].Bytes(), empties[i-1].Bytes())
	}
	return empties
}

func depthFor(n uint64) int {
	depth := 0
	for (uint64(1) << depth) < n {
		depth++
	}
	return depth
}

func NewMerkleTree(h hashing.Hasher, ty Type, leaves []common.Hash) *MerkleTree {
	depth := depthFor(uint64(len(leaves)))
	tree := &MerkleTree{
		hasher:  h,
		ty:      ty,
		layers:  make([][]common.Hash, 0, depth+1),
		empties: emptyHashes(h, ty, depth),
	}
	layer := make([]common.Hash, len(leaves))
	copy(layer, leaves)
	tree.layers = append(tree.layers, layer)
	prefix := ty.prefix()
	for level := 0; level < depth; level++ {
		next := make([]common.Hash, (len(layer)+1)/2)
		for i := range next {
			left := layer[2*i]
			right := tree.empties[level]
			if 2*i+1 < len(layer) {
				right = layer[2*i+1]
			}
			next[i] = h.Hash(prefix, left.Bytes(), right.Bytes())
		}
		tree.layers = append(tree.layers, next)
		layer = next
	}
	return tree
}

func (t *MerkleTree) Type() Type {
	return t.ty
}

func (t *MerkleTree) Hash() common.Hash {
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return common.Hash{}
	}
	return top[0]
}

func (t *MerkleTree) Size() uint64 {
	return uint64(len(t.layers[0]))
}

func (t *MerkleTree) Depth() int {
	return len(t.layers) - 1
}

func (t *MerkleTree) Leaf(index uint64) (common.Hash, error) {
	if index >= t.Size() {
		return common.Hash{}, fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, index, t.Size())
	}
	return t.layers[0][index], nil
}

func (t *MerkleTree) sibling(level int, index uint64) common.Hash {
	sib := index ^ 1
	if sib < uint64(len(t.layers[level])) {
		return t.layers[level][sib]
	}
	return t.empties[level]
}

// Prove returns the authentication path for a leaf, or nil if the index is
// not part of the tree.
func (t *MerkleTree) Prove(index uint64) *MerkleProof {
	if index >= t.Size() {
		return nil
	}
	path := make([]common.Hash, 0, t.Depth())
	idx := index
	for level := 0; level < t.Depth(); level++ {
		path = append(path, t.sibling(level, idx))
		idx >>= 1
	}
	return &MerkleProof{
		RootHash:  t.Hash(),
		LeafHash:  t.layers[0][index],
		LeafIndex: index,
		Proof:     path,
	}
}

// Set replaces a leaf and rehashes its path to the root.
func (t *MerkleTree) Set(index uint64, leaf common.Hash) error {
	if index >= t.Size() {
		return fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, index, t.Size())
	}
	t.layers[0][index] = leaf
	prefix := t.ty.prefix()
	idx := index
	node := leaf
	for level := 0; level < t.Depth(); level++ {
		sib := t.sibling(level, idx)
		if idx&1 == 0 {
			node = t.hasher.Hash(prefix, node.Bytes(), sib.Bytes())
		} else {
			node = t.hasher.Hash(prefix, sib.Bytes(), node.Bytes())
		}
		idx >>= 1
		t.layers[level+1][idx] = node
	}
	return nil
}

func (t *MerkleTree) Clone() *MerkleTree {
	layers := make([][]common.Hash, len(t.layers))
	for i, layer := range t.layers {
		layers[i] = make([]common.Hash, len(layer))
		copy(layers[i], layer)
	}
	return &MerkleTree{
		hasher:  t.hasher,
		ty:      t.ty,
		layers:  layers,
		empties: t.empties,
	}
}

// RootFromPath folds a leaf up an authentication path. It reports false if the
// index does not fit in a tree of the path's height.
func RootFromPath(h hashing.Hasher, ty Type, leaf common.Hash, index uint64, path []common.Hash) (common.Hash, bool) {
	if len(path) > MaxDepth {
		return common.Hash{}, false
	}
	prefix := ty.prefix()
	node := leaf
	for _, sib := range path {
		if index&1 == 0 {
			node = h.Hash(prefix, node.Bytes(), sib.Bytes())
		} else {
			node = h.Hash(prefix, sib.Bytes(), node.Bytes())
		}
		index >>= 1
	}
	if index != 0 {
		return common.Hash{}, false
	}
	return node, true
}

type MerkleProof struct {
	RootHash  common.Hash
	LeafHash  common.Hash
	LeafIndex uint64
	Proof     []common.Hash
}

func (proof *MerkleProof) IsCorrect(h hashing.Hasher, ty Type) bool {
	root, ok := RootFromPath(h, ty, proof.LeafHash, proof.LeafIndex, proof.Proof)
	return ok && root == proof.RootHash
}
