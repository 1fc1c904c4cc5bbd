// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/alt-research/osp/util/hashing"
	"github.com/alt-research/osp/util/merkletree"
	"github.com/alt-research/osp/wavm"
)

// CodeTree commits to a program's instruction sequence. Its root is the
// program root every state commitment refers to.
type CodeTree struct {
	hasher hashing.Hasher
	code   []wavm.Instruction
	tree   *merkletree.MerkleTree
}

func BuildCodeTree(h hashing.Hasher, code []wavm.Instruction) *CodeTree {
	leaves := make([]common.Hash, len(code))
	for i, inst := range code {
		leaves[i] = InstructionHash(h, inst)
	}
	return &CodeTree{
		hasher: h,
		code:   append([]wavm.Instruction(nil), code...),
		tree:   merkletree.NewMerkleTree(h, merkletree.InstructionType, leaves),
	}
}

func (t *CodeTree) Root() common.Hash {
	return t.tree.Hash()
}

func (t *CodeTree) Hasher() hashing.Hasher {
	return t.hasher
}

func (t *CodeTree) Len() uint64 {
	return uint64(len(t.code))
}

func (t *CodeTree) Instruction(position uint64) (wavm.Instruction, error) {
	if position >= t.Len() {
		return wavm.Instruction{}, fmt.Errorf("%w: instruction %d of %d", ErrOutOfRange, position, t.Len())
	}
	return t.code[position], nil
}

func (t *CodeTree) ProofFor(position uint64) (*CodeProof, error) {
	inst, err := t.Instruction(position)
	if err != nil {
		return nil, err
	}
	proof := t.tree.Prove(position)
	return &CodeProof{
		Root:        proof.RootHash,
		Position:    position,
		Instruction: inst,
		Path:        proof.Proof,
	}, nil
}

// CodeProof shows that Instruction sits at Position under Root.
type CodeProof struct {
	Root        common.Hash
	Position    uint64
	Instruction wavm.Instruction
	Path        []common.Hash
}

// Authenticate checks the proof against the program root the caller trusts.
func (p *CodeProof) Authenticate(h hashing.Hasher, root common.Hash) error {
	if p.Root != root {
		return fmt.Errorf("%w: proof for root %v, expected %v", ErrCodeMismatch, p.Root, root)
	}
	computed, ok := merkletree.RootFromPath(h, merkletree.InstructionType, InstructionHash(h, p.Instruction), p.Position, p.Path)
	if !ok {
		return fmt.Errorf("%w: code position %d does not fit a path of %d", ErrMalformedProof, p.Position, len(p.Path))
	}
	if computed != p.Root {
		return fmt.Errorf("%w: code path yields %v, expected %v", ErrMalformedProof, computed, p.Root)
	}
	return nil
}

func (p *CodeProof) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(p)
}

func DecodeCodeProof(data []byte) (*CodeProof, error) {
	var p CodeProof
	if err := rlp.DecodeBytes(data, &p); err != nil {
		return nil, fmt.Errorf("%w: code proof: %v", ErrDecode, err)
	}
	return &p, nil
}
