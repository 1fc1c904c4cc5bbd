// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alt-research/osp/util/hashing"
	"github.com/alt-research/osp/util/merkletree"
	"github.com/alt-research/osp/wavm"
)

// MemoryLeafSize is the number of bytes of linear memory under one leaf.
const MemoryLeafSize = 32

var (
	valuePrefix       = []byte("Value:")
	instructionPrefix = []byte("Instruction:")
	memoryLeafPrefix  = []byte("Memory leaf:")
	valueStackPrefix  = []byte("Value stack:")
	framePrefix       = []byte("Stack frame:")
	frameStackPrefix  = []byte("Stack frame stack:")
	memoryPrefix      = []byte("Memory:")
	runningPrefix     = []byte("Machine running:")
	finishedPrefix    = []byte("Machine finished:")
	erroredPrefix     = []byte("Machine errored:")
)

func be64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func ValueHash(h hashing.Hasher, v wavm.Value) common.Hash {
	return h.Hash(valuePrefix, be64(v))
}

func InstructionHash(h hashing.Hasher, inst wavm.Instruction) common.Hash {
	return h.Hash(instructionPrefix, inst.Serialize())
}

func MemoryLeafHash(h hashing.Hasher, leaf [MemoryLeafSize]byte) common.Hash {
	return h.Hash(memoryLeafPrefix, leaf[:])
}

func stackPush(h hashing.Hasher, rest common.Hash, v wavm.Value) common.Hash {
	valueHash := ValueHash(h, v)
	return h.Hash(valueStackPrefix, valueHash.Bytes(), rest.Bytes())
}

// StackHash chains values bottom to top onto rest. The empty stack is the
// zero hash.
func StackHash(h hashing.Hasher, rest common.Hash, values []wavm.Value) common.Hash {
	for _, v := range values {
		rest = stackPush(h, rest, v)
	}
	return rest
}

func FrameHash(h hashing.Hasher, f FrameInfo) common.Hash {
	return h.Hash(framePrefix, be64(f.ReturnPC), be64(f.NumLocals), f.LocalsRoot.Bytes())
}

func framePush(h hashing.Hasher, rest common.Hash, f FrameInfo) common.Hash {
	frameHash := FrameHash(h, f)
	return h.Hash(frameStackPrefix, frameHash.Bytes(), rest.Bytes())
}

func MemoryHash(h hashing.Hasher, m MemoryInfo) common.Hash {
	return h.Hash(memoryPrefix, be64(m.Size), m.Root.Bytes())
}

func valueLeaves(h hashing.Hasher, values []wavm.Value) []common.Hash {
	leaves := make([]common.Hash, len(values))
	for i, v := range values {
		leaves[i] = ValueHash(h, v)
	}
	return leaves
}

func valueTree(h hashing.Hasher, values []wavm.Value) *merkletree.MerkleTree {
	return merkletree.NewMerkleTree(h, merkletree.ValueType, valueLeaves(h, values))
}

func memoryTree(h hashing.Hasher, memory []byte) *merkletree.MerkleTree {
	leaves := make([]common.Hash, len(memory)/MemoryLeafSize)
	var zero [MemoryLeafSize]byte
	zeroHash := MemoryLeafHash(h, zero)
	for i := range leaves {
		var leaf [MemoryLeafSize]byte
		copy(leaf[:], memory[i*MemoryLeafSize:])
		if leaf == zero {
			leaves[i] = zeroHash
		} else {
			leaves[i] = MemoryLeafHash(h, leaf)
		}
	}
	return merkletree.NewMerkleTree(h, merkletree.MemoryType, leaves)
}

// stateHash is the machine commitment for each status. Frames and pc are only
// part of a running machine; an errored machine commits to a constant.
type stateHash struct {
	stack       common.Hash
	frames      common.Hash
	globalsRoot common.Hash
	memory      MemoryInfo
	pc          uint64
	programRoot common.Hash
}

func (s *stateHash) running(h hashing.Hasher) common.Hash {
	memHash := MemoryHash(h, s.memory)
	return h.Hash(runningPrefix,
		s.stack.Bytes(),
		s.frames.Bytes(),
		s.globalsRoot.Bytes(),
		memHash.Bytes(),
		be64(s.pc),
		s.programRoot.Bytes(),
	)
}

func (s *stateHash) finished(h hashing.Hasher) common.Hash {
	memHash := MemoryHash(h, s.memory)
	return h.Hash(finishedPrefix,
		s.stack.Bytes(),
		s.globalsRoot.Bytes(),
		memHash.Bytes(),
		s.programRoot.Bytes(),
	)
}

// ErroredHash is the commitment of every trapped machine.
func ErroredHash(h hashing.Hasher) common.Hash {
	return h.Hash(erroredPrefix)
}
