// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import (
	"fmt"

	"github.com/alt-research/osp/util/hashing"
	"github.com/alt-research/osp/util/merkletree"
	"github.com/alt-research/osp/wavm"
)

// recorder executes one step against a scratch copy of a StateTree and opens
// every fragment the step touches. Trees are copied before their first write.
type recorder struct {
	t  *StateTree
	h  hashing.Hasher
	pc uint64

	stack []wavm.Value
	// lowWater is the lowest stack height reached; everything above it in the
	// pre-state is revealed.
	lowWater int

	locals        []wavm.Value
	localsTree    *merkletree.MerkleTree
	localsCopied  bool
	framePopped   bool
	framePushed   bool
	globals       []wavm.Value
	globalsTree   *merkletree.MerkleTree
	globalsCopied bool
	memory        []byte
	memoryTree    *merkletree.MerkleTree
	memoryCopied  bool

	proofs AccessProofs
}

var _ wavm.StepState = (*recorder)(nil)

func newRecorder(t *StateTree) *recorder {
	top := t.frames[len(t.frames)-1]
	return &recorder{
		t:           t,
		h:           t.hasher,
		pc:          t.pc,
		stack:       append([]wavm.Value(nil), t.stack...),
		lowWater:    len(t.stack),
		locals:      top.locals,
		localsTree:  top.tree,
		globals:     t.globals,
		globalsTree: t.globalsTree,
		memory:      t.memory,
		memoryTree:  t.memoryTree,
	}
}

func (r *recorder) PC() uint64      { return r.pc }
func (r *recorder) SetPC(pc uint64) { r.pc = pc }

func (r *recorder) Pop() (wavm.Value, error) {
	n := len(r.stack)
	if n == 0 {
		return 0, wavm.ErrStackUnderflow
	}
	v := r.stack[n-1]
	r.stack = r.stack[:n-1]
	r.lowWater = min(r.lowWater, n-1)
	return v, nil
}

func (r *recorder) Push(v wavm.Value) {
	r.stack = append(r.stack, v)
}

func (r *recorder) NumLocals() uint64 {
	if r.framePopped || r.framePushed {
		return 0
	}
	return uint64(len(r.locals))
}

func (r *recorder) openValue(values []wavm.Value, tree *merkletree.MerkleTree, index uint64) (ValueLeafProof, error) {
	proof := tree.Prove(index)
	if proof == nil {
		return ValueLeafProof{}, fmt.Errorf("%w: %d of %d", merkletree.ErrIndexOutOfRange, index, len(values))
	}
	return ValueLeafProof{Index: index, Value: values[index], Path: proof.Proof}, nil
}

func (r *recorder) LocalGet(index uint64) (wavm.Value, error) {
	item, err := r.openValue(r.locals, r.localsTree, index)
	if err != nil {
		return 0, err
	}
	r.proofs.Locals = append(r.proofs.Locals, item)
	return item.Value, nil
}

func (r *recorder) LocalSet(index uint64, v wavm.Value) error {
	item, err := r.openValue(r.locals, r.localsTree, index)
	if err != nil {
		return err
	}
	r.proofs.Locals = append(r.proofs.Locals, item)
	if !r.localsCopied {
		r.locals = append([]wavm.Value(nil), r.locals...)
		r.localsTree = r.localsTree.Clone()
		r.localsCopied = true
	}
	r.locals[index] = v
	return r.localsTree.Set(index, ValueHash(r.h, v))
}

func (r *recorder) GlobalGet(index uint64) (wavm.Value, error) {
	if index >= uint64(len(r.globals)) {
		return 0, fmt.Errorf("%w: %d", wavm.ErrGlobalOutOfRange, index)
	}
	item, err := r.openValue(r.globals, r.globalsTree, index)
	if err != nil {
		return 0, err
	}
	r.proofs.Globals = append(r.proofs.Globals, item)
	return item.Value, nil
}

func (r *recorder) GlobalSet(index uint64, v wavm.Value) error {
	if index >= uint64(len(r.globals)) {
		return fmt.Errorf("%w: %d", wavm.ErrGlobalOutOfRange, index)
	}
	item, err := r.openValue(r.globals, r.globalsTree, index)
	if err != nil {
		return err
	}
	r.proofs.Globals = append(r.proofs.Globals, item)
	if !r.globalsCopied {
		r.globals = append([]wavm.Value(nil), r.globals...)
		r.globalsTree = r.globalsTree.Clone()
		r.globalsCopied = true
	}
	r.globals[index] = v
	return r.globalsTree.Set(index, ValueHash(r.h, v))
}

func (r *recorder) MemorySize() uint64 {
	return uint64(len(r.memory))
}

func (r *recorder) memoryLeaf(index uint64) MemoryLeafProof {
	item := MemoryLeafProof{Index: index, Path: r.memoryTree.Prove(index).Proof}
	copy(item.Data[:], r.memory[index*MemoryLeafSize:])
	return item
}

func (r *recorder) ReadMemory(addr, size uint64) ([]byte, error) {
	for leaf := addr / MemoryLeafSize; leaf <= (addr+size-1)/MemoryLeafSize; leaf++ {
		r.proofs.Memory = append(r.proofs.Memory, r.memoryLeaf(leaf))
	}
	return append([]byte(nil), r.memory[addr:addr+size]...), nil
}

func (r *recorder) WriteMemory(addr uint64, data []byte) error {
	if !r.memoryCopied {
		r.memory = append([]byte(nil), r.memory...)
		r.memoryTree = r.memoryTree.Clone()
		r.memoryCopied = true
	}
	end := addr + uint64(len(data))
	for leaf := addr / MemoryLeafSize; leaf <= (end-1)/MemoryLeafSize; leaf++ {
		r.proofs.Memory = append(r.proofs.Memory, r.memoryLeaf(leaf))
		start := leaf * MemoryLeafSize
		lo, hi := max(addr, start), min(end, start+MemoryLeafSize)
		copy(r.memory[lo:hi], data[lo-addr:hi-addr])
		var updated [MemoryLeafSize]byte
		copy(updated[:], r.memory[start:])
		if err := r.memoryTree.Set(leaf, MemoryLeafHash(r.h, updated)); err != nil {
			return err
		}
	}
	return nil
}

func (r *recorder) PushFrame(uint64, []wavm.Value) error {
	r.framePushed = true
	return nil
}

func (r *recorder) PopFrame() (uint64, bool, error) {
	top := r.t.frames[len(r.t.frames)-1]
	r.framePopped = true
	return top.info.ReturnPC, len(r.t.frames) == 1, nil
}

func (r *recorder) Halt() {}
