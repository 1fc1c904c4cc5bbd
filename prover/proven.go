// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alt-research/osp/util/hashing"
	"github.com/alt-research/osp/util/merkletree"
	"github.com/alt-research/osp/wavm"
)

// provenView executes one step using only what an OspProof reveals. Every
// read is checked against the commitment it claims to open, and every write
// moves that commitment.
type provenView struct {
	p  *OspProof
	h  hashing.Hasher
	pc uint64

	stack     []wavm.Value
	stackRest common.Hash
	lowWater  int

	// top is nil once the frame it described has been popped.
	top       *FrameInfo
	frameRest common.Hash

	globalsRoot common.Hash
	memory      MemoryInfo

	nextLocal  int
	nextGlobal int
	nextMemory int
	halted     bool
}

var _ wavm.StepState = (*provenView)(nil)

func newProvenView(p *OspProof) *provenView {
	top := p.Frames.Top
	return &provenView{
		p:           p,
		h:           p.Hasher(),
		pc:          p.PC,
		stack:       append([]wavm.Value(nil), p.Stack.Values...),
		stackRest:   p.Stack.Rest,
		lowWater:    len(p.Stack.Values),
		top:         &top,
		frameRest:   p.Frames.Rest,
		globalsRoot: p.GlobalsRoot,
		memory:      p.Memory,
	}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedProof, fmt.Sprintf(format, args...))
}

func (v *provenView) PC() uint64      { return v.pc }
func (v *provenView) SetPC(pc uint64) { v.pc = pc }

func (v *provenView) Pop() (wavm.Value, error) {
	n := len(v.stack)
	if n == 0 {
		if v.stackRest == (common.Hash{}) {
			return 0, wavm.ErrStackUnderflow
		}
		return 0, malformed("stack window of %d values is too small", len(v.p.Stack.Values))
	}
	val := v.stack[n-1]
	v.stack = v.stack[:n-1]
	v.lowWater = min(v.lowWater, n-1)
	return val, nil
}

func (v *provenView) Push(val wavm.Value) {
	v.stack = append(v.stack, val)
}

func (v *provenView) NumLocals() uint64 {
	if v.top == nil {
		return 0
	}
	return v.top.NumLocals
}

// openValue checks the next leaf proof opens index under root.
func (v *provenView) openValue(kind string, items []ValueLeafProof, next *int, index uint64, root common.Hash) (ValueLeafProof, error) {
	if *next >= len(items) {
		return ValueLeafProof{}, malformed("missing %s proof for index %d", kind, index)
	}
	item := items[*next]
	*next++
	if item.Index != index {
		return ValueLeafProof{}, malformed("%s proof opens index %d, step reads %d", kind, item.Index, index)
	}
	computed, ok := merkletree.RootFromPath(v.h, merkletree.ValueType, ValueHash(v.h, item.Value), index, item.Path)
	if !ok || computed != root {
		return ValueLeafProof{}, malformed("%s %d does not open %v", kind, index, root)
	}
	return item, nil
}

func (v *provenView) update(leaf common.Hash, ty merkletree.Type, index uint64, path []common.Hash) common.Hash {
	root, _ := merkletree.RootFromPath(v.h, ty, leaf, index, path)
	return root
}

func (v *provenView) LocalGet(index uint64) (wavm.Value, error) {
	item, err := v.openValue("local", v.p.Inst.Locals, &v.nextLocal, index, v.top.LocalsRoot)
	return item.Value, err
}

func (v *provenView) LocalSet(index uint64, val wavm.Value) error {
	item, err := v.openValue("local", v.p.Inst.Locals, &v.nextLocal, index, v.top.LocalsRoot)
	if err != nil {
		return err
	}
	v.top.LocalsRoot = v.update(ValueHash(v.h, val), merkletree.ValueType, index, item.Path)
	return nil
}

func (v *provenView) GlobalGet(index uint64) (wavm.Value, error) {
	item, err := v.openValue("global", v.p.Inst.Globals, &v.nextGlobal, index, v.globalsRoot)
	return item.Value, err
}

func (v *provenView) GlobalSet(index uint64, val wavm.Value) error {
	item, err := v.openValue("global", v.p.Inst.Globals, &v.nextGlobal, index, v.globalsRoot)
	if err != nil {
		return err
	}
	v.globalsRoot = v.update(ValueHash(v.h, val), merkletree.ValueType, index, item.Path)
	return nil
}

func (v *provenView) MemorySize() uint64 {
	return v.memory.Size
}

func (v *provenView) openMemory(index uint64) (MemoryLeafProof, error) {
	items := v.p.Inst.Memory
	if v.nextMemory >= len(items) {
		return MemoryLeafProof{}, malformed("missing memory proof for leaf %d", index)
	}
	item := items[v.nextMemory]
	v.nextMemory++
	if item.Index != index {
		return MemoryLeafProof{}, malformed("memory proof opens leaf %d, step touches %d", item.Index, index)
	}
	computed, ok := merkletree.RootFromPath(v.h, merkletree.MemoryType, MemoryLeafHash(v.h, item.Data), index, item.Path)
	if !ok || computed != v.memory.Root {
		return MemoryLeafProof{}, malformed("memory leaf %d does not open %v", index, v.memory.Root)
	}
	return item, nil
}

func (v *provenView) ReadMemory(addr, size uint64) ([]byte, error) {
	out := make([]byte, 0, size)
	end := addr + size
	for leaf := addr / MemoryLeafSize; leaf <= (end-1)/MemoryLeafSize; leaf++ {
		item, err := v.openMemory(leaf)
		if err != nil {
			return nil, err
		}
		start := leaf * MemoryLeafSize
		lo, hi := max(addr, start), min(end, start+MemoryLeafSize)
		out = append(out, item.Data[lo-start:hi-start]...)
	}
	return out, nil
}

func (v *provenView) WriteMemory(addr uint64, data []byte) error {
	end := addr + uint64(len(data))
	for leaf := addr / MemoryLeafSize; leaf <= (end-1)/MemoryLeafSize; leaf++ {
		item, err := v.openMemory(leaf)
		if err != nil {
			return err
		}
		start := leaf * MemoryLeafSize
		lo, hi := max(addr, start), min(end, start+MemoryLeafSize)
		updated := item.Data
		copy(updated[lo-start:hi-start], data[lo-addr:hi-addr])
		v.memory.Root = v.update(MemoryLeafHash(v.h, updated), merkletree.MemoryType, leaf, item.Path)
	}
	return nil
}

func (v *provenView) PushFrame(returnPC uint64, locals []wavm.Value) error {
	if v.top != nil {
		v.frameRest = framePush(v.h, v.frameRest, *v.top)
	}
	v.top = &FrameInfo{
		ReturnPC:   returnPC,
		NumLocals:  uint64(len(locals)),
		LocalsRoot: valueTree(v.h, locals).Hash(),
	}
	return nil
}

func (v *provenView) PopFrame() (uint64, bool, error) {
	if v.top == nil {
		return 0, false, malformed("no frame to return from")
	}
	ret := v.top.ReturnPC
	v.top = nil
	return ret, v.frameRest == (common.Hash{}), nil
}

func (v *provenView) Halt() {
	v.halted = true
}

// checkConsumed rejects proofs that reveal more than the step used.
func (v *provenView) checkConsumed() error {
	if v.lowWater != 0 {
		return malformed("%d revealed stack values were not used", v.lowWater)
	}
	if v.nextLocal != len(v.p.Inst.Locals) {
		return malformed("%d of %d local proofs used", v.nextLocal, len(v.p.Inst.Locals))
	}
	if v.nextGlobal != len(v.p.Inst.Globals) {
		return malformed("%d of %d global proofs used", v.nextGlobal, len(v.p.Inst.Globals))
	}
	if v.nextMemory != len(v.p.Inst.Memory) {
		return malformed("%d of %d memory proofs used", v.nextMemory, len(v.p.Inst.Memory))
	}
	return nil
}

func (v *provenView) frames() common.Hash {
	if v.top == nil {
		return v.frameRest
	}
	return framePush(v.h, v.frameRest, *v.top)
}

func (v *provenView) hash() common.Hash {
	s := stateHash{
		stack:       StackHash(v.h, v.stackRest, v.stack),
		frames:      v.frames(),
		globalsRoot: v.globalsRoot,
		memory:      v.memory,
		pc:          v.pc,
		programRoot: v.p.ProgramRoot,
	}
	if v.halted {
		return s.finished(v.h)
	}
	return s.running(v.h)
}
