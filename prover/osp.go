// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/alt-research/osp/machine"
	"github.com/alt-research/osp/util/hashing"
	"github.com/alt-research/osp/wavm"
)

// Version is the only OSP layout this package produces and accepts.
const Version uint8 = 0

type FrameInfo struct {
	ReturnPC   uint64
	NumLocals  uint64
	LocalsRoot common.Hash
}

// StackWindow reveals the top of the value stack, bottom to top, above the
// commitment to everything beneath it.
type StackWindow struct {
	Values []wavm.Value
	Rest   common.Hash
}

type FrameWindow struct {
	Top  FrameInfo
	Rest common.Hash
}

type MemoryInfo struct {
	Size uint64
	Root common.Hash
}

type ValueLeafProof struct {
	Index uint64
	Value wavm.Value
	Path  []common.Hash
}

type MemoryLeafProof struct {
	Index uint64
	Data  [MemoryLeafSize]byte
	Path  []common.Hash
}

// AccessProofs opens every leaf the instruction touches, in access order. A
// leaf written more than once is proven against the root left by the previous
// write.
type AccessProofs struct {
	Locals  []ValueLeafProof
	Globals []ValueLeafProof
	Memory  []MemoryLeafProof
}

// OspProof proves the execution of the instruction at PC from the state
// committed by PreStateHash.
type OspProof struct {
	Version      uint8
	PreStateHash common.Hash
	Status       uint8
	PC           uint64
	ProgramRoot  common.Hash
	Stack        StackWindow
	Frames       FrameWindow
	GlobalsRoot  common.Hash
	Memory       MemoryInfo
	Inst         AccessProofs

	hasher hashing.Hasher
	post   common.Hash
}

// MakeOsp proves the step at pc of the committed machine.
func MakeOsp(t *StateTree, pc uint64) (*OspProof, error) {
	if t.status != machine.StatusRunning {
		return nil, fmt.Errorf("%w: machine is %v", ErrUnresolvedStep, t.status)
	}
	inst, err := t.code.Instruction(pc)
	if err != nil {
		return nil, err
	}
	if pc != t.pc {
		return nil, fmt.Errorf("%w: proving pc %d but the machine is at %d", ErrCodeMismatch, pc, t.pc)
	}

	rec := newRecorder(t)
	err = wavm.Execute(rec, inst)
	if trap, ok := wavm.AsTrap(err); ok {
		if trap.MissingOperand() {
			return nil, fmt.Errorf("%w: %v", ErrUnresolvedStep, trap)
		}
		log.Debug("proving trapping step", "pc", pc, "inst", inst, "reason", trap.Kind)
	} else if err != nil {
		return nil, fmt.Errorf("%w: pc %d (%v): %v", ErrUnresolvedStep, pc, inst, err)
	}

	depth := len(t.frames)
	return &OspProof{
		Version:      Version,
		PreStateHash: t.hash,
		Status:       uint8(t.status),
		PC:           pc,
		ProgramRoot:  t.programRoot,
		Stack: StackWindow{
			Values: append([]wavm.Value{}, t.stack[rec.lowWater:]...),
			Rest:   t.stackChain[rec.lowWater],
		},
		Frames: FrameWindow{
			Top:  t.frames[depth-1].info,
			Rest: t.frameChain[depth-1],
		},
		GlobalsRoot: t.globalsTree.Hash(),
		Memory:      t.memoryInfo(),
		Inst:        rec.proofs,
		hasher:      t.hasher,
	}, nil
}

func (p *OspProof) Hasher() hashing.Hasher {
	if p.hasher == nil {
		return hashing.Default
	}
	return p.hasher
}

func (p *OspProof) preState() stateHash {
	h := p.Hasher()
	return stateHash{
		stack:       StackHash(h, p.Stack.Rest, p.Stack.Values),
		frames:      framePush(h, p.Frames.Rest, p.Frames.Top),
		globalsRoot: p.GlobalsRoot,
		memory:      p.Memory,
		pc:          p.PC,
		programRoot: p.ProgramRoot,
	}
}

// Run replays the proven instruction from the revealed pre-state and stores
// the resulting commitment for Hash. Only the stored commitment changes; a
// trap stores the errored commitment and returns an error wrapping
// ErrTrapDuringStep.
func (p *OspProof) Run(cp *CodeProof) error {
	p.post = common.Hash{}
	h := p.Hasher()
	if p.Version != Version {
		return fmt.Errorf("%w: version %d", ErrMalformedProof, p.Version)
	}
	if machine.Status(p.Status) != machine.StatusRunning {
		return fmt.Errorf("%w: machine is %v", ErrMalformedProof, machine.Status(p.Status))
	}
	pre := p.preState()
	if computed := pre.running(h); computed != p.PreStateHash {
		return fmt.Errorf("%w: revealed state hashes to %v, claimed %v", ErrMalformedProof, computed, p.PreStateHash)
	}
	if cp == nil {
		return fmt.Errorf("%w: no code proof", ErrCodeMismatch)
	}
	if cp.Position != p.PC {
		return fmt.Errorf("%w: code proof at %d, step at pc %d", ErrCodeMismatch, cp.Position, p.PC)
	}
	if err := cp.Authenticate(h, p.ProgramRoot); err != nil {
		return err
	}

	view := newProvenView(p)
	err := wavm.Execute(view, cp.Instruction)
	trap, trapped := wavm.AsTrap(err)
	if trapped && trap.MissingOperand() {
		return fmt.Errorf("%w: %v", ErrUnresolvedStep, trap)
	}
	if err != nil && !trapped {
		return err
	}
	if err := view.checkConsumed(); err != nil {
		return err
	}
	if trapped {
		p.post = ErroredHash(h)
		return fmt.Errorf("%w: %v", ErrTrapDuringStep, trap)
	}
	p.post = view.hash()
	return nil
}

// Hash is the post-state commitment computed by the last Run, or the zero
// hash if Run has not produced one.
func (p *OspProof) Hash() common.Hash {
	return p.post
}

func (p *OspProof) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(p)
}

// DecodeOspProof decodes an OSP to be run with h.
func DecodeOspProof(h hashing.Hasher, data []byte) (*OspProof, error) {
	var p OspProof
	if err := rlp.DecodeBytes(data, &p); err != nil {
		return nil, fmt.Errorf("%w: osp: %v", ErrDecode, err)
	}
	if p.Version != Version {
		return nil, fmt.Errorf("%w: unsupported osp version %d", ErrDecode, p.Version)
	}
	p.hasher = h
	return &p, nil
}
