// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package prover

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/alt-research/osp/machine"
	"github.com/alt-research/osp/util/hashing"
	"github.com/alt-research/osp/util/merkletree"
	"github.com/alt-research/osp/wavm"
)

type committedFrame struct {
	info   FrameInfo
	locals []wavm.Value
	tree   *merkletree.MerkleTree
}

// StateTree is a committed snapshot of a machine: every fragment with the
// trees and hash chains needed to open it.
type StateTree struct {
	hasher      hashing.Hasher
	code        *CodeTree
	programRoot common.Hash
	status      machine.Status
	pc          uint64

	stack []wavm.Value
	// stackChain[i] commits to stack[:i].
	stackChain []common.Hash
	frames     []committedFrame
	// frameChain[i] commits to frames[:i].
	frameChain  []common.Hash
	globals     []wavm.Value
	globalsTree *merkletree.MerkleTree
	memory      []byte
	memoryTree  *merkletree.MerkleTree

	hash common.Hash
}

// NewStateTree commits to m against the program committed by code.
func NewStateTree(code *CodeTree, m *machine.Machine) *StateTree {
	t := newStateTree(code.Hasher(), code.Root(), m)
	t.code = code
	return t
}

// Commit is the state commitment of m under programRoot.
func Commit(h hashing.Hasher, programRoot common.Hash, m *machine.Machine) common.Hash {
	if m.Status() == machine.StatusErrored {
		return ErroredHash(h)
	}
	return newStateTree(h, programRoot, m).Hash()
}

func newStateTree(h hashing.Hasher, programRoot common.Hash, m *machine.Machine) *StateTree {
	t := &StateTree{
		hasher:      h,
		programRoot: programRoot,
		status:      m.Status(),
		pc:          m.PC(),
		stack:       append([]wavm.Value(nil), m.Stack()...),
		globals:     append([]wavm.Value(nil), m.Globals()...),
		memory:      append([]byte(nil), m.Memory()...),
	}
	if t.status == machine.StatusErrored {
		t.hash = ErroredHash(h)
		return t
	}

	t.stackChain = make([]common.Hash, 0, len(t.stack)+1)
	t.stackChain = append(t.stackChain, common.Hash{})
	for _, v := range t.stack {
		t.stackChain = append(t.stackChain, stackPush(h, t.stackChain[len(t.stackChain)-1], v))
	}

	t.frameChain = []common.Hash{{}}
	for _, f := range m.Frames() {
		locals := append([]wavm.Value(nil), f.Locals...)
		tree := valueTree(h, locals)
		frame := committedFrame{
			info: FrameInfo{
				ReturnPC:   f.ReturnPC,
				NumLocals:  uint64(len(locals)),
				LocalsRoot: tree.Hash(),
			},
			locals: locals,
			tree:   tree,
		}
		t.frames = append(t.frames, frame)
		t.frameChain = append(t.frameChain, framePush(h, t.frameChain[len(t.frameChain)-1], frame.info))
	}

	t.globalsTree = valueTree(h, t.globals)
	t.memoryTree = memoryTree(h, t.memory)

	commitment := t.commitment()
	if t.status == machine.StatusFinished {
		t.hash = commitment.finished(h)
	} else {
		t.hash = commitment.running(h)
	}
	return t
}

func (t *StateTree) commitment() stateHash {
	return stateHash{
		stack:       t.stackChain[len(t.stackChain)-1],
		frames:      t.frameChain[len(t.frameChain)-1],
		globalsRoot: t.globalsTree.Hash(),
		memory:      t.memoryInfo(),
		pc:          t.pc,
		programRoot: t.programRoot,
	}
}

func (t *StateTree) memoryInfo() MemoryInfo {
	return MemoryInfo{Size: uint64(len(t.memory)), Root: t.memoryTree.Hash()}
}

func (t *StateTree) Hash() common.Hash {
	return t.hash
}

func (t *StateTree) ProgramRoot() common.Hash {
	return t.programRoot
}

func (t *StateTree) PC() uint64 {
	return t.pc
}

func (t *StateTree) Status() machine.Status {
	return t.status
}
