// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package wavm

import (
	"errors"
	"fmt"
	"sort"
)

// MaxMemoryPages bounds linear memory at 64 MiB.
const MaxMemoryPages = 1024

var ErrInvalidProgram = errors.New("invalid program")

type Function struct {
	EntryPC    uint64 `json:"entry"`
	NumParams  uint16 `json:"params"`
	NumLocals  uint16 `json:"locals"`
	NumResults uint16 `json:"results"`
}

type Segment struct {
	Offset uint64
	Data   []byte
}

// Program is a flattened module: one code sequence, a function table used by
// the host to enter it, and the initial globals and memory.
type Program struct {
	Code        []Instruction
	Functions   map[string]Function
	Globals     []Value
	MemoryPages uint64
	Data        []Segment
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidProgram, fmt.Sprintf(format, args...))
}

// Validate checks the static properties the step semantics rely on. Jumps
// and calls land inside the code, global indices exist, local indices fit
// the frame of the function they belong to, and execution cannot fall off
// the end of the code.
func (p *Program) Validate() error {
	if len(p.Code) == 0 {
		return invalid("empty code")
	}
	if p.MemoryPages > MaxMemoryPages {
		return invalid("%d memory pages exceeds the maximum of %d", p.MemoryPages, MaxMemoryPages)
	}
	codeLen := uint64(len(p.Code))
	for pc, inst := range p.Code {
		switch {
		case inst.Opcode.isJump():
			if inst.Argument >= codeLen {
				return invalid("%v at pc %d jumps outside the code", inst.Opcode, pc)
			}
		case inst.Opcode == Call:
			entry, params, locals := DecodeCallArgument(inst.Argument)
			if entry >= codeLen {
				return invalid("call at pc %d targets pc %d outside the code", pc, entry)
			}
			if params > locals {
				return invalid("call at pc %d passes %d params into %d locals", pc, params, locals)
			}
		case inst.Opcode == GlobalGet || inst.Opcode == GlobalSet:
			if inst.Argument >= uint64(len(p.Globals)) {
				return invalid("%v at pc %d uses global %d of %d", inst.Opcode, pc, inst.Argument, len(p.Globals))
			}
		case !inst.Opcode.Known():
			return invalid("unknown opcode 0x%x at pc %d", uint16(inst.Opcode), pc)
		}
	}
	if !p.Code[codeLen-1].Opcode.IsTerminator() {
		return invalid("code ends with %v and may fall off the end", p.Code[codeLen-1].Opcode)
	}
	memSize := p.MemoryPages * PageSize
	for i, seg := range p.Data {
		if seg.Offset > memSize || uint64(len(seg.Data)) > memSize-seg.Offset {
			return invalid("data segment %d does not fit in memory", i)
		}
	}
	for name, f := range p.Functions {
		if f.EntryPC >= codeLen {
			return invalid("function %q entry %d outside the code", name, f.EntryPC)
		}
		if f.NumParams > f.NumLocals {
			return invalid("function %q has %d params but %d locals", name, f.NumParams, f.NumLocals)
		}
	}
	return p.validateLocals()
}

// validateLocals checks each local access against the frame of the nearest
// entry point at or before it. Entry points come from the function table and
// from call immediates; when several declare the same entry the smallest
// frame applies. A jump into another function's code can still reach a
// local its frame lacks, which the machine reports as a trap.
func (p *Program) validateLocals() error {
	frames := make(map[uint64]uint16)
	declare := func(entry uint64, locals uint16) {
		if have, ok := frames[entry]; !ok || locals < have {
			frames[entry] = locals
		}
	}
	for _, f := range p.Functions {
		declare(f.EntryPC, f.NumLocals)
	}
	for _, inst := range p.Code {
		if inst.Opcode == Call {
			entry, _, locals := DecodeCallArgument(inst.Argument)
			declare(entry, locals)
		}
	}
	var locals uint16
	inFunction := false
	for pc, inst := range p.Code {
		if n, ok := frames[uint64(pc)]; ok {
			locals, inFunction = n, true
		}
		switch inst.Opcode {
		case LocalGet, LocalSet, LocalTee:
			if !inFunction {
				return invalid("%v at pc %d precedes every function entry", inst.Opcode, pc)
			}
			if inst.Argument >= uint64(locals) {
				return invalid("%v at pc %d uses local %d of %d", inst.Opcode, pc, inst.Argument, locals)
			}
		}
	}
	return nil
}

func (p *Program) Function(name string) (Function, error) {
	f, ok := p.Functions[name]
	if !ok {
		return Function{}, fmt.Errorf("function %q not found (have %v)", name, p.FunctionNames())
	}
	return f, nil
}

func (p *Program) FunctionNames() []string {
	names := make([]string, 0, len(p.Functions))
	for name := range p.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InitialMemory returns the zeroed linear memory with data segments applied.
func (p *Program) InitialMemory() []byte {
	mem := make([]byte, p.MemoryPages*PageSize)
	for _, seg := range p.Data {
		copy(mem[seg.Offset:], seg.Data)
	}
	return mem
}
