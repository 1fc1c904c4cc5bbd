// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package wavm

import "fmt"

type fixup struct {
	pc    int
	label string
}

// Builder assembles flat code with symbolic jump labels and call targets.
// The first error sticks and is reported by Build.
type Builder struct {
	code      []Instruction
	labels    map[string]uint64
	jumps     []fixup
	calls     []fixup
	functions map[string]Function
	err       error
}

func NewBuilder() *Builder {
	return &Builder{
		labels:    make(map[string]uint64),
		functions: make(map[string]Function),
	}
}

func (b *Builder) PC() uint64 {
	return uint64(len(b.code))
}

func (b *Builder) fail(format string, args ...any) *Builder {
	if b.err == nil {
		b.err = fmt.Errorf(format, args...)
	}
	return b
}

func (b *Builder) Emit(op Opcode, arg uint64) *Builder {
	b.code = append(b.code, Instruction{Opcode: op, Argument: arg})
	return b
}

func (b *Builder) Op(ops ...Opcode) *Builder {
	for _, op := range ops {
		b.Emit(op, 0)
	}
	return b
}

func (b *Builder) I32(v int32) *Builder {
	b.code = append(b.code, ConstI32(v))
	return b
}

func (b *Builder) I64(v int64) *Builder {
	b.code = append(b.code, ConstI64(v))
	return b
}

func (b *Builder) Label(name string) *Builder {
	if _, ok := b.labels[name]; ok {
		return b.fail("duplicate label %q", name)
	}
	b.labels[name] = b.PC()
	return b
}

// Jump emits br or br_if to a label that may be defined later.
func (b *Builder) Jump(op Opcode, label string) *Builder {
	if !op.isJump() {
		return b.fail("%v is not a jump", op)
	}
	b.jumps = append(b.jumps, fixup{pc: len(b.code), label: label})
	return b.Emit(op, 0)
}

// Func starts a function at the current pc.
func (b *Builder) Func(name string, params, locals, results uint16) *Builder {
	if _, ok := b.functions[name]; ok {
		return b.fail("duplicate function %q", name)
	}
	if params > locals {
		return b.fail("function %q has %d params but %d locals", name, params, locals)
	}
	b.functions[name] = Function{EntryPC: b.PC(), NumParams: params, NumLocals: locals, NumResults: results}
	return b
}

func (b *Builder) Call(name string) *Builder {
	b.calls = append(b.calls, fixup{pc: len(b.code), label: name})
	return b.Emit(Call, 0)
}

func (b *Builder) Build() ([]Instruction, map[string]Function, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	for _, j := range b.jumps {
		target, ok := b.labels[j.label]
		if !ok {
			return nil, nil, fmt.Errorf("undefined label %q at pc %d", j.label, j.pc)
		}
		b.code[j.pc].Argument = target
	}
	for _, c := range b.calls {
		f, ok := b.functions[c.label]
		if !ok {
			return nil, nil, fmt.Errorf("call to undefined function %q at pc %d", c.label, c.pc)
		}
		b.code[c.pc] = CallTo(f)
	}
	return b.code, b.functions, nil
}
