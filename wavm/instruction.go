// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package wavm

import (
	"encoding/binary"
	"fmt"
)

// Value is an untyped stack slot. i32 values are kept zero-extended.
type Value = uint64

const PageSize uint64 = 1 << 16

type Instruction struct {
	Opcode   Opcode
	Argument uint64
}

func (i Instruction) String() string {
	switch i.Opcode {
	case Call:
		entry, params, locals := DecodeCallArgument(i.Argument)
		return fmt.Sprintf("call %d (params=%d locals=%d)", entry, params, locals)
	case I32Const:
		return fmt.Sprintf("i32.const %d", int32(uint32(i.Argument)))
	case I64Const:
		return fmt.Sprintf("i64.const %d", int64(i.Argument))
	}
	if i.Argument == 0 && !i.hasImmediate() {
		return i.Opcode.String()
	}
	return fmt.Sprintf("%v %d", i.Opcode, i.Argument)
}

func (i Instruction) hasImmediate() bool {
	switch i.Opcode {
	case LocalGet, LocalSet, LocalTee, GlobalGet, GlobalSet, Branch, BranchIf,
		I32Load, I64Load, I32Load8U, I32Store, I64Store, I32Store8:
		return true
	}
	return false
}

// Serialize is the preimage of the instruction leaf.
func (i Instruction) Serialize() []byte {
	var buf [10]byte
	binary.BigEndian.PutUint16(buf[:2], uint16(i.Opcode))
	binary.BigEndian.PutUint64(buf[2:], i.Argument)
	return buf[:]
}

func Inst(op Opcode, arg uint64) Instruction {
	return Instruction{Opcode: op, Argument: arg}
}

func ConstI32(v int32) Instruction {
	return Instruction{Opcode: I32Const, Argument: uint64(uint32(v))}
}

func ConstI64(v int64) Instruction {
	return Instruction{Opcode: I64Const, Argument: uint64(v)}
}

const maxCallEntry = 1<<32 - 1

// CallArgument packs a direct call: the callee entry pc in the low 32 bits,
// then the parameter count and the total local count (params included).
func CallArgument(entry uint64, numParams, numLocals uint16) uint64 {
	return entry&maxCallEntry | uint64(numParams)<<32 | uint64(numLocals)<<48
}

func DecodeCallArgument(arg uint64) (entry uint64, numParams, numLocals uint16) {
	return arg & maxCallEntry, uint16(arg >> 32), uint16(arg >> 48)
}

func CallTo(f Function) Instruction {
	return Instruction{Opcode: Call, Argument: CallArgument(f.EntryPC, f.NumParams, f.NumLocals)}
}
