// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package wavm

import (
	"encoding/binary"
	"errors"
	"math"
	"math/bits"
)

var (
	ErrStackUnderflow   = errors.New("value stack underflow")
	ErrGlobalOutOfRange = errors.New("global index out of range")
)

// StepState is everything a single instruction may touch. The full machine,
// the proof recorder and the proof checker each provide one, so the
// instruction semantics below exist exactly once.
type StepState interface {
	PC() uint64
	SetPC(pc uint64)

	// Pop returns ErrStackUnderflow when the value stack is empty.
	Pop() (Value, error)
	Push(v Value)

	NumLocals() uint64
	LocalGet(index uint64) (Value, error)
	LocalSet(index uint64, v Value) error
	GlobalGet(index uint64) (Value, error)
	GlobalSet(index uint64, v Value) error

	// MemorySize is in bytes. Accesses are bounds checked before they reach
	// ReadMemory or WriteMemory.
	MemorySize() uint64
	ReadMemory(addr, size uint64) ([]byte, error)
	WriteMemory(addr uint64, data []byte) error

	PushFrame(returnPC uint64, locals []Value) error
	// PopFrame removes the innermost frame. last is set when it was the
	// entry frame, in which case the caller halts instead of returning.
	PopFrame() (returnPC uint64, last bool, err error)
	Halt()
}

type executor struct {
	s    StepState
	pc   uint64
	inst Instruction
}

func (e *executor) trap(kind TrapKind) error {
	return &Trap{Kind: kind, PC: e.pc, Inst: e.inst}
}

// fault turns underflow into a trap so it is decided the same way everywhere.
func (e *executor) fault(err error) error {
	if errors.Is(err, ErrStackUnderflow) {
		return &Trap{Kind: TrapStackUnderflow, PC: e.pc, Inst: e.inst}
	}
	return err
}

func (e *executor) pop() (Value, error) {
	v, err := e.s.Pop()
	if err != nil {
		return 0, e.fault(err)
	}
	return v, nil
}

func (e *executor) pop2() (Value, Value, error) {
	b, err := e.pop()
	if err != nil {
		return 0, 0, err
	}
	a, err := e.pop()
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// Execute applies inst to s. On success the state has advanced by exactly one
// step. A *Trap means the step faulted deterministically; any other error
// means the state could not serve the step and must not be trusted.
func Execute(s StepState, inst Instruction) error {
	e := &executor{s: s, pc: s.PC(), inst: inst}
	next := e.pc + 1

	switch op := inst.Opcode; op {
	case Unreachable:
		return e.trap(TrapUnreachable)
	case Nop:
	case Return:
		ret, last, err := s.PopFrame()
		if err != nil {
			return err
		}
		if last {
			s.Halt()
			return nil
		}
		next = ret
	case Call:
		entry, numParams, numLocals := DecodeCallArgument(inst.Argument)
		if numParams > numLocals {
			return e.trap(TrapInvalidInstruction)
		}
		locals := make([]Value, numLocals)
		for i := int(numParams) - 1; i >= 0; i-- {
			v, err := e.pop()
			if err != nil {
				return err
			}
			locals[i] = v
		}
		if err := s.PushFrame(next, locals); err != nil {
			return err
		}
		next = entry
	case Drop:
		if _, err := e.pop(); err != nil {
			return err
		}
	case Select:
		c, err := e.pop()
		if err != nil {
			return err
		}
		a, b, err := e.pop2()
		if err != nil {
			return err
		}
		if uint32(c) != 0 {
			s.Push(a)
		} else {
			s.Push(b)
		}

	case LocalGet, LocalSet, LocalTee:
		if inst.Argument >= s.NumLocals() {
			return e.trap(TrapLocalOutOfRange)
		}
		if op == LocalGet {
			v, err := s.LocalGet(inst.Argument)
			if err != nil {
				return err
			}
			s.Push(v)
			break
		}
		v, err := e.pop()
		if err != nil {
			return err
		}
		if err := s.LocalSet(inst.Argument, v); err != nil {
			return err
		}
		if op == LocalTee {
			s.Push(v)
		}
	case GlobalGet:
		v, err := s.GlobalGet(inst.Argument)
		if err != nil {
			return err
		}
		s.Push(v)
	case GlobalSet:
		v, err := e.pop()
		if err != nil {
			return err
		}
		if err := s.GlobalSet(inst.Argument, v); err != nil {
			return err
		}

	case I32Load, I64Load, I32Load8U:
		size := accessSize(op)
		base, err := e.pop()
		if err != nil {
			return err
		}
		addr, ok := effectiveAddress(base, inst.Argument, size, s.MemorySize())
		if !ok {
			return e.trap(TrapMemoryOutOfBounds)
		}
		data, err := s.ReadMemory(addr, size)
		if err != nil {
			return err
		}
		switch op {
		case I32Load:
			s.Push(Value(binary.LittleEndian.Uint32(data)))
		case I64Load:
			s.Push(binary.LittleEndian.Uint64(data))
		default:
			s.Push(Value(data[0]))
		}
	case I32Store, I64Store, I32Store8:
		size := accessSize(op)
		v, err := e.pop()
		if err != nil {
			return err
		}
		base, err := e.pop()
		if err != nil {
			return err
		}
		addr, ok := effectiveAddress(base, inst.Argument, size, s.MemorySize())
		if !ok {
			return e.trap(TrapMemoryOutOfBounds)
		}
		var buf [8]byte
		binary.LittleEndian.PutUint64(buf[:], v)
		if err := s.WriteMemory(addr, buf[:size]); err != nil {
			return err
		}
	case MemorySize:
		s.Push(s.MemorySize() / PageSize)

	case I32Const:
		s.Push(Value(uint32(inst.Argument)))
	case I64Const:
		s.Push(inst.Argument)

	case I32Eqz, I64Eqz, I32WrapI64, I64ExtendI32S, I64ExtendI32U:
		v, err := e.pop()
		if err != nil {
			return err
		}
		s.Push(unary(op, v))

	case I32Eq, I32Ne, I32LtS, I32LtU, I32GtS, I32GtU, I32LeS, I32LeU, I32GeS, I32GeU,
		I64Eq, I64Ne, I64LtS, I64LtU, I64GtS, I64GtU:
		a, b, err := e.pop2()
		if err != nil {
			return err
		}
		s.Push(compare(op, a, b))

	case I32Add, I32Sub, I32Mul, I32DivS, I32DivU, I32RemS, I32RemU,
		I32And, I32Or, I32Xor, I32Shl, I32ShrS, I32ShrU:
		a, b, err := e.pop2()
		if err != nil {
			return err
		}
		r, kind, ok := binary32(op, uint32(a), uint32(b))
		if !ok {
			return e.trap(kind)
		}
		s.Push(Value(r))
	case I64Add, I64Sub, I64Mul, I64DivS, I64DivU, I64RemS, I64RemU,
		I64And, I64Or, I64Xor, I64Shl, I64ShrS, I64ShrU:
		a, b, err := e.pop2()
		if err != nil {
			return err
		}
		r, kind, ok := binary64(op, a, b)
		if !ok {
			return e.trap(kind)
		}
		s.Push(r)

	case Branch:
		next = inst.Argument
	case BranchIf:
		c, err := e.pop()
		if err != nil {
			return err
		}
		if uint32(c) != 0 {
			next = inst.Argument
		}
	default:
		return e.trap(TrapInvalidInstruction)
	}

	s.SetPC(next)
	return nil
}

func accessSize(op Opcode) uint64 {
	switch op {
	case I32Load, I32Store:
		return 4
	case I64Load, I64Store:
		return 8
	default:
		return 1
	}
}

// effectiveAddress is the i32 base plus the static offset, provided the whole
// access fits inside memSize.
func effectiveAddress(base Value, offset, size, memSize uint64) (uint64, bool) {
	addr, carry := bits.Add64(uint64(uint32(base)), offset, 0)
	if carry != 0 {
		return 0, false
	}
	end, carry := bits.Add64(addr, size, 0)
	if carry != 0 || end > memSize {
		return 0, false
	}
	return addr, true
}

func boolValue(b bool) Value {
	if b {
		return 1
	}
	return 0
}

func unary(op Opcode, v Value) Value {
	switch op {
	case I32Eqz:
		return boolValue(uint32(v) == 0)
	case I64Eqz:
		return boolValue(v == 0)
	case I32WrapI64, I64ExtendI32U:
		return Value(uint32(v))
	case I64ExtendI32S:
		return Value(int64(int32(uint32(v))))
	}
	panic("unreachable")
}

func compare(op Opcode, a, b Value) Value {
	a32, b32 := uint32(a), uint32(b)
	switch op {
	case I32Eq:
		return boolValue(a32 == b32)
	case I32Ne:
		return boolValue(a32 != b32)
	case I32LtS:
		return boolValue(int32(a32) < int32(b32))
	case I32LtU:
		return boolValue(a32 < b32)
	case I32GtS:
		return boolValue(int32(a32) > int32(b32))
	case I32GtU:
		return boolValue(a32 > b32)
	case I32LeS:
		return boolValue(int32(a32) <= int32(b32))
	case I32LeU:
		return boolValue(a32 <= b32)
	case I32GeS:
		return boolValue(int32(a32) >= int32(b32))
	case I32GeU:
		return boolValue(a32 >= b32)
	case I64Eq:
		return boolValue(a == b)
	case I64Ne:
		return boolValue(a != b)
	case I64LtS:
		return boolValue(int64(a) < int64(b))
	case I64LtU:
		return boolValue(a < b)
	case I64GtS:
		return boolValue(int64(a) > int64(b))
	case I64GtU:
		return boolValue(a > b)
	}
	panic("unreachable")
}

func binary32(op Opcode, a, b uint32) (uint32, TrapKind, bool) {
	switch op {
	case I32Add:
		return a + b, 0, true
	case I32Sub:
		return a - b, 0, true
	case I32Mul:
		return a * b, 0, true
	case I32DivS:
		if b == 0 {
			return 0, TrapDivisionByZero, false
		}
		if int32(a) == math.MinInt32 && int32(b) == -1 {
			return 0, TrapIntegerOverflow, false
		}
		return uint32(int32(a) / int32(b)), 0, true
	case I32DivU:
		if b == 0 {
			return 0, TrapDivisionByZero, false
		}
		return a / b, 0, true
	case I32RemS:
		if b == 0 {
			return 0, TrapDivisionByZero, false
		}
		return uint32(int32(a) % int32(b)), 0, true
	case I32RemU:
		if b == 0 {
			return 0, TrapDivisionByZero, false
		}
		return a % b, 0, true
	case I32And:
		return a & b, 0, true
	case I32Or:
		return a | b, 0, true
	case I32Xor:
		return a ^ b, 0, true
	case I32Shl:
		return a << (b % 32), 0, true
	case I32ShrS:
		return uint32(int32(a) >> (b % 32)), 0, true
	case I32ShrU:
		return a >> (b % 32), 0, true
	}
	panic("unreachable")
}

func binary64(op Opcode, a, b uint64) (uint64, TrapKind, bool) {
	switch op {
	case I64Add:
		return a + b, 0, true
	case I64Sub:
		return a - b, 0, true
	case I64Mul:
		return a * b, 0, true
	case I64DivS:
		if b == 0 {
			return 0, TrapDivisionByZero, false
		}
		if int64(a) == math.MinInt64 && int64(b) == -1 {
			return 0, TrapIntegerOverflow, false
		}
		return uint64(int64(a) / int64(b)), 0, true
	case I64DivU:
		if b == 0 {
			return 0, TrapDivisionByZero, false
		}
		return a / b, 0, true
	case I64RemS:
		if b == 0 {
			return 0, TrapDivisionByZero, false
		}
		return uint64(int64(a) % int64(b)), 0, true
	case I64RemU:
		if b == 0 {
			return 0, TrapDivisionByZero, false
		}
		return a % b, 0, true
	case I64And:
		return a & b, 0, true
	case I64Or:
		return a | b, 0, true
	case I64Xor:
		return a ^ b, 0, true
	case I64Shl:
		return a << (b % 64), 0, true
	case I64ShrS:
		return uint64(int64(a) >> (b % 64)), 0, true
	case I64ShrU:
		return a >> (b % 64), 0, true
	}
	panic("unreachable")
}
