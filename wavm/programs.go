// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package wavm

import "fmt"

const (
	FibFunction         = "fib"
	OutOfBoundsFunction = "oob"
	SumSquaresFunction  = "sum_squares"
)

// FibProgram computes fib(n) iteratively. Local 0 is n, local 1 the freshly
// computed term, locals 2 to 4 hold the running pair.
func FibProgram() *Program {
	code := []Instruction{
		ConstI32(1),        // 0
		Inst(LocalSet, 4),  // 1
		Inst(LocalGet, 0),  // 2
		ConstI32(1),        // 3
		Inst(I32LtS, 0),    // 4
		Inst(BranchIf, 25), // 5
		ConstI32(0),        // 6
		Inst(LocalSet, 3),  // 7
		Inst(LocalGet, 3),  // 8: loop
		Inst(LocalGet, 4),  // 9
		Inst(I32Add, 0),    // 10
		Inst(LocalSet, 1),  // 11
		Inst(LocalGet, 4),  // 12
		Inst(LocalSet, 2),  // 13
		Inst(LocalGet, 4),  // 14
		Inst(LocalSet, 3),  // 15
		Inst(LocalGet, 1),  // 16
		Inst(LocalSet, 4),  // 17
		Inst(LocalGet, 0),  // 18
		ConstI32(-1),       // 19
		Inst(I32Add, 0),    // 20
		Inst(LocalTee, 0),  // 21
		Inst(BranchIf, 8),  // 22
		Inst(LocalGet, 2),  // 23
		Inst(Return, 0),    // 24
		ConstI32(0),        // 25
		Inst(Return, 0),    // 26
	}
	return &Program{
		Code: code,
		Functions: map[string]Function{
			FibFunction: {EntryPC: 0, NumParams: 1, NumLocals: 5, NumResults: 1},
		},
	}
}

// OutOfBoundsProgram loads from past the end of its single memory page.
func OutOfBoundsProgram() *Program {
	return &Program{
		Code: []Instruction{
			ConstI32(70000),
			Inst(I32Load, 0),
			Inst(Return, 0),
		},
		Functions: map[string]Function{
			OutOfBoundsFunction: {EntryPC: 0},
		},
		MemoryPages: 1,
	}
}

// CounterAddress is the byte bumped once per SumSquaresProgram iteration.
const CounterAddress = 4096

// SumSquaresProgram stores i*i as an i64 at address 8i for every i < n,
// accumulates the sum in global 0, bumps a byte counter and returns the sum.
func SumSquaresProgram() *Program {
	b := NewBuilder()
	b.Func(SumSquaresFunction, 1, 2, 1).
		I32(0).Emit(LocalSet, 1).
		Label("loop").
		Emit(LocalGet, 1).Emit(LocalGet, 0).Op(I32GeU).Jump(BranchIf, "done").
		Emit(LocalGet, 1).I32(3).Op(I32Shl).
		Emit(LocalGet, 1).Op(I64ExtendI32U).Call("square").
		Emit(I64Store, 0).
		Emit(GlobalGet, 0).
		Emit(LocalGet, 1).I32(3).Op(I32Shl).Emit(I64Load, 0).
		Op(I64Add).Emit(GlobalSet, 0).
		I32(CounterAddress).I32(CounterAddress).Emit(I32Load8U, 0).I32(1).Op(I32Add).Emit(I32Store8, 0).
		Emit(LocalGet, 1).I32(1).Op(I32Add).Emit(LocalSet, 1).
		Jump(Branch, "loop").
		Label("done").
		Emit(GlobalGet, 0).Op(MemorySize, Drop, Return)
	b.Func("square", 1, 1, 1).
		Emit(LocalGet, 0).Emit(LocalGet, 0).Op(I64Mul, Return)
	code, functions, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("building sum_squares: %v", err))
	}
	return &Program{
		Code:        code,
		Functions:   functions,
		Globals:     []Value{0},
		MemoryPages: 1,
		Data:        []Segment{{Offset: CounterAddress, Data: []byte{0x10}}},
	}
}

// Builtin returns a copy of a program shipped with the module by name.
func Builtin(name string) (*Program, string, error) {
	switch name {
	case FibFunction:
		return FibProgram(), FibFunction, nil
	case OutOfBoundsFunction:
		return OutOfBoundsProgram(), OutOfBoundsFunction, nil
	case SumSquaresFunction:
		return SumSquaresProgram(), SumSquaresFunction, nil
	}
	return nil, "", fmt.Errorf("unknown builtin program %q", name)
}
