// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package wavm

import "fmt"

// Opcode numbers follow the wasm binary encoding where an equivalent exists.
// Structured control flow is flattened into absolute jumps in the 0x8000
// range, the way the arbitrator lowers wasm into WAVM.
type Opcode uint16

const (
	Unreachable Opcode = 0x00
	Nop         Opcode = 0x01
	Return      Opcode = 0x0F
	Call        Opcode = 0x10
	Drop        Opcode = 0x1A
	Select      Opcode = 0x1B

	LocalGet  Opcode = 0x20
	LocalSet  Opcode = 0x21
	LocalTee  Opcode = 0x22
	GlobalGet Opcode = 0x23
	GlobalSet Opcode = 0x24

	I32Load    Opcode = 0x28
	I64Load    Opcode = 0x29
	I32Load8U  Opcode = 0x2D
	I32Store   Opcode = 0x36
	I64Store   Opcode = 0x37
	I32Store8  Opcode = 0x3A
	MemorySize Opcode = 0x3F

	I32Const Opcode = 0x41
	I64Const Opcode = 0x42

	I32Eqz Opcode = 0x45
	I32Eq  Opcode = 0x46
	I32Ne  Opcode = 0x47
	I32LtS Opcode = 0x48
	I32LtU Opcode = 0x49
	I32GtS Opcode = 0x4A
	I32GtU Opcode = 0x4B
	I32LeS Opcode = 0x4C
	I32LeU Opcode = 0x4D
	I32GeS Opcode = 0x4E
	I32GeU Opcode = 0x4F

	I64Eqz Opcode = 0x50
	I64Eq  Opcode = 0x51
	I64Ne  Opcode = 0x52
	I64LtS Opcode = 0x53
	I64LtU Opcode = 0x54
	I64GtS Opcode = 0x55
	I64GtU Opcode = 0x56

	I32Add  Opcode = 0x6A
	I32Sub  Opcode = 0x6B
	I32Mul  Opcode = 0x6C
	I32DivS Opcode = 0x6D
	I32DivU Opcode = 0x6E
	I32RemS Opcode = 0x6F
	I32RemU Opcode = 0x70
	I32And  Opcode = 0x71
	I32Or   Opcode = 0x72
	I32Xor  Opcode = 0x73
	I32Shl  Opcode = 0x74
	I32ShrS Opcode = 0x75
	I32ShrU Opcode = 0x76

	I64Add  Opcode = 0x7C
	I64Sub  Opcode = 0x7D
	I64Mul  Opcode = 0x7E
	I64DivS Opcode = 0x7F
	I64DivU Opcode = 0x80
	I64RemS Opcode = 0x81
	I64RemU Opcode = 0x82
	I64And  Opcode = 0x83
	I64Or   Opcode = 0x84
	I64Xor  Opcode = 0x85
	I64Shl  Opcode = 0x86
	I64ShrS Opcode = 0x87
	I64ShrU Opcode = 0x88

	I32WrapI64    Opcode = 0xA7
	I64ExtendI32S Opcode = 0xAC
	I64ExtendI32U Opcode = 0xAD

	Branch   Opcode = 0x8001
	BranchIf Opcode = 0x8002
)

var opcodeNames = map[Opcode]string{
	Unreachable:   "unreachable",
	Nop:           "nop",
	Return:        "return",
	Call:          "call",
	Drop:          "drop",
	Select:        "select",
	LocalGet:      "local.get",
	LocalSet:      "local.set",
	LocalTee:      "local.tee",
	GlobalGet:     "global.get",
	GlobalSet:     "global.set",
	I32Load:       "i32.load",
	I64Load:       "i64.load",
	I32Load8U:     "i32.load8_u",
	I32Store:      "i32.store",
	I64Store:      "i64.store",
	I32Store8:     "i32.store8",
	MemorySize:    "memory.size",
	I32Const:      "i32.const",
	I64Const:      "i64.const",
	I32Eqz:        "i32.eqz",
	I32Eq:         "i32.eq",
	I32Ne:         "i32.ne",
	I32LtS:        "i32.lt_s",
	I32LtU:        "i32.lt_u",
	I32GtS:        "i32.gt_s",
	I32GtU:        "i32.gt_u",
	I32LeS:        "i32.le_s",
	I32LeU:        "i32.le_u",
	I32GeS:        "i32.ge_s",
	I32GeU:        "i32.ge_u",
	I64Eqz:        "i64.eqz",
	I64Eq:         "i64.eq",
	I64Ne:         "i64.ne",
	I64LtS:        "i64.lt_s",
	I64LtU:        "i64.lt_u",
	I64GtS:        "i64.gt_s",
	I64GtU:        "i64.gt_u",
	I32Add:        "i32.add",
	I32Sub:        "i32.sub",
	I32Mul:        "i32.mul",
	I32DivS:       "i32.div_s",
	I32DivU:       "i32.div_u",
	I32RemS:       "i32.rem_s",
	I32RemU:       "i32.rem_u",
	I32And:        "i32.and",
	I32Or:         "i32.or",
	I32Xor:        "i32.xor",
	I32Shl:        "i32.shl",
	I32ShrS:       "i32.shr_s",
	I32ShrU:       "i32.shr_u",
	I64Add:        "i64.add",
	I64Sub:        "i64.sub",
	I64Mul:        "i64.mul",
	I64DivS:       "i64.div_s",
	I64DivU:       "i64.div_u",
	I64RemS:       "i64.rem_s",
	I64RemU:       "i64.rem_u",
	I64And:        "i64.and",
	I64Or:         "i64.or",
	I64Xor:        "i64.xor",
	I64Shl:        "i64.shl",
	I64ShrS:       "i64.shr_s",
	I64ShrU:       "i64.shr_u",
	I32WrapI64:    "i32.wrap_i64",
	I64ExtendI32S: "i64.extend_i32_s",
	I64ExtendI32U: "i64.extend_i32_u",
	Branch:        "br",
	BranchIf:      "br_if",
}

var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, name := range opcodeNames {
		m[name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if name, ok := opcodeNames[op]; ok {
		return name
	}
	return fmt.Sprintf("opcode(0x%x)", uint16(op))
}

func (op Opcode) Known() bool {
	_, ok := opcodeNames[op]
	return ok
}

func ParseOpcode(name string) (Opcode, error) {
	op, ok := opcodesByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown opcode %q", name)
	}
	return op, nil
}

func (op Opcode) isJump() bool {
	return op == Branch || op == BranchIf
}

// IsTerminator reports whether control never falls through to pc+1.
func (op Opcode) IsTerminator() bool {
	return op == Branch || op == Return || op == Unreachable
}
