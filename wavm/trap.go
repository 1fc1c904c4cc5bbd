// Copyright 2023-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package wavm

import (
	"errors"
	"fmt"
)

type TrapKind uint8

const (
	TrapUnreachable TrapKind = iota
	TrapMemoryOutOfBounds
	TrapDivisionByZero
	TrapIntegerOverflow
	TrapInvalidInstruction
	TrapStackUnderflow
	TrapLocalOutOfRange
)

func (k TrapKind) String() string {
	switch k {
	case TrapUnreachable:
		return "unreachable executed"
	case TrapMemoryOutOfBounds:
		return "memory access out of bounds"
	case TrapDivisionByZero:
		return "integer divide by zero"
	case TrapIntegerOverflow:
		return "integer overflow"
	case TrapInvalidInstruction:
		return "invalid instruction"
	case TrapStackUnderflow:
		return "value stack underflow"
	case TrapLocalOutOfRange:
		return "local index out of range"
	default:
		return fmt.Sprintf("trap(%d)", uint8(k))
	}
}

// Trap is a deterministic execution fault. Any honest executor reaches the
// same trap at the same pc, so a trap is an outcome, not a failure to step.
type Trap struct {
	Kind TrapKind
	PC   uint64
	Inst Instruction
}

func (t *Trap) Error() string {
	return fmt.Sprintf("trap at pc %d (%v): %v", t.PC, t.Inst, t.Kind)
}

// MissingOperand reports a trap raised because the state lacks an operand the
// instruction names, rather than a fault of the operation itself.
func (t *Trap) MissingOperand() bool {
	return t.Kind == TrapStackUnderflow || t.Kind == TrapLocalOutOfRange
}

func AsTrap(err error) (*Trap, bool) {
	var t *Trap
	if errors.As(err, &t) {
		return t, true
	}
	return nil, false
}

func IsTrap(err error) bool {
	_, ok := AsTrap(err)
	return ok
}
