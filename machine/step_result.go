// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package machine

import (
	"fmt"

	"github.com/alt-research/osp/wavm"
)

type StepKind uint8

const (
	// Suspended means the budget ran out with an instruction still to run.
	// Only a suspended machine has a next step that can be proven.
	Suspended StepKind = iota
	// Completed means the entry function returned.
	Completed
	// Errored means the machine trapped.
	Errored
)

func (k StepKind) String() string {
	switch k {
	case Suspended:
		return "suspended"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

type StepResult struct {
	Kind StepKind
	// PC is the next instruction when suspended, or the faulting one.
	PC      uint64
	Results []wavm.Value
	Trap    *wavm.Trap
}

func (r StepResult) String() string {
	switch r.Kind {
	case Suspended:
		return fmt.Sprintf("suspended at pc %d", r.PC)
	case Completed:
		return fmt.Sprintf("completed with %v", r.Results)
	default:
		return fmt.Sprintf("errored: %v", r.Trap)
	}
}
