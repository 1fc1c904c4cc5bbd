// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package machine

import (
	"context"
)

// badValue is pushed onto the reported state once the machine goes wrong.
const badValue = 0xbadbadbadbad

// IncorrectMachine behaves like its inner machine but reports a corrupted
// state from incorrectStep onwards, the way a dishonest host would.
type IncorrectMachine struct {
	inner         *Machine
	incorrectStep uint64
}

var _ MachineInterface = (*IncorrectMachine)(nil)

func NewIncorrectMachine(inner *Machine, incorrectStep uint64) *IncorrectMachine {
	return &IncorrectMachine{
		inner:         inner.Clone(),
		incorrectStep: incorrectStep,
	}
}

func (m *IncorrectMachine) CloneMachineInterface() MachineInterface {
	return &IncorrectMachine{
		inner:         m.inner.Clone(),
		incorrectStep: m.incorrectStep,
	}
}

func (m *IncorrectMachine) GetStepCount() uint64 {
	return m.inner.GetStepCount()
}

func (m *IncorrectMachine) IsRunning() bool {
	return m.inner.IsRunning()
}

func (m *IncorrectMachine) IsErrored() bool {
	return m.inner.IsErrored()
}

func (m *IncorrectMachine) Status() Status {
	return m.inner.Status()
}

func (m *IncorrectMachine) Step(ctx context.Context, count uint64) error {
	return m.inner.Step(ctx, count)
}

func (m *IncorrectMachine) Run(ctx context.Context, budget *uint64) (StepResult, error) {
	return m.inner.Run(ctx, budget)
}

// State returns the honest state before incorrectStep and a corrupted copy
// from then on. An errored machine claims to have finished instead.
func (m *IncorrectMachine) State() *Machine {
	if m.inner.GetStepCount() < m.incorrectStep {
		return m.inner
	}
	bad := m.inner.Clone()
	if bad.status == StatusErrored {
		bad.status = StatusFinished
		bad.trap = nil
	}
	bad.stack = append(bad.stack, badValue)
	return bad
}
