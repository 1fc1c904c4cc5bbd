// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package machine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/log"

	"github.com/alt-research/osp/wavm"
)

type Status uint8

const (
	StatusRunning Status = iota
	StatusFinished
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusErrored:
		return "errored"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// ctxCheckInterval is how many steps Run takes between context checks.
const ctxCheckInterval = 1 << 14

var ErrArguments = errors.New("wrong number of arguments")

type MachineInterface interface {
	CloneMachineInterface() MachineInterface
	GetStepCount() uint64
	IsRunning() bool
	IsErrored() bool
	Status() Status
	Step(context.Context, uint64) error
	Run(ctx context.Context, budget *uint64) (StepResult, error)
	// State is the machine state a commitment is taken over.
	State() *Machine
}

type Frame struct {
	ReturnPC uint64
	Locals   []wavm.Value
}

// Machine is the host's full VM instance.
type Machine struct {
	program *wavm.Program
	status  Status
	pc      uint64
	stack   []wavm.Value
	frames  []Frame
	globals []wavm.Value
	memory  []byte
	steps   uint64
	trap    *wavm.Trap
}

var _ MachineInterface = (*Machine)(nil)

// New instantiates prog and enters the named function with args as its
// leading locals.
func New(prog *wavm.Program, entry string, args []wavm.Value) (*Machine, error) {
	if err := prog.Validate(); err != nil {
		return nil, err
	}
	f, err := prog.Function(entry)
	if err != nil {
		return nil, err
	}
	if len(args) != int(f.NumParams) {
		return nil, fmt.Errorf("%w: %q takes %d, got %d", ErrArguments, entry, f.NumParams, len(args))
	}
	locals := make([]wavm.Value, f.NumLocals)
	copy(locals, args)
	return &Machine{
		program: prog,
		pc:      f.EntryPC,
		frames:  []Frame{{Locals: locals}},
		globals: slices.Clone(prog.Globals),
		memory:  prog.InitialMemory(),
	}, nil
}

func (m *Machine) Clone() *Machine {
	frames := make([]Frame, len(m.frames))
	for i, f := range m.frames {
		frames[i] = Frame{ReturnPC: f.ReturnPC, Locals: slices.Clone(f.Locals)}
	}
	return &Machine{
		program: m.program,
		status:  m.status,
		pc:      m.pc,
		stack:   slices.Clone(m.stack),
		frames:  frames,
		globals: slices.Clone(m.globals),
		memory:  slices.Clone(m.memory),
		steps:   m.steps,
		trap:    m.trap,
	}
}

func (m *Machine) CloneMachineInterface() MachineInterface {
	return m.Clone()
}

func (m *Machine) State() *Machine {
	return m
}

func (m *Machine) Program() *wavm.Program {
	return m.program
}

func (m *Machine) GetStepCount() uint64 {
	return m.steps
}

func (m *Machine) IsRunning() bool {
	return m.status == StatusRunning
}

func (m *Machine) IsErrored() bool {
	return m.status == StatusErrored
}

func (m *Machine) Status() Status {
	return m.status
}

// PC is the next instruction to execute. It is only meaningful while running.
func (m *Machine) PC() uint64 {
	return m.pc
}

// The accessors below expose internal storage; callers must not modify it.

func (m *Machine) Stack() []wavm.Value {
	return m.stack
}

func (m *Machine) Frames() []Frame {
	return m.frames
}

func (m *Machine) Globals() []wavm.Value {
	return m.globals
}

func (m *Machine) Memory() []byte {
	return m.memory
}

// Trap is the fault that stopped the machine, if any.
func (m *Machine) Trap() *wavm.Trap {
	return m.trap
}

// NextInstruction is the instruction at PC.
func (m *Machine) NextInstruction() (wavm.Instruction, bool) {
	if !m.IsRunning() || m.pc >= uint64(len(m.program.Code)) {
		return wavm.Instruction{}, false
	}
	return m.program.Code[m.pc], true
}

func (m *Machine) stepOne() error {
	inst, ok := m.NextInstruction()
	if !ok {
		m.fault(&wavm.Trap{Kind: wavm.TrapInvalidInstruction, PC: m.pc})
		return nil
	}
	m.steps++
	err := wavm.Execute((*execState)(m), inst)
	if trap, ok := wavm.AsTrap(err); ok {
		m.fault(trap)
		return nil
	}
	return err
}

func (m *Machine) fault(trap *wavm.Trap) {
	log.Debug("machine trapped", "pc", trap.PC, "inst", trap.Inst, "reason", trap.Kind, "steps", m.steps)
	m.status = StatusErrored
	m.trap = trap
}

// Run executes until the machine stops or *budget reaches zero, decrementing
// *budget once per executed instruction. A machine that is still running when
// the budget runs out is Suspended at its next pc.
func (m *Machine) Run(ctx context.Context, budget *uint64) (StepResult, error) {
	for m.IsRunning() {
		if *budget == 0 {
			return StepResult{Kind: Suspended, PC: m.pc}, nil
		}
		if m.steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return StepResult{}, err
			}
		}
		if err := m.stepOne(); err != nil {
			return StepResult{}, fmt.Errorf("step %d at pc %d: %w", m.steps, m.pc, err)
		}
		*budget--
	}
	return m.result(), nil
}

// Step advances up to count instructions, stopping early if the machine stops.
func (m *Machine) Step(ctx context.Context, count uint64) error {
	_, err := m.Run(ctx, &count)
	return err
}

func (m *Machine) result() StepResult {
	switch m.status {
	case StatusFinished:
		return StepResult{Kind: Completed, Results: slices.Clone(m.stack)}
	case StatusErrored:
		return StepResult{Kind: Errored, PC: m.trap.PC, Trap: m.trap}
	default:
		return StepResult{Kind: Suspended, PC: m.pc}
	}
}
