// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package machine

import (
	"fmt"

	"github.com/alt-research/osp/wavm"
)

// execState is the machine seen through wavm.StepState.
type execState Machine

var _ wavm.StepState = (*execState)(nil)

func (s *execState) PC() uint64      { return s.pc }
func (s *execState) SetPC(pc uint64) { s.pc = pc }

func (s *execState) Pop() (wavm.Value, error) {
	n := len(s.stack)
	if n == 0 {
		return 0, wavm.ErrStackUnderflow
	}
	v := s.stack[n-1]
	s.stack = s.stack[:n-1]
	return v, nil
}

func (s *execState) Push(v wavm.Value) {
	s.stack = append(s.stack, v)
}

func (s *execState) top() *Frame {
	return &s.frames[len(s.frames)-1]
}

func (s *execState) NumLocals() uint64 {
	return uint64(len(s.top().Locals))
}

func (s *execState) LocalGet(index uint64) (wavm.Value, error) {
	return s.top().Locals[index], nil
}

func (s *execState) LocalSet(index uint64, v wavm.Value) error {
	s.top().Locals[index] = v
	return nil
}

func (s *execState) GlobalGet(index uint64) (wavm.Value, error) {
	if index >= uint64(len(s.globals)) {
		return 0, fmt.Errorf("%w: %d", wavm.ErrGlobalOutOfRange, index)
	}
	return s.globals[index], nil
}

func (s *execState) GlobalSet(index uint64, v wavm.Value) error {
	if index >= uint64(len(s.globals)) {
		return fmt.Errorf("%w: %d", wavm.ErrGlobalOutOfRange, index)
	}
	s.globals[index] = v
	return nil
}

func (s *execState) MemorySize() uint64 {
	return uint64(len(s.memory))
}

func (s *execState) ReadMemory(addr, size uint64) ([]byte, error) {
	out := make([]byte, size)
	copy(out, s.memory[addr:addr+size])
	return out, nil
}

func (s *execState) WriteMemory(addr uint64, data []byte) error {
	copy(s.memory[addr:], data)
	return nil
}

func (s *execState) PushFrame(returnPC uint64, locals []wavm.Value) error {
	s.frames = append(s.frames, Frame{ReturnPC: returnPC, Locals: locals})
	return nil
}

func (s *execState) PopFrame() (uint64, bool, error) {
	top := s.top()
	if len(s.frames) == 1 {
		return top.ReturnPC, true, nil
	}
	s.frames = s.frames[:len(s.frames)-1]
	return top.ReturnPC, false, nil
}

func (s *execState) Halt() {
	s.status = StatusFinished
	s.frames = nil
}
