// Copyright 2021-2024, Offchain Labs, Inc.
// For license information, see https://github.com/OffchainLabs/nitro/blob/master/LICENSE.md

package machine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alt-research/osp/util/testhelpers"
	"github.com/alt-research/osp/wavm"
)

func newFib(t *testing.T, n uint64) *Machine {
	t.Helper()
	mach, err := New(wavm.FibProgram(), wavm.FibFunction, []wavm.Value{n})
	testhelpers.RequireImpl(t, err)
	return mach
}

func TestRunSuspendsWhenBudgetRunsOut(t *testing.T) {
	mach := newFib(t, 10)
	budget := uint64(10)
	res, err := mach.Run(context.Background(), &budget)
	require.NoError(t, err)
	require.Equal(t, Suspended, res.Kind)
	require.Equal(t, uint64(10), res.PC)
	require.Equal(t, uint64(0), budget)
	require.Equal(t, uint64(10), mach.GetStepCount())
	require.True(t, mach.IsRunning())

	inst, ok := mach.NextInstruction()
	require.True(t, ok)
	require.Equal(t, wavm.I32Add, inst.Opcode)
}

func TestRunCompletes(t *testing.T) {
	mach := newFib(t, 10)
	budget := uint64(1_000)
	res, err := mach.Run(context.Background(), &budget)
	require.NoError(t, err)
	require.Equal(t, Completed, res.Kind)
	require.Equal(t, []wavm.Value{55}, res.Results)
	require.Equal(t, StatusFinished, mach.Status())
	require.Equal(t, 1_000-mach.GetStepCount(), budget)

	// A stopped machine ignores further budget.
	budget = 5
	res, err = mach.Run(context.Background(), &budget)
	require.NoError(t, err)
	require.Equal(t, Completed, res.Kind)
	require.Equal(t, uint64(5), budget)
}

func TestCompletesOnLastBudgetedStep(t *testing.T) {
	full := newFib(t, 3)
	budget := uint64(1_000)
	_, err := full.Run(context.Background(), &budget)
	require.NoError(t, err)
	steps := full.GetStepCount()

	mach := newFib(t, 3)
	budget = steps
	res, err := mach.Run(context.Background(), &budget)
	require.NoError(t, err)
	require.Equal(t, Completed, res.Kind)

	mach = newFib(t, 3)
	budget = steps - 1
	res, err = mach.Run(context.Background(), &budget)
	require.NoError(t, err)
	require.Equal(t, Suspended, res.Kind)
}

func TestRunTraps(t *testing.T) {
	mach, err := New(wavm.OutOfBoundsProgram(), wavm.OutOfBoundsFunction, nil)
	require.NoError(t, err)
	budget := uint64(10)
	res, err := mach.Run(context.Background(), &budget)
	require.NoError(t, err)
	require.Equal(t, Errored, res.Kind)
	require.Equal(t, uint64(1), res.PC)
	require.Equal(t, wavm.TrapMemoryOutOfBounds, res.Trap.Kind)
	require.True(t, mach.IsErrored())
	require.Equal(t, uint64(2), mach.GetStepCount())
	require.Equal(t, uint64(8), budget)
}

func TestRunHonoursContext(t *testing.T) {
	mach := newFib(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	budget := uint64(100)
	_, err := mach.Run(ctx, &budget)
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, uint64(100), budget)
}

func TestNewChecksArguments(t *testing.T) {
	_, err := New(wavm.FibProgram(), wavm.FibFunction, nil)
	require.True(t, errors.Is(err, ErrArguments))
	_, err = New(wavm.FibProgram(), "missing", nil)
	require.Error(t, err)
	_, err = New(&wavm.Program{}, "", nil)
	require.True(t, errors.Is(err, wavm.ErrInvalidProgram))
}

func TestCloneIsIndependent(t *testing.T) {
	mach, err := New(wavm.SumSquaresProgram(), wavm.SumSquaresFunction, []wavm.Value{4})
	require.NoError(t, err)
	require.NoError(t, mach.Step(context.Background(), 20))
	clone := mach.Clone()
	require.Equal(t, mach.Snapshot(), clone.Snapshot())

	require.NoError(t, mach.Step(context.Background(), 1_000))
	require.Equal(t, StatusFinished, mach.Status())
	require.Equal(t, StatusRunning, clone.Status())
	require.Equal(t, uint64(20), clone.GetStepCount())

	require.NoError(t, clone.Step(context.Background(), 1_000))
	require.Equal(t, mach.Snapshot(), clone.Snapshot())
	require.Equal(t, []wavm.Value{14}, clone.Stack())
}

func TestSingleStepTouchesOnlyItsOperands(t *testing.T) {
	mach := newFib(t, 10)
	require.NoError(t, mach.Step(context.Background(), 10))
	before := mach.Snapshot()
	require.NoError(t, mach.Step(context.Background(), 1))
	after := mach.Snapshot()

	changelog, err := StepChanges(before, after)
	require.NoError(t, err)
	require.NotEmpty(t, changelog)
	for _, change := range changelog {
		switch change.Path[0] {
		case "PC", "Stack":
		default:
			testhelpers.FailImpl(t, "i32.add changed", change.Path, change.From, change.To)
		}
	}
	require.Equal(t, uint64(11), after.PC)
	require.Equal(t, []uint64{1}, after.Stack)
	require.Contains(t, FormatChanges(changelog), "update PC: 10 -> 11")
}

func TestCallPushesFrame(t *testing.T) {
	mach, err := New(wavm.SumSquaresProgram(), wavm.SumSquaresFunction, []wavm.Value{2})
	require.NoError(t, err)
	square := mach.Program().Functions["square"]
	for len(mach.Frames()) == 1 {
		require.NoError(t, mach.Step(context.Background(), 1))
		require.True(t, mach.IsRunning())
	}
	require.Equal(t, square.EntryPC, mach.PC())
	require.Len(t, mach.Frames(), 2)
	top := mach.Frames()[1]
	require.Len(t, top.Locals, int(square.NumLocals))
	require.Equal(t, mach.Program().Code[top.ReturnPC-1].Opcode, wavm.Call)
}

func TestIncorrectMachine(t *testing.T) {
	honest := newFib(t, 10)
	bad := NewIncorrectMachine(honest, 11)
	require.NoError(t, bad.Step(context.Background(), 10))
	require.Same(t, bad.inner, bad.State())

	clone := bad.CloneMachineInterface()
	require.NoError(t, clone.Step(context.Background(), 1))
	require.Equal(t, uint64(11), clone.GetStepCount())
	state := clone.State()
	require.Equal(t, wavm.Value(badValue), state.Stack()[len(state.Stack())-1])
	require.Equal(t, uint64(10), bad.GetStepCount())

	// The wrapped machine is a copy.
	require.Equal(t, uint64(0), honest.GetStepCount())
}

func TestIncorrectMachineHidesTrap(t *testing.T) {
	mach, err := New(wavm.OutOfBoundsProgram(), wavm.OutOfBoundsFunction, nil)
	require.NoError(t, err)
	bad := NewIncorrectMachine(mach, 0)
	require.NoError(t, bad.Step(context.Background(), 5))
	require.True(t, bad.IsErrored())
	require.Equal(t, StatusFinished, bad.State().Status())
}
